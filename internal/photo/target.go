package photo

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type TargetKind string

const (
	TargetNone      TargetKind = "none"
	TargetChallenge TargetKind = "challenge"
	TargetEventTask TargetKind = "event_task"
	TargetHuntTask  TargetKind = "hunt_task"
)

// Target is the completion context of a submission. Exactly one kind is set
// and the zero value is NoTarget, so a photo can never point at a challenge
// and a quest task at once.
type Target struct {
	kind TargetKind
	id   uuid.UUID
}

func NoTarget() Target                   { return Target{} }
func ChallengeTarget(id uuid.UUID) Target { return Target{kind: TargetChallenge, id: id} }
func EventTaskTarget(id uuid.UUID) Target { return Target{kind: TargetEventTask, id: id} }
func HuntTaskTarget(id uuid.UUID) Target  { return Target{kind: TargetHuntTask, id: id} }

func (t Target) Kind() TargetKind {
	if t.kind == "" {
		return TargetNone
	}
	return t.kind
}

// ID is uuid.Nil for NoTarget.
func (t Target) ID() uuid.UUID { return t.id }

func (t Target) IsNone() bool { return t.Kind() == TargetNone }

// IsQuestTask reports whether the target is a hunt or event task.
func (t Target) IsQuestTask() bool {
	return t.kind == TargetEventTask || t.kind == TargetHuntTask
}

func (t Target) String() string {
	if t.IsNone() {
		return string(TargetNone)
	}
	return fmt.Sprintf("%s:%s", t.kind, t.id)
}

// ParseTarget builds a Target from its wire form. An empty kind means none.
func ParseTarget(kind, id string) (Target, error) {
	switch TargetKind(kind) {
	case "", TargetNone:
		return NoTarget(), nil
	case TargetChallenge, TargetEventTask, TargetHuntTask:
	default:
		return Target{}, fmt.Errorf("unknown target type %q", kind)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target id %q: %w", id, err)
	}
	return Target{kind: TargetKind(kind), id: parsed}, nil
}

type targetJSON struct {
	Type TargetKind `json:"type"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	out := targetJSON{Type: t.Kind()}
	if !t.IsNone() {
		id := t.id
		out.ID = &id
	}
	return json.Marshal(out)
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var in targetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	id := ""
	if in.ID != nil {
		id = in.ID.String()
	}
	parsed, err := ParseTarget(string(in.Type), id)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
