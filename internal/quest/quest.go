package quest

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindHunt  Kind = "hunt"
	KindEvent Kind = "event"
)

type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED" // terminal
)

type Quest struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Kind        Kind       `json:"kind" db:"kind"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	StartsAt    *time.Time `json:"startsAt,omitempty" db:"starts_at"`
	EndsAt      *time.Time `json:"endsAt,omitempty" db:"ends_at"`
	Tasks       []*Task    `json:"tasks"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

type Task struct {
	ID          uuid.UUID `json:"id" db:"id"`
	QuestID     uuid.UUID `json:"questId" db:"quest_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	XPReward    int       `json:"xpReward" db:"xp_reward"`
	Position    int       `json:"position" db:"position"`
}

// Text is the free text keyword extraction runs over.
func (t *Task) Text() string {
	if t.Description == "" {
		return t.Title
	}
	return t.Title + " " + t.Description
}

// Progress is one user's record for one quest.
type Progress struct {
	UserID         uuid.UUID   `json:"userId" db:"user_id"`
	QuestID        uuid.UUID   `json:"questId" db:"quest_id"`
	CompletedTasks []uuid.UUID `json:"completedTasks"`
	TotalXPEarned  int         `json:"totalXpEarned" db:"total_xp_earned"`
	StartedAt      time.Time   `json:"startedAt" db:"started_at"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
}

// NewProgress is the record start creates.
func NewProgress(userID, questID uuid.UUID, now time.Time) *Progress {
	return &Progress{
		UserID:         userID,
		QuestID:        questID,
		CompletedTasks: []uuid.UUID{},
		StartedAt:      now,
	}
}

// StateOf maps a possibly missing record to its state.
func StateOf(p *Progress) State {
	switch {
	case p == nil:
		return StateNotStarted
	case p.CompletedAt != nil:
		return StateCompleted
	default:
		return StateInProgress
	}
}

func (p *Progress) HasTask(taskID uuid.UUID) bool {
	for _, id := range p.CompletedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// Apply records taskID with its reward. It is a no-op returning false when the
// task is already recorded. justCompleted is true only on the call that
// brings the record to totalTasks; completed_at is never moved afterwards.
func (p *Progress) Apply(taskID uuid.UUID, xp, totalTasks int, now time.Time) (applied, justCompleted bool) {
	if p.HasTask(taskID) {
		return false, false
	}
	p.CompletedTasks = append(p.CompletedTasks, taskID)
	p.TotalXPEarned += xp

	if p.CompletedAt == nil && totalTasks > 0 && len(p.CompletedTasks) >= totalTasks {
		t := now
		p.CompletedAt = &t
		justCompleted = true
	}
	return true, justCompleted
}

func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	c := *p
	c.CompletedTasks = append([]uuid.UUID(nil), p.CompletedTasks...)
	if c.CompletedTasks == nil {
		c.CompletedTasks = []uuid.UUID{}
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// View is what the progress endpoint returns.
type View struct {
	QuestID        uuid.UUID   `json:"questId"`
	State          State       `json:"state"`
	CompletedTasks []uuid.UUID `json:"completedTasks"`
	TotalTasks     int         `json:"totalTasks"`
	TotalXPEarned  int         `json:"totalXpEarned"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

func NewView(questID uuid.UUID, totalTasks int, p *Progress) *View {
	v := &View{
		QuestID:        questID,
		State:          StateOf(p),
		CompletedTasks: []uuid.UUID{},
		TotalTasks:     totalTasks,
	}
	if p == nil {
		return v
	}
	v.CompletedTasks = append(v.CompletedTasks, p.CompletedTasks...)
	v.TotalXPEarned = p.TotalXPEarned
	started := p.StartedAt
	v.StartedAt = &started
	v.CompletedAt = p.CompletedAt
	return v
}
