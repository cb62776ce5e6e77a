// Package memory is an in-process Store. One mutex guards all state, so each
// call is atomic the same way a Postgres transaction is.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"snapQuestAPI/internal/apperror"
	"snapQuestAPI/internal/badge"
	"snapQuestAPI/internal/challenge"
	"snapQuestAPI/internal/leaderboard"
	"snapQuestAPI/internal/photo"
	"snapQuestAPI/internal/profile"
	"snapQuestAPI/internal/quest"
	"snapQuestAPI/internal/repository"
)

type pair struct{ a, b uuid.UUID }

type dailyKey struct {
	user, challenge uuid.UUID
	day             string
}

type Store struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	profiles map[uuid.UUID]*profile.Profile
	byClerk  map[string]uuid.UUID

	challenges  map[uuid.UUID]*challenge.Challenge
	completions map[dailyKey]bool

	photos map[uuid.UUID]*photo.Photo
	likes  map[pair]bool

	quests        map[uuid.UUID]*quest.Quest
	tasks         map[uuid.UUID]*quest.Task
	progress      map[pair]*quest.Progress
	taskCompleted map[pair]bool

	badges     []*badge.Badge
	userBadges map[pair]time.Time

	devices map[uuid.UUID][]repository.DeviceToken
}

var _ repository.Store = (*Store)(nil)

func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:         clock,
		profiles:      make(map[uuid.UUID]*profile.Profile),
		byClerk:       make(map[string]uuid.UUID),
		challenges:    make(map[uuid.UUID]*challenge.Challenge),
		completions:   make(map[dailyKey]bool),
		photos:        make(map[uuid.UUID]*photo.Photo),
		likes:         make(map[pair]bool),
		quests:        make(map[uuid.UUID]*quest.Quest),
		tasks:         make(map[uuid.UUID]*quest.Task),
		progress:      make(map[pair]*quest.Progress),
		taskCompleted: make(map[pair]bool),
		userBadges:    make(map[pair]time.Time),
		devices:       make(map[uuid.UUID][]repository.DeviceToken),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// ---- profiles ----

func (s *Store) UpsertProfile(_ context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	if req.ClerkID == "" {
		return nil, fmt.Errorf("clerk id is required: %w", apperror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if id, ok := s.byClerk[req.ClerkID]; ok {
		p := s.profiles[id]
		p.Username = req.Username
		p.DisplayName = optional(req.DisplayName)
		p.ImageURL = req.ImageURL
		p.UpdatedAt = now
		return p.Clone(), nil
	}

	p := &profile.Profile{
		ID:          uuid.New(),
		ClerkID:     req.ClerkID,
		Username:    req.Username,
		DisplayName: optional(req.DisplayName),
		ImageURL:    req.ImageURL,
		Level:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.profiles[p.ID] = p
	s.byClerk[p.ClerkID] = p.ID
	return p.Clone(), nil
}

func (s *Store) UpdateProfileByClerkID(_ context.Context, clerkID string, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileByClerkLocked(clerkID)
	if err != nil {
		return nil, err
	}
	if req.Username != "" {
		p.Username = req.Username
	}
	if req.DisplayName != "" {
		p.DisplayName = optional(req.DisplayName)
	}
	if req.ImageURL != "" {
		p.ImageURL = req.ImageURL
	}
	p.UpdatedAt = s.clock.Now()
	return p.Clone(), nil
}

func (s *Store) DeleteProfileByClerkID(_ context.Context, clerkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileByClerkLocked(clerkID)
	if err != nil {
		return err
	}
	delete(s.profiles, p.ID)
	delete(s.byClerk, clerkID)
	delete(s.devices, p.ID)
	for id, ph := range s.photos {
		if ph.UserID == p.ID {
			delete(s.photos, id)
		}
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.profileLocked(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (s *Store) GetProfileByClerkID(_ context.Context, clerkID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.profileByClerkLocked(clerkID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (s *Store) AddXP(_ context.Context, id uuid.UUID, amount int) (*profile.Profile, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("xp amount must be positive, got %d: %w", amount, apperror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(id)
	if err != nil {
		return nil, err
	}
	p.ApplyXP(amount)
	p.UpdatedAt = s.clock.Now()
	return p.Clone(), nil
}

func (s *Store) AdvanceStreak(_ context.Context, id uuid.UUID, today time.Time) (*repository.StreakOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(id)
	if err != nil {
		return nil, err
	}
	before := p.Streak
	p.AdvanceStreak(today)
	p.UpdatedAt = s.clock.Now()
	return &repository.StreakOutcome{Profile: p.Clone(), StreakBefore: before}, nil
}

func (s *Store) profileLocked(id uuid.UUID) (*profile.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, apperror.ErrNotFound)
	}
	return p, nil
}

func (s *Store) profileByClerkLocked(clerkID string) (*profile.Profile, error) {
	id, ok := s.byClerk[clerkID]
	if !ok {
		return nil, fmt.Errorf("profile for clerk id %s: %w", clerkID, apperror.ErrNotFound)
	}
	return s.profiles[id], nil
}

// credit applies xp and the streak for one activity. Caller holds the lock.
func (s *Store) creditLocked(p *profile.Profile, amount int, today time.Time) int {
	before := p.Streak
	if amount > 0 {
		p.ApplyXP(amount)
	}
	p.AdvanceStreak(today)
	p.UpdatedAt = s.clock.Now()
	return before
}

// ---- challenges ----

func (s *Store) GetChallenge(_ context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", id, apperror.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListDailyChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	all, err := s.ListChallenges(ctx, repository.ChallengeFilter{Limit: -1})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.IsDaily {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListChallenges(_ context.Context, f repository.ChallengeFilter) ([]*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*challenge.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		if f.Category != "" && !strings.EqualFold(c.Category, f.Category) {
			continue
		}
		if f.Difficulty != "" && c.Difficulty != f.Difficulty {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayNumber != out[j].DayNumber {
			return out[i].DayNumber < out[j].DayNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) UpsertChallenge(_ context.Context, c *challenge.Challenge) (*challenge.Challenge, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.challenges {
		if existing.Title == c.Title {
			id, created := existing.ID, existing.CreatedAt
			*existing = *c
			existing.ID, existing.CreatedAt = id, created
			cp := *existing
			return &cp, nil
		}
	}

	cp := *c
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = s.clock.Now()
	s.challenges[cp.ID] = &cp
	out := cp
	return &out, nil
}

// ---- photos ----

func (s *Store) RecordSubmission(_ context.Context, sub repository.NewSubmission) (*repository.SubmissionOutcome, error) {
	if sub.Photo == nil {
		return nil, fmt.Errorf("photo is required: %w", apperror.ErrInvalidInput)
	}
	if sub.Photo.Target.IsQuestTask() {
		return nil, fmt.Errorf("quest task photos are recorded through CompleteTask: %w", apperror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked(sub.Photo.UserID)
	if err != nil {
		return nil, err
	}

	out := &repository.SubmissionOutcome{StreakBefore: p.Streak}
	ph := *sub.Photo
	ph.XPEarned = 0

	if ph.Target.Kind() == photo.TargetChallenge {
		if _, ok := s.challenges[ph.Target.ID()]; !ok {
			return nil, fmt.Errorf("challenge %s: %w", ph.Target.ID(), apperror.ErrNotFound)
		}
		key := dailyKey{p.ID, ph.Target.ID(), sub.Today.Format(time.DateOnly)}
		if !s.completions[key] && sub.XPReward > 0 {
			s.completions[key] = true
			ph.XPEarned = sub.XPReward
			out.StreakBefore = s.creditLocked(p, sub.XPReward, sub.Today)
			out.Credited = true
		}
	}

	if ph.ID == uuid.Nil {
		ph.ID = uuid.New()
	}
	ph.CreatedAt = s.clock.Now()
	s.photos[ph.ID] = &ph

	stored := ph
	out.Photo = &stored
	out.Profile = p.Clone()
	return out, nil
}

func (s *Store) GetPhoto(_ context.Context, id uuid.UUID) (*photo.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ph, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", id, apperror.ErrNotFound)
	}
	cp := *ph
	return &cp, nil
}

func (s *Store) ListUserPhotos(_ context.Context, userID uuid.UUID, limit int) ([]*photo.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*photo.Photo
	for _, ph := range s.photos {
		if ph.UserID == userID {
			cp := *ph
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, 0, limit), nil
}

func (s *Store) LikePhoto(_ context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error) {
	return s.setLike(userID, photoID, true)
}

func (s *Store) UnlikePhoto(_ context.Context, userID, photoID uuid.UUID) (*photo.LikeResult, error) {
	return s.setLike(userID, photoID, false)
}

func (s *Store) setLike(userID, photoID uuid.UUID, liked bool) (*photo.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ph, ok := s.photos[photoID]
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", photoID, apperror.ErrNotFound)
	}
	key := pair{userID, photoID}
	switch {
	case liked && !s.likes[key]:
		s.likes[key] = true
		ph.LikesCount++
	case !liked && s.likes[key]:
		delete(s.likes, key)
		ph.LikesCount--
	}
	return &photo.LikeResult{PhotoID: photoID, State: photo.LikeStateOf(liked), LikesCount: ph.LikesCount}, nil
}

// ---- quests ----

func (s *Store) GetQuest(_ context.Context, id uuid.UUID) (*quest.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quests[id]
	if !ok {
		return nil, fmt.Errorf("quest %s: %w", id, apperror.ErrNotFound)
	}
	return cloneQuest(q), nil
}

func (s *Store) GetTask(_ context.Context, taskID uuid.UUID) (*quest.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("quest task %s: %w", taskID, apperror.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) GetProgress(_ context.Context, userID, questID uuid.UUID) (*quest.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[pair{userID, questID}]
	if !ok {
		return nil, fmt.Errorf("progress for quest %s: %w", questID, apperror.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) StartQuest(_ context.Context, userID, questID uuid.UUID, now time.Time) (*quest.Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, created, err := s.startLocked(userID, questID, now)
	if err != nil {
		return nil, false, err
	}
	return p.Clone(), created, nil
}

func (s *Store) startLocked(userID, questID uuid.UUID, now time.Time) (*quest.Progress, bool, error) {
	if _, err := s.profileLocked(userID); err != nil {
		return nil, false, err
	}
	if _, ok := s.quests[questID]; !ok {
		return nil, false, fmt.Errorf("quest %s: %w", questID, apperror.ErrNotFound)
	}
	key := pair{userID, questID}
	if p, ok := s.progress[key]; ok {
		return p, false, nil
	}
	p := quest.NewProgress(userID, questID, now)
	s.progress[key] = p
	return p, true, nil
}

func (s *Store) CompleteTask(_ context.Context, c repository.TaskCompletion) (*repository.TaskOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[c.TaskID]
	if !ok || t.QuestID != c.QuestID {
		return nil, fmt.Errorf("task %s in quest %s: %w", c.TaskID, c.QuestID, apperror.ErrNotFound)
	}

	prog, _, err := s.startLocked(c.UserID, c.QuestID, c.Now)
	if err != nil {
		return nil, err
	}
	p := s.profiles[c.UserID]
	out := &repository.TaskOutcome{StreakBefore: p.Streak}

	key := pair{c.UserID, c.TaskID}
	if !s.taskCompleted[key] {
		applied, done := prog.Apply(c.TaskID, c.XPReward, c.TotalTasks, c.Now)
		if applied {
			s.taskCompleted[key] = true
			out.StreakBefore = s.creditLocked(p, c.XPReward, c.Today)
			out.Credited = true
			out.QuestCompleted = done
		}
	}

	if c.Photo != nil {
		ph := *c.Photo
		ph.XPEarned = 0
		if out.Credited {
			ph.XPEarned = c.XPReward
		}
		if ph.ID == uuid.Nil {
			ph.ID = uuid.New()
		}
		ph.CreatedAt = s.clock.Now()
		s.photos[ph.ID] = &ph
		stored := ph
		out.Photo = &stored
	}

	out.Progress = prog.Clone()
	out.Profile = p.Clone()
	return out, nil
}

func (s *Store) UpsertQuest(_ context.Context, q *quest.Quest) (*quest.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *quest.Quest
	for _, e := range s.quests {
		if e.Title == q.Title && e.Kind == q.Kind {
			existing = e
			break
		}
	}

	cp := cloneQuest(q)
	if existing != nil {
		cp.ID, cp.CreatedAt = existing.ID, existing.CreatedAt
		for _, t := range existing.Tasks {
			delete(s.tasks, t.ID)
		}
	} else {
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.CreatedAt = s.clock.Now()
	}

	for i, t := range cp.Tasks {
		if existing != nil && i < len(existing.Tasks) {
			t.ID = existing.Tasks[i].ID
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.QuestID = cp.ID
		t.Position = i + 1
		task := *t
		s.tasks[t.ID] = &task
	}
	s.quests[cp.ID] = cp
	return cloneQuest(cp), nil
}

func cloneQuest(q *quest.Quest) *quest.Quest {
	cp := *q
	cp.Tasks = make([]*quest.Task, 0, len(q.Tasks))
	for _, t := range q.Tasks {
		task := *t
		cp.Tasks = append(cp.Tasks, &task)
	}
	return &cp
}

// ---- badges ----

func (s *Store) ListBadges(_ context.Context) ([]*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*badge.Badge, 0, len(s.badges))
	for _, b := range s.badges {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListUserBadges(_ context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*badge.UserBadge
	for _, b := range s.badges {
		if at, ok := s.userBadges[pair{userID, b.ID}]; ok {
			out = append(out, &badge.UserBadge{UserID: userID, BadgeID: b.ID, EarnedAt: at})
		}
	}
	return out, nil
}

func (s *Store) AwardBadge(_ context.Context, userID, badgeID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.profileLocked(userID); err != nil {
		return false, err
	}
	key := pair{userID, badgeID}
	if _, ok := s.userBadges[key]; ok {
		return false, nil
	}
	s.userBadges[key] = at
	return true, nil
}

func (s *Store) GetBadgeMetrics(_ context.Context, userID uuid.UUID) (badge.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.profileLocked(userID)
	if err != nil {
		return badge.Metrics{}, err
	}

	m := badge.Metrics{LongestStreak: p.LongestStreak}
	themes := make(map[string]int)
	for _, ph := range s.photos {
		if ph.UserID != userID {
			continue
		}
		m.PhotoCount++
		m.LikesReceived += ph.LikesCount
		if ph.LikesCount >= badge.TopPhotoLikes {
			m.TopPhotos++
		}
		if ph.Target.Kind() == photo.TargetChallenge {
			if c, ok := s.challenges[ph.Target.ID()]; ok && c.Category != "" {
				themes[c.Category]++
			}
		}
	}
	for _, n := range themes {
		if n > m.MaxThemeRepeat {
			m.MaxThemeRepeat = n
		}
	}
	return m, nil
}

func (s *Store) UpsertBadge(_ context.Context, b *badge.Badge) (*badge.Badge, error) {
	if !b.RequirementType.Valid() || b.RequirementValue <= 0 {
		return nil, fmt.Errorf("invalid badge requirement %s/%d: %w", b.RequirementType, b.RequirementValue, apperror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.badges {
		if existing.Slug == b.Slug {
			id, created := existing.ID, existing.CreatedAt
			*existing = *b
			existing.ID, existing.CreatedAt = id, created
			cp := *existing
			return &cp, nil
		}
	}
	cp := *b
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = s.clock.Now()
	s.badges = append(s.badges, &cp)
	out := cp
	return &out, nil
}

// ---- leaderboard ----

func (s *Store) TopProfiles(_ context.Context, limit int) ([]*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return leaderboard.Less(out[i], out[j]) })
	return page(out, 0, limit), nil
}

func (s *Store) CountProfilesAbove(_ context.Context, xp int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.profiles {
		if p.XP > xp {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountProfiles(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}

// ---- devices ----

func (s *Store) RegisterDevice(_ context.Context, userID uuid.UUID, token repository.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.profileLocked(userID); err != nil {
		return err
	}
	// a token belongs to one user; re-registering moves it
	for uid, tokens := range s.devices {
		s.devices[uid] = removeToken(tokens, token.Token)
	}
	s.devices[userID] = append(s.devices[userID], token)
	return nil
}

func (s *Store) ListDeviceTokens(_ context.Context, userID uuid.UUID) ([]repository.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]repository.DeviceToken(nil), s.devices[userID]...), nil
}

func (s *Store) RemoveDeviceToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, tokens := range s.devices {
		s.devices[uid] = removeToken(tokens, token)
	}
	return nil
}

func removeToken(tokens []repository.DeviceToken, token string) []repository.DeviceToken {
	out := tokens[:0]
	for _, t := range tokens {
		if t.Token != token {
			out = append(out, t)
		}
	}
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return items[:0]
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
