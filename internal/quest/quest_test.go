package quest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateOf(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, StateNotStarted, StateOf(nil))

	p := NewProgress(uuid.New(), uuid.New(), now)
	assert.Equal(t, StateInProgress, StateOf(p))
	assert.Empty(t, p.CompletedTasks)
	assert.Zero(t, p.TotalXPEarned)

	p.CompletedAt = &now
	assert.Equal(t, StateCompleted, StateOf(p))
}

func TestApply_Idempotent(t *testing.T) {
	now := time.Now()
	p := NewProgress(uuid.New(), uuid.New(), now)
	task := uuid.New()

	applied, done := p.Apply(task, 30, 3, now)
	assert.True(t, applied)
	assert.False(t, done)

	applied, done = p.Apply(task, 30, 3, now)
	assert.False(t, applied)
	assert.False(t, done)

	assert.Equal(t, 30, p.TotalXPEarned)
	assert.Len(t, p.CompletedTasks, 1)
}

func TestApply_CompletesOnce(t *testing.T) {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	p := NewProgress(uuid.New(), uuid.New(), start)
	a, b := uuid.New(), uuid.New()

	_, done := p.Apply(a, 10, 2, start)
	require.False(t, done)

	finish := start.Add(time.Hour)
	_, done = p.Apply(b, 20, 2, finish)
	require.True(t, done)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, finish, *p.CompletedAt)
	assert.Equal(t, 30, p.TotalXPEarned)

	// a task added to the quest later does not reopen or restamp it
	_, done = p.Apply(uuid.New(), 5, 3, finish.Add(time.Hour))
	assert.False(t, done)
	assert.Equal(t, finish, *p.CompletedAt)
	assert.Equal(t, StateCompleted, StateOf(p))
}

func TestClone_Independent(t *testing.T) {
	p := NewProgress(uuid.New(), uuid.New(), time.Now())
	p.Apply(uuid.New(), 10, 5, time.Now())

	c := p.Clone()
	c.Apply(uuid.New(), 10, 5, time.Now())

	assert.Len(t, p.CompletedTasks, 1)
	assert.Len(t, c.CompletedTasks, 2)
}

func TestNewView(t *testing.T) {
	questID := uuid.New()

	v := NewView(questID, 4, nil)
	assert.Equal(t, StateNotStarted, v.State)
	assert.NotNil(t, v.CompletedTasks)
	assert.Nil(t, v.StartedAt)

	p := NewProgress(uuid.New(), questID, time.Now())
	p.Apply(uuid.New(), 15, 4, time.Now())
	v = NewView(questID, 4, p)
	assert.Equal(t, StateInProgress, v.State)
	assert.Equal(t, 15, v.TotalXPEarned)
	assert.Len(t, v.CompletedTasks, 1)
	assert.NotNil(t, v.StartedAt)
}
