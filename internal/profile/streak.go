package profile

import (
	"time"

	"snapQuestAPI/internal/calendar"
)

// AdvanceStreak applies one qualifying activity on the calendar date today.
//
// Same day as the last activity leaves the streak alone, the next day extends
// it, and anything else (first activity or a gap) starts a new streak of 1.
// last_activity_date becomes today unless it already holds a later date (a
// clock or timezone change), so it never moves backwards. It reports whether
// the streak counter changed.
//
// Repositories that cannot run this in Go (Postgres) mirror it in SQL.
func (p *Profile) AdvanceStreak(today time.Time) bool {
	before := p.Streak

	switch {
	case p.LastActivityDate == nil:
		p.Streak = 1
	default:
		gap := calendar.DaysBetween(*p.LastActivityDate, today)
		switch {
		case gap <= 0:
			// already counted today
		case gap == 1:
			p.Streak++
		default:
			p.Streak = 1
		}
	}

	if p.Streak > p.LongestStreak {
		p.LongestStreak = p.Streak
	}
	if p.LastActivityDate == nil || today.After(*p.LastActivityDate) {
		d := today
		p.LastActivityDate = &d
	}

	return p.Streak != before
}

// ApplyXP adds amount to the profile and recomputes the level. The stored
// level never decreases.
func (p *Profile) ApplyXP(amount int) {
	p.XP += amount
	if level := LevelForXP(p.XP); level > p.Level {
		p.Level = level
	}
}
