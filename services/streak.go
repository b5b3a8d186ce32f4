package services

import (
	"habit-progression-engine/models"
)

// ApplyStreak updates the consecutive-day streak for a rewarded experience-bearing
// action at the clock's current instant. It reports whether the streak value changed.
//
//	no previous update   → streak = 1
//	same day             → unchanged
//	next day             → streak + 1
//	two or more days gap → streak = 1
func ApplyStreak(p *models.UserProgress, clock *DayClock) bool {
	now := clock.Now()
	if p.LastStreakUpdate == nil {
		p.Streak = 1
		p.LastStreakUpdate = &now
		bumpLongest(p)
		return true
	}

	dayDiff := clock.DaysSince(*p.LastStreakUpdate)
	if dayDiff < 0 {
		// clock skew between writers; treat as already credited today
		dayDiff = 0
	}

	switch {
	case dayDiff == 0:
		return false
	case dayDiff == 1:
		p.Streak++
	default:
		p.Streak = 1
	}
	p.LastStreakUpdate = &now
	bumpLongest(p)
	return true
}

func bumpLongest(p *models.UserProgress) {
	if p.Streak > p.LongestStreak {
		p.LongestStreak = p.Streak
	}
}
