package profile

// levelThresholds[i] is the minimum XP for level i+1.
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000}

// XP cost of each level past the last threshold.
const xpPerLevelAfterTable = 4000

// LevelForXP maps total XP to a level. The mapping is total, non-decreasing
// and never returns less than 1.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	last := levelThresholds[len(levelThresholds)-1]
	if xp >= last {
		return len(levelThresholds) + (xp-last)/xpPerLevelAfterTable
	}
	level := 1
	for i, threshold := range levelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// XPForLevel returns the minimum XP needed to reach level.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level <= len(levelThresholds) {
		return levelThresholds[level-1]
	}
	last := levelThresholds[len(levelThresholds)-1]
	return last + (level-len(levelThresholds))*xpPerLevelAfterTable
}

// NextLevelXP returns the XP total at which the profile levels up next.
func (p *Profile) NextLevelXP() int {
	return XPForLevel(LevelForXP(p.XP) + 1)
}
