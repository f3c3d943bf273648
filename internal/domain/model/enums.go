package model

import "fmt"

// Period is the assessment cadence.
type Period string

const (
	PeriodMonthly   Period = "Monthly"
	PeriodQuarterly Period = "Quarterly"
)

// ParsePeriod validates a wire value. Empty input yields PeriodMonthly.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodMonthly, nil
	case PeriodMonthly, PeriodQuarterly:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Level is the player tier that decides which skills apply.
type Level string

const (
	LevelDevelopment Level = "Development"
	LevelAdvanced    Level = "Advanced"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelDevelopment || l == LevelAdvanced
}

// Category groups skills for analytics.
type Category string

const (
	CategoryAthletic    Category = "Athletic"
	CategoryTechnical   Category = "Technical"
	CategoryMentality   Category = "Mentality"
	CategoryPersonality Category = "Personality"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryAthletic, CategoryTechnical, CategoryMentality, CategoryPersonality}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Role is the actor's academy role.
type Role string

const (
	RoleCoach   Role = "Coach"
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCoach || r == RoleAdmin || r == RoleManager
}
