package timetable

import (
	"sort"
	"strings"
	"time"
)

const (
	// DaysPerWeek counts the scheduled weekdays, Monday (0) through Friday (4).
	DaysPerWeek = 5
	// MaxPeriods is the highest period index any rule may use.
	MaxPeriods = 8
	// AnchorWeekday is the day whose first period belongs to the class teacher.
	AnchorWeekday = 0
	// AnchorPeriod is the period reserved for the class teacher on the anchor weekday.
	AnchorPeriod = 1
)

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// DayName returns the English weekday name for a day index.
func DayName(day int) string {
	if day < 0 || day >= DaysPerWeek {
		return "Unknown"
	}
	return dayNames[day]
}

// WeekdayIndex maps a calendar date to a day index. It returns false on weekends.
func WeekdayIndex(date time.Time) (int, bool) {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return 0, false
	default:
		return int(date.Weekday()) - 1, true
	}
}

// SpecialPeriod is a period taught by no teacher whose subject depends on the weekday.
type SpecialPeriod struct {
	Period    int
	ByWeekday [DaysPerWeek]string
}

// GradeRule is the structural contract governing how a class week is built.
type GradeRule struct {
	Grade              int
	PeriodsPerDay      int
	DistinctSubjects   int
	FixedSubject       string
	FixedPeriods       []int
	Specials           []SpecialPeriod
	ClassTeacherAnchor bool
}

// SpecialAt returns the special subject name for a cell, if the period is special.
func (r GradeRule) SpecialAt(day, period int) (string, bool) {
	for _, sp := range r.Specials {
		if sp.Period == period {
			return sp.ByWeekday[day], true
		}
	}
	return "", false
}

// IsFixed reports whether the period holds the designated repeat subject.
func (r GradeRule) IsFixed(period int) bool {
	for _, p := range r.FixedPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// TeachingPeriods lists the periods filled from the rotating subject list.
func (r GradeRule) TeachingPeriods() []int {
	periods := make([]int, 0, r.PeriodsPerDay)
	for p := 1; p <= r.PeriodsPerDay; p++ {
		if _, special := r.SpecialAt(0, p); special {
			continue
		}
		if r.IsFixed(p) {
			continue
		}
		periods = append(periods, p)
	}
	return periods
}

// SpecialNames lists every subject name used by special periods.
func (r GradeRule) SpecialNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, sp := range r.Specials {
		for _, name := range sp.ByWeekday {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// MergePair folds Secondary into Primary for scheduling purposes.
type MergePair struct {
	Primary   string
	Secondary string
}

// RuleConfig names the subjects the default rule table refers to.
type RuleConfig struct {
	LibrarySubject    string
	GamesSubject      string
	DesignatedSubject string
	Merges            []MergePair
}

// DefaultRuleConfig returns the subject names used when nothing is configured.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		LibrarySubject:    "Library",
		GamesSubject:      "Games",
		DesignatedSubject: "Mathematics",
		Merges:            []MergePair{{Primary: "Hindi", Secondary: "Sanskrit"}},
	}
}

// RuleTable is the grade-keyed rule lookup.
type RuleTable struct {
	rules  map[int]GradeRule
	merges []MergePair
}

// NewRuleTable builds the standard rule table using the configured subject names.
func NewRuleTable(cfg RuleConfig) *RuleTable {
	def := DefaultRuleConfig()
	if strings.TrimSpace(cfg.LibrarySubject) == "" {
		cfg.LibrarySubject = def.LibrarySubject
	}
	if strings.TrimSpace(cfg.GamesSubject) == "" {
		cfg.GamesSubject = def.GamesSubject
	}
	if strings.TrimSpace(cfg.DesignatedSubject) == "" {
		cfg.DesignatedSubject = def.DesignatedSubject
	}
	if cfg.Merges == nil {
		cfg.Merges = def.Merges
	}

	lib, games := cfg.LibrarySubject, cfg.GamesSubject
	libraryFirst := [DaysPerWeek]string{lib, games, lib, games, lib}
	gamesFirst := [DaysPerWeek]string{games, lib, games, lib, games}

	junior := func(grade int) GradeRule {
		return GradeRule{
			Grade:            grade,
			PeriodsPerDay:    8,
			DistinctSubjects: 6,
			Specials: []SpecialPeriod{
				{Period: 7, ByWeekday: libraryFirst},
				{Period: 8, ByWeekday: gamesFirst},
			},
			ClassTeacherAnchor: true,
		}
	}
	middle := func(grade int) GradeRule {
		return GradeRule{
			Grade:              grade,
			PeriodsPerDay:      8,
			DistinctSubjects:   7,
			Specials:           []SpecialPeriod{{Period: 8, ByWeekday: libraryFirst}},
			ClassTeacherAnchor: true,
		}
	}

	return NewRuleTableFrom([]GradeRule{
		junior(6),
		junior(7),
		middle(8),
		middle(9),
		{
			Grade:              10,
			PeriodsPerDay:      8,
			DistinctSubjects:   7,
			FixedSubject:       cfg.DesignatedSubject,
			FixedPeriods:       []int{1, 8},
			ClassTeacherAnchor: true,
		},
	}, cfg.Merges)
}

// NewRuleTableFrom builds a table from explicit rules.
func NewRuleTableFrom(rules []GradeRule, merges []MergePair) *RuleTable {
	table := &RuleTable{rules: make(map[int]GradeRule, len(rules)), merges: merges}
	for _, rule := range rules {
		table.rules[rule.Grade] = rule
	}
	return table
}

// RuleFor returns the rule for a grade.
func (t *RuleTable) RuleFor(grade int) (GradeRule, error) {
	rule, ok := t.rules[grade]
	if !ok {
		return GradeRule{}, &UnknownGradeError{Grade: grade}
	}
	return rule, nil
}

// Merges returns the configured subject merge pairs.
func (t *RuleTable) Merges() []MergePair {
	return t.merges
}

// SpecialNames lists the special subject names used by any grade.
func (t *RuleTable) SpecialNames() []string {
	grades := make([]int, 0, len(t.rules))
	for grade := range t.rules {
		grades = append(grades, grade)
	}
	sort.Ints(grades)

	seen := make(map[string]bool)
	var names []string
	for _, grade := range grades {
		for _, name := range t.rules[grade].SpecialNames() {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
