package timetable

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleForSupportedGrades(t *testing.T) {
	table := NewRuleTable(DefaultRuleConfig())

	for _, grade := range []int{6, 7} {
		rule, err := table.RuleFor(grade)
		require.NoError(t, err)
		assert.Equal(t, 8, rule.PeriodsPerDay)
		assert.Equal(t, 6, rule.DistinctSubjects)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, rule.TeachingPeriods())

		name, special := rule.SpecialAt(0, 7)
		require.True(t, special)
		assert.Equal(t, "Library", name)
		name, _ = rule.SpecialAt(1, 7)
		assert.Equal(t, "Games", name)
		name, _ = rule.SpecialAt(1, 8)
		assert.Equal(t, "Library", name)
	}

	for _, grade := range []int{8, 9} {
		rule, err := table.RuleFor(grade)
		require.NoError(t, err)
		assert.Equal(t, 7, rule.DistinctSubjects)
		assert.Len(t, rule.TeachingPeriods(), 7)
		name, special := rule.SpecialAt(4, 8)
		require.True(t, special)
		assert.Equal(t, "Library", name)
		name, _ = rule.SpecialAt(3, 8)
		assert.Equal(t, "Games", name)
	}

	rule, err := table.RuleFor(10)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", rule.FixedSubject)
	assert.True(t, rule.IsFixed(1))
	assert.True(t, rule.IsFixed(8))
	assert.False(t, rule.IsFixed(4))
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7}, rule.TeachingPeriods())
	assert.Empty(t, rule.SpecialNames())
}

func TestRuleForUnknownGrade(t *testing.T) {
	table := NewRuleTable(DefaultRuleConfig())

	_, err := table.RuleFor(12)
	require.Error(t, err)
	var unknown *UnknownGradeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 12, unknown.Grade)
}

func TestNewRuleTableUsesConfiguredNames(t *testing.T) {
	table := NewRuleTable(RuleConfig{
		LibrarySubject:    "Reading",
		GamesSubject:      "Sports",
		DesignatedSubject: "Physics",
		Merges:            []MergePair{{Primary: "French", Secondary: "German"}},
	})

	rule, err := table.RuleFor(6)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Reading", "Sports"}, rule.SpecialNames())

	rule, err = table.RuleFor(10)
	require.NoError(t, err)
	assert.Equal(t, "Physics", rule.FixedSubject)
	assert.Equal(t, []MergePair{{Primary: "French", Secondary: "German"}}, table.Merges())
}

func TestNewRuleTableFromAddsGrade(t *testing.T) {
	table := NewRuleTableFrom([]GradeRule{{Grade: 11, PeriodsPerDay: 6, DistinctSubjects: 6}}, nil)

	rule, err := table.RuleFor(11)
	require.NoError(t, err)
	assert.Len(t, rule.TeachingPeriods(), 6)

	_, err = table.RuleFor(6)
	assert.Error(t, err)
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 5; offset++ {
		day, ok := WeekdayIndex(monday.AddDate(0, 0, offset))
		require.True(t, ok)
		assert.Equal(t, offset, day)
	}
	_, ok := WeekdayIndex(monday.AddDate(0, 0, 5))
	assert.False(t, ok)
	_, ok = WeekdayIndex(monday.AddDate(0, 0, 6))
	assert.False(t, ok)

	assert.Equal(t, "Friday", DayName(4))
	assert.Equal(t, "Unknown", DayName(7))
}
