package timetable

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// SubstitutionPolicy controls how candidate lists are narrowed.
type SubstitutionPolicy struct {
	// QualifiedOnly keeps only candidates qualified in the vacated subject.
	QualifiedOnly bool
	// UnqualifiedFallback returns the unnarrowed list when narrowing leaves nobody.
	UnqualifiedFallback bool
	// MaxCandidates caps each list. Zero means no cap.
	MaxCandidates int
}

// DefaultSubstitutionPolicy lists every free teacher without a cap.
func DefaultSubstitutionPolicy() SubstitutionPolicy {
	return SubstitutionPolicy{QualifiedOnly: false, UnqualifiedFallback: true}
}

// SubstitutionInput is a consistent snapshot of the data the resolver needs.
type SubstitutionInput struct {
	Date     time.Time
	Absences []models.Absence
	Teachers []models.Teacher
	Subjects []models.Subject
	// Slots holds every slot of the date's weekday.
	Slots []models.Slot
}

// SlotSuggestion lists the candidates for one vacated slot.
type SlotSuggestion struct {
	ClassID             string   `json:"classId"`
	Day                 int      `json:"day"`
	Period              int      `json:"period"`
	SubjectID           string   `json:"subjectId"`
	CandidateTeacherIDs []string `json:"candidateTeacherIds"`
	Qualified           bool     `json:"qualified"`
	UnqualifiedFallback bool     `json:"unqualifiedFallback"`
}

// AbsenceSuggestions groups the suggestions for one absent teacher.
type AbsenceSuggestions struct {
	AbsenceID           string           `json:"absenceId"`
	TeacherID           string           `json:"teacherId"`
	TeacherName         string           `json:"teacherName"`
	IsSubstituted       bool             `json:"isSubstituted"`
	SubstituteTeacherID *string          `json:"substituteTeacherId"`
	Suggestions         []SlotSuggestion `json:"suggestions"`
}

// SubstitutionResult is the advisory output for a date.
type SubstitutionResult struct {
	Date      string               `json:"date"`
	DayOfWeek *int                 `json:"dayOfWeek"`
	NoSchool  bool                 `json:"noSchool"`
	Message   string               `json:"message,omitempty"`
	Absences  []AbsenceSuggestions `json:"absences"`
}

// NoSchoolResult is the result for a date outside the scheduled weekdays.
func NoSchoolResult(date time.Time) *SubstitutionResult {
	return &SubstitutionResult{
		Date:     date.Format(DateLayout),
		NoSchool: true,
		Message:  fmt.Sprintf("no school on %s", date.Weekday()),
		Absences: []AbsenceSuggestions{},
	}
}

// Resolver turns absences into substitute suggestions. It never writes.
type Resolver struct {
	rules  *RuleTable
	policy SubstitutionPolicy
}

// NewResolver constructs a resolver.
func NewResolver(rules *RuleTable, policy SubstitutionPolicy) *Resolver {
	if rules == nil {
		rules = NewRuleTable(DefaultRuleConfig())
	}
	if policy.MaxCandidates < 0 {
		policy.MaxCandidates = 0
	}
	return &Resolver{rules: rules, policy: policy}
}

// Suggest computes candidate lists for every vacated slot of the snapshot date.
func (r *Resolver) Suggest(in SubstitutionInput) *SubstitutionResult {
	day, ok := WeekdayIndex(in.Date)
	if !ok {
		return NoSchoolResult(in.Date)
	}

	result := &SubstitutionResult{
		Date:      in.Date.Format(DateLayout),
		DayOfWeek: &day,
		Absences:  []AbsenceSuggestions{},
	}
	if len(in.Absences) == 0 {
		result.Message = "no absences recorded"
		return result
	}

	catalog := newSubjectCatalog(in.Subjects, r.rules.Merges())

	teachers := make([]models.Teacher, len(in.Teachers))
	copy(teachers, in.Teachers)
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	names := make(map[string]string, len(teachers))
	for _, t := range teachers {
		names[t.ID] = t.FullName
	}

	absences := make([]models.Absence, len(in.Absences))
	copy(absences, in.Absences)
	sort.Slice(absences, func(i, j int) bool { return absences[i].TeacherID < absences[j].TeacherID })
	absent := make(map[string]bool, len(absences))
	for _, a := range absences {
		absent[a.TeacherID] = true
	}

	slots := make([]models.Slot, 0, len(in.Slots))
	for _, s := range in.Slots {
		if s.DayOfWeek == day {
			slots = append(slots, s)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Period != slots[j].Period {
			return slots[i].Period < slots[j].Period
		}
		return slots[i].ClassID < slots[j].ClassID
	})

	busy := NewOccupancy()
	for _, s := range slots {
		busy.Block(s.TeacherID, day, s.Period)
	}
	// A confirmed substitute is busy wherever the covered teacher would have taught.
	for _, a := range absences {
		if !a.IsSubstituted || a.SubstituteTeacherID == nil {
			continue
		}
		for _, s := range slots {
			if s.TaughtBy(a.TeacherID) {
				busy.Block(a.SubstituteTeacherID, day, s.Period)
			}
		}
	}

	for _, a := range absences {
		entry := AbsenceSuggestions{
			AbsenceID:           a.ID,
			TeacherID:           a.TeacherID,
			TeacherName:         names[a.TeacherID],
			IsSubstituted:       a.IsSubstituted,
			SubstituteTeacherID: a.SubstituteTeacherID,
			Suggestions:         []SlotSuggestion{},
		}
		for _, s := range slots {
			if !s.TaughtBy(a.TeacherID) {
				continue
			}
			entry.Suggestions = append(entry.Suggestions, r.suggestFor(s, day, teachers, absent, busy, catalog))
		}
		result.Absences = append(result.Absences, entry)
	}
	return result
}

func (r *Resolver) suggestFor(slot models.Slot, day int, teachers []models.Teacher, absent map[string]bool, busy *Occupancy, catalog *subjectCatalog) SlotSuggestion {
	suggestion := SlotSuggestion{
		ClassID:   slot.ClassID,
		Day:       day,
		Period:    slot.Period,
		SubjectID: slot.SubjectID,
	}

	free := make([]models.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if t.IsLeisure || absent[t.ID] {
			continue
		}
		id := t.ID
		if !busy.IsFree(&id, day, slot.Period) {
			continue
		}
		free = append(free, t)
	}

	chosen := free
	if r.policy.QualifiedOnly {
		subjectID := catalog.canonical(slot.SubjectID)
		qualified := make([]models.Teacher, 0, len(free))
		for _, t := range free {
			if catalog.qualifies(t, subjectID) {
				qualified = append(qualified, t)
			}
		}
		switch {
		case len(qualified) > 0:
			chosen = qualified
			suggestion.Qualified = true
		case r.policy.UnqualifiedFallback && len(free) > 0:
			suggestion.UnqualifiedFallback = true
		default:
			chosen = qualified
		}
	}

	if r.policy.MaxCandidates > 0 && len(chosen) > r.policy.MaxCandidates {
		chosen = chosen[:r.policy.MaxCandidates]
	}
	suggestion.CandidateTeacherIDs = make([]string, 0, len(chosen))
	for _, t := range chosen {
		suggestion.CandidateTeacherIDs = append(suggestion.CandidateTeacherIDs, t.ID)
	}
	return suggestion
}
