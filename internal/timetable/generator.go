package timetable

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/ttapp-api/internal/models"
)

// Roster is the read-only input of a generation run.
type Roster struct {
	Classes  []models.Class
	Subjects []models.Subject
	Teachers []models.Teacher
}

// Report collects every unmet requirement of a generation run.
type Report struct {
	Summary            string                    `json:"summary"`
	Details            []string                  `json:"details"`
	ClassesScheduled   int                       `json:"classesScheduled"`
	ClassesSkipped     int                       `json:"classesSkipped"`
	SlotCount          int                       `json:"slotCount"`
	UnknownGrades      []UnknownGradeError       `json:"unknownGrades"`
	MissingSubjects    []MissingSubjectsError    `json:"missingSubjects"`
	NoTeacherAvailable []NoTeacherAvailableError `json:"noTeacherAvailable"`
	AnchorIssues       []ClassTeacherAnchorIssue `json:"classTeacherIssues"`
}

func newReport() *Report {
	return &Report{
		Details:            []string{},
		UnknownGrades:      []UnknownGradeError{},
		MissingSubjects:    []MissingSubjectsError{},
		NoTeacherAvailable: []NoTeacherAvailableError{},
		AnchorIssues:       []ClassTeacherAnchorIssue{},
	}
}

// UnmetCount returns the number of recorded problems.
func (r *Report) UnmetCount() int {
	return len(r.UnknownGrades) + len(r.MissingSubjects) + len(r.NoTeacherAvailable) + len(r.AnchorIssues)
}

func (r *Report) addUnknownGrade(e UnknownGradeError) {
	r.UnknownGrades = append(r.UnknownGrades, e)
	r.Details = append(r.Details, e.Error())
}

func (r *Report) addMissingSubjects(e MissingSubjectsError) {
	r.MissingSubjects = append(r.MissingSubjects, e)
	r.Details = append(r.Details, e.Error())
}

func (r *Report) addNoTeacher(e NoTeacherAvailableError) {
	r.NoTeacherAvailable = append(r.NoTeacherAvailable, e)
	r.Details = append(r.Details, e.Error())
}

func (r *Report) addAnchorIssue(e ClassTeacherAnchorIssue) {
	r.AnchorIssues = append(r.AnchorIssues, e)
	r.Details = append(r.Details, e.Error())
}

func (r *Report) summarize() {
	unmet := r.UnmetCount()
	if unmet == 0 {
		r.Summary = fmt.Sprintf("generated %d slots for %d class(es); all requirements met", r.SlotCount, r.ClassesScheduled)
		return
	}
	r.Summary = fmt.Sprintf("generated %d slots for %d class(es), skipped %d; %d unmet requirement(s)",
		r.SlotCount, r.ClassesScheduled, r.ClassesSkipped, unmet)
}

// Generator builds a full week of slots from the roster and the grade rules.
type Generator struct {
	rules *RuleTable
}

// NewGenerator constructs a generator over the rule table.
func NewGenerator(rules *RuleTable) *Generator {
	if rules == nil {
		rules = NewRuleTable(DefaultRuleConfig())
	}
	return &Generator{rules: rules}
}

// Generate computes the weekly grid. Per-class and per-cell problems land in the
// report; only an occupancy violation aborts the run.
func (g *Generator) Generate(roster Roster) ([]models.Slot, *Report, error) {
	report := newReport()
	catalog := newSubjectCatalog(roster.Subjects, g.rules.Merges())

	teachers := make([]models.Teacher, len(roster.Teachers))
	copy(teachers, roster.Teachers)
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	teacherByID := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		teacherByID[t.ID] = t
	}

	classes := make([]models.Class, len(roster.Classes))
	copy(classes, roster.Classes)
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })

	plans := make([]*classPlan, 0, len(classes))
	for _, class := range classes {
		plan := g.planClass(class, catalog, report)
		if plan == nil {
			report.ClassesSkipped++
			continue
		}
		plans = append(plans, plan)
	}

	occ := NewOccupancy()
	// Anchors go first so an earlier class cannot take a later class teacher.
	for _, plan := range plans {
		plan.reserveAnchor(teacherByID, catalog, occ, report)
	}

	var slots []models.Slot
	for _, plan := range plans {
		classSlots, err := plan.fill(teachers, catalog, occ, report)
		if err != nil {
			return nil, report, err
		}
		slots = append(slots, classSlots...)
		report.ClassesScheduled++
	}

	report.SlotCount = len(slots)
	report.summarize()
	return slots, report, nil
}

func (g *Generator) planClass(class models.Class, catalog *subjectCatalog, report *Report) *classPlan {
	rule, err := g.rules.RuleFor(class.Grade)
	if err != nil {
		var unknown *UnknownGradeError
		if errors.As(err, &unknown) {
			unknown.ClassID = class.ID
			report.addUnknownGrade(*unknown)
		}
		return nil
	}

	plan := &classPlan{
		class:    class,
		rule:     rule,
		specials: make(map[int][DaysPerWeek]string, len(rule.Specials)),
		teaching: make(map[int]int),
	}
	for idx, period := range rule.TeachingPeriods() {
		plan.teaching[period] = idx
	}

	var unresolved []string
	excluded := make(map[string]bool)
	for _, name := range g.rules.SpecialNames() {
		if subject, ok := catalog.lookup(name); ok {
			excluded[subject.ID] = true
		}
	}
	for _, name := range rule.SpecialNames() {
		if _, ok := catalog.lookup(name); !ok {
			unresolved = append(unresolved, name)
		}
	}
	for _, sp := range rule.Specials {
		var ids [DaysPerWeek]string
		for day, name := range sp.ByWeekday {
			if subject, ok := catalog.lookup(name); ok {
				ids[day] = subject.ID
			}
		}
		plan.specials[sp.Period] = ids
	}

	available := 0
	rotationSize := rule.DistinctSubjects
	if rule.FixedSubject != "" {
		rotationSize--
		if subject, ok := catalog.lookup(rule.FixedSubject); ok {
			plan.fixedID = catalog.canonical(subject.ID)
			excluded[plan.fixedID] = true
			available++
		} else {
			unresolved = append(unresolved, rule.FixedSubject)
		}
	}

	for _, subject := range catalog.ordered {
		if len(plan.rotation) == rotationSize {
			break
		}
		if catalog.mergedAway(subject.ID) || excluded[subject.ID] {
			continue
		}
		plan.rotation = append(plan.rotation, subject.ID)
	}
	available += len(plan.rotation)

	if missing := rule.DistinctSubjects - available; missing > 0 || len(unresolved) > 0 {
		if missing < 0 {
			missing = 0
		}
		report.addMissingSubjects(MissingSubjectsError{
			ClassID:    class.ID,
			Count:      missing,
			Required:   rule.DistinctSubjects,
			Available:  available,
			Unresolved: unresolved,
		})
	}
	if len(unresolved) > 0 || len(plan.rotation) == 0 {
		return nil
	}
	return plan
}

type classPlan struct {
	class    models.Class
	rule     GradeRule
	fixedID  string
	rotation []string
	teaching map[int]int
	specials map[int][DaysPerWeek]string
	anchor   *string
}

// subjectAt returns the subject due in a cell and whether the cell is special.
func (p *classPlan) subjectAt(day, period int) (string, bool) {
	if ids, ok := p.specials[period]; ok {
		return ids[day], true
	}
	if p.rule.IsFixed(period) {
		return p.fixedID, false
	}
	idx := p.teaching[period]
	return p.rotation[(idx+day)%len(p.rotation)], false
}

func (p *classPlan) reserveAnchor(teachers map[string]models.Teacher, catalog *subjectCatalog, occ *Occupancy, report *Report) {
	if !p.rule.ClassTeacherAnchor || p.class.ClassTeacherID == nil || *p.class.ClassTeacherID == "" {
		return
	}
	if _, special := p.rule.SpecialAt(AnchorWeekday, AnchorPeriod); special {
		return
	}
	teacherID := *p.class.ClassTeacherID
	issue := func(reason string) {
		report.addAnchorIssue(ClassTeacherAnchorIssue{ClassID: p.class.ID, TeacherID: teacherID, Reason: reason})
	}

	teacher, ok := teachers[teacherID]
	if !ok {
		issue(AnchorTeacherNotFound)
		return
	}
	if teacher.IsLeisure {
		issue(AnchorTeacherLeisure)
		return
	}
	if !occ.IsFree(&teacherID, AnchorWeekday, AnchorPeriod) {
		issue(AnchorTeacherOccupied)
		return
	}

	if p.rule.IsFixed(AnchorPeriod) {
		if !catalog.qualifies(teacher, p.fixedID) {
			issue(AnchorTeacherUnqualified)
			return
		}
	} else {
		target := -1
		for i, subjectID := range p.rotation {
			if catalog.qualifies(teacher, subjectID) {
				target = i
				break
			}
		}
		if target < 0 {
			issue(AnchorTeacherUnqualified)
			return
		}
		n := len(p.rotation)
		pos := p.teaching[AnchorPeriod] % n
		p.rotate((target - pos + n) % n)
	}

	if err := occ.Reserve(&teacherID, AnchorWeekday, AnchorPeriod); err != nil {
		issue(AnchorTeacherOccupied)
		return
	}
	p.anchor = &teacherID
}

// rotate shifts the rotation left so rotation[i] becomes rotation[i+shift].
func (p *classPlan) rotate(shift int) {
	if shift == 0 {
		return
	}
	n := len(p.rotation)
	rotated := make([]string, n)
	for i := range p.rotation {
		rotated[i] = p.rotation[(i+shift)%n]
	}
	p.rotation = rotated
}

func (p *classPlan) fill(teachers []models.Teacher, catalog *subjectCatalog, occ *Occupancy, report *Report) ([]models.Slot, error) {
	slots := make([]models.Slot, 0, DaysPerWeek*p.rule.PeriodsPerDay)
	for day := 0; day < DaysPerWeek; day++ {
		for period := 1; period <= p.rule.PeriodsPerDay; period++ {
			subjectID, special := p.subjectAt(day, period)
			slot := models.Slot{
				ClassID:   p.class.ID,
				DayOfWeek: day,
				Period:    period,
				SubjectID: subjectID,
			}
			switch {
			case special:
			case p.anchor != nil && day == AnchorWeekday && period == AnchorPeriod:
				id := *p.anchor
				slot.TeacherID = &id
			default:
				teacherID := findFreeTeacher(teachers, subjectID, day, period, catalog, occ)
				if teacherID == nil {
					report.addNoTeacher(NoTeacherAvailableError{ClassID: p.class.ID, Day: day, Period: period, SubjectID: subjectID})
					break
				}
				if err := occ.Reserve(teacherID, day, period); err != nil {
					return nil, err
				}
				slot.TeacherID = teacherID
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func findFreeTeacher(teachers []models.Teacher, subjectID string, day, period int, catalog *subjectCatalog, occ *Occupancy) *string {
	for _, teacher := range teachers {
		if teacher.IsLeisure || !catalog.qualifies(teacher, subjectID) {
			continue
		}
		id := teacher.ID
		if occ.IsFree(&id, day, period) {
			return &id
		}
	}
	return nil
}

// subjectCatalog indexes the subject roster and resolves merge pairs.
type subjectCatalog struct {
	byName  map[string]models.Subject
	ordered []models.Subject
	merged  map[string]string
}

func newSubjectCatalog(subjects []models.Subject, merges []MergePair) *subjectCatalog {
	catalog := &subjectCatalog{
		byName:  make(map[string]models.Subject, len(subjects)),
		ordered: make([]models.Subject, len(subjects)),
		merged:  make(map[string]string),
	}
	copy(catalog.ordered, subjects)
	sort.Slice(catalog.ordered, func(i, j int) bool { return catalog.ordered[i].ID < catalog.ordered[j].ID })
	for _, subject := range catalog.ordered {
		key := normalizeName(subject.Name)
		if _, exists := catalog.byName[key]; !exists {
			catalog.byName[key] = subject
		}
	}
	for _, pair := range merges {
		primary, okPrimary := catalog.lookup(pair.Primary)
		secondary, okSecondary := catalog.lookup(pair.Secondary)
		if !okPrimary || !okSecondary || primary.ID == secondary.ID {
			continue
		}
		catalog.merged[secondary.ID] = primary.ID
	}
	return catalog
}

func (c *subjectCatalog) lookup(name string) (models.Subject, bool) {
	subject, ok := c.byName[normalizeName(name)]
	return subject, ok
}

func (c *subjectCatalog) canonical(subjectID string) string {
	if primary, ok := c.merged[subjectID]; ok {
		return primary
	}
	return subjectID
}

func (c *subjectCatalog) mergedAway(subjectID string) bool {
	_, ok := c.merged[subjectID]
	return ok
}

// qualifies treats a qualification in a merged-away subject as one in its primary.
func (c *subjectCatalog) qualifies(teacher models.Teacher, subjectID string) bool {
	if subjectID == "" {
		return false
	}
	for _, id := range teacher.SubjectIDs {
		if c.canonical(id) == subjectID {
			return true
		}
	}
	return false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
