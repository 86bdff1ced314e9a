package timetable

type cellKey struct {
	teacher string
	day     int
	period  int
}

// Occupancy tracks which (teacher, day, period) cells are committed during one run.
// A nil teacher is the placeholder: always free, never stored.
type Occupancy struct {
	cells map[cellKey]struct{}
}

// NewOccupancy returns an empty matrix.
func NewOccupancy() *Occupancy {
	return &Occupancy{cells: make(map[cellKey]struct{})}
}

// IsFree reports whether the teacher has nothing at the given cell.
func (o *Occupancy) IsFree(teacherID *string, day, period int) bool {
	if teacherID == nil || *teacherID == "" {
		return true
	}
	_, taken := o.cells[cellKey{teacher: *teacherID, day: day, period: period}]
	return !taken
}

// Reserve marks the cell as taken by the teacher.
func (o *Occupancy) Reserve(teacherID *string, day, period int) error {
	if teacherID == nil || *teacherID == "" {
		return nil
	}
	key := cellKey{teacher: *teacherID, day: day, period: period}
	if _, taken := o.cells[key]; taken {
		return &AlreadyOccupiedError{TeacherID: *teacherID, Day: day, Period: period}
	}
	o.cells[key] = struct{}{}
	return nil
}

// Block marks the cell as taken whether or not it already was.
// Used when replaying stored slots, where a cell may be seen more than once.
func (o *Occupancy) Block(teacherID *string, day, period int) {
	if teacherID == nil || *teacherID == "" {
		return
	}
	o.cells[cellKey{teacher: *teacherID, day: day, period: period}] = struct{}{}
}

// Len returns the number of reserved cells.
func (o *Occupancy) Len() int {
	return len(o.cells)
}
