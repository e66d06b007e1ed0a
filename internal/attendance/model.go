package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used for records.
const DateLayout = "2006-01-02"

// Status is the outcome recorded for one student in one session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Student is a member of the roster. ID is assigned by the store.
type Student struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
}

// Mark is the status of a single student within a record.
type Mark struct {
	StudentID int64  `json:"studentId"`
	Status    Status `json:"status"`
}

// Record is one class session. ID is chosen by the caller and saving an
// existing ID replaces the whole record, marks included.
type Record struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	ClassTitle string `json:"classTitle"`
	Students   []Mark `json:"students"`
}

// Day parses the record date.
func (r Record) Day() (time.Time, error) {
	return time.Parse(DateLayout, r.Date)
}

// NewRecordID returns a caller-side identifier for a new record.
func NewRecordID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("attendance-%d-%s", time.Now().UnixMilli(), suffix)
}


// CheckRollNumber returns a constraint error when roll is already used by a
// student other than exceptID. Callers use it before writing to a backend
// that has no unique constraint.
func CheckRollNumber(students []Student, roll string, exceptID int64) error {
	for _, st := range students {
		if st.RollNumber == roll && st.ID != exceptID {
			return fmt.Errorf("%w: roll number %q already exists", ErrConstraintViolation, roll)
		}
	}
	return nil
}

func validateStudent(name, roll string) error {
	var fields []FieldError
	if strings.TrimSpace(name) == "" {
		fields = append(fields, FieldError{Field: "name", Error: "is required"})
	}
	if strings.TrimSpace(roll) == "" {
		fields = append(fields, FieldError{Field: "rollNumber", Error: "is required"})
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

func validateRecord(rec Record) error {
	var fields []FieldError
	if strings.TrimSpace(rec.ID) == "" {
		fields = append(fields, FieldError{Field: "id", Error: "is required"})
	}
	if _, err := rec.Day(); err != nil {
		fields = append(fields, FieldError{Field: "date", Error: "must be YYYY-MM-DD"})
	}
	if strings.TrimSpace(rec.ClassTitle) == "" {
		fields = append(fields, FieldError{Field: "classTitle", Error: "is required"})
	}
	seen := make(map[int64]bool, len(rec.Students))
	for i, m := range rec.Students {
		field := fmt.Sprintf("students[%d]", i)
		switch {
		case m.StudentID <= 0:
			fields = append(fields, FieldError{Field: field, Error: "studentId must be positive"})
		case seen[m.StudentID]:
			fields = append(fields, FieldError{Field: field, Error: "duplicate studentId"})
		case !m.Status.Valid():
			fields = append(fields, FieldError{Field: field, Error: fmt.Sprintf("unknown status %q", m.Status)})
		}
		seen[m.StudentID] = true
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}
