// Package seed holds the sample roster and sample sessions used to populate
// an empty store.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"attentrack/internal/attendance"
)

var names = []string{
	"Aarav Sharma", "Aditi Patel", "Arjun Singh", "Ananya Verma", "Advait Joshi",
	"Aisha Khan", "Aryan Mehta", "Avni Gupta", "Dhruv Kumar", "Diya Reddy",
	"Ishaan Malhotra", "Isha Kapoor", "Kabir Bedi", "Kiara Agarwal", "Krishna Rao",
	"Lakshmi Nair", "Manav Choudhary", "Meera Banerjee", "Neha Desai", "Nikhil Gandhi",
	"Ojas Trivedi", "Pari Saxena", "Pranav Thakur", "Prisha Iyer", "Rahul Dubey",
	"Riya Shah", "Rohan Bajaj", "Saanvi Chauhan", "Samar Ahuja", "Sanya Bhatia",
	"Shaurya Sen", "Shreya Sharma", "Siddharth Pillai", "Siya Chakraborty", "Tanvi Menon",
	"Tara Hegde", "Udayan Chowdhury", "Vanya Singh", "Vedant Khanna", "Vihaan Mehra",
	"Yash Mitra", "Zara Ahmed", "Dev Kumar", "Anika Lahiri", "Arnav Bhatt",
	"Kavya Goyal", "Reyansh Rana", "Ishita Sen", "Vivaan Malik", "Myra Prasad",
}

// ClassTitles are the session labels used for sample records.
var ClassTitles = []string{
	"Mathematics 101",
	"Physics 201",
	"Chemistry 101",
	"Biology 301",
	"Computer Science 201",
	"English Literature",
	"History of India",
}

// Students returns the bootstrap roster with roll numbers R001..R050. IDs
// are left for the store to assign.
func Students() []attendance.Student {
	out := make([]attendance.Student, len(names))
	for i, name := range names {
		out[i] = attendance.Student{Name: name, RollNumber: fmt.Sprintf("R%03d", i+1)}
	}
	return out
}

// Roster seeds the bootstrap students.
type Roster struct{}

// SeedStudents adds every bootstrap student whose roll number is not taken.
func (Roster) SeedStudents(ctx context.Context, repo attendance.RosterStore) error {
	existing, err := repo.ListStudents(ctx)
	if err != nil {
		return err
	}
	for _, st := range Students() {
		if attendance.CheckRollNumber(existing, st.RollNumber, 0) != nil {
			continue
		}
		if _, err := repo.AddStudent(ctx, st.Name, st.RollNumber); err != nil {
			return fmt.Errorf("seed %s: %w", st.RollNumber, err)
		}
	}
	return nil
}

// Records generates n sample sessions dated within the 21 days up to today.
// Each student is present with 80% odds, absent 15%, late 5%. Every session
// gets a fresh record id, so repeated runs add sessions and never overwrite.
func Records(rng *rand.Rand, students []attendance.Student, today time.Time, n int) []attendance.Record {
	records := make([]attendance.Record, 0, n)
	for i := 0; i < n; i++ {
		date := today.AddDate(0, 0, -rng.Intn(21)).Format(attendance.DateLayout)
		marks := make([]attendance.Mark, 0, len(students))
		for _, st := range students {
			marks = append(marks, attendance.Mark{StudentID: st.ID, Status: randomStatus(rng)})
		}
		records = append(records, attendance.Record{
			ID:         attendance.NewRecordID(),
			Date:       date,
			ClassTitle: ClassTitles[rng.Intn(len(ClassTitles))],
			Students:   marks,
		})
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date > records[j].Date })
	return records
}

func randomStatus(rng *rand.Rand) attendance.Status {
	switch p := rng.Float64(); {
	case p >= 0.95:
		return attendance.StatusLate
	case p > 0.8:
		return attendance.StatusAbsent
	default:
		return attendance.StatusPresent
	}
}
