// Package report derives dashboard figures from fetched records. Every
// function is pure; "today" is always passed in.
package report

import (
	"math"
	"sort"
	"strings"
	"time"

	"attentrack/internal/attendance"
)

// Range selects how far back records are considered.
type Range string

const (
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeAll   Range = "all"
)

// ParseRange maps a query value onto a Range; unknown values mean week.
func ParseRange(s string) Range {
	switch Range(strings.ToLower(s)) {
	case RangeMonth:
		return RangeMonth
	case RangeAll:
		return RangeAll
	default:
		return RangeWeek
	}
}

// Counts is a status distribution.
type Counts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Total   int `json:"total"`
}

func (c *Counts) add(s attendance.Status) {
	switch s {
	case attendance.StatusPresent:
		c.Present++
	case attendance.StatusAbsent:
		c.Absent++
	case attendance.StatusLate:
		c.Late++
	}
	c.Total++
}

// Percent rounds part/total to a whole percentage, 0 when total is 0.
func Percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// FilterByRange keeps the records dated on or after the range start.
func FilterByRange(records []attendance.Record, r Range, today time.Time) []attendance.Record {
	var from time.Time
	switch r {
	case RangeWeek:
		from = today.AddDate(0, 0, -7)
	case RangeMonth:
		from = today.AddDate(0, -1, 0)
	default:
		return records
	}
	cutoff := from.Format(attendance.DateLayout)

	out := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		if rec.Date >= cutoff {
			out = append(out, rec)
		}
	}
	return out
}

// Summary is the overall distribution for a set of records.
type Summary struct {
	Counts
	Sessions       int `json:"sessions"`
	PresentPercent int `json:"presentPercent"`
	AbsentPercent  int `json:"absentPercent"`
	LatePercent    int `json:"latePercent"`
}

// Summarize counts every mark in records.
func Summarize(records []attendance.Record) Summary {
	var c Counts
	for _, rec := range records {
		for _, m := range rec.Students {
			c.add(m.Status)
		}
	}
	return Summary{
		Counts:         c,
		Sessions:       len(records),
		PresentPercent: Percent(c.Present, c.Total),
		AbsentPercent:  Percent(c.Absent, c.Total),
		LatePercent:    Percent(c.Late, c.Total),
	}
}

// Day is one bucket of the daily trend.
type Day struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Counts
	PresentPercent int `json:"presentPercent"`
	AbsentPercent  int `json:"absentPercent"`
	LatePercent    int `json:"latePercent"`
}

// Daily returns one bucket per day for the last days days ending today,
// oldest first. Days without records have zero counts.
func Daily(records []attendance.Record, today time.Time, days int) []Day {
	if days <= 0 {
		return []Day{}
	}
	byDate := make(map[string]*Counts)
	for _, rec := range records {
		c, ok := byDate[rec.Date]
		if !ok {
			c = &Counts{}
			byDate[rec.Date] = c
		}
		for _, m := range rec.Students {
			c.add(m.Status)
		}
	}

	out := make([]Day, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		key := d.Format(attendance.DateLayout)
		var c Counts
		if found, ok := byDate[key]; ok {
			c = *found
		}
		out = append(out, Day{
			Date:           key,
			Label:          d.Format("Mon, Jan 2"),
			Counts:         c,
			PresentPercent: Percent(c.Present, c.Total),
			AbsentPercent:  Percent(c.Absent, c.Total),
			LatePercent:    Percent(c.Late, c.Total),
		})
	}
	return out
}

// Class is the distribution for one class title.
type Class struct {
	ClassTitle string `json:"classTitle"`
	Sessions   int    `json:"sessions"`
	Counts
	PresentPercent int `json:"presentPercent"`
	AbsentPercent  int `json:"absentPercent"`
	LatePercent    int `json:"latePercent"`
}

// ByClass groups records by class title in order of first appearance.
func ByClass(records []attendance.Record) []Class {
	index := make(map[string]int)
	out := []Class{}
	for _, rec := range records {
		i, ok := index[rec.ClassTitle]
		if !ok {
			i = len(out)
			index[rec.ClassTitle] = i
			out = append(out, Class{ClassTitle: rec.ClassTitle})
		}
		out[i].Sessions++
		for _, m := range rec.Students {
			out[i].add(m.Status)
		}
	}
	for i := range out {
		c := out[i].Counts
		out[i].PresentPercent = Percent(c.Present, c.Total)
		out[i].AbsentPercent = Percent(c.Absent, c.Total)
		out[i].LatePercent = Percent(c.Late, c.Total)
	}
	return out
}

// StudentRate is the attendance of one student.
type StudentRate struct {
	Student attendance.Student `json:"student"`
	Counts
	Percent int `json:"percent"`
}

// ByStudent computes each matching student's rate, best first. query matches
// name or roll number case-insensitively; empty matches everyone.
func ByStudent(students []attendance.Student, records []attendance.Record, query string) []StudentRate {
	query = strings.ToLower(strings.TrimSpace(query))
	byID := make(map[int64]*Counts)
	for _, rec := range records {
		for _, m := range rec.Students {
			c, ok := byID[m.StudentID]
			if !ok {
				c = &Counts{}
				byID[m.StudentID] = c
			}
			c.add(m.Status)
		}
	}

	out := []StudentRate{}
	for _, st := range students {
		if query != "" &&
			!strings.Contains(strings.ToLower(st.Name), query) &&
			!strings.Contains(strings.ToLower(st.RollNumber), query) {
			continue
		}
		var c Counts
		if found, ok := byID[st.ID]; ok {
			c = *found
		}
		out = append(out, StudentRate{Student: st, Counts: c, Percent: Percent(c.Present, c.Total)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out
}

// Session summarizes one record.
type Session struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	ClassTitle string `json:"classTitle"`
	Counts
	Percent int `json:"percent"`
}

// RecentSessions returns at most limit sessions, newest date first.
func RecentSessions(records []attendance.Record, limit int) []Session {
	sorted := make([]attendance.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Session, 0, len(sorted))
	for _, rec := range sorted {
		out = append(out, sessionOf(rec))
	}
	return out
}

func sessionOf(rec attendance.Record) Session {
	var c Counts
	for _, m := range rec.Students {
		c.add(m.Status)
	}
	return Session{
		ID:         rec.ID,
		Date:       rec.Date,
		ClassTitle: rec.ClassTitle,
		Counts:     c,
		Percent:    Percent(c.Present, c.Total),
	}
}

// WeekDay is one day of a calendar week with its sessions.
type WeekDay struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Counts
	Percent  int       `json:"percent"`
	Sessions []Session `json:"sessions"`
}

// WeekView is a Monday to Sunday calendar week.
type WeekView struct {
	Offset        int       `json:"offset"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	TotalSessions int       `json:"totalSessions"`
	Average       int       `json:"averagePercent"`
	Days          []WeekDay `json:"days"`
}

// MondayOf returns midnight of the Monday starting the week that contains
// day, moved by offset whole weeks.
func MondayOf(day time.Time, offset int) time.Time {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	back := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, offset*7-back)
}

// Week lays records out over the calendar week offset weeks away from the
// one containing today. Average is the mean present percentage over the
// days that have sessions.
func Week(records []attendance.Record, today time.Time, offset int) WeekView {
	monday := MondayOf(today, offset)
	byDate := make(map[string][]attendance.Record)
	for _, rec := range records {
		byDate[rec.Date] = append(byDate[rec.Date], rec)
	}

	w := WeekView{
		Offset: offset,
		Start:  monday.Format(attendance.DateLayout),
		End:    monday.AddDate(0, 0, 6).Format(attendance.DateLayout),
		Days:   make([]WeekDay, 0, 7),
	}
	sum, withData := 0, 0
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		day := WeekDay{
			Date:     d.Format(attendance.DateLayout),
			Label:    d.Format("Mon, Jan 2"),
			Sessions: []Session{},
		}
		for _, rec := range byDate[day.Date] {
			sess := sessionOf(rec)
			day.Sessions = append(day.Sessions, sess)
			day.Present += sess.Present
			day.Absent += sess.Absent
			day.Late += sess.Late
			day.Total += sess.Total
		}
		day.Percent = Percent(day.Present, day.Total)
		if day.Total > 0 {
			sum += day.Percent
			withData++
		}
		w.TotalSessions += len(day.Sessions)
		w.Days = append(w.Days, day)
	}
	if withData > 0 {
		w.Average = int(math.Round(float64(sum) / float64(withData)))
	}
	return w
}
