package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"attentrack/internal/kv"
)

// Keys under which the local store keeps its two collections.
const (
	StudentsKey = "attentrack-students"
	RecordsKey  = "attentrack-attendance"
)

// LocalRepository stores whole collections as JSON arrays in a dictionary.
// It has no constraints: callers check roll-number uniqueness themselves.
type LocalRepository struct {
	dict kv.Dictionary
	mu   sync.Mutex
}

// NewLocalRepository creates a repository over dict.
func NewLocalRepository(dict kv.Dictionary) *LocalRepository {
	return &LocalRepository{dict: dict}
}

func load[T any](ctx context.Context, dict kv.Dictionary, key string) ([]T, error) {
	data, err := dict.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func persist[T any](ctx context.Context, dict kv.Dictionary, key string, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return dict.Set(ctx, key, data)
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date > records[j].Date })
}

// ListStudents returns the stored roster ordered by name.
func (r *LocalRepository) ListStudents(ctx context.Context) ([]Student, error) {
	students, err := load[Student](ctx, r.dict, StudentsKey)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

// AddStudent appends a student with id max(existing)+1.
func (r *LocalRepository) AddStudent(ctx context.Context, name, rollNumber string) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	students, err := load[Student](ctx, r.dict, StudentsKey)
	if err != nil {
		return Student{}, err
	}
	var maxID int64
	for _, st := range students {
		if st.ID > maxID {
			maxID = st.ID
		}
	}
	st := Student{ID: maxID + 1, Name: name, RollNumber: rollNumber}
	if err := persist(ctx, r.dict, StudentsKey, append(students, st)); err != nil {
		return Student{}, err
	}
	return st, nil
}

// UpdateStudent replaces the student with st.ID; unknown ids are ignored.
func (r *LocalRepository) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	students, err := load[Student](ctx, r.dict, StudentsKey)
	if err != nil {
		return Student{}, err
	}
	for i := range students {
		if students[i].ID == st.ID {
			students[i] = st
		}
	}
	if err := persist(ctx, r.dict, StudentsKey, students); err != nil {
		return Student{}, err
	}
	return st, nil
}

// DeleteStudent removes the student and strips its marks from every record.
// Both collections are read before either is written; records go first.
func (r *LocalRepository) DeleteStudent(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	students, err := load[Student](ctx, r.dict, StudentsKey)
	if err != nil {
		return err
	}
	records, err := load[Record](ctx, r.dict, RecordsKey)
	if err != nil {
		return err
	}

	changed := false
	for i := range records {
		marks := records[i].Students[:0]
		for _, m := range records[i].Students {
			if m.StudentID != id {
				marks = append(marks, m)
			}
		}
		if len(marks) != len(records[i].Students) {
			changed = true
		}
		records[i].Students = marks
	}
	if changed {
		if err := persist(ctx, r.dict, RecordsKey, records); err != nil {
			return err
		}
	}

	kept := students[:0]
	for _, st := range students {
		if st.ID != id {
			kept = append(kept, st)
		}
	}
	return persist(ctx, r.dict, StudentsKey, kept)
}

// ListRecords returns every record, newest date first.
func (r *LocalRepository) ListRecords(ctx context.Context) ([]Record, error) {
	records, err := load[Record](ctx, r.dict, RecordsKey)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Students == nil {
			records[i].Students = []Mark{}
		}
	}
	sortRecords(records)
	return records, nil
}

// SaveRecord replaces a record in place or prepends a new one, then re-sorts.
func (r *LocalRepository) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := load[Record](ctx, r.dict, RecordsKey)
	if err != nil {
		return Record{}, err
	}
	found := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			found = true
			break
		}
	}
	if !found {
		records = append([]Record{rec}, records...)
	}
	sortRecords(records)
	if err := persist(ctx, r.dict, RecordsKey, records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DeleteRecord removes the record with id.
func (r *LocalRepository) DeleteRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := load[Record](ctx, r.dict, RecordsKey)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	return persist(ctx, r.dict, RecordsKey, kept)
}
