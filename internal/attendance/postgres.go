package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"attentrack/internal/store"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id          SERIAL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		roll_number VARCHAR(50)  NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id          VARCHAR(100) PRIMARY KEY,
		date        DATE         NOT NULL,
		class_title VARCHAR(255) NOT NULL,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS student_attendance (
		id            SERIAL PRIMARY KEY,
		attendance_id VARCHAR(100) NOT NULL REFERENCES attendance_records(id) ON DELETE CASCADE,
		student_id    INT          NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		status        VARCHAR(10)  NOT NULL CHECK (status IN ('present', 'absent', 'late'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_student_attendance_record ON student_attendance(attendance_id)`,
}

// PostgresRepository persists attendance data in Postgres.
type PostgresRepository struct {
	cfg store.PostgresConfig

	mu sync.RWMutex
	db *store.Postgres
}

// NewPostgresRepository creates a repo. No connection is made until
// Initialize.
func NewPostgresRepository(cfg store.PostgresConfig) *PostgresRepository {
	return &PostgresRepository{cfg: cfg}
}

// Initialize opens the pool, creating the database if it is missing, and
// creates the tables. It is safe to call on every start.
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return nil
	}

	db, err := store.OpenPostgres(ctx, r.cfg)
	if err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}
	r.db = db
	return nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.db.Close()
	r.db = nil
}

// Healthy reports whether the pool can reach the server.
func (r *PostgresRepository) Healthy(ctx context.Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db.Healthy(ctx)
}

func (r *PostgresRepository) conn() (*store.Postgres, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil, errors.New("database not initialized")
	}
	return r.db, nil
}

// translate maps constraint failures onto ErrConstraintViolation.
func translate(err error, what string) error {
	switch store.SQLState(err) {
	case store.CodeUniqueViolation:
		return fmt.Errorf("%w: %s: %v", ErrConstraintViolation, what, err)
	case store.CodeForeignKeyViolation:
		return fmt.Errorf("%w: %s references an unknown row: %v", ErrConstraintViolation, what, err)
	}
	return err
}

// ListStudents returns all students ordered by name.
func (r *PostgresRepository) ListStudents(ctx context.Context) ([]Student, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `SELECT id, name, roll_number FROM students ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.RollNumber); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// AddStudent inserts a student and returns it with its new id.
func (r *PostgresRepository) AddStudent(ctx context.Context, name, rollNumber string) (Student, error) {
	db, err := r.conn()
	if err != nil {
		return Student{}, err
	}
	st := Student{Name: name, RollNumber: rollNumber}
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO students (name, roll_number)
		VALUES ($1, $2)
		RETURNING id
	`, name, rollNumber).Scan(&st.ID)
	if err != nil {
		return Student{}, translate(err, fmt.Sprintf("roll number %q", rollNumber))
	}
	return st, nil
}

// UpdateStudent updates by id; a missing id is not an error.
func (r *PostgresRepository) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	db, err := r.conn()
	if err != nil {
		return Student{}, err
	}
	_, err = db.Pool.Exec(ctx, `UPDATE students SET name = $2, roll_number = $3 WHERE id = $1`,
		st.ID, st.Name, st.RollNumber)
	if err != nil {
		return Student{}, translate(err, fmt.Sprintf("roll number %q", st.RollNumber))
	}
	return st, nil
}

// DeleteStudent deletes by id; marks go with it through the foreign key.
func (r *PostgresRepository) DeleteStudent(ctx context.Context, id int64) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	return err
}

// SaveRecord upserts the record and replaces its marks in one transaction.
func (r *PostgresRepository) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	db, err := r.conn()
	if err != nil {
		return Record{}, err
	}
	day, err := rec.Day()
	if err != nil {
		return Record{}, NewValidationError(FieldError{Field: "date", Error: "must be YYYY-MM-DD"})
	}
	err = db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO attendance_records (id, date, class_title)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET date = EXCLUDED.date, class_title = EXCLUDED.class_title
		`, rec.ID, day, rec.ClassTitle); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM student_attendance WHERE attendance_id = $1`, rec.ID); err != nil {
			return err
		}
		if len(rec.Students) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, m := range rec.Students {
			batch.Queue(`
				INSERT INTO student_attendance (attendance_id, student_id, status)
				VALUES ($1, $2, $3)
			`, rec.ID, m.StudentID, string(m.Status))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return Record{}, translate(err, fmt.Sprintf("record %q", rec.ID))
	}
	return rec, nil
}

// ListRecords returns every record newest first with its marks in the order
// they were saved.
func (r *PostgresRepository) ListRecords(ctx context.Context) ([]Record, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, date, class_title
		FROM attendance_records
		ORDER BY date DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	index := make(map[string]int)
	ids := []string{}
	for rows.Next() {
		var (
			rec  Record
			date time.Time
		)
		if err := rows.Scan(&rec.ID, &date, &rec.ClassTitle); err != nil {
			return nil, err
		}
		rec.Date = date.Format(DateLayout)
		rec.Students = []Mark{}
		index[rec.ID] = len(records)
		ids = append(ids, rec.ID)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(records) == 0 {
		return records, nil
	}

	markRows, err := db.Pool.Query(ctx, `
		SELECT attendance_id, student_id, status
		FROM student_attendance
		WHERE attendance_id = ANY($1)
		ORDER BY attendance_id, id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer markRows.Close()
	for markRows.Next() {
		var (
			recordID string
			m        Mark
			status   string
		)
		if err := markRows.Scan(&recordID, &m.StudentID, &status); err != nil {
			return nil, err
		}
		m.Status = Status(status)
		if i, ok := index[recordID]; ok {
			records[i].Students = append(records[i].Students, m)
		}
	}
	return records, markRows.Err()
}

// DeleteRecord deletes the record; its marks cascade.
func (r *PostgresRepository) DeleteRecord(ctx context.Context, id string) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	return err
}
