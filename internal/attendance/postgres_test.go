package attendance

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attentrack/internal/store"
)

// newPostgres connects to the server named by DB_* variables. The tables are
// truncated so every test starts from an empty store.
func newPostgres(t *testing.T) *PostgresRepository {
	t.Helper()
	if os.Getenv("ATTENTRACK_TEST_POSTGRES") != "1" {
		t.Skip("set ATTENTRACK_TEST_POSTGRES=1 to run against a live server")
	}

	port, _ := strconv.Atoi(envOr("DB_PORT", "5432"))
	repo := NewPostgresRepository(store.PostgresConfig{
		Host:            envOr("DB_HOST", "localhost"),
		Port:            port,
		User:            envOr("DB_USER", "attentrack"),
		Password:        envOr("DB_PASSWORD", "password"),
		Database:        envOr("DB_NAME", "attentrack_test"),
		ConnectionLimit: 4,
		ConnectTimeout:  5 * time.Second,
	})

	ctx := context.Background()
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, repo.Initialize(ctx))
	t.Cleanup(repo.Close)

	db, err := repo.conn()
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, `TRUNCATE student_attendance, attendance_records, students RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return repo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPostgresScenario(t *testing.T) {
	repo := newPostgres(t)
	ctx := context.Background()
	assert.True(t, repo.Healthy(ctx))

	st, err := repo.AddStudent(ctx, "Aarav Sharma", "R001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.ID)

	_, err = repo.AddStudent(ctx, "Aditi Patel", "R001")
	assert.ErrorIs(t, err, ErrConstraintViolation)

	first := Record{ID: "a1", Date: "2024-01-10", ClassTitle: "Math",
		Students: []Mark{{StudentID: 1, Status: StatusPresent}}}
	_, err = repo.SaveRecord(ctx, first)
	require.NoError(t, err)

	records, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{first}, records)

	second := first
	second.Students = []Mark{{StudentID: 1, Status: StatusAbsent}}
	_, err = repo.SaveRecord(ctx, second)
	require.NoError(t, err)

	records, err = repo.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{second}, records)

	require.NoError(t, repo.DeleteRecord(ctx, "a1"))
	records, err = repo.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPostgresUnknownStudentRollsBack(t *testing.T) {
	repo := newPostgres(t)
	ctx := context.Background()

	_, err := repo.AddStudent(ctx, "Aarav Sharma", "R001")
	require.NoError(t, err)
	orig := Record{ID: "a1", Date: "2024-01-10", ClassTitle: "Math",
		Students: []Mark{{StudentID: 1, Status: StatusPresent}}}
	_, err = repo.SaveRecord(ctx, orig)
	require.NoError(t, err)

	bad := Record{ID: "a1", Date: "2024-01-11", ClassTitle: "Physics",
		Students: []Mark{{StudentID: 1, Status: StatusLate}, {StudentID: 999, Status: StatusPresent}}}
	_, err = repo.SaveRecord(ctx, bad)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	records, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{orig}, records)
}

func TestPostgresOrderingAndCascade(t *testing.T) {
	repo := newPostgres(t)
	ctx := context.Background()

	for _, name := range []string{"Zara Ahmed", "Aditi Patel"} {
		_, err := repo.AddStudent(ctx, name, "R-"+name)
		require.NoError(t, err)
	}
	students, err := repo.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Aditi Patel", students[0].Name)

	for _, rec := range []Record{
		{ID: "b", Date: "2024-01-05", ClassTitle: "Math", Students: []Mark{{StudentID: 1, Status: StatusPresent}, {StudentID: 2, Status: StatusAbsent}}},
		{ID: "a", Date: "2024-01-20", ClassTitle: "Math", Students: []Mark{}},
		{ID: "c", Date: "2024-01-20", ClassTitle: "Math", Students: []Mark{}},
	} {
		_, err := repo.SaveRecord(ctx, rec)
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteStudent(ctx, 1))
	_, err = repo.UpdateStudent(ctx, Student{ID: 42, Name: "Ghost", RollNumber: "R042"})
	require.NoError(t, err)

	records, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
	assert.Equal(t, []Mark{{StudentID: 2, Status: StatusAbsent}}, records[2].Students)
}
