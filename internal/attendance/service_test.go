package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attentrack/internal/kv"
)

var errConnReset = errors.New("connection reset by peer")

// fakeRelational behaves like the relational backend: it enforces unique
// roll numbers and can be made to fail initialization or every call.
type fakeRelational struct {
	*LocalRepository

	mu      sync.Mutex
	initErr error
	callErr error
	inits   int
	closed  bool
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{LocalRepository: NewLocalRepository(kv.NewMemory())}
}

func (f *fakeRelational) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeRelational) Healthy(context.Context) bool { return f.err() == nil }

func (f *fakeRelational) Close() { f.closed = true }

func (f *fakeRelational) failWith(err error) {
	f.mu.Lock()
	f.callErr = err
	f.mu.Unlock()
}

func (f *fakeRelational) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callErr
}

func (f *fakeRelational) ListStudents(ctx context.Context) ([]Student, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.LocalRepository.ListStudents(ctx)
}

func (f *fakeRelational) AddStudent(ctx context.Context, name, roll string) (Student, error) {
	if err := f.err(); err != nil {
		return Student{}, err
	}
	students, err := f.LocalRepository.ListStudents(ctx)
	if err != nil {
		return Student{}, err
	}
	if err := CheckRollNumber(students, roll, 0); err != nil {
		return Student{}, err
	}
	return f.LocalRepository.AddStudent(ctx, name, roll)
}

func (f *fakeRelational) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	if err := f.err(); err != nil {
		return Student{}, err
	}
	return f.LocalRepository.UpdateStudent(ctx, st)
}

func (f *fakeRelational) DeleteStudent(ctx context.Context, id int64) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.LocalRepository.DeleteStudent(ctx, id)
}

func (f *fakeRelational) ListRecords(ctx context.Context) ([]Record, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.LocalRepository.ListRecords(ctx)
}

func (f *fakeRelational) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	if err := f.err(); err != nil {
		return Record{}, err
	}
	return f.LocalRepository.SaveRecord(ctx, rec)
}

func (f *fakeRelational) DeleteRecord(ctx context.Context, id string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.LocalRepository.DeleteRecord(ctx, id)
}

type served struct {
	op      string
	backend Backend
	failed  bool
}

type recordingObserver struct {
	mu        sync.Mutex
	served    []served
	fallbacks []string
	states    []State
}

func (o *recordingObserver) Served(op string, backend Backend, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.served = append(o.served, served{op: op, backend: backend, failed: err != nil})
}

func (o *recordingObserver) FellBack(op string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, op)
}

func (o *recordingObserver) StateChanged(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

type countingSeeder struct{ calls int }

func (s *countingSeeder) SeedStudents(ctx context.Context, repo RosterStore) error {
	s.calls++
	_, err := repo.AddStudent(ctx, "Aarav Sharma", "R001")
	return err
}

// failingDict fails every read and write.
type failingDict struct{}

func (failingDict) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk full") }
func (failingDict) Set(context.Context, string, []byte) error   { return errors.New("disk full") }

func newService(rel Relational, local Repository, opts Options) *Service {
	opts.Logger = zerolog.Nop()
	return NewService(rel, local, opts)
}

func TestServiceInitializationFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	rel.initErr = errors.New("dial tcp: connection refused")
	obs := &recordingObserver{}
	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{Observer: obs})

	assert.Equal(t, StateUninitialized, svc.State())

	st, err := svc.AddStudent(ctx, "Aarav Sharma", "R001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.ID)

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Student{st}, students)

	_, err = svc.SaveRecord(ctx, Record{ID: "a1", Date: "2024-01-10", ClassTitle: "Math",
		Students: []Mark{{StudentID: 1, Status: StatusPresent}}})
	require.NoError(t, err)
	records, err := svc.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Equal(t, StateLocalFallback, svc.State())
	assert.ErrorIs(t, svc.InitErr(), ErrInitializationFailed)
	assert.ErrorIs(t, svc.InitErr(), rel.initErr)
	assert.Equal(t, 1, rel.inits)
	assert.Equal(t, []State{StateLocalFallback}, obs.states)
	for _, s := range obs.served {
		assert.Equal(t, BackendLocal, s.backend)
	}

	relStudents, err := rel.LocalRepository.ListStudents(ctx)
	require.NoError(t, err)
	assert.Empty(t, relStudents)
}

func TestServiceWithoutRelationalBackend(t *testing.T) {
	svc := newService(nil, NewLocalRepository(kv.NewMemory()), Options{})

	assert.Equal(t, StateLocalFallback, svc.Init(context.Background()))
	assert.NoError(t, svc.InitErr())
	svc.Close()
}

func TestServiceInitializesOnce(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ListStudents(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rel.inits)
	assert.Equal(t, StateRelationalActive, svc.State())
}

func TestServiceSeedsEmptyRoster(t *testing.T) {
	ctx := context.Background()
	seeder := &countingSeeder{}
	rel := newFakeRelational()
	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{Seeder: seeder})

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "R001", students[0].RollNumber)
	assert.Equal(t, 1, seeder.calls)

	_, err = svc.ListStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, seeder.calls)
}

func TestServiceSkipsSeedWhenRosterExists(t *testing.T) {
	ctx := context.Background()
	seeder := &countingSeeder{}
	rel := newFakeRelational()
	_, err := rel.LocalRepository.AddStudent(ctx, "Existing", "X1")
	require.NoError(t, err)

	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{Seeder: seeder})
	assert.Equal(t, StateRelationalActive, svc.Init(ctx))
	assert.Zero(t, seeder.calls)
}

func TestServiceFallsBackPerCall(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	local := NewLocalRepository(kv.NewMemory())
	obs := &recordingObserver{}
	svc := newService(rel, local, Options{Observer: obs})
	require.Equal(t, StateRelationalActive, svc.Init(ctx))

	rel.failWith(errConnReset)
	st, err := svc.AddStudent(ctx, "Aarav Sharma", "R001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.ID)

	localStudents, err := local.ListStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Student{st}, localStudents)

	assert.Equal(t, StateRelationalActive, svc.State())
	assert.Equal(t, []string{"add_student"}, obs.fallbacks)
	assert.Equal(t, []served{
		{op: "add_student", backend: BackendRelational, failed: true},
		{op: "add_student", backend: BackendLocal},
	}, obs.served)
}

func TestServiceStrictModeDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	local := NewLocalRepository(kv.NewMemory())
	svc := newService(rel, local, Options{Strict: true})
	require.Equal(t, StateRelationalActive, svc.Init(ctx))

	rel.failWith(errConnReset)
	_, err := svc.AddStudent(ctx, "Aarav Sharma", "R001")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, errConnReset)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, BackendRelational, opErr.Backend)
	assert.Equal(t, "add_student", opErr.Op)

	localStudents, err := local.ListStudents(ctx)
	require.NoError(t, err)
	assert.Empty(t, localStudents)
}

func TestServiceCanceledContextDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	obs := &recordingObserver{}
	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{Observer: obs})
	require.Equal(t, StateRelationalActive, svc.Init(ctx))

	rel.failWith(context.Canceled)
	_, err := svc.ListRecords(ctx)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, obs.fallbacks)
}

func TestServiceConstraintViolationIsNotRetried(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	local := NewLocalRepository(kv.NewMemory())
	obs := &recordingObserver{}
	svc := newService(rel, local, Options{Observer: obs})

	_, err := svc.AddStudent(ctx, "Aarav Sharma", "R001")
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, "Someone Else", "R001")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.NotErrorIs(t, err, ErrOperationFailed)
	assert.Empty(t, obs.fallbacks)

	localStudents, err := local.ListStudents(ctx)
	require.NoError(t, err)
	assert.Empty(t, localStudents)
}

func TestServiceBothBackendsFailing(t *testing.T) {
	ctx := context.Background()
	rel := newFakeRelational()
	svc := newService(rel, NewLocalRepository(failingDict{}), Options{})
	require.Equal(t, StateRelationalActive, svc.Init(ctx))

	rel.failWith(errConnReset)
	_, err := svc.ListStudents(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, errConnReset)
	assert.Contains(t, err.Error(), "disk full")

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, BackendLocal, opErr.Backend)
}

func TestServiceLocalFailureInFallbackState(t *testing.T) {
	svc := newService(nil, NewLocalRepository(failingDict{}), Options{})

	_, err := svc.ListStudents(context.Background())
	assert.ErrorIs(t, err, ErrOperationFailed)
}

func TestServiceValidatesInput(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	svc := newService(nil, NewLocalRepository(kv.NewMemory()), Options{Observer: obs})

	_, err := svc.AddStudent(ctx, "  ", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []FieldError{
		{Field: "name", Error: "is required"},
		{Field: "rollNumber", Error: "is required"},
	}, verr.Fields)

	_, err = svc.UpdateStudent(ctx, Student{Name: "A", RollNumber: "R1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SaveRecord(ctx, Record{ID: "a1", Date: "10/01/2024", ClassTitle: "Math"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, obs.served)
}

func TestServiceTrimsAndNormalizes(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil, NewLocalRepository(kv.NewMemory()), Options{})

	st, err := svc.AddStudent(ctx, "  Aarav Sharma ", " R001")
	require.NoError(t, err)
	assert.Equal(t, "Aarav Sharma", st.Name)
	assert.Equal(t, "R001", st.RollNumber)

	rec, err := svc.SaveRecord(ctx, Record{ID: "a1", Date: "2024-01-10", ClassTitle: " Math "})
	require.NoError(t, err)
	assert.Equal(t, "Math", rec.ClassTitle)
	assert.NotNil(t, rec.Students)
}

func TestServiceDeleteReportsSuccess(t *testing.T) {
	ctx := context.Background()
	svc := newService(newFakeRelational(), NewLocalRepository(kv.NewMemory()), Options{})

	_, err := svc.SaveRecord(ctx, Record{ID: "a1", Date: "2024-01-10", ClassTitle: "Math"})
	require.NoError(t, err)

	ok, err := svc.DeleteRecord(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := svc.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	ok, err = svc.DeleteStudent(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceCloseClosesRelational(t *testing.T) {
	rel := newFakeRelational()
	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{})
	svc.Close()
	assert.True(t, rel.closed)
}

func TestServiceRelationalHealthy(t *testing.T) {
	ctx := context.Background()

	assert.False(t, newService(nil, NewLocalRepository(kv.NewMemory()), Options{}).RelationalHealthy(ctx))

	down := newFakeRelational()
	down.initErr = errors.New("dial tcp: connection refused")
	assert.False(t, newService(down, NewLocalRepository(kv.NewMemory()), Options{}).RelationalHealthy(ctx))

	rel := newFakeRelational()
	svc := newService(rel, NewLocalRepository(kv.NewMemory()), Options{})
	assert.True(t, svc.RelationalHealthy(ctx))
	assert.Equal(t, StateRelationalActive, svc.State())

	rel.failWith(errors.New("connection reset by peer"))
	assert.False(t, svc.RelationalHealthy(ctx))
	assert.Equal(t, StateRelationalActive, svc.State())
}
