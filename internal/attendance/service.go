package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Options tune a Service.
type Options struct {
	// Strict disables per-call fallback while the relational backend is
	// active; failures are returned as OperationError instead.
	Strict bool
	// Seeder runs once when the relational roster is empty after
	// initialization.
	Seeder   Seeder
	Observer Observer
	Logger   zerolog.Logger
}

// Service is the single persistence entry point. It prepares the relational
// backend at most once and routes each call to it, falling back to the local
// backend when it is unavailable or a call fails.
type Service struct {
	relational Relational
	local      Repository
	opts       Options
	log        zerolog.Logger

	once    sync.Once
	mu      sync.RWMutex
	state   State
	initErr error
}

// NewService creates a service. relational may be nil when no relational
// backend is reachable from this process.
func NewService(relational Relational, local Repository, opts Options) *Service {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Service{
		relational: relational,
		local:      local,
		opts:       opts,
		log:        opts.Logger.With().Str("component", "attendance").Logger(),
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// InitErr returns the reason the service fell back during initialization.
func (s *Service) InitErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initErr
}

// Init runs initialization if it has not happened yet and returns the
// resulting state. Every data call does this implicitly.
func (s *Service) Init(ctx context.Context) State {
	s.once.Do(func() { s.initialize(ctx) })
	return s.State()
}

// RelationalHealthy reports whether the relational backend answers right
// now. It is false when none is configured or initialization fell back.
func (s *Service) RelationalHealthy(ctx context.Context) bool {
	if s.relational == nil || s.Init(ctx) != StateRelationalActive {
		return false
	}
	return s.relational.Healthy(ctx)
}

// Close releases the relational pool.
func (s *Service) Close() {
	if s.relational != nil {
		s.relational.Close()
	}
}

func (s *Service) initialize(ctx context.Context) {
	if s.relational == nil {
		s.log.Info().Msg("no relational backend configured, using local store")
		s.setState(StateLocalFallback, nil)
		return
	}

	if err := s.relational.Initialize(ctx); err != nil {
		s.log.Warn().Err(err).Msg("relational backend unavailable, using local store")
		s.setState(StateLocalFallback, fmt.Errorf("%w: %w", ErrInitializationFailed, err))
		return
	}
	s.setState(StateRelationalActive, nil)
	s.log.Info().Msg("relational backend ready")

	if s.opts.Seeder == nil {
		return
	}
	students, err := s.relational.ListStudents(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("roster check before seeding failed")
		return
	}
	if len(students) > 0 {
		return
	}
	if err := s.opts.Seeder.SeedStudents(ctx, s.relational); err != nil {
		s.log.Error().Err(err).Msg("seeding roster failed")
		return
	}
	s.log.Info().Msg("seeded empty roster")
}

func (s *Service) setState(state State, initErr error) {
	s.mu.Lock()
	s.state = state
	s.initErr = initErr
	s.mu.Unlock()
	s.opts.Observer.StateChanged(state)
}

// route runs fn against the active backend and applies the fallback policy.
func route[T any](ctx context.Context, s *Service, op string, fn func(Repository) (T, error)) (T, error) {
	if s.Init(ctx) == StateLocalFallback {
		v, err := fn(s.local)
		s.opts.Observer.Served(op, BackendLocal, err)
		if err != nil && !isDataError(err) {
			return v, &OperationError{Op: op, Backend: BackendLocal, Err: err}
		}
		return v, err
	}

	v, err := fn(s.relational)
	s.opts.Observer.Served(op, BackendRelational, err)
	if err == nil || isDataError(err) {
		return v, err
	}
	if s.opts.Strict || errors.Is(err, context.Canceled) {
		return v, &OperationError{Op: op, Backend: BackendRelational, Err: err}
	}

	s.log.Warn().Err(err).Str("op", op).Msg("relational call failed, retrying on local store")
	s.opts.Observer.FellBack(op, err)
	lv, lerr := fn(s.local)
	s.opts.Observer.Served(op, BackendLocal, lerr)
	if lerr != nil {
		if isDataError(lerr) {
			return lv, lerr
		}
		return lv, &OperationError{Op: op, Backend: BackendLocal, Err: errors.Join(err, lerr)}
	}
	return lv, nil
}

// ListStudents returns the roster ordered by name.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return route(ctx, s, "list_students", func(r Repository) ([]Student, error) {
		return r.ListStudents(ctx)
	})
}

// AddStudent creates a student and returns it with its assigned id.
func (s *Service) AddStudent(ctx context.Context, name, rollNumber string) (Student, error) {
	name, rollNumber = strings.TrimSpace(name), strings.TrimSpace(rollNumber)
	if err := validateStudent(name, rollNumber); err != nil {
		return Student{}, err
	}
	return route(ctx, s, "add_student", func(r Repository) (Student, error) {
		return r.AddStudent(ctx, name, rollNumber)
	})
}

// UpdateStudent changes name and roll number of st.ID.
func (s *Service) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	st.Name, st.RollNumber = strings.TrimSpace(st.Name), strings.TrimSpace(st.RollNumber)
	if err := validateStudent(st.Name, st.RollNumber); err != nil {
		return Student{}, err
	}
	if st.ID <= 0 {
		return Student{}, NewValidationError(FieldError{Field: "id", Error: "must be positive"})
	}
	return route(ctx, s, "update_student", func(r Repository) (Student, error) {
		return r.UpdateStudent(ctx, st)
	})
}

// DeleteStudent removes a student and its marks.
func (s *Service) DeleteStudent(ctx context.Context, id int64) (bool, error) {
	return route(ctx, s, "delete_student", func(r Repository) (bool, error) {
		if err := r.DeleteStudent(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	})
}

// ListRecords returns every record, newest date first.
func (s *Service) ListRecords(ctx context.Context) ([]Record, error) {
	return route(ctx, s, "list_records", func(r Repository) ([]Record, error) {
		return r.ListRecords(ctx)
	})
}

// SaveRecord inserts rec or replaces the record with the same id.
func (s *Service) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	rec.ClassTitle = strings.TrimSpace(rec.ClassTitle)
	if rec.Students == nil {
		rec.Students = []Mark{}
	}
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	return route(ctx, s, "save_record", func(r Repository) (Record, error) {
		return r.SaveRecord(ctx, rec)
	})
}

// DeleteRecord removes a record and its marks.
func (s *Service) DeleteRecord(ctx context.Context, id string) (bool, error) {
	return route(ctx, s, "delete_record", func(r Repository) (bool, error) {
		if err := r.DeleteRecord(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	})
}
