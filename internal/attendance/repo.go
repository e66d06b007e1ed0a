package attendance

import "context"

// Repository is the read/write surface shared by every backend.
type Repository interface {
	ListStudents(ctx context.Context) ([]Student, error)
	AddStudent(ctx context.Context, name, rollNumber string) (Student, error)
	UpdateStudent(ctx context.Context, st Student) (Student, error)
	DeleteStudent(ctx context.Context, id int64) error

	ListRecords(ctx context.Context) ([]Record, error)
	SaveRecord(ctx context.Context, rec Record) (Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Relational is a Repository that has to be prepared before use.
type Relational interface {
	Repository
	Initialize(ctx context.Context) error
	Healthy(ctx context.Context) bool
	Close()
}

// RosterStore is the part of a store a Seeder writes through. Both
// backends and Service satisfy it.
type RosterStore interface {
	ListStudents(ctx context.Context) ([]Student, error)
	AddStudent(ctx context.Context, name, rollNumber string) (Student, error)
}

// Seeder fills an empty roster.
type Seeder interface {
	SeedStudents(ctx context.Context, store RosterStore) error
}

// Backend names the store that served a call.
type Backend string

const (
	BackendRelational Backend = "relational"
	BackendLocal      Backend = "local"
)

// State is the lifecycle of a Service.
type State int

const (
	StateUninitialized State = iota
	StateRelationalActive
	StateLocalFallback
)

func (s State) String() string {
	switch s {
	case StateRelationalActive:
		return "relational_active"
	case StateLocalFallback:
		return "local_fallback"
	default:
		return "uninitialized"
	}
}

// Backend returns the store that serves calls in this state.
func (s State) Backend() Backend {
	if s == StateRelationalActive {
		return BackendRelational
	}
	return BackendLocal
}

// Observer is notified about every call the Service routes.
type Observer interface {
	Served(op string, backend Backend, err error)
	FellBack(op string, cause error)
	StateChanged(state State)
}

type nopObserver struct{}

func (nopObserver) Served(string, Backend, error) {}
func (nopObserver) FellBack(string, error)        {}
func (nopObserver) StateChanged(State)            {}
