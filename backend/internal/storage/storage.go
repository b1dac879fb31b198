// Package storage defines the persistence contracts shared by the
// registry, the ledger and the identity store.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"markbook/backend/internal/shared"
)

var (
	// ErrNotFound is returned when an id or key does not resolve.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicateKey is returned when a write violates a unique constraint.
	ErrDuplicateKey = errors.New("storage: duplicate key")
)

// StudentOrder selects how ListStudents sorts its result
type StudentOrder int

const (
	// NewestFirst orders by creation time, most recent first.
	NewestFirst StudentOrder = iota
	// ByClassSectionRoll orders by class, section, then roll number, all ascending.
	ByClassSectionRoll
)

// UserStore persists staff accounts. Usernames are unique.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*shared.User, error)
	InsertUser(ctx context.Context, user *shared.User) error
}

// StudentStore persists student records. Roll numbers are unique.
type StudentStore interface {
	ListStudents(ctx context.Context, order StudentOrder) ([]shared.Student, error)
	FindStudent(ctx context.Context, id primitive.ObjectID) (*shared.Student, error)
	InsertStudent(ctx context.Context, student *shared.Student) error
	UpdateStudent(ctx context.Context, id primitive.ObjectID, in shared.StudentInput, now time.Time) (*shared.Student, error)
	DeleteStudent(ctx context.Context, id primitive.ObjectID) error
}

// MarkStore persists ledger entries. (student_id, subject) is unique.
type MarkStore interface {
	// ListMarks returns entries with their student summary resolved when the
	// student still exists. A nil studentID lists every entry.
	ListMarks(ctx context.Context, studentID *primitive.ObjectID) ([]shared.MarkEntry, error)
	InsertMark(ctx context.Context, entry *shared.MarkEntry) error
	UpdateMarkByKey(ctx context.Context, studentID primitive.ObjectID, subject string, marks, totalMarks float64, now time.Time) (*shared.MarkEntry, error)
	DeleteMark(ctx context.Context, id primitive.ObjectID) error
}

// Store is the full persistence surface of the application
type Store interface {
	UserStore
	StudentStore
	MarkStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsNotFound reports whether err is, or wraps, ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey reports whether err is, or wraps, ErrDuplicateKey
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
