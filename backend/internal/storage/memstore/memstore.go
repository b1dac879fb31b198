// Package memstore is an in-process implementation of storage.Store.
// It enforces the same unique constraints as the MongoDB indexes.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
)

type markKey struct {
	studentID primitive.ObjectID
	subject   string
}

// Store keeps every collection in maps guarded by one mutex
type Store struct {
	mu sync.RWMutex

	users    map[primitive.ObjectID]shared.User
	students map[primitive.ObjectID]shared.Student
	marks    map[primitive.ObjectID]shared.MarkEntry

	usernames   map[string]primitive.ObjectID
	rollNumbers map[string]primitive.ObjectID
	markKeys    map[markKey]primitive.ObjectID
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		users:       make(map[primitive.ObjectID]shared.User),
		students:    make(map[primitive.ObjectID]shared.Student),
		marks:       make(map[primitive.ObjectID]shared.MarkEntry),
		usernames:   make(map[string]primitive.ObjectID),
		rollNumbers: make(map[string]primitive.ObjectID),
		markKeys:    make(map[markKey]primitive.ObjectID),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

// ============================================================================
// Users
// ============================================================================

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*shared.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) InsertUser(ctx context.Context, user *shared.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[user.Username]; taken {
		return errors.Wrapf(storage.ErrDuplicateKey, "username %q", user.Username)
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	s.usernames[user.Username] = user.ID
	return nil
}

// ============================================================================
// Students
// ============================================================================

func (s *Store) ListStudents(ctx context.Context, order storage.StudentOrder) ([]shared.Student, error) {
	s.mu.RLock()
	out := make([]shared.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	s.mu.RUnlock()

	switch order {
	case storage.ByClassSectionRoll:
		sort.Slice(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.Class != b.Class {
				return a.Class < b.Class
			}
			if a.Section != b.Section {
				return a.Section < b.Section
			}
			return a.RollNumber < b.RollNumber
		})
	default:
		sort.Slice(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID.Hex() > b.ID.Hex()
		})
	}
	return out, nil
}

func (s *Store) FindStudent(ctx context.Context, id primitive.ObjectID) (*shared.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &st, nil
}

func (s *Store) InsertStudent(ctx context.Context, student *shared.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.rollNumbers[student.RollNumber]; taken {
		return errors.Wrapf(storage.ErrDuplicateKey, "roll number %q", student.RollNumber)
	}
	if student.ID.IsZero() {
		student.ID = primitive.NewObjectID()
	}
	s.students[student.ID] = *student
	s.rollNumbers[student.RollNumber] = student.ID
	return nil
}

func (s *Store) UpdateStudent(ctx context.Context, id primitive.ObjectID, in shared.StudentInput, now time.Time) (*shared.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if owner, taken := s.rollNumbers[in.RollNumber]; taken && owner != id {
		return nil, errors.Wrapf(storage.ErrDuplicateKey, "roll number %q", in.RollNumber)
	}

	delete(s.rollNumbers, st.RollNumber)
	st.FullName = in.FullName
	st.RollNumber = in.RollNumber
	st.Class = in.Class
	st.Section = in.Section
	st.Address = in.Address
	st.UpdatedAt = now

	s.students[id] = st
	s.rollNumbers[st.RollNumber] = id
	return &st, nil
}

func (s *Store) DeleteStudent(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.students, id)
	delete(s.rollNumbers, st.RollNumber)
	return nil
}

// ============================================================================
// Marks
// ============================================================================

func (s *Store) ListMarks(ctx context.Context, studentID *primitive.ObjectID) ([]shared.MarkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]shared.MarkEntry, 0)
	for _, m := range s.marks {
		if studentID != nil && m.StudentID != *studentID {
			continue
		}
		m.Student = nil
		if st, ok := s.students[m.StudentID]; ok {
			m.Student = st.Summary()
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (s *Store) InsertMark(ctx context.Context, entry *shared.MarkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := markKey{entry.StudentID, entry.Subject}
	if _, taken := s.markKeys[key]; taken {
		return errors.Wrapf(storage.ErrDuplicateKey, "mark %s/%q", entry.StudentID.Hex(), entry.Subject)
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	stored := *entry
	stored.Student = nil
	s.marks[entry.ID] = stored
	s.markKeys[key] = entry.ID
	return nil
}

func (s *Store) UpdateMarkByKey(ctx context.Context, studentID primitive.ObjectID, subject string, marks, totalMarks float64, now time.Time) (*shared.MarkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.markKeys[markKey{studentID, subject}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m := s.marks[id]
	m.Marks = marks
	m.TotalMarks = totalMarks
	m.UpdatedAt = now
	s.marks[id] = m
	return &m, nil
}

func (s *Store) DeleteMark(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.marks[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.marks, id)
	delete(s.markKeys, markKey{m.StudentID, m.Subject})
	return nil
}
