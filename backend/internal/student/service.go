// Package student implements the Student Registry.
package student

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
)

const (
	MsgNotFound      = "Student not found"
	MsgDuplicateRoll = "Roll number already exists"
)

// StudentService is the registry of student records
type StudentService struct {
	store  storage.StudentStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewStudentService creates a new StudentService instance
func NewStudentService(store storage.StudentStore, logger zerolog.Logger) *StudentService {
	return &StudentService{
		store:  store,
		logger: logger.With().Str("component", "student").Logger(),
		now:    time.Now,
	}
}

func (s *StudentService) internal(err error, msg string) error {
	s.logger.Error().Err(err).Msg(msg)
	return status.Error(codes.Internal, msg)
}

// parseID treats a malformed id the same as one that does not resolve
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, status.Error(codes.NotFound, MsgNotFound)
	}
	return oid, nil
}

// ListStudents returns every student in the requested order
func (s *StudentService) ListStudents(ctx context.Context, order storage.StudentOrder) ([]shared.Student, error) {
	students, err := s.store.ListStudents(ctx, order)
	if err != nil {
		return nil, s.internal(err, "Error fetching students")
	}
	return students, nil
}

// GetStudent fetches one student by id
func (s *StudentService) GetStudent(ctx context.Context, id string) (*shared.Student, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	student, err := s.store.FindStudent(ctx, oid)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, MsgNotFound)
		}
		return nil, s.internal(err, "Error fetching student")
	}
	return student, nil
}

// CreateStudent validates and stores a new student.
// Roll number uniqueness is enforced by the store's unique constraint.
func (s *StudentService) CreateStudent(ctx context.Context, in shared.StudentInput) (*shared.Student, error) {
	in.Normalize()
	if fields := shared.ValidateStruct(in); len(fields) > 0 {
		return nil, shared.ValidationStatus("Validation failed", fields)
	}

	now := s.now()
	student := &shared.Student{
		FullName:   in.FullName,
		RollNumber: in.RollNumber,
		Class:      in.Class,
		Section:    in.Section,
		Address:    in.Address,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.InsertStudent(ctx, student); err != nil {
		if storage.IsDuplicateKey(err) {
			return nil, status.Error(codes.AlreadyExists, MsgDuplicateRoll)
		}
		return nil, s.internal(err, "Error creating student")
	}

	s.logger.Info().Str("id", student.ID.Hex()).Str("roll_number", student.RollNumber).Msg("student created")
	return student, nil
}

// UpdateStudent replaces all five writable fields of an existing student
func (s *StudentService) UpdateStudent(ctx context.Context, id string, in shared.StudentInput) (*shared.Student, error) {
	in.Normalize()
	if fields := shared.ValidateStruct(in); len(fields) > 0 {
		return nil, shared.ValidationStatus("Validation failed", fields)
	}

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	student, err := s.store.UpdateStudent(ctx, oid, in, s.now())
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			return nil, status.Error(codes.NotFound, MsgNotFound)
		case storage.IsDuplicateKey(err):
			return nil, status.Error(codes.AlreadyExists, MsgDuplicateRoll)
		}
		return nil, s.internal(err, "Error updating student")
	}
	return student, nil
}

// DeleteStudent removes the record. Mark entries referencing it are left in place.
func (s *StudentService) DeleteStudent(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteStudent(ctx, oid); err != nil {
		if storage.IsNotFound(err) {
			return status.Error(codes.NotFound, MsgNotFound)
		}
		return s.internal(err, "Error deleting student")
	}

	s.logger.Info().Str("id", id).Msg("student deleted")
	return nil
}
