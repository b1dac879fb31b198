// Package marks implements the Mark Ledger: one entry per (student, subject).
package marks

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
	MsgInvalidStudent = "Invalid student ID"
	MsgNotFound       = "Marks not found"
	MsgExceedsTotal   = "Marks cannot exceed total marks"
)

// upsertAttempts bounds the insert/update race against concurrent deletes
const upsertAttempts = 3

// MarksService is the ledger of per-subject marks
type MarksService struct {
	store  storage.MarkStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewMarksService creates a new MarksService instance
func NewMarksService(store storage.MarkStore, logger zerolog.Logger) *MarksService {
	return &MarksService{
		store:  store,
		logger: logger.With().Str("component", "marks").Logger(),
		now:    time.Now,
	}
}

func (s *MarksService) internal(err error, msg string) error {
	s.logger.Error().Err(err).Msg(msg)
	return status.Error(codes.Internal, msg)
}

// ListMarksForStudent returns every entry of a student with its student
// summary. A well-formed id with no entries yields an empty list.
func (s *MarksService) ListMarksForStudent(ctx context.Context, studentID string) ([]shared.MarkEntry, error) {
	oid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.NotFound, MsgInvalidStudent)
	}

	entries, err := s.store.ListMarks(ctx, &oid)
	if err != nil {
		return nil, s.internal(err, "Error fetching marks")
	}
	for i := range entries {
		entries[i].WithPercentage()
	}
	return entries, nil
}

// SummaryForStudent aggregates every entry of a student. A student with no
// entries gets a zero summary.
func (s *MarksService) SummaryForStudent(ctx context.Context, studentID string) (*shared.MarkSummary, error) {
	oid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.NotFound, MsgInvalidStudent)
	}

	entries, err := s.store.ListMarks(ctx, &oid)
	if err != nil {
		return nil, s.internal(err, "Error fetching marks")
	}

	summary := shared.Aggregate(entries)
	summary.StudentID = oid
	return &summary, nil
}

// ListAllMarks returns every entry in the ledger, student summaries resolved
// where the student still exists.
func (s *MarksService) ListAllMarks(ctx context.Context) ([]shared.MarkEntry, error) {
	entries, err := s.store.ListMarks(ctx, nil)
	if err != nil {
		return nil, s.internal(err, "Error fetching marks")
	}
	for i := range entries {
		entries[i].WithPercentage()
	}
	return entries, nil
}

// UpsertMark records marks for (studentId, subject). It inserts first and
// falls back to updating the existing row when the unique (student, subject)
// constraint rejects the insert, so concurrent callers never both create.
func (s *MarksService) UpsertMark(ctx context.Context, in shared.MarkInput) (*shared.MarkEntry, shared.Disposition, error) {
	// 1. Validate
	in.Normalize()
	if fields := shared.ValidateStruct(in); len(fields) > 0 {
		return nil, shared.Created, shared.ValidationStatus("Validation failed", fields)
	}
	if *in.Marks > *in.TotalMarks {
		return nil, shared.Created, shared.ValidationStatus("Validation failed", []shared.FieldError{
			{Field: "marks", Message: MsgExceedsTotal},
		})
	}

	studentID, err := primitive.ObjectIDFromHex(in.StudentID)
	if err != nil {
		return nil, shared.Created, shared.ValidationStatus("Validation failed", []shared.FieldError{
			{Field: "studentId", Message: MsgInvalidStudent},
		})
	}

	for attempt := 0; attempt < upsertAttempts; attempt++ {
		now := s.now()

		// 2. Attempt insert
		entry := &shared.MarkEntry{
			StudentID:  studentID,
			Subject:    in.Subject,
			Marks:      *in.Marks,
			TotalMarks: *in.TotalMarks,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := s.store.InsertMark(ctx, entry)
		if err == nil {
			s.logger.Info().
				Str("student_id", in.StudentID).
				Str("subject", in.Subject).
				Msg("marks created")
			return entry.WithPercentage(), shared.Created, nil
		}
		if !storage.IsDuplicateKey(err) {
			return nil, shared.Created, s.internal(err, "Error saving marks")
		}

		// 3. Key already taken: update the existing row in place
		updated, err := s.store.UpdateMarkByKey(ctx, studentID, in.Subject, *in.Marks, *in.TotalMarks, now)
		if err == nil {
			s.logger.Info().
				Str("student_id", in.StudentID).
				Str("subject", in.Subject).
				Msg("marks updated")
			return updated.WithPercentage(), shared.Updated, nil
		}
		if !storage.IsNotFound(err) {
			return nil, shared.Created, s.internal(err, "Error saving marks")
		}
		// The row was deleted between insert and update; try again.
	}

	return nil, shared.Created, status.Error(codes.Aborted, "Marks changed concurrently, please retry")
}

// DeleteMark removes one entry by id
func (s *MarksService) DeleteMark(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return status.Error(codes.NotFound, MsgNotFound)
	}

	if err := s.store.DeleteMark(ctx, oid); err != nil {
		if storage.IsNotFound(err) {
			return status.Error(codes.NotFound, MsgNotFound)
		}
		return s.internal(err, "Error deleting marks")
	}
	return nil
}
