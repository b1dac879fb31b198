package marks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
	"markbook/backend/internal/storage/memstore"
)

func num(v float64) *float64 { return &v }

func setup(t *testing.T) (*MarksService, *memstore.Store, *shared.Student) {
	t.Helper()
	store := memstore.New()
	st := &shared.Student{FullName: "Asha K", RollNumber: "10A-01", Class: "10", Section: "A", Address: "..."}
	require.NoError(t, store.InsertStudent(context.Background(), st))
	return NewMarksService(store, zerolog.Nop()), store, st
}

func TestUpsertMark_CreateThenUpdate(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	first, disp, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(45), TotalMarks: num(50),
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Created, disp)
	assert.Equal(t, 90.0, first.Percentage)

	second, disp, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(48), TotalMarks: num(50),
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Updated, disp)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 48.0, second.Marks)
	assert.Equal(t, 96.0, second.Percentage)

	entries, err := svc.ListMarksForStudent(ctx, st.ID.Hex())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 48.0, entries[0].Marks)
	assert.Equal(t, 96.0, entries[0].Percentage)
	require.NotNil(t, entries[0].Student)
	assert.Equal(t, "Asha K", entries[0].Student.FullName)
	assert.Equal(t, "10A-01", entries[0].Student.RollNumber)
}

func TestUpsertMark_SubjectsAreIndependent(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	for _, subject := range []string{"Math", "Science", "English"} {
		_, disp, err := svc.UpsertMark(ctx, shared.MarkInput{
			StudentID: st.ID.Hex(), Subject: subject, Marks: num(30), TotalMarks: num(40),
		})
		require.NoError(t, err)
		assert.Equal(t, shared.Created, disp)
	}

	entries, err := svc.ListMarksForStudent(ctx, st.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestUpsertMark_ConcurrentCallersCreateOnce(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		updated int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(marks float64) {
			defer wg.Done()
			_, disp, err := svc.UpsertMark(ctx, shared.MarkInput{
				StudentID: st.ID.Hex(), Subject: "Math", Marks: num(marks), TotalMarks: num(100),
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if disp == shared.Created {
				created++
			} else {
				updated++
			}
		}(float64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, updated)

	entries, err := svc.ListMarksForStudent(ctx, st.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpsertMark_Validation(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    shared.MarkInput
		field string
		msg   string
	}{
		{"malformed student id", shared.MarkInput{StudentID: "123", Subject: "Math", Marks: num(1), TotalMarks: num(2)}, "studentId", "Student ID is invalid"},
		{"blank subject", shared.MarkInput{StudentID: st.ID.Hex(), Subject: "  ", Marks: num(1), TotalMarks: num(2)}, "subject", "Subject is required"},
		{"missing marks", shared.MarkInput{StudentID: st.ID.Hex(), Subject: "Math", TotalMarks: num(2)}, "marks", "Marks is required"},
		{"negative marks", shared.MarkInput{StudentID: st.ID.Hex(), Subject: "Math", Marks: num(-1), TotalMarks: num(2)}, "marks", "Marks must be at least 0"},
		{"zero total", shared.MarkInput{StudentID: st.ID.Hex(), Subject: "Math", Marks: num(0), TotalMarks: num(0)}, "totalMarks", "Total marks must be at least 1"},
		{"marks above total", shared.MarkInput{StudentID: st.ID.Hex(), Subject: "Math", Marks: num(51), TotalMarks: num(50)}, "marks", MsgExceedsTotal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.UpsertMark(ctx, tc.in)
			st, _ := status.FromError(err)
			require.Equal(t, codes.InvalidArgument, st.Code())

			fields := shared.FieldErrorsFromStatus(st)
			require.Len(t, fields, 1)
			assert.Equal(t, tc.field, fields[0].Field)
			assert.Equal(t, tc.msg, fields[0].Message)
		})
	}

	entries, err := svc.ListAllMarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertMark_ZeroMarksAllowed(t *testing.T) {
	svc, _, st := setup(t)

	entry, _, err := svc.UpsertMark(context.Background(), shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Art", Marks: num(0), TotalMarks: num(20),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, entry.Percentage)
}

func TestListMarksForStudent(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	entries, err := svc.ListMarksForStudent(ctx, primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, err = svc.ListMarksForStudent(ctx, "not-an-id")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDeleteStudentKeepsMarks(t *testing.T) {
	svc, store, st := setup(t)
	ctx := context.Background()

	entry, _, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(40), TotalMarks: num(50),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteStudent(ctx, st.ID))

	entries, err := svc.ListMarksForStudent(ctx, st.ID.Hex())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Nil(t, entries[0].Student)

	require.NoError(t, svc.DeleteMark(ctx, entry.ID.Hex()))
}

func TestDeleteMark(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	entry, _, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(40), TotalMarks: num(50),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMark(ctx, entry.ID.Hex()))
	assert.Equal(t, codes.NotFound, status.Code(svc.DeleteMark(ctx, entry.ID.Hex())))
	assert.Equal(t, codes.NotFound, status.Code(svc.DeleteMark(ctx, "zzz")))

	// The key is free again, so the next upsert creates
	_, disp, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(10), TotalMarks: num(50),
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Created, disp)
}

// vanishingStore loses the (student, subject) row between the insert and the
// update of an upsert. vanish < 0 loses it on every update.
type vanishingStore struct {
	*memstore.Store

	mu          sync.Mutex
	vanish      int
	deleteRow   bool
	updateCalls int
}

func (v *vanishingStore) UpdateMarkByKey(ctx context.Context, studentID primitive.ObjectID, subject string, marks, totalMarks float64, now time.Time) (*shared.MarkEntry, error) {
	v.mu.Lock()
	v.updateCalls++
	lose := v.vanish != 0
	if v.vanish > 0 {
		v.vanish--
	}
	v.mu.Unlock()

	if !lose {
		return v.Store.UpdateMarkByKey(ctx, studentID, subject, marks, totalMarks, now)
	}
	if v.deleteRow {
		entries, err := v.Store.ListMarks(ctx, &studentID)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Subject == subject {
				if err := v.Store.DeleteMark(ctx, e.ID); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, storage.ErrNotFound
}

func TestUpsertMark_RowDeletedMidUpsert(t *testing.T) {
	ctx := context.Background()
	_, mem, st := setup(t)
	store := &vanishingStore{Store: mem}
	svc := NewMarksService(store, zerolog.Nop())

	_, _, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(45), TotalMarks: num(50),
	})
	require.NoError(t, err)

	store.vanish, store.deleteRow = 1, true
	entry, disp, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(48), TotalMarks: num(50),
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Created, disp)
	assert.Equal(t, 48.0, entry.Marks)
	assert.Equal(t, 1, store.updateCalls)

	entries, err := svc.ListMarksForStudent(ctx, st.ID.Hex())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, 96.0, entries[0].Percentage)
}

func TestUpsertMark_GivesUpAfterRepeatedLoss(t *testing.T) {
	ctx := context.Background()
	_, mem, st := setup(t)
	store := &vanishingStore{Store: mem}
	svc := NewMarksService(store, zerolog.Nop())

	_, _, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(45), TotalMarks: num(50),
	})
	require.NoError(t, err)

	store.vanish = -1
	entry, _, err := svc.UpsertMark(ctx, shared.MarkInput{
		StudentID: st.ID.Hex(), Subject: "Math", Marks: num(48), TotalMarks: num(50),
	})
	require.Error(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, codes.Aborted, status.Code(err))
	assert.Equal(t, upsertAttempts, store.updateCalls)

	entries, err := svc.ListMarksForStudent(ctx, st.ID.Hex())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 45.0, entries[0].Marks)
}

func TestSummaryForStudent(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	t.Run("no entries", func(t *testing.T) {
		summary, err := svc.SummaryForStudent(ctx, st.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, st.ID, summary.StudentID)
		assert.Equal(t, 0, summary.Subjects)
		assert.Equal(t, 0.0, summary.Percentage)
	})

	for _, in := range []struct {
		subject      string
		marks, total float64
	}{{"Math", 48, 50}, {"Science", 41, 50}, {"English", 88, 100}} {
		_, _, err := svc.UpsertMark(ctx, shared.MarkInput{
			StudentID: st.ID.Hex(), Subject: in.subject, Marks: num(in.marks), TotalMarks: num(in.total),
		})
		require.NoError(t, err)
	}

	t.Run("sums across subjects", func(t *testing.T) {
		summary, err := svc.SummaryForStudent(ctx, st.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Subjects)
		assert.Equal(t, 177.0, summary.Obtained)
		assert.Equal(t, 200.0, summary.Possible)
		assert.Equal(t, 88.5, summary.Percentage)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.SummaryForStudent(ctx, "xyz")
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}
