// Package report compiles the marks spreadsheet: every student joined with
// their ledger entries, one row per (student, subject).
package report

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
)

const (
	SheetName   = "Student Marks"
	FileName    = "student_marks.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// Placeholders for a student without any entries
	NoSubjects = "No subjects"
	NoMarks    = "No marks"

	msgFailed = "Error generating Excel file"
)

// Column is a fixed report column with its width in character units
type Column struct {
	Title string
	Width float64
}

// Columns lists the report layout in order
var Columns = []Column{
	{"Name", 20},
	{"Roll Number", 15},
	{"Class", 10},
	{"Section", 10},
	{"Subject", 15},
	{"Marks", 10},
	{"Total Marks", 12},
	{"Percentage", 12},
}

// StudentSource lists students in a requested order
type StudentSource interface {
	ListStudents(ctx context.Context, order storage.StudentOrder) ([]shared.Student, error)
}

// MarkSource lists the whole ledger with student summaries resolved
type MarkSource interface {
	ListAllMarks(ctx context.Context) ([]shared.MarkEntry, error)
}

// Row is one line of the report
type Row struct {
	Name       string
	RollNumber string
	Class      string
	Section    string
	Subject    string
	Marks      float64
	TotalMarks float64
	Percentage string
	Empty      bool // student has no entries; Subject/Marks/Total hold placeholders
}

// Cells returns the row values in column order
func (r Row) Cells() []interface{} {
	if r.Empty {
		return []interface{}{r.Name, r.RollNumber, r.Class, r.Section, NoSubjects, NoMarks, NoMarks, nil}
	}
	return []interface{}{r.Name, r.RollNumber, r.Class, r.Section, r.Subject, r.Marks, r.TotalMarks, r.Percentage}
}

// Report is a finished spreadsheet
type Report struct {
	FileName    string
	ContentType string
	Data        []byte
	Rows        int
}

// Compiler builds the marks report from the registry and the ledger
type Compiler struct {
	students StudentSource
	marks    MarkSource
	logger   zerolog.Logger
}

func NewCompiler(students StudentSource, marks MarkSource, logger zerolog.Logger) *Compiler {
	return &Compiler{
		students: students,
		marks:    marks,
		logger:   logger.With().Str("component", "report").Logger(),
	}
}

// CompileMarksReport fetches both sources, pivots and serializes them.
// Any failure aborts the whole report.
func (c *Compiler) CompileMarksReport(ctx context.Context) (*Report, error) {
	// 1. Students in report order
	students, err := c.students.ListStudents(ctx, storage.ByClassSectionRoll)
	if err != nil {
		return nil, c.fail(err, "fetch students")
	}

	// 2. Every entry with its student resolved
	entries, err := c.marks.ListAllMarks(ctx)
	if err != nil {
		return nil, c.fail(err, "fetch marks")
	}

	// 3. Join and pivot
	rows := BuildRows(students, entries)

	// 4. Serialize
	data, err := Write(rows)
	if err != nil {
		return nil, c.fail(err, "write workbook")
	}

	c.logger.Info().Int("students", len(students)).Int("rows", len(rows)).Msg("marks report compiled")
	return &Report{
		FileName:    FileName,
		ContentType: ContentType,
		Data:        data,
		Rows:        len(rows),
	}, nil
}

func (c *Compiler) fail(err error, stage string) error {
	c.logger.Error().Err(err).Str("stage", stage).Msg(msgFailed)
	return status.Error(codes.Internal, msgFailed)
}

// BuildRows joins students with their entries. Students keep the given order;
// entries whose student no longer exists are dropped.
func BuildRows(students []shared.Student, entries []shared.MarkEntry) []Row {
	byStudent := make(map[primitive.ObjectID][]shared.MarkEntry, len(students))
	for _, e := range entries {
		if e.Student == nil {
			continue
		}
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}

	rows := make([]Row, 0, len(students)+len(entries))
	for _, st := range students {
		base := Row{
			Name:       st.FullName,
			RollNumber: st.RollNumber,
			Class:      st.Class,
			Section:    st.Section,
		}

		own := byStudent[st.ID]
		if len(own) == 0 {
			base.Empty = true
			rows = append(rows, base)
			continue
		}

		for _, e := range own {
			row := base
			row.Subject = e.Subject
			row.Marks = e.Marks
			row.TotalMarks = e.TotalMarks
			row.Percentage = shared.FormatPercent(e.Marks, e.TotalMarks)
			rows = append(rows, row)
		}
	}
	return rows
}

// Write renders rows into a single-sheet xlsx workbook
func Write(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}

	// Header
	for i, col := range Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SheetName, cell, col.Title); err != nil {
			return nil, errors.Wrapf(err, "header %s", col.Title)
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
			return nil, errors.Wrapf(err, "width %s", col.Title)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "header style")
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, bold); err != nil {
		return nil, errors.Wrap(err, "apply header style")
	}

	// Body
	for i, row := range rows {
		cells := row.Cells()
		if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", i+2), &cells); err != nil {
			return nil, errors.Wrapf(err, "row %d", i+2)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "encode workbook")
	}
	return buf.Bytes(), nil
}
