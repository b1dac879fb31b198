// ============================================================================
// backend/internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ============================================================================
// Collections & Roles
// ============================================================================

const (
	UsersCollection    = "users"
	StudentsCollection = "students"
	MarksCollection    = "marks"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// ============================================================================
// User Models
// ============================================================================

// User represents a staff account (admin or teacher)
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password_hash" json:"-"` // Never expose in JSON
	Role         string             `bson:"role" json:"role"`       // admin, teacher
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ============================================================================
// Student Models
// ============================================================================

// Student is an academic record owned by the registry
type Student struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"fullName"`
	RollNumber string             `bson:"roll_number" json:"rollNumber"`
	Class      string             `bson:"class" json:"class"`
	Section    string             `bson:"section" json:"section"`
	Address    string             `bson:"address" json:"address"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updatedAt"`
}

// StudentSummary is the slice of a student embedded in mark listings
type StudentSummary struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	FullName   string             `bson:"full_name" json:"fullName"`
	RollNumber string             `bson:"roll_number" json:"rollNumber"`
	Class      string             `bson:"class" json:"class"`
	Section    string             `bson:"section" json:"section"`
}

// Summary projects the student onto its summary form
func (s *Student) Summary() *StudentSummary {
	return &StudentSummary{
		ID:         s.ID,
		FullName:   s.FullName,
		RollNumber: s.RollNumber,
		Class:      s.Class,
		Section:    s.Section,
	}
}

// StudentInput is the writable part of a student
type StudentInput struct {
	FullName   string `json:"fullName" validate:"required,notblank"`
	RollNumber string `json:"rollNumber" validate:"required,notblank"`
	Class      string `json:"class" validate:"required,notblank"`
	Section    string `json:"section" validate:"required,notblank"`
	Address    string `json:"address" validate:"required,notblank"`
}

// Normalize trims surrounding whitespace from every field
func (in *StudentInput) Normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.RollNumber = strings.TrimSpace(in.RollNumber)
	in.Class = strings.TrimSpace(in.Class)
	in.Section = strings.TrimSpace(in.Section)
	in.Address = strings.TrimSpace(in.Address)
}

// ============================================================================
// Mark Models
// ============================================================================

// MarkEntry is the single ledger row for a (student, subject) pair.
// StudentID is a weak reference: the student may have been deleted since.
type MarkEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID  primitive.ObjectID `bson:"student_id" json:"studentId"`
	Subject    string             `bson:"subject" json:"subject"`
	Marks      float64            `bson:"marks" json:"marks"`
	TotalMarks float64            `bson:"total_marks" json:"totalMarks"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updatedAt"`

	// Computed on read
	Percentage float64         `bson:"-" json:"percentage"`
	Student    *StudentSummary `bson:"student,omitempty" json:"student,omitempty"`
}

// MarkInput is the body of an upsert. Pointers distinguish a missing number from zero.
type MarkInput struct {
	StudentID  string   `json:"studentId" validate:"required,mongodb"`
	Subject    string   `json:"subject" validate:"required,notblank"`
	Marks      *float64 `json:"marks" validate:"required,gte=0"`
	TotalMarks *float64 `json:"totalMarks" validate:"required,gte=1"`
}

// Normalize trims surrounding whitespace from the key fields
func (in *MarkInput) Normalize() {
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Subject = strings.TrimSpace(in.Subject)
}

// Disposition reports whether an upsert created or updated its entry
type Disposition int

const (
	Created Disposition = iota
	Updated
)

func (d Disposition) String() string {
	if d == Updated {
		return "updated"
	}
	return "created"
}

// ============================================================================
// Percentage Helpers
// ============================================================================

// Percent returns marks over total as a percentage rounded to 2 decimals
func Percent(marks, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(marks/total*10000) / 100
}

// FormatPercent renders a percentage for reports, e.g. "85.50%"
func FormatPercent(marks, total float64) string {
	return fmt.Sprintf("%.2f%%", Percent(marks, total))
}

// WithPercentage fills the computed percentage of the entry
func (m *MarkEntry) WithPercentage() *MarkEntry {
	m.Percentage = Percent(m.Marks, m.TotalMarks)
	return m
}

// MarkSummary is the overall standing of one student across subjects
type MarkSummary struct {
	StudentID  primitive.ObjectID `json:"studentId"`
	Subjects   int                `json:"subjects"`
	Obtained   float64            `json:"obtained"`
	Possible   float64            `json:"possible"`
	Percentage float64            `json:"percentage"`
}

// Aggregate sums marks and totals over entries. The percentage is the sum of
// marks over the sum of totals, not the mean of per-subject percentages.
func Aggregate(entries []MarkEntry) MarkSummary {
	var sum MarkSummary
	for _, e := range entries {
		sum.Subjects++
		sum.Obtained += e.Marks
		sum.Possible += e.TotalMarks
	}
	sum.Percentage = Percent(sum.Obtained, sum.Possible)
	return sum
}

// ============================================================================
// Session Models
// ============================================================================

// LoginInput is the body of a login request
type LoginInput struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required,min=6"`
}

// Principal is the identity carried by a verified credential
type Principal struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
