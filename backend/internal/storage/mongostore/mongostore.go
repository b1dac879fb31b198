// Package mongostore implements storage.Store on MongoDB.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
)

// Store holds the three collections of the application
type Store struct {
	client      *mongo.Client
	usersCol    *mongo.Collection
	studentsCol *mongo.Collection
	marksCol    *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// New wraps an open database. client may be nil when the caller owns the connection.
func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:      client,
		usersCol:    db.Collection(shared.UsersCollection),
		studentsCol: db.Collection(shared.StudentsCollection),
		marksCol:    db.Collection(shared.MarksCollection),
	}
}

// EnsureIndexes creates the unique constraints the registry and ledger rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{s.usersCol, mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_username"),
		}},
		{s.studentsCol, mongo.IndexModel{
			Keys:    bson.D{{Key: "roll_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roll_number"),
		}},
		{s.studentsCol, mongo.IndexModel{
			Keys:    bson.D{{Key: "class", Value: 1}, {Key: "section", Value: 1}, {Key: "roll_number", Value: 1}},
			Options: options.Index().SetName("class_section_roll"),
		}},
		{s.marksCol, mongo.IndexModel{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "subject", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_student_subject"),
		}},
	}

	for _, idx := range indexes {
		if _, err := idx.col.Indexes().CreateOne(ctx, idx.model); err != nil {
			return errors.Wrapf(err, "create index %s", *idx.model.Options.Name)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// translate maps driver errors onto the storage sentinels
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(storage.ErrDuplicateKey, op)
	default:
		return errors.Wrap(err, op)
	}
}

// ============================================================================
// Users
// ============================================================================

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*shared.User, error) {
	var user shared.User
	if err := s.usersCol.FindOne(ctx, bson.M{"username": username}).Decode(&user); err != nil {
		return nil, translate(err, "find user")
	}
	return &user, nil
}

func (s *Store) InsertUser(ctx context.Context, user *shared.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.usersCol.InsertOne(ctx, user)
	return translate(err, "insert user")
}

// ============================================================================
// Students
// ============================================================================

func (s *Store) ListStudents(ctx context.Context, order storage.StudentOrder) ([]shared.Student, error) {
	sortSpec := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if order == storage.ByClassSectionRoll {
		sortSpec = bson.D{{Key: "class", Value: 1}, {Key: "section", Value: 1}, {Key: "roll_number", Value: 1}}
	}

	cursor, err := s.studentsCol.Find(ctx, bson.M{}, options.Find().SetSort(sortSpec))
	if err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	defer cursor.Close(ctx)

	students := make([]shared.Student, 0)
	if err := cursor.All(ctx, &students); err != nil {
		return nil, errors.Wrap(err, "decode students")
	}
	return students, nil
}

func (s *Store) FindStudent(ctx context.Context, id primitive.ObjectID) (*shared.Student, error) {
	var student shared.Student
	if err := s.studentsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&student); err != nil {
		return nil, translate(err, "find student")
	}
	return &student, nil
}

func (s *Store) InsertStudent(ctx context.Context, student *shared.Student) error {
	if student.ID.IsZero() {
		student.ID = primitive.NewObjectID()
	}
	_, err := s.studentsCol.InsertOne(ctx, student)
	return translate(err, "insert student")
}

func (s *Store) UpdateStudent(ctx context.Context, id primitive.ObjectID, in shared.StudentInput, now time.Time) (*shared.Student, error) {
	update := bson.M{"$set": bson.M{
		"full_name":   in.FullName,
		"roll_number": in.RollNumber,
		"class":       in.Class,
		"section":     in.Section,
		"address":     in.Address,
		"updated_at":  now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var student shared.Student
	err := s.studentsCol.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&student)
	if err != nil {
		return nil, translate(err, "update student")
	}
	return &student, nil
}

func (s *Store) DeleteStudent(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.studentsCol.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete student")
	}
	if result.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ============================================================================
// Marks
// ============================================================================

func (s *Store) ListMarks(ctx context.Context, studentID *primitive.ObjectID) ([]shared.MarkEntry, error) {
	match := bson.D{}
	if studentID != nil {
		match = bson.D{{Key: "student_id", Value: *studentID}}
	}

	// Resolve the weak student reference. Entries whose student is gone keep a nil summary.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: shared.StudentsCollection},
			{Key: "localField", Value: "student_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "student"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$student"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "student.address", Value: 0},
			{Key: "student.created_at", Value: 0},
			{Key: "student.updated_at", Value: 0},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := s.marksCol.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "list marks")
	}
	defer cursor.Close(ctx)

	entries := make([]shared.MarkEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, errors.Wrap(err, "decode marks")
	}
	return entries, nil
}

func (s *Store) InsertMark(ctx context.Context, entry *shared.MarkEntry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	doc := *entry
	doc.Student = nil
	_, err := s.marksCol.InsertOne(ctx, doc)
	return translate(err, "insert mark")
}

func (s *Store) UpdateMarkByKey(ctx context.Context, studentID primitive.ObjectID, subject string, marks, totalMarks float64, now time.Time) (*shared.MarkEntry, error) {
	filter := bson.M{"student_id": studentID, "subject": subject}
	update := bson.M{"$set": bson.M{
		"marks":       marks,
		"total_marks": totalMarks,
		"updated_at":  now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var entry shared.MarkEntry
	if err := s.marksCol.FindOneAndUpdate(ctx, filter, update, opts).Decode(&entry); err != nil {
		return nil, translate(err, "update mark")
	}
	return &entry, nil
}

func (s *Store) DeleteMark(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.marksCol.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete mark")
	}
	if result.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
