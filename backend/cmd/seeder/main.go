package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"markbook/backend/internal/auth"
	"markbook/backend/internal/gateway"
	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
	"markbook/backend/internal/storage/mongostore"
)

// StudentSeed is one demo student plus the marks recorded against them
type StudentSeed struct {
	FullName   string
	RollNumber string
	Class      string
	Section    string
	Address    string
	Marks      []MarkSeed
}

type MarkSeed struct {
	Subject    string
	Marks      float64
	TotalMarks float64
}

var studentSeeds = []StudentSeed{
	{"Asha K", "10A-01", "10", "A", "12 Lake Road", []MarkSeed{
		{"Math", 48, 50}, {"Science", 41, 50}, {"English", 88, 100},
	}},
	{"Ravi M", "10A-02", "10", "A", "4 Station Street", []MarkSeed{
		{"Math", 37, 50}, {"Science", 45, 50},
	}},
	{"Meera S", "10B-01", "10", "B", "88 Temple Lane", []MarkSeed{
		{"Math", 50, 50}, {"English", 72, 100}, {"History", 19, 25},
	}},
	{"Karan P", "09A-01", "09", "A", "3 Mill Road", []MarkSeed{
		{"Math", 29, 50},
	}},
	// Left without marks so the report shows the sentinel row
	{"Nisha R", "09A-02", "09", "A", "21 Garden Colony", nil},
}

func main() {
	reset := flag.Bool("reset", false, "drop the database before seeding")
	flag.Parse()

	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	boot.Info().Msg("Starting database seeder...")

	if err := shared.LoadEnv(".env"); err != nil {
		boot.Warn().Msg(".env file not found, using system environment variables")
	}

	cfg, err := shared.LoadServiceConfig("seeder")
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Storage.Driver != shared.StorageMongo {
		boot.Fatal().Str("driver", cfg.Storage.Driver).Msg("seeder only supports the mongo storage driver")
	}
	logger := shared.NewLogger(cfg)

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer shared.DisconnectMongoDB(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *reset {
		if err := db.Drop(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to drop database")
		}
		logger.Info().Str("database", cfg.MongoDB.Database).Msg("database cleared")
	}

	store := mongostore.New(client, db)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}

	services := gateway.NewServices(store, auth.NoopRevoker{}, cfg, logger)

	// --- 1. Seed Users ---
	if err := services.Bootstrap(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed default accounts")
	}
	logger.Info().
		Str("admin", cfg.Seed.AdminUsername).
		Str("teacher", cfg.Seed.TeacherUsername).
		Msg("default accounts present")

	// --- 2. Seed Students ---
	ids := seedStudents(ctx, services, logger)

	// --- 3. Seed Marks ---
	seedMarks(ctx, services, ids, logger)

	logger.Info().Msg("All data seeding completed successfully.")
}

// ============================================================================
// SEEDING FUNCTIONS
// ============================================================================

// seedStudents creates any demo student whose roll number is not yet taken and
// returns the id for every seeded roll number.
func seedStudents(ctx context.Context, services *gateway.Services, logger zerolog.Logger) map[string]string {
	existing, err := services.Students.ListStudents(ctx, storage.ByClassSectionRoll)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list students")
	}

	ids := make(map[string]string, len(existing))
	for _, st := range existing {
		ids[st.RollNumber] = st.ID.Hex()
	}

	for _, seed := range studentSeeds {
		if _, ok := ids[seed.RollNumber]; ok {
			logger.Debug().Str("roll_number", seed.RollNumber).Msg("student already present")
			continue
		}

		st, err := services.Students.CreateStudent(ctx, shared.StudentInput{
			FullName:   seed.FullName,
			RollNumber: seed.RollNumber,
			Class:      seed.Class,
			Section:    seed.Section,
			Address:    seed.Address,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("roll_number", seed.RollNumber).Msg("error seeding student")
		}
		ids[seed.RollNumber] = st.ID.Hex()
		logger.Info().Str("roll_number", seed.RollNumber).Str("name", seed.FullName).Msg("seeded student")
	}
	return ids
}

func seedMarks(ctx context.Context, services *gateway.Services, ids map[string]string, logger zerolog.Logger) {
	for _, seed := range studentSeeds {
		for _, m := range seed.Marks {
			marks, total := m.Marks, m.TotalMarks
			entry, disposition, err := services.Marks.UpsertMark(ctx, shared.MarkInput{
				StudentID:  ids[seed.RollNumber],
				Subject:    m.Subject,
				Marks:      &marks,
				TotalMarks: &total,
			})
			if err != nil {
				logger.Fatal().Err(err).
					Str("roll_number", seed.RollNumber).
					Str("subject", m.Subject).
					Msg("error seeding marks")
			}
			logger.Info().
				Str("roll_number", seed.RollNumber).
				Str("subject", entry.Subject).
				Str("percentage", shared.FormatPercent(entry.Marks, entry.TotalMarks)).
				Stringer("disposition", disposition).
				Msg("seeded marks")
		}
	}
}
