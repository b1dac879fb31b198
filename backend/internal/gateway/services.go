package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"markbook/backend/internal/auth"
	"markbook/backend/internal/marks"
	"markbook/backend/internal/report"
	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
	"markbook/backend/internal/student"
)

// Services holds the application services the HTTP handlers call.
// It is built once in main.go and injected into SetupRoutes.
type Services struct {
	Auth     *auth.AuthService
	Students *student.StudentService
	Marks    *marks.MarksService
	Reports  *report.Compiler

	store storage.Store
}

// NewServices wires every service onto one store
func NewServices(store storage.Store, revoker auth.Revoker, cfg *shared.ServiceConfig, logger zerolog.Logger) *Services {
	students := student.NewStudentService(store, logger)
	ledger := marks.NewMarksService(store, logger)

	return &Services{
		Auth:     auth.NewAuthService(store, revoker, cfg, logger),
		Students: students,
		Marks:    ledger,
		Reports:  report.NewCompiler(students, ledger, logger),
		store:    store,
	}
}

// Bootstrap runs the one-time provisioning needed before serving
func (s *Services) Bootstrap(ctx context.Context) error {
	return s.Auth.EnsureDefaultAccounts(ctx)
}

// Ping checks the backing store
func (s *Services) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
