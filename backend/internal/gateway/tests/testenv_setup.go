package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"markbook/backend/internal/auth"
	"markbook/backend/internal/gateway"
	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage/memstore"
)

// TestEnv holds all the running components for the test
type TestEnv struct {
	Router   http.Handler
	Services *gateway.Services
	Config   *shared.ServiceConfig
}

func testConfig() *shared.ServiceConfig {
	return &shared.ServiceConfig{
		ServiceName: "markbook-test",
		HTTPPort:    "0",
		Environment: "test",
		LogLevel:    "disabled",
		Storage:     shared.StorageConfig{Driver: shared.StorageMemory},
		Security: shared.SecurityConfig{
			JWTSecret:          "gateway-test-secret",
			JWTIssuer:          "markbook",
			JWTExpirationHours: 24,
			BCryptCost:         4,
			CookieName:         "token",
		},
		CORS: shared.CORSConfig{
			AllowedOrigins:   []string{"http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		},
		Seed: shared.SeedConfig{
			AdminUsername:   "admin",
			AdminPassword:   "admin123",
			TeacherUsername: "teacher",
			TeacherPassword: "teacher123",
		},
	}
}

// setupGatewayTestEnv spins up the entire stack in-memory
func setupGatewayTestEnv(t *testing.T, tweak ...func(*shared.ServiceConfig)) *TestEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range tweak {
		fn(cfg)
	}

	logger := zerolog.Nop()
	services := gateway.NewServices(memstore.New(), auth.NewMemoryRevoker(), cfg, logger)
	require.NoError(t, services.Bootstrap(context.Background()))

	return &TestEnv{
		Router:   gateway.SetupRoutes(services, cfg, logger),
		Services: services,
		Config:   cfg,
	}
}

// do sends a request through the router. A non-empty token is sent as a bearer credential.
func (e *TestEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// login returns a bearer token for the account
func (e *TestEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *TestEnv) adminToken(t *testing.T) string {
	return e.login(t, "admin", "admin123")
}

func (e *TestEnv) teacherToken(t *testing.T) string {
	return e.login(t, "teacher", "teacher123")
}

// createStudent registers a student as admin and returns its id
func (e *TestEnv) createStudent(t *testing.T, token, name, roll, class, section string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/students", token, map[string]string{
		"fullName":   name,
		"rollNumber": roll,
		"class":      class,
		"section":    section,
		"address":    "...",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var st map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	id, _ := st["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

// errorBody mirrors util.ErrorResponse
type errorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}
