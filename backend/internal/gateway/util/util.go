package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"markbook/backend/internal/shared"
)

var (
	ErrNoToken          = errors.New("no token provided")
	ErrMalformedAuthHdr = errors.New("invalid authorization header format")
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  []shared.FieldError `json:"errors,omitempty"`
}

// MessageResponse is the body of simple acknowledgements
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON is a helper to write JSON responses
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// HandleGRPCError translates service status errors to HTTP responses.
// Field violations attached to InvalidArgument errors are rendered as "errors".
func HandleGRPCError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch st.Code() {
	case codes.InvalidArgument:
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: st.Message(),
			Errors:  shared.FieldErrorsFromStatus(st),
		})
	case codes.AlreadyExists:
		// Uniqueness conflicts are user-correctable input errors
		WriteJSONError(w, http.StatusBadRequest, st.Message())
	case codes.Unauthenticated:
		WriteJSONError(w, http.StatusUnauthorized, st.Message())
	case codes.PermissionDenied:
		WriteJSONError(w, http.StatusForbidden, st.Message())
	case codes.NotFound:
		WriteJSONError(w, http.StatusNotFound, st.Message())
	case codes.Aborted:
		WriteJSONError(w, http.StatusConflict, st.Message())
	case codes.ResourceExhausted:
		WriteJSONError(w, http.StatusTooManyRequests, st.Message())
	case codes.Unavailable:
		WriteJSONError(w, http.StatusServiceUnavailable, "Service Unavailable")
	case codes.DeadlineExceeded, codes.Canceled:
		WriteJSONError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		WriteJSONError(w, http.StatusInternalServerError, st.Message())
	}
}

// ExtractToken reads the credential from "Authorization: Bearer <token>",
// falling back to the session cookie.
func ExtractToken(r *http.Request, cookieName string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", ErrMalformedAuthHdr
		}
		return parts[1], nil
	}

	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", ErrNoToken
}

// DecodeJSON decodes the request body into dst. Failures are returned as
// InvalidArgument status errors ready for HandleGRPCError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return status.Error(codes.InvalidArgument, "Request body is empty")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return shared.ValidationStatus("Validation failed", []shared.FieldError{{
			Field:   typeErr.Field,
			Message: typeMessage(typeErr),
		}})
	default:
		return status.Error(codes.InvalidArgument, "Invalid request payload")
	}
}

func typeMessage(e *json.UnmarshalTypeError) string {
	label := shared.FieldLabel(e.Field)

	kind := e.Type.Kind()
	if kind == reflect.Ptr {
		kind = e.Type.Elem().Kind()
	}
	switch kind {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%s must be a number", label)
	case reflect.String:
		return fmt.Sprintf("%s must be a string", label)
	}
	return fmt.Sprintf("%s has an invalid type", label)
}

// ============================================================================
// Request principal
// ============================================================================

type principalKey struct{}

// WithPrincipal stores the authenticated caller in the context
func WithPrincipal(ctx context.Context, p *shared.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller, if any
func PrincipalFrom(ctx context.Context) (*shared.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*shared.Principal)
	return p, ok && p != nil
}
