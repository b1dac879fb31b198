package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type studentBody struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	RollNumber string `json:"rollNumber"`
	Class      string `json:"class"`
	Section    string `json:"section"`
	Address    string `json:"address"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func TestStudentEndpoints(t *testing.T) {
	env := setupGatewayTestEnv(t)
	admin := env.adminToken(t)
	teacher := env.teacherToken(t)

	newStudent := map[string]string{
		"fullName":   "Asha K",
		"rollNumber": "10A-01",
		"class":      "10",
		"section":    "A",
		"address":    "12 Lake Road",
	}

	t.Run("teacher cannot create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/students", teacher, newStudent)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var body errorBody
		decode(t, rec, &body)
		assert.Equal(t, "Access denied. Insufficient permissions.", body.Message)
	})

	t.Run("anonymous cannot list", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/students", "", nil).Code)
	})

	var created studentBody
	t.Run("admin creates", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/students", admin, newStudent)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decode(t, rec, &created)
		assert.True(t, primitive.IsValidObjectID(created.ID))
		assert.Equal(t, "Asha K", created.FullName)
		assert.Equal(t, "10A-01", created.RollNumber)
		assert.NotEmpty(t, created.CreatedAt)
	})
	require.NotEmpty(t, created.ID)

	t.Run("duplicate roll number", func(t *testing.T) {
		dup := map[string]string{
			"fullName": "Other", "rollNumber": "10A-01", "class": "9", "section": "B", "address": "x",
		}
		rec := env.do(t, http.MethodPost, "/api/students", admin, dup)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body errorBody
		decode(t, rec, &body)
		assert.Equal(t, "Roll number already exists", body.Message)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/students", admin, map[string]string{"fullName": "Only Name"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body errorBody
		decode(t, rec, &body)
		assert.Len(t, body.Errors, 4)
	})

	t.Run("teacher lists and reads", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/students", teacher, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list []studentBody
		decode(t, rec, &list)
		require.Len(t, list, 1)
		assert.Equal(t, created.ID, list[0].ID)

		rec = env.do(t, http.MethodGet, "/api/students/"+created.ID, teacher, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("get unknown or malformed id", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/students/"+primitive.NewObjectID().Hex(), admin, nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/students/not-an-id", admin, nil).Code)
	})

	t.Run("admin updates", func(t *testing.T) {
		upd := map[string]string{
			"fullName": "Asha Kumar", "rollNumber": "10A-01", "class": "10", "section": "B", "address": "7 Hill St",
		}
		rec := env.do(t, http.MethodPut, "/api/students/"+created.ID, admin, upd)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Message string      `json:"message"`
			Student studentBody `json:"student"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, "Student updated successfully", resp.Message)
		assert.Equal(t, "Asha Kumar", resp.Student.FullName)
		assert.Equal(t, "B", resp.Student.Section)

		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, "/api/students/"+created.ID, teacher, upd).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/students/"+primitive.NewObjectID().Hex(), admin, upd).Code)
	})

	t.Run("update to a taken roll number", func(t *testing.T) {
		env.createStudent(t, admin, "Ravi M", "10A-02", "10", "A")

		upd := map[string]string{
			"fullName": "Asha Kumar", "rollNumber": "10A-02", "class": "10", "section": "B", "address": "7 Hill St",
		}
		rec := env.do(t, http.MethodPut, "/api/students/"+created.ID, admin, upd)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin deletes", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/students/"+created.ID, teacher, nil).Code)

		rec := env.do(t, http.MethodDelete, "/api/students/"+created.ID, admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body errorBody
		decode(t, rec, &body)
		assert.Equal(t, "Student deleted successfully", body.Message)

		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/students/"+created.ID, admin, nil).Code)
	})
}
