package tests

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"markbook/backend/internal/report"
)

func TestDownloadExcel(t *testing.T) {
	env := setupGatewayTestEnv(t)
	admin := env.adminToken(t)
	teacher := env.teacherToken(t)

	asha := env.createStudent(t, admin, "Asha K", "10A-01", "10", "A")
	env.createStudent(t, admin, "Ravi M", "10A-02", "10", "A")

	for _, marks := range []int{45, 48} {
		rec := env.do(t, http.MethodPost, "/api/marks", teacher, map[string]interface{}{
			"studentId": asha, "subject": "Math", "marks": marks, "totalMarks": 50,
		})
		require.Less(t, rec.Code, 300, rec.Body.String())
	}

	t.Run("anonymous is rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/download/excel", "", nil).Code)
	})

	for name, token := range map[string]string{"teacher": teacher, "admin": admin} {
		t.Run(name+" downloads", func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/download/excel", token, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "attachment; filename=student_marks.xlsx", rec.Header().Get("Content-Disposition"))

			f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
			require.NoError(t, err)
			defer f.Close()

			rows, err := f.GetRows(report.SheetName)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, []string{"Asha K", "10A-01", "10", "A", "Math", "48", "50", "96.00%"}, rows[1])
			assert.Equal(t, []string{"Ravi M", "10A-02", "10", "A", "No subjects", "No marks", "No marks"}, rows[2][:7])
		})
	}
}
