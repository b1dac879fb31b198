package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"markbook/backend/internal/gateway/util"
	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
	"markbook/backend/internal/student"
)

// StudentHandler serves the Student Registry
type StudentHandler struct {
	Students *student.StudentService
}

// StudentUpdatedResponse is returned by a successful update
type StudentUpdatedResponse struct {
	Message string          `json:"message"`
	Student *shared.Student `json:"student"`
}

// ListStudents handles GET /students (newest first)
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Students.ListStudents(r.Context(), storage.NewestFirst)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, students)
}

// GetStudent handles GET /students/{id}
func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.Students.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, st)
}

// CreateStudent handles POST /students
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var in shared.StudentInput
	if err := util.DecodeJSON(w, r, &in); err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	st, err := h.Students.CreateStudent(r.Context(), in)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, st)
}

// UpdateStudent handles PUT /students/{id}
func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var in shared.StudentInput
	if err := util.DecodeJSON(w, r, &in); err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	st, err := h.Students.UpdateStudent(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, StudentUpdatedResponse{
		Message: "Student updated successfully",
		Student: st,
	})
}

// DeleteStudent handles DELETE /students/{id}
func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.Students.DeleteStudent(r.Context(), chi.URLParam(r, "id")); err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, util.MessageResponse{Message: "Student deleted successfully"})
}
