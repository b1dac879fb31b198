package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"markbook/backend/internal/gateway/util"
	"markbook/backend/internal/marks"
	"markbook/backend/internal/shared"
)

// MarksHandler serves the Mark Ledger
type MarksHandler struct {
	Marks *marks.MarksService
}

// MarksUpdatedResponse is returned when an upsert hits an existing entry
type MarksUpdatedResponse struct {
	Message string            `json:"message"`
	Marks   *shared.MarkEntry `json:"marks"`
}

// ListForStudent handles GET /marks/student/{id}
func (h *MarksHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Marks.ListMarksForStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, entries)
}

// SummaryForStudent handles GET /marks/student/{id}/summary
func (h *MarksHandler) SummaryForStudent(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Marks.SummaryForStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, summary)
}

// UpsertMark handles POST /marks. A new entry is 201 with the entry, an
// overwritten one is 200 with a message.
func (h *MarksHandler) UpsertMark(w http.ResponseWriter, r *http.Request) {
	var in shared.MarkInput
	if err := util.DecodeJSON(w, r, &in); err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	entry, disposition, err := h.Marks.UpsertMark(r.Context(), in)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	if disposition == shared.Updated {
		util.WriteJSON(w, http.StatusOK, MarksUpdatedResponse{
			Message: "Marks updated successfully",
			Marks:   entry,
		})
		return
	}
	util.WriteJSON(w, http.StatusCreated, entry)
}

// DeleteMark handles DELETE /marks/{id}
func (h *MarksHandler) DeleteMark(w http.ResponseWriter, r *http.Request) {
	if err := h.Marks.DeleteMark(r.Context(), chi.URLParam(r, "id")); err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, util.MessageResponse{Message: "Marks deleted successfully"})
}
