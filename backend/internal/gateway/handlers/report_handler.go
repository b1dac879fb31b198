package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"markbook/backend/internal/gateway/util"
	"markbook/backend/internal/report"
)

// ReportHandler serves the spreadsheet export
type ReportHandler struct {
	Reports *report.Compiler
}

// DownloadExcel handles GET /download/excel. The workbook is fully built
// before the first byte is written.
func (h *ReportHandler) DownloadExcel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	rep, err := h.Reports.CompileMarksReport(ctx)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	w.Header().Set("Content-Type", rep.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", rep.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.Data)
}
