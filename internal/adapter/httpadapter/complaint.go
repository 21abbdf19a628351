package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/complaint-map-console/internal/adapter/backend"
	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// ComplaintAnalyzer fetches the AI analysis of a single complaint.
type ComplaintAnalyzer interface {
	AnalyzeComplaint(ctx context.Context, id string) (backend.ComplaintReport, error)
}

type complaintReportResponse struct {
	Complaint backend.ComplaintSummary `json:"complaint"`
	Markdown  string                   `json:"markdown"`
	HTML      string                   `json:"html"`
}

func (s *Server) handleComplaintReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := strconv.Atoi(id); err != nil {
		writeError(w, http.StatusBadRequest, "complaint id must be numeric")
		return
	}

	rep, err := s.complaints.AnalyzeComplaint(r.Context(), id)
	if err != nil {
		s.logger.Warn("complaint analysis failed", "id", id, "error", err)
		var httpErr *domain.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "complaint not found")
			return
		}
		writeError(w, http.StatusBadGateway, domain.ErrorMessage(err))
		return
	}

	md, html, err := s.renderer.Narrative(rep.AnalysisReport)
	if err != nil {
		s.logger.Warn("complaint report render failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "malformed analysis response")
		return
	}
	writeJSON(w, http.StatusOK, complaintReportResponse{
		Complaint: rep.Complaint,
		Markdown:  md,
		HTML:      html,
	})
}
