package api

import (
	"net/http"

	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/internal/domain/model"
)

// handleCreate handles POST /assessments.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	const op = "api.create_assessment"
	var req createRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	a, err := s.svc.CreateAssessment(r.Context(), actor, req.input())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Location", "/assessments/"+a.ID)
	writeJSON(w, http.StatusCreated, toAssessment(a))
}

// handleGet handles GET /assessments/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	a, err := s.svc.GetAssessment(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessment(a))
}

// handleUpdate handles PATCH /assessments/{id}.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	const op = "api.update_assessment"
	var req updateRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	a, err := s.svc.UpdateAssessment(r.Context(), actor, r.PathValue("id"), req.input())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessment(a))
}

// handleFinalize handles POST /assessments/{id}/finalize.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	a, err := s.svc.FinalizeAssessment(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessment(a))
}

// handleDelete handles DELETE /assessments/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	if err := s.svc.DeleteAssessment(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRange handles GET /assessments?from=&to=.
func (s *Server) handleListRange(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	const op = "api.list_assessments"
	q := r.URL.Query()
	from, err := queryDate(q, op, "from")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	to, err := queryDate(q, op, "to")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	list, err := s.svc.ListAssessmentsInDateRange(r.Context(), actor, from, to)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessments(list))
}

// handleSummary handles GET /assessments/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	const op = "api.assessment_summary"
	q := r.URL.Query()
	f := analytics.Filters{
		PlayerID: q.Get("player_id"),
		GroupID:  q.Get("group_id"),
		Period:   model.Period(q.Get("period")),
	}
	var err error
	if f.DateFrom, err = queryDate(q, op, "date_from"); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if f.DateTo, err = queryDate(q, op, "date_to"); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	summary, err := s.svc.AssessmentSummary(r.Context(), actor, f)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(summary))
}

// handleStats handles GET /assessments/{id}/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	stats, err := s.svc.AssessmentStatistics(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStats(stats))
}
