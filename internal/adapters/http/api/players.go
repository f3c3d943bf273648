package api

import (
	"net/http"

	"github.com/okian/pitchside/internal/domain/model"
)

// handlePlayerAssessments handles GET /players/{id}/assessments.
func (s *Server) handlePlayerAssessments(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	list, err := s.svc.ListAssessmentsForPlayer(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessments(list))
}

// handleProgress handles GET /players/{id}/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	p, err := s.svc.PlayerProgress(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgress(p))
}

// handleAssessorAssessments handles GET /assessors/{id}/assessments.
func (s *Server) handleAssessorAssessments(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	list, err := s.svc.ListAssessmentsForAssessor(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessments(list))
}
