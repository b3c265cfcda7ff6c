// Package api provides session management handlers hosting server-side
// interview controllers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// sessionView is the wire representation of a hosted interview session.
type sessionView struct {
	ID              string               `json:"id"`
	ChiefComplaint  string               `json:"chief_complaint,omitempty"`
	CurrentCategory string               `json:"current_category,omitempty"`
	Context         string               `json:"context,omitempty"`
	AskedCategories []string             `json:"asked_categories,omitempty"`
	CurrentQuestion string               `json:"current_question,omitempty"`
	Type            string               `json:"type,omitempty"`
	Options         []string             `json:"options,omitempty"`
	Conditionals    []models.Conditional `json:"conditionals,omitempty"`
	Categories      []string             `json:"categories,omitempty"`
	Summary         string               `json:"summary,omitempty"`
	Busy            bool                 `json:"busy"`
}

// complaintRequest is the body of POST /sessions/{id}/complaint.
type complaintRequest struct {
	Complaint string `json:"complaint"`
}

// answerRequest is the body of POST /sessions/{id}/answer.
type answerRequest struct {
	Answer string `json:"answer"`
}

// conditionalRequest is the body of POST /sessions/{id}/conditional. Choice is
// "Yes" or "No"; Detail carries the free-text elaboration of a yes branch.
type conditionalRequest struct {
	Choice string `json:"choice"`
	Detail string `json:"detail,omitempty"`
}

// statusForError maps controller errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmptyComplaint),
		errors.Is(err, models.ErrEmptyConditionalDetail),
		errors.Is(err, models.ErrEmptyContext),
		errors.Is(err, models.ErrNoActiveSession),
		errors.Is(err, models.ErrNotConditional),
		errors.Is(err, models.ErrNoCategoryAvailable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sessionSnapshot builds the wire view of a controller's current state.
func (s *Server) sessionSnapshot(id string) sessionView {
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		return sessionView{ID: id}
	}
	view := sessionView{
		ID:         id,
		Categories: ctrl.Categories(),
		Summary:    ctrl.Summary(),
		Busy:       ctrl.Busy(),
	}
	sess, active := ctrl.Snapshot()
	if !active {
		return view
	}
	view.ChiefComplaint = sess.ChiefComplaint
	view.CurrentCategory = sess.CurrentCategory
	view.Context = sess.Context
	view.AskedCategories = sess.AskedCategories
	if sess.CurrentQuestion.IsActive() {
		view.CurrentQuestion = sess.CurrentQuestion.Text
		view.Type = sess.CurrentQuestion.WireType()
		view.Options = sess.CurrentQuestion.Options
		view.Conditionals = sess.CurrentQuestion.Conditionals
	}
	return view
}

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createSessionHandler: processing request", "method", r.Method, "path", r.URL.Path)
	id, ctrl := s.mgr.Create(r.Context())
	if err := ctrl.RegistryError(); err != nil {
		slog.Warn("Server.createSessionHandler: category registry unavailable", "error", err, "session_id", id)
	}
	slog.Info("Server.createSessionHandler: session created", "session_id", id, "sessions", s.mgr.Count())
	writeJSONResponse(w, http.StatusCreated, models.Success(s.sessionSnapshot(id)))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.getSessionHandler: processing request", "session_id", id)
	if _, ok := s.mgr.Get(id); !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionSnapshot(id)))
}

// deleteSessionHandler handles DELETE /sessions/{id}.
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.deleteSessionHandler: processing request", "session_id", id)
	if _, ok := s.mgr.Get(id); !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	s.mgr.Delete(id)
	slog.Info("Server.deleteSessionHandler: session deleted", "session_id", id, "sessions", s.mgr.Count())
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

// sessionComplaintHandler handles POST /sessions/{id}/complaint.
func (s *Server) sessionComplaintHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.sessionComplaintHandler: processing request", "session_id", id)
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req complaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sessionComplaintHandler: failed to decode JSON", "error", err, "session_id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := ctrl.SubmitChiefComplaint(r.Context(), req.Complaint); err != nil {
		slog.Warn("Server.sessionComplaintHandler: complaint rejected", "error", err, "session_id", id)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionSnapshot(id)))
}

// sessionAnswerHandler handles POST /sessions/{id}/answer.
func (s *Server) sessionAnswerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.sessionAnswerHandler: processing request", "session_id", id)
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sessionAnswerHandler: failed to decode JSON", "error", err, "session_id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := ctrl.SubmitAnswer(r.Context(), req.Answer); err != nil {
		slog.Warn("Server.sessionAnswerHandler: answer rejected", "error", err, "session_id", id)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionSnapshot(id)))
}

// sessionSkipQuestionHandler handles POST /sessions/{id}/skip_question.
func (s *Server) sessionSkipQuestionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.sessionSkipQuestionHandler: processing request", "session_id", id)
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err := ctrl.SkipQuestion(r.Context()); err != nil {
		slog.Warn("Server.sessionSkipQuestionHandler: skip rejected", "error", err, "session_id", id)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionSnapshot(id)))
}

// sessionSkipCategoryHandler handles POST /sessions/{id}/skip_category.
func (s *Server) sessionSkipCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.sessionSkipCategoryHandler: processing request", "session_id", id)
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err := ctrl.SkipCategory(r.Context()); err != nil {
		slog.Warn("Server.sessionSkipCategoryHandler: skip rejected", "error", err, "session_id", id)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionSnapshot(id)))
}

// sessionConditionalHandler handles POST /sessions/{id}/conditional. A "No"
// choice records the negative answer immediately; a "Yes" choice arms detail
// capture and records the elaborated answer when Detail is present.
func (s *Server) sessionConditionalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	slog.Debug("Server.sessionConditionalHandler: processing request", "session_id", id)
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req conditionalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sessionConditionalHandler: failed to decode JSON", "error", err, "session_id", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	var choice models.ConditionalChoice
	switch req.Choice {
	case string(models.ConditionalYes):
		choice = models.ConditionalYes
	case string(models.ConditionalNo):
		choice = models.ConditionalNo
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Choice must be Yes or No"))
		return
	}
	if err := ctrl.ChooseConditional(r.Context(), choice); err != nil {
		slog.Warn("Server.sessionConditionalHandler: choice rejected", "error", err, "session_id", id)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	if choice == models.ConditionalYes && req.Detail != "" {
		if err := ctrl.SubmitConditionalDetail(r.Context(), req.Detail); err != nil {
			slog.Warn("Server.sessionConditionalHandler: detail rejected", "error", err, "session_id", id)
			writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionSnapshot(id)))
}

// sessionSummaryHandler handles POST /sessions/{id}/summary.
func (s *Server) sessionSummaryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.sessionSummaryHandler: processing request", "session_id", id)
	ctrl, ok := s.mgr.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	summary, err := ctrl.GenerateSummary(r.Context())
	if err != nil {
		slog.Warn("Server.sessionSummaryHandler: summary generation failed", "error", err, "session_id", id)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}
	slog.Info("Server.sessionSummaryHandler: summary generated", "session_id", id)
	writeJSONResponse(w, http.StatusOK, models.Success(sessionView{ID: id, Summary: summary}))
}
