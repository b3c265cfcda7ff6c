// Package api provides HTTP handlers for the question service endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// getCategoriesHandler handles GET /get_categories.
func (s *Server) getCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.getCategoriesHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.getCategoriesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	categories, err := s.svc.ListCategories(r.Context())
	if err != nil {
		slog.Error("Server.getCategoriesHandler: failed to list categories", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list categories"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.CategoriesResponse{Categories: categories})
}

// autocompleteHandler handles POST /autocomplete.
func (s *Server) autocompleteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.autocompleteHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.autocompleteHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.AutocompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.autocompleteHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	options, err := s.svc.Suggest(r.Context(), req)
	if err != nil {
		slog.Error("Server.autocompleteHandler: suggestion lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate suggestions"))
		return
	}
	if options == nil {
		options = []string{}
	}
	writeJSONResponse(w, http.StatusOK, models.AutocompleteResponse{Options: options})
}

// predictCategoryHandler handles POST /predict_category.
func (s *Server) predictCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.predictCategoryHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.predictCategoryHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.PredictCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.predictCategoryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	category, err := s.svc.PredictCategory(r.Context(), req.Complaint)
	if err != nil {
		slog.Error("Server.predictCategoryHandler: prediction failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to predict category"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.PredictCategoryResponse{Category: category})
}

// askQuestionsHandler handles POST /ask_questions.
func (s *Server) askQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.askQuestionsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.askQuestionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.AskQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.askQuestionsHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	q, err := s.svc.NextQuestion(r.Context(), req.Category, req.Context)
	if err != nil {
		slog.Error("Server.askQuestionsHandler: failed to fetch next question", "error", err, "category", req.Category)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch next question"))
		return
	}
	resp := models.AskQuestionsResponse{NextQuestion: q.Text, Options: q.Options, Conditionals: q.Conditionals}
	if q.IsActive() {
		resp.Type = q.WireType()
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// submitAnswerHandler handles POST /submit_answer.
func (s *Server) submitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.submitAnswerHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.submitAnswerHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitAnswerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	result, err := s.svc.SubmitAnswer(r.Context(), req)
	if err != nil {
		slog.Error("Server.submitAnswerHandler: submission failed", "error", err, "category", req.Category)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record answer"))
		return
	}
	resp := models.SubmitAnswerResponse{
		Context:         result.Context,
		Category:        result.Category,
		AskedCategories: result.AskedCategories,
		NextQuestion:    result.Question.Text,
		CurrentQuestion: result.Question.Text,
		Options:         result.Question.Options,
		Conditionals:    result.Question.Conditionals,
	}
	if result.Question.IsActive() {
		resp.Type = result.Question.WireType()
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// predictNextCategoryHandler handles POST /predict_next_category.
func (s *Server) predictNextCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.predictNextCategoryHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.predictNextCategoryHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.PredictNextCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.predictNextCategoryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	category, err := s.svc.PredictNextCategory(r.Context(), req.Context, req.AskedCategories)
	if err != nil {
		slog.Error("Server.predictNextCategoryHandler: prediction failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to predict next category"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.PredictCategoryResponse{Category: category})
}

// generateSummaryHandler handles POST /generate_summary.
func (s *Server) generateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.generateSummaryHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.generateSummaryHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.GenerateSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.generateSummaryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	summary, err := s.svc.GenerateSummary(r.Context(), req.Context)
	if err != nil {
		slog.Error("Server.generateSummaryHandler: summary generation failed", "error", err)
		writeJSONResponse(w, http.StatusOK, models.GenerateSummaryResponse{Success: false, Error: err.Error()})
		return
	}
	slog.Info("Server.generateSummaryHandler: summary generated")
	writeJSONResponse(w, http.StatusOK, models.GenerateSummaryResponse{Success: true, Summary: summary})
}
