// Package api provides the HTTP surface of the intake service.
//
// It exposes the question service endpoints consumed by interview clients and
// a session API that hosts interview controllers server-side. The API wires
// together the store, genai, intake, and interview modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/needl-health/NeedlIntake/internal/genai"
	"github.com/needl-health/NeedlIntake/internal/intake"
	"github.com/needl-health/NeedlIntake/internal/interview"
	"github.com/needl-health/NeedlIntake/internal/store"
)

// Default configuration values for the API server.
const (
	DefaultAddr          = ":8080"
	DefaultQuestionsPath = "questions.json"
	DefaultPart2Path     = "part2.json"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	QuestionsPath string
	Part2Path     string
	SummaryDir    string
	ResetDB       bool
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithQuestionsPath sets the path of the primary question bank file.
func WithQuestionsPath(path string) Option {
	return func(o *Opts) {
		o.QuestionsPath = path
	}
}

// WithPart2Path sets the path of the secondary question bank file.
func WithPart2Path(path string) Option {
	return func(o *Opts) {
		o.Part2Path = path
	}
}

// WithSummaryDir sets the directory where generated summaries are archived.
func WithSummaryDir(dir string) Option {
	return func(o *Opts) {
		o.SummaryDir = dir
	}
}

// WithResetDB wipes the question bank before seeding.
func WithResetDB() Option {
	return func(o *Opts) {
		o.ResetDB = true
	}
}

// Server carries the dependencies of the HTTP handlers.
type Server struct {
	svc interview.Service
	mgr *interview.Manager
}

// NewServer creates an API server around a question service and a session
// manager.
func NewServer(svc interview.Service, mgr *interview.Manager) *Server {
	return &Server{svc: svc, mgr: mgr}
}

// Handler returns the HTTP handler exposing all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Question service endpoints.
	mux.HandleFunc("/get_categories", s.getCategoriesHandler)
	mux.HandleFunc("/autocomplete", s.autocompleteHandler)
	mux.HandleFunc("/predict_category", s.predictCategoryHandler)
	mux.HandleFunc("/ask_questions", s.askQuestionsHandler)
	mux.HandleFunc("/submit_answer", s.submitAnswerHandler)
	mux.HandleFunc("/predict_next_category", s.predictNextCategoryHandler)
	mux.HandleFunc("/generate_summary", s.generateSummaryHandler)

	// Session endpoints hosting server-side controllers.
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/complaint", s.sessionComplaintHandler)
	mux.HandleFunc("POST /sessions/{id}/answer", s.sessionAnswerHandler)
	mux.HandleFunc("POST /sessions/{id}/skip_question", s.sessionSkipQuestionHandler)
	mux.HandleFunc("POST /sessions/{id}/skip_category", s.sessionSkipCategoryHandler)
	mux.HandleFunc("POST /sessions/{id}/conditional", s.sessionConditionalHandler)
	mux.HandleFunc("POST /sessions/{id}/summary", s.sessionSummaryHandler)

	return mux
}

// buildStore creates the question bank store from the configured options,
// falling back to an in-memory store when no DSN is set.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("api.buildStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("api.buildStore: using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Debug("api.buildStore: using SQLite store", "path", cfg.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// Run assembles the service modules and serves the API. It blocks until the
// listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	cfg := Opts{
		Addr:          DefaultAddr,
		QuestionsPath: DefaultQuestionsPath,
		Part2Path:     DefaultPart2Path,
	}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	if err := store.SeedAll(st, cfg.QuestionsPath, cfg.Part2Path, cfg.ResetDB); err != nil {
		return fmt.Errorf("failed to seed question bank: %w", err)
	}

	ai, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	var engineOpts []intake.Option
	if cfg.SummaryDir != "" {
		engineOpts = append(engineOpts, intake.WithSummaryDir(cfg.SummaryDir))
	}
	engine := intake.NewEngine(st, ai, engineOpts...)
	mgr := interview.NewManager(engine)

	srv := NewServer(engine, mgr)
	slog.Info("NeedlIntake API running", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv.Handler()); err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}
