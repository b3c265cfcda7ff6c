package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/needl-health/NeedlIntake/internal/api"
	"github.com/needl-health/NeedlIntake/internal/genai"
	"github.com/needl-health/NeedlIntake/internal/store"
	"github.com/needl-health/NeedlIntake/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for NeedlIntake state data
	DefaultStateDir = "/var/lib/needlintake"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "needlintake.db"
	// DefaultSummaryDirName is the subdirectory for archived summaries
	DefaultSummaryDirName = "summaries"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()

	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping NeedlIntake with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("NeedlIntake failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("NeedlIntake exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string
	SummaryModel  string
	APIAddr       string
	QuestionsPath string
	Part2Path     string
	SummaryDir    string
	ResetDB       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	openaiBaseURL *string
	model         *string
	summaryModel  *string
	apiAddr       *string
	questionsPath *string
	part2Path     *string
	summaryDir    *string
	resetDB       *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      util.EnvOrDefault("NEEDLINTAKE_STATE_DIR", DefaultStateDir),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:         os.Getenv("OPENAI_MODEL"),
		SummaryModel:  os.Getenv("OPENAI_SUMMARY_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		QuestionsPath: util.EnvOrDefault("QUESTIONS_FILE", api.DefaultQuestionsPath),
		Part2Path:     util.EnvOrDefault("PART2_FILE", api.DefaultPart2Path),
		SummaryDir:    os.Getenv("SUMMARY_DIR"),
		ResetDB:       util.ParseBoolEnv("RESET_DB", false),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.SummaryDir == "" {
		config.SummaryDir = filepath.Join(config.StateDir, DefaultSummaryDirName)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"NEEDLINTAKE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_BASE_URL_SET", config.OpenAIBaseURL != "",
		"OPENAI_MODEL", config.Model,
		"API_ADDR", config.APIAddr,
		"QUESTIONS_FILE", config.QuestionsPath,
		"PART2_FILE", config.Part2Path,
		"RESET_DB", config.ResetDB)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for NeedlIntake data (overrides $NEEDLINTAKE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the question bank (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiBaseURL: flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI API base URL (overrides $OPENAI_BASE_URL)"),
		model:         flag.String("model", config.Model, "model for prediction and autocomplete (overrides $OPENAI_MODEL)"),
		summaryModel:  flag.String("summary-model", config.SummaryModel, "model for summary generation (overrides $OPENAI_SUMMARY_MODEL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		questionsPath: flag.String("questions-file", config.QuestionsPath, "primary question bank JSON file (overrides $QUESTIONS_FILE)"),
		part2Path:     flag.String("part2-file", config.Part2Path, "secondary question bank JSON file (overrides $PART2_FILE)"),
		summaryDir:    flag.String("summary-dir", config.SummaryDir, "directory for archived summaries (overrides $SUMMARY_DIR)"),
		resetDB:       flag.Bool("reset-db", config.ResetDB, "wipe the question bank before seeding (overrides $RESET_DB)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"questionsPath", *flags.questionsPath,
		"part2Path", *flags.part2Path,
		"resetDB", *flags.resetDB)

	// Follow the state directory when the DSN was derived from it
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	if *flags.summaryDir != "" {
		if err := os.MkdirAll(*flags.summaryDir, 0755); err != nil {
			slog.Error("Failed to create summary directory", "error", err, "summary_dir", *flags.summaryDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	if *flags.summaryModel != "" {
		genaiOpts = append(genaiOpts, genai.WithSummaryModel(*flags.summaryModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.questionsPath != "" {
		apiOpts = append(apiOpts, api.WithQuestionsPath(*flags.questionsPath))
	}
	if *flags.part2Path != "" {
		apiOpts = append(apiOpts, api.WithPart2Path(*flags.part2Path))
	}
	if *flags.summaryDir != "" {
		apiOpts = append(apiOpts, api.WithSummaryDir(*flags.summaryDir))
	}
	if *flags.resetDB {
		apiOpts = append(apiOpts, api.WithResetDB())
	}
	return apiOpts
}
