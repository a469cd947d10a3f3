// Package config loads runtime configuration for the workflow engine.
// Priority: env vars > settings.json > defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds every tunable knob of a workflow run and its subsystems.
type Config struct {
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`

	// Step execution.
	MaxRetries     int  `json:"max_retries"    validate:"gte=0,lte=10"`
	ForceRetrieval bool `json:"force_rag"`
	InsightRounds  int  `json:"insight_rounds" validate:"gte=0,lte=5"`

	// Policy rule set selection.
	Ruleset string `json:"ruleset" validate:"oneof=commerce default"`

	// Memory persistence.
	MemoryBackend string `json:"memory_backend" validate:"oneof=libsql noop"`
	MemoryDBPath  string `json:"memory_db_path" validate:"required_if=MemoryBackend libsql"`

	// Trace recording.
	TraceRecorder string `json:"trace_recorder" validate:"oneof=libsql jsonl noop"`
	TraceDBPath   string `json:"trace_db_path"  validate:"required_if=TraceRecorder libsql"`
	TracePath     string `json:"trace_path"     validate:"required_if=TraceRecorder jsonl"`

	// Guardrails.
	GuardrailMaxChars  int      `json:"guardrail_max_chars" validate:"gte=0"`
	GuardrailBlocklist []string `json:"guardrail_blocklist"`
	GuardrailCEL       string   `json:"guardrail_cel"`

	// Human-in-the-loop providers.
	ApprovalMode string `json:"approval_mode" validate:"oneof=auto manual"`
	InputMode    string `json:"input_mode"    validate:"oneof=auto manual"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:      "info",
		MaxRetries:    1,
		Ruleset:       "commerce",
		MemoryBackend: "libsql",
		MemoryDBPath:  filepath.Join(shopflowDir(), "memory.db"),
		TraceRecorder: "libsql",
		TraceDBPath:   filepath.Join(shopflowDir(), "trace.db"),
		ApprovalMode:  "auto",
		InputMode:     "auto",
	}
}

func shopflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopflow"
	}
	return filepath.Join(home, ".shopflow")
}

func settingsPath() string {
	if v := os.Getenv("SHOPFLOW_SETTINGS"); v != "" {
		return v
	}
	return filepath.Join(shopflowDir(), "settings.json")
}

// Load resolves the configuration and validates it. A malformed settings
// file is ignored; invalid resolved values are an error.
func Load() (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("WORKFLOW_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("FORCE_RAG"); v != "" {
		cfg.ForceRetrieval = v == "true" || v == "1"
	}
	if v := os.Getenv("INSIGHT_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InsightRounds = n
		}
	}
	if v := os.Getenv("RULESET"); v != "" {
		cfg.Ruleset = v
	}
	if v := os.Getenv("MEMORY_BACKEND"); v != "" {
		cfg.MemoryBackend = v
	}
	if v := os.Getenv("MEMORY_DB_PATH"); v != "" {
		cfg.MemoryDBPath = v
	}
	if v := os.Getenv("TRACE_RECORDER"); v != "" {
		cfg.TraceRecorder = v
	}
	if v := os.Getenv("TRACE_DB_PATH"); v != "" {
		cfg.TraceDBPath = v
	}
	if v := os.Getenv("TRACE_PATH"); v != "" {
		cfg.TracePath = v
	}
	if v := os.Getenv("GUARDRAIL_MAX_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GuardrailMaxChars = n
		}
	}
	if v := os.Getenv("GUARDRAIL_BLOCKLIST"); v != "" {
		cfg.GuardrailBlocklist = nil
		for _, pattern := range strings.Split(v, ",") {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				cfg.GuardrailBlocklist = append(cfg.GuardrailBlocklist, pattern)
			}
		}
	}
	if v := os.Getenv("GUARDRAIL_CEL"); v != "" {
		cfg.GuardrailCEL = v
	}
	if v := os.Getenv("APPROVAL_MODE"); v != "" {
		cfg.ApprovalMode = v
	}
	if v := os.Getenv("HUMAN_INPUT_MODE"); v != "" {
		cfg.InputMode = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the resolved configuration against the struct tags.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			var invalid []string
			for _, fe := range fieldErrs {
				invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
