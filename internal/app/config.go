package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// TemplatesPath is a template file or a directory of template files.
	TemplatesPath string
	// PartialsDir is the base directory for partial lookup. Defaults to
	// each template's own directory.
	PartialsDir string
	// Ext filters directory discovery and completes extensionless
	// partial names.
	Ext string

	Mode    string // auto, text, or markup
	Backend string // buffer or view
	Print   string // none, ast, or code

	// DataPath is an optional HCL file of top-level values. When set,
	// compiled templates are also rendered.
	DataPath string
	// OutDir receives rendered output files. Empty writes to stdout.
	OutDir string

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates the configuration and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TemplatesPath == "" {
		return nil, errors.New("TemplatesPath is a required configuration field and cannot be empty")
	}
	if cfg.Ext == "" {
		cfg.Ext = ".hbs"
	}
	if cfg.Mode == "" {
		cfg.Mode = "auto"
	}
	if cfg.Backend == "" {
		cfg.Backend = "buffer"
	}
	if cfg.Print == "" {
		cfg.Print = "none"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	switch cfg.Mode {
	case "auto", "text", "markup":
	default:
		return nil, fmt.Errorf("invalid mode %q: must be 'auto', 'text', or 'markup'", cfg.Mode)
	}
	switch cfg.Backend {
	case "buffer", "view":
	default:
		return nil, fmt.Errorf("invalid backend %q: must be 'buffer' or 'view'", cfg.Backend)
	}
	switch cfg.Print {
	case "none", "ast", "code":
	default:
		return nil, fmt.Errorf("invalid print level %q: must be 'none', 'ast', or 'code'", cfg.Print)
	}

	return &cfg, nil
}
