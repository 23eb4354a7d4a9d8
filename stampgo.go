// Package stampgo compiles Handlebars-style templates ahead of time into
// executable rendering programs. Compilation pays the full cost of
// lexing, parsing, partial resolution, and expression validation once;
// the returned programs render with no template parsing at all.
//
// The buffer backend produces a Program that writes rendered text to any
// io.Writer. The view backend produces a view.Program whose Mount and
// Update entry points build an identified node tree and minimal patch
// sets for incremental UIs.
package stampgo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/stampgo/internal/compiler"
	"github.com/vk/stampgo/internal/resolver"
	"github.com/vk/stampgo/internal/template"
	"github.com/vk/stampgo/runtime"
	"github.com/vk/stampgo/runtime/view"
)

// Config describes one template to compile.
type Config struct {
	// Name identifies the template in diagnostics. Defaults to the path
	// base, or "inline" for source-only templates.
	Name string

	// Source is inline template text. Mutually exclusive with Path.
	Source string

	// Path loads the template from a file. The render mode is inferred
	// from the extension unless Mode overrides it.
	Path string

	// Mode is "text", "markup", or "" / "auto" to infer from Path.
	Mode string

	// PartialsDir is the base directory for partial lookup. Defaults to
	// the template's own directory when Path is set; partials are
	// otherwise unavailable.
	PartialsDir string

	// Ext is the extension appended to extensionless partial names.
	// Defaults to the template's own extension.
	Ext string
}

// Compile builds a buffered-text rendering program for the template.
func Compile(ctx context.Context, cfg Config) (*runtime.Program, error) {
	tpl, loader, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	res, err := compiler.Compile(ctx, tpl, compiler.Options{
		Backend: compiler.BackendBuffer,
		Loader:  loader,
	})
	if err != nil {
		return nil, err
	}
	return res.Program, nil
}

// CompileView builds an incremental view program for the template.
func CompileView(ctx context.Context, cfg Config) (*view.Program, error) {
	tpl, loader, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	res, err := compiler.Compile(ctx, tpl, compiler.Options{
		Backend: compiler.BackendView,
		Loader:  loader,
	})
	if err != nil {
		return nil, err
	}
	return res.ViewProgram, nil
}

func prepare(cfg Config) (*template.Template, resolver.Loader, error) {
	if cfg.Source != "" && cfg.Path != "" {
		return nil, nil, fmt.Errorf("Source and Path are mutually exclusive")
	}

	var tpl *template.Template
	switch {
	case cfg.Path != "":
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading template: %w", err)
		}
		name := cfg.Name
		if name == "" {
			name = filepath.Base(cfg.Path)
		}
		tpl = template.NewFromPath(name, cfg.Path, string(data))
	case cfg.Source != "":
		name := cfg.Name
		if name == "" {
			name = "inline"
		}
		tpl = template.New(name, cfg.Source, template.ModeText)
	default:
		return nil, nil, fmt.Errorf("either Source or Path is required")
	}

	switch cfg.Mode {
	case "", "auto":
		// Inferred from the path extension already.
	case "text":
		tpl.Mode = template.ModeText
	case "markup":
		tpl.Mode = template.ModeMarkup
	default:
		return nil, nil, fmt.Errorf("invalid mode %q, want text or markup", cfg.Mode)
	}
	if cfg.Ext != "" {
		tpl.Ext = cfg.Ext
	}

	baseDir := cfg.PartialsDir
	if baseDir == "" && cfg.Path != "" {
		baseDir = filepath.Dir(cfg.Path)
	}
	var loader resolver.Loader
	if baseDir != "" {
		loader = &resolver.FSLoader{BaseDir: baseDir, Ext: tpl.Ext}
	}
	return tpl, loader, nil
}
