package compiler

import (
	"context"
	"fmt"

	"github.com/vk/stampgo/internal/codegen"
	"github.com/vk/stampgo/internal/ctxlog"
	"github.com/vk/stampgo/internal/exprcheck"
	"github.com/vk/stampgo/internal/hir"
	"github.com/vk/stampgo/internal/lexer"
	"github.com/vk/stampgo/internal/parser"
	"github.com/vk/stampgo/internal/resolver"
	"github.com/vk/stampgo/internal/template"
	"github.com/vk/stampgo/runtime"
	"github.com/vk/stampgo/runtime/view"
)

// Backend selects which code generator consumes the HIR.
type Backend string

const (
	// BackendBuffer emits buffered-text rendering logic.
	BackendBuffer Backend = "buffer"
	// BackendView emits incremental view-tree logic.
	BackendView Backend = "view"
)

// Print is the debug print level.
type Print string

const (
	PrintNone Print = "none"
	PrintAST  Print = "ast"
	PrintCode Print = "code"
)

// Options configures one compilation. Zero values select the buffer
// backend with no partial lookup and no debug printing.
type Options struct {
	Backend Backend
	Print   Print

	// Loader resolves partial references. Nil forbids partials.
	Loader resolver.Loader

	// Resolver, when set, is a shared resolver whose partial cache spans
	// multiple root-template compilations. Overrides Loader.
	Resolver *resolver.Resolver

	// Validator overrides the default HCL expression validator.
	Validator exprcheck.Validator
}

// Result is the output of one successful compilation. Exactly one of
// Program and ViewProgram is set, matching the selected backend.
type Result struct {
	Unit        *hir.Unit
	Program     *runtime.Program
	ViewProgram *view.Program
}

// Compile runs the full pipeline for one template: lex, parse, resolve
// partials, lower to HIR, and generate code for the selected backend.
// The pipeline is linear; the first failing stage aborts the compilation
// and no program is produced.
func Compile(ctx context.Context, tpl *template.Template, opts Options) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("template", tpl.Name)
	logger.Debug("Compilation started.", "mode", tpl.Mode.String(), "backend", string(backendOrDefault(opts.Backend)))

	tokens, err := lexer.Scan(tpl)
	if err != nil {
		return nil, err
	}
	logger.Debug("Lexing complete.", "tokens", len(tokens))

	ast, err := parser.Parse(tpl, tokens)
	if err != nil {
		return nil, err
	}
	if opts.Print == PrintAST {
		logger.Debug("AST dump.", "dump", parser.Dump(ast))
	}

	res := opts.Resolver
	if res == nil {
		loader := opts.Loader
		if loader == nil {
			loader = resolver.MapLoader{}
		}
		res = resolver.New(loader)
	}
	table, err := res.Resolve(ctx, ast)
	if err != nil {
		return nil, err
	}
	logger.Debug("Partial resolution complete.", "partials", len(table))

	validator := opts.Validator
	if validator == nil {
		validator = exprcheck.New()
	}
	unit, err := hir.Build(ctx, ast, table, validator)
	if err != nil {
		return nil, err
	}
	if opts.Print == PrintCode {
		logger.Debug("Program listing.", "listing", codegen.Listing(unit))
	}

	result := &Result{Unit: unit}
	switch backendOrDefault(opts.Backend) {
	case BackendBuffer:
		program, err := codegen.NewBuffer().Generate(ctx, unit)
		if err != nil {
			return nil, err
		}
		result.Program = program
	case BackendView:
		program, err := codegen.NewView().Generate(ctx, unit)
		if err != nil {
			return nil, err
		}
		result.ViewProgram = program
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}

	logger.Debug("Compilation successful.")
	return result, nil
}

func backendOrDefault(b Backend) Backend {
	if b == "" {
		return BackendBuffer
	}
	return b
}
