package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/stampgo/internal/compiler"
	"github.com/vk/stampgo/internal/ctxlog"
	"github.com/vk/stampgo/internal/resolver"
	"github.com/vk/stampgo/internal/template"
	"github.com/vk/stampgo/runtime"
	"github.com/vk/stampgo/runtime/view"
)

// unitResult is the outcome of compiling (and optionally rendering) one
// template file.
type unitResult struct {
	name string
	err  error
}

// Run executes the application's primary logic: discover template files,
// compile each on a worker pool, and render the results when a data file
// was supplied. Failures are isolated per unit; Run reports them all and
// returns a single aggregate error.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Starting run.", "path", a.config.TemplatesPath, "backend", a.config.Backend)

	files, err := a.findTemplateFiles()
	if err != nil {
		return fmt.Errorf("failed to discover templates: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s templates found under %s", a.config.Ext, a.config.TemplatesPath)
	}
	a.logger.Debug("Template discovery complete.", "count", len(files))

	var vars runtime.Vars
	if a.config.DataPath != "" {
		vars, err = loadVars(a.config.DataPath)
		if err != nil {
			return err
		}
		a.logger.Debug("Data file loaded.", "path", a.config.DataPath, "values", len(vars))
	}

	// A configured partials directory is shared by every unit, so one
	// resolver cache serves the whole pool.
	var shared *resolver.Resolver
	if a.config.PartialsDir != "" {
		shared = resolver.New(&resolver.FSLoader{BaseDir: a.config.PartialsDir, Ext: a.config.Ext})
	}

	jobs := make(chan string)
	results := make(chan unitResult, len(files))

	var wg sync.WaitGroup
	var outMu sync.Mutex
	for i := 0; i < a.config.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- unitResult{
					name: path,
					err:  a.runUnit(ctx, path, shared, vars, &outMu),
				}
			}
		}()
	}
	for _, path := range files {
		jobs <- path
	}
	close(jobs)
	wg.Wait()
	close(results)

	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			a.logger.Error("Template unit failed.", "template", res.name, "error", res.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d template units failed", failed, len(files))
	}
	a.logger.Debug("Run finished.", "units", len(files))
	return nil
}

// runUnit compiles one template file and, when data values are present,
// renders it to the output directory or the app's output writer.
func (a *App) runUnit(ctx context.Context, path string, shared *resolver.Resolver, vars runtime.Vars, outMu *sync.Mutex) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", path, err)
	}

	tpl := template.NewFromPath(a.unitName(path), path, string(data))
	tpl.Ext = a.config.Ext
	switch a.config.Mode {
	case "text":
		tpl.Mode = template.ModeText
	case "markup":
		tpl.Mode = template.ModeMarkup
	}

	opts := compiler.Options{
		Backend:  compiler.Backend(a.config.Backend),
		Print:    compiler.Print(a.config.Print),
		Resolver: shared,
	}
	if shared == nil {
		opts.Loader = &resolver.FSLoader{BaseDir: filepath.Dir(path), Ext: a.config.Ext}
	}

	res, err := compiler.Compile(ctx, tpl, opts)
	if err != nil {
		return err
	}
	if vars == nil {
		return nil
	}

	var buf bytes.Buffer
	if res.Program != nil {
		if err := res.Program.Render(&buf, vars); err != nil {
			return err
		}
	} else {
		tree, err := res.ViewProgram.Mount(vars)
		if err != nil {
			return err
		}
		buf.WriteString(view.Serialize(tree))
	}

	if a.config.OutDir == "" {
		outMu.Lock()
		defer outMu.Unlock()
		_, err = a.outW.Write(buf.Bytes())
		return err
	}

	outPath := filepath.Join(a.config.OutDir, a.outputName(path))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output %s: %w", outPath, err)
	}
	return nil
}

// unitName is the template's diagnostic name: its path relative to the
// configured root, in slash form.
func (a *App) unitName(path string) string {
	base := a.config.TemplatesPath
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return filepath.ToSlash(filepath.Base(path))
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// outputName maps a template path to its rendered output name. The
// template extension is stripped, so "page.html.hbs" renders to
// "page.html"; names without the extension get ".out" appended.
func (a *App) outputName(path string) string {
	rel := a.unitName(path)
	if strings.HasSuffix(rel, a.config.Ext) {
		return strings.TrimSuffix(rel, a.config.Ext)
	}
	return rel + ".out"
}
