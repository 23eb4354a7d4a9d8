package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/stampgo/internal/ctxlog"
	"github.com/vk/stampgo/internal/lexer"
	"github.com/vk/stampgo/internal/parser"
	"github.com/vk/stampgo/internal/span"
	"github.com/vk/stampgo/internal/template"
)

// ErrorKind classifies resolution failures.
type ErrorKind int

const (
	// ErrNotFound is a partial reference whose source cannot be loaded.
	ErrNotFound ErrorKind = iota
	// ErrCycle is a partial reference chain that revisits a template
	// already being resolved.
	ErrCycle
)

// Error is a partial-resolution failure. For ErrCycle, Chain holds the
// full reference chain ending at the repeated name.
type Error struct {
	Kind     ErrorKind
	Template string
	Span     span.Span
	Name     string
	Chain    []string
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Template, e.Span.Start, e.Detail)
}

// Loader locates and reads the source of a referenced partial. Lookup is
// the only part of resolution that performs I/O.
type Loader interface {
	Load(ctx context.Context, name string) (*template.Template, error)
}

// FSLoader resolves partial names against a base directory. Extensionless
// names get the configured extension hint appended.
type FSLoader struct {
	BaseDir string
	Ext     string
}

// Load reads the partial's source from disk.
func (l *FSLoader) Load(ctx context.Context, name string) (*template.Template, error) {
	rel := name
	if filepath.Ext(rel) == "" {
		ext := l.Ext
		if ext == "" {
			ext = ".hbs"
		}
		rel += ext
	}
	path := filepath.Join(l.BaseDir, filepath.FromSlash(rel))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading partial %q: %w", name, err)
	}
	return template.NewFromPath(name, path, string(data)), nil
}

// MapLoader serves partial sources from memory, keyed by name. Tests and
// embedded hosts use it in place of the filesystem.
type MapLoader map[string]string

func (l MapLoader) Load(_ context.Context, name string) (*template.Template, error) {
	src, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("no such partial %q", name)
	}
	return template.New(name, src, template.ModeText), nil
}

// Entry is one resolved partial: its parsed AST and the path it loaded
// from.
type Entry struct {
	AST  *parser.Root
	Path string
}

// Table maps partial names to their resolved ASTs. Repeated references to
// the same partial share one entry, so the lowering stage sees shared
// subtrees rather than copies.
type Table map[string]*Entry

// Resolver loads and parses partials on demand. The cache is guarded so
// one resolver can serve concurrent root-template compilations; each
// Resolve call keeps its own in-flight stack for cycle detection.
type Resolver struct {
	loader Loader

	mu    sync.Mutex
	cache map[string]*Entry
}

// New creates a resolver over the given loader.
func New(loader Loader) *Resolver {
	return &Resolver{loader: loader, cache: make(map[string]*Entry)}
}

// Resolve walks the root AST depth-first and resolves every partial
// reference it can reach, returning the completed table. A chain that
// revisits an in-flight name is a cycle error naming the whole chain.
func (r *Resolver) Resolve(ctx context.Context, root *parser.Root) (Table, error) {
	w := &walker{
		resolver: r,
		table:    make(Table),
		stack:    []string{root.Template.Name},
	}
	if err := w.walkNodes(ctx, root.Template.Name, root.Nodes); err != nil {
		return nil, err
	}
	return w.table, nil
}

type walker struct {
	resolver *Resolver
	table    Table
	stack    []string
}

func (w *walker) walkNodes(ctx context.Context, tplName string, nodes []parser.Node) error {
	for _, n := range nodes {
		switch node := n.(type) {
		case *parser.Block:
			if err := w.walkNodes(ctx, tplName, node.Body); err != nil {
				return err
			}
			if err := w.walkNodes(ctx, tplName, node.Else); err != nil {
				return err
			}
		case *parser.Partial:
			if err := w.resolvePartial(ctx, tplName, node); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) resolvePartial(ctx context.Context, tplName string, ref *parser.Partial) error {
	logger := ctxlog.FromContext(ctx)

	for _, name := range w.stack {
		if name == ref.Name {
			chain := append(append([]string{}, w.stack...), ref.Name)
			return &Error{
				Kind:     ErrCycle,
				Template: tplName,
				Span:     ref.Span(),
				Name:     ref.Name,
				Chain:    chain,
				Detail:   "partial reference cycle: " + strings.Join(chain, " -> "),
			}
		}
	}

	if _, done := w.table[ref.Name]; done {
		return nil
	}

	entry, cached, err := w.resolver.load(ctx, tplName, ref)
	if err != nil {
		return err
	}
	logger.Debug("Resolved partial.", "name", ref.Name, "path", entry.Path, "cached", cached)
	w.table[ref.Name] = entry

	w.stack = append(w.stack, ref.Name)
	err = w.walkNodes(ctx, ref.Name, entry.AST.Nodes)
	w.stack = w.stack[:len(w.stack)-1]
	return err
}

// load fetches a partial through the cache, parsing it on first use.
func (r *Resolver) load(ctx context.Context, tplName string, ref *parser.Partial) (*Entry, bool, error) {
	r.mu.Lock()
	if entry, ok := r.cache[ref.Name]; ok {
		r.mu.Unlock()
		return entry, true, nil
	}
	r.mu.Unlock()

	tpl, err := r.loader.Load(ctx, ref.Name)
	if err != nil {
		return nil, false, &Error{
			Kind:     ErrNotFound,
			Template: tplName,
			Span:     ref.Span(),
			Name:     ref.Name,
			Detail:   fmt.Sprintf("cannot load partial %q: %v", ref.Name, err),
		}
	}

	tokens, err := lexer.Scan(tpl)
	if err != nil {
		return nil, false, err
	}
	ast, err := parser.Parse(tpl, tokens)
	if err != nil {
		return nil, false, err
	}

	entry := &Entry{AST: ast, Path: tpl.Path}
	r.mu.Lock()
	r.cache[ref.Name] = entry
	r.mu.Unlock()
	return entry, false, nil
}
