package template

import (
	"path/filepath"
	"strings"
)

// Mode selects the escaping policy applied to expression output.
type Mode int

const (
	// ModeText renders expression values verbatim.
	ModeText Mode = iota
	// ModeMarkup escapes expression values for embedding in markup.
	ModeMarkup
)

func (m Mode) String() string {
	if m == ModeMarkup {
		return "markup"
	}
	return "text"
}

// markupExtensions are the file extensions that imply ModeMarkup when no
// explicit mode is configured.
var markupExtensions = map[string]struct{}{
	".html": {},
	".htm":  {},
	".xml":  {},
	".svg":  {},
}

// ModeForPath infers the render mode from a template path's extension.
func ModeForPath(path string) Mode {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := markupExtensions[ext]; ok {
		return ModeMarkup
	}
	return ModeText
}

// Template is one loaded template unit. It is immutable once constructed;
// the compiler never mutates source text.
type Template struct {
	// Name identifies the template in diagnostics, usually the path
	// relative to the template root.
	Name string
	// Path is the absolute location the source was loaded from. Empty for
	// templates constructed directly from a string.
	Path string
	// Source is the raw template text.
	Source string
	// Mode is the escaping policy for this unit.
	Mode Mode
	// Ext is the extension hint used when resolving extensionless partial
	// references, including the leading dot.
	Ext string
}

// New builds an in-memory template with an explicit mode.
func New(name, source string, mode Mode) *Template {
	return &Template{Name: name, Source: source, Mode: mode, Ext: ".hbs"}
}

// NewFromPath builds a template for source loaded from path, inferring the
// mode from the extension.
func NewFromPath(name, path, source string) *Template {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".hbs"
	}
	return &Template{
		Name:   name,
		Path:   path,
		Source: source,
		Mode:   ModeForPath(path),
		Ext:    ext,
	}
}
