// Package template defines the immutable template unit handed to the
// compiler: source text, originating path, render mode, and the file
// extension hint used for partial lookup.
package template
