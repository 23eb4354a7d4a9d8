// Package span provides source positions and spans for template
// diagnostics. Every stage of the compiler attaches a Span to the
// tokens, nodes, and errors it produces so failures can be reported
// as name:line:column with the offending snippet.
package span
