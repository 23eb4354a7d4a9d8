// Package hir defines the compiler's intermediate representation and the
// lowering pass that produces it. Lowering resolves whitespace-control
// markers against unmerged literal edges, merges adjacent literal runs,
// binds every expression through the validator, assigns escape modes from
// the render mode, and tracks the lexical scopes that each blocks
// introduce. Both code-generation backends consume this form.
package hir
