// Package exprcheck is the expression-validation boundary of the
// compiler. Expression syntax belongs to the host expression language
// (HCL); this package confirms well-formedness via hclsyntax and maps
// diagnostics back into template source coordinates. Expressions are
// otherwise opaque to the compiler.
package exprcheck
