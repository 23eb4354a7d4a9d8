// Package codegen turns lowered HIR into executable rendering programs.
// Backends are independent strategies over the same input: the buffer
// backend emits document-order writes into a sink, the view backend emits
// an identified node tree for incremental patching. Escaping and
// whitespace semantics are fixed before codegen; backends only decide
// what gets emitted.
package codegen
