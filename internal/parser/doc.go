// Package parser builds the template AST from the lexer's token stream.
// Block tags are matched with a frame stack so every open has exactly one
// matching close of the same helper name; mismatches report both the open
// and close positions.
package parser
