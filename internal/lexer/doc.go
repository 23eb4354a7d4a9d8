// Package lexer tokenizes template source into literal runs and tag
// tokens in a single O(n) scan. It recognizes the {{ }}, {{{ }}},
// {{# }}, {{/ }}, {{> }}, {{! }} and {{{{raw}}}} delimiter families
// plus the ~ whitespace-control markers on tag edges.
package lexer
