// Package compiler orchestrates the template compilation pipeline:
// lex, parse, resolve partials, lower to HIR, generate code. Stages are
// strictly linear; any failure aborts the remaining stages for that
// template and surfaces the stage's typed error unchanged.
package compiler
