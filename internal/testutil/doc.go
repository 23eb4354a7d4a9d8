// Package testutil provides shared helpers for the test suite: an
// end-to-end app harness over temporary template trees and shortcuts for
// compiling and rendering in-memory templates.
package testutil
