// Package resolver locates, loads, and parses the partials a template
// references, building a name-keyed table of shared ASTs. Resolution is
// depth-first with an explicit in-flight stack: the reference graph must
// be acyclic, and a revisited name fails with the full chain. Loaded
// partials are cached by name behind a mutex so concurrent root-template
// compilations can share one resolver.
package resolver
