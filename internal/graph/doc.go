// Package graph owns the provenance graph of a stemma project.
//
// The graph is directed, keyed by globally unique node names, and holds at
// most one edge per ordered (source, target) pair. Nodes are typed elements
// (see package element); edges record how a batch was produced.
//
// # Persistence
//
// A project is a directory holding a single state file (graph.json) with the
// project name, the export target and the graph in cytoscape node-link form.
// Save copies the previous state file into backups/graph.json_{unix} before
// atomically replacing it (temp file, fsync, rename, directory fsync). The
// backup trail is append-only and never pruned. There is no write-ahead log:
// a crash between backup and rename leaves the previous state in place.
//
// # Concurrency
//
// A Store is not safe for concurrent mutation. Callers serialize mutations
// per project (see package project) and call Save only after a multi-part
// mutation has fully succeeded.
package graph
