// Package importer turns filesystem content into graph nodes: model
// checkpoints (through an engine.Runner), external source directories and
// the audio files found in them, and hand-picked audio sets.
//
// An Importer is bound to one *graph.Store and mutates it in memory only.
// Persisting is the caller's job, normally through project.Session.Mutate.
//
// Node names are deterministic where the input allows it: an external
// source is external_{uuid5(path)} and a found audio file is
// found_{uuid5(path)}, so rescanning the same tree never duplicates nodes.
package importer
