// Package element defines the closed set of artifact kinds stored as nodes of
// the provenance graph: model, audio, external, set and batch.
//
// Every kind has a validated typed field set. Keys the typed set does not know
// are preserved in Extra so attribute updates from callers never lose data.
// The attribute-map form (Attributes / Decode) is the persisted shape.
package element
