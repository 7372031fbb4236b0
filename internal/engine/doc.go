// Package engine defines the capability every generation backend offers and
// the Runner that turns checkpoints into verified, loaded models.
//
// A Backend knows how to read a checkpoint into a weight map and how to
// generate audio from a loaded model. Backends are registered by name in a
// Registry and selected when a model is imported; the name is stored on the
// model node so later loads reach the same backend.
//
// Identity is checked on every load: the Runner recomputes the uid from the
// weights it just read and refuses the model with a *uid.MismatchError when
// it differs from the stored one. A refused model stays unusable until it is
// loaded again.
package engine
