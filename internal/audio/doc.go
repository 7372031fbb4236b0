// Package audio holds the sample buffer type shared by the inference logger,
// the generation backends and the projection, plus the two collaborators
// that touch audio files: a WAV codec and a spectrogram feature extractor.
//
// Buffers are planar float32 in [-1, 1]. The codec converts to and from
// integer PCM on disk and can force a fixed channel count and sample rate on
// load so every downstream consumer sees the same layout.
package audio
