// Package featurecache persists projection feature vectors in SQLite so a
// projection update only re-extracts audio that changed since the last run.
//
// # Keys
//
// An entry is keyed by (path, extractor). The file size and modification
// time are stored alongside and compared on lookup; an entry whose file has
// changed is a miss and is replaced by the next Put. The extractor signature
// names the extraction parameters, so changing the spectrogram settings
// invalidates every entry without touching the file.
//
// # Database Configuration
//
//   - WAL mode: workers read while one writes
//   - synchronous=NORMAL
//   - 5-second busy timeout
//   - one open connection; SQLite has a single writer anyway
package featurecache
