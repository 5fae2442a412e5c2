// Package metadata persists the client's small key/value state (tokens,
// session key, auth snapshot) between runs.
//
// Two implementations share the Repository contract:
//
//   - SQLiteRepository: the "metadata" table created by the embedded
//     migrations, used by the CLI.
//   - MemoryRepository: process-local map, used for ":memory:" state and tests.
//
// A missing key is not an error: Get returns (nil, nil). Delete of several
// keys is atomic on SQLite; callers must not rely on that for correctness.
package metadata
