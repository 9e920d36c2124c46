// Package store provides durable archival of solve runs: finalized models
// and minimized fact sets, keyed by run token. Uses SQLite with WAL mode for
// concurrent read access.
//
// The store is an archive, not evaluation state. A solve never reads from or
// writes to it; callers persist a Model after the solve returns.
package store
