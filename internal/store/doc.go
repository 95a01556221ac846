// Package store persists JSON documents as rows of a single relational
// table and serves them back as streams.
//
// Every scalar of a document becomes one row keyed by its storage path
// (see package path); empty objects and arrays become placeholder rows.
// Because array indexes are encoded to sort numerically, a range scan
// ordered by path visits a subtree in document order, and the assembler
// can rebuild JSON from the cursor without materialising it.
//
// # Schema
//
//	jsondb(path PRIMARY KEY, value, kind, idx)
//	jsondb_idx ON jsondb(idx, value) WHERE idx IS NOT NULL
//
// path must compare byte-wise. SQLite's default BINARY collation does;
// PostgreSQL gets COLLATE "C" explicitly.
//
// # Transactions
//
// Every write runs in one transaction: the affected subtree is deleted and
// the new rows are inserted in size-bounded batches. Change events are
// buffered and broadcast only after commit. WithTransaction groups several
// operations into one transaction.
//
// Reads are not isolated from concurrent writers: a stream started before
// a concurrent Set may observe a mix of old and new rows.
//
// # Database Configuration
//
// Open registers the SQLite driver "sqlite3_jsondb", whose connections get
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000 for lock contention
//   - a REGEXP function backed by Go's regexp package
package store
