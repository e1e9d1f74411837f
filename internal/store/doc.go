// Package store persists jobs, tasks, task parameters, materials and batches
// in a relational database and answers the filtered listing queries behind
// the workflow views.
//
// SQLite is the default backend; PostgreSQL and MySQL are selected through
// the database driver setting and share the same queries, rebound to each
// dialect's placeholder style. All access goes through a Tx obtained from
// Store.WithTx or Store.View so one manager operation reads and writes a
// consistent snapshot.
//
// Every mutable row carries a version counter. Update methods only write when
// the caller's version still matches and report services.ErrConflict
// otherwise, which gives callers optimistic locking without holding locks
// across requests.
//
// Schema changes bump schemaVersion in schema.go and must be applied to all
// three schema files.
package store
