/*
Package indexer walks the mounted filespace and reconciles it into the
catalog.

One traversal runs at a time. The active slot is guarded twice: an
in-process flag rejects a second Start immediately, and the catalog's
single-active-session constraint rejects a concurrent traversal started by
another engine instance against the same database.

# Traversal

The walker is depth-first over the real filesystem. Hidden entries
(leading dot) are skipped and never descended into. Observations
accumulate into fixed-size batches; each full batch is filtered through
BatchNeedsIndexing so unchanged paths cost no writes, then upserted in one
transaction. Session progress is persisted per batch and an index-progress
event is published every 100 entries.

Stop is cooperative. The walker consults the flag between directory
enumerations and between batches, flushes what it holds, and marks the
session stopped, so cancellation loses nothing that was already observed.

Failure policy: a stat or readdir error on an individual entry is logged
and skipped. A catalog error, or an unreadable root, fails the session and
publishes an index-error event.

# Usage

	ix := indexer.New(store, broker, 500)
	sessionID, err := ix.Start(ctx, "/mnt/space")
	...
	err = ix.Stop()
	sess, err := ix.Status(ctx)
*/
package indexer
