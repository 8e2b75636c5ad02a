// Package tasks runs the long-lived batch operations of the songbook with
// real-time progress reporting.
//
// # Core Operations
//
//  1. [Importer.Import] : bulk song import
//     - Rows come from CSV ([DecodeCSV]), JSON ([DecodeJSON]) or audio tags ([DecodeAudio])
//     - List cells are comma split, Beat cells go through the beat splitter
//     - Rows with the id of an existing song update it, all others create songs
//     - Failing rows are collected in [ImportResult] and skipped
//
//  2. [Exporter.BulkExport] : catalog and playlist export
//     - Worker pool with a shared rate limiter, one file per job
//     - Files go to a [Sink]: [DirSink] locally or an S3 bucket
//     - A manifest summarizing every file is written last
//
//  3. [Watcher.Drain] / [Watcher.Run] : change feed delivery
//     - Events are delivered to every [ChangeHandler] in commit order
//     - Success acknowledges the event, failure records an attempt and stops
//     - After the attempt budget the event is acknowledged as dead
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
