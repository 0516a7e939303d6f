// Package tasks follows analysis jobs on the backend with real-time progress reporting.
//
// # Polling
//
// A [Poller] fetches one analysis on every tick of its [Ticker] (default every 2s):
//
//   - Every snapshot goes to [Callbacks].OnUpdate.
//   - A terminal snapshot (completed or failed) stops the poller, then fires OnComplete once.
//   - A fetch error fires OnError once, then stops the poller. There are no retries.
//
// [Poller.Stop] is idempotent and cancels the context passed to the in-flight fetch, so a
// response that lands after Stop never reaches a callback.
//
// # Core Operations
//
// [AnalysisEngine] drives the pollers:
//
//  1. [AnalysisEngine.CreateWithProgress] : submit a URL and follow the new job to completion
//  2. [AnalysisEngine.Watch] : follow an existing job to completion
//  3. [AnalysisEngine.BulkExport] : fetch and write many reports with a rate-limited worker pool
//
// [Tracker] keeps one poller per active analysis in a dashboard listing.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Snapshot Caching
//
// The optional [SnapshotCacher] interface persists every observed snapshot
// (repositories.CacheAdapter backed by sqlite). Cache failures never interrupt polling.
package tasks
