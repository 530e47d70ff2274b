// Package tasks orchestrates a device sync with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines three operations:
//
//  1. [SyncEngine.Index] : Read what is already on the device
//     - Selects the storage area with the most free space
//     - Locates the configured root folder and walks it depth first
//     - Flattens the tree into a [content.Index]
//
//  2. [SyncEngine.Diff] : Compute what is missing
//     - Makes every desired path relative to the library root
//     - Reports the desired paths the index does not contain, sorted
//
//  3. [SyncEngine.Run] : Full sync
//     - Transcodes missing items on a bounded worker pool
//     - Uploads finished artifacts from a single writer loop
//     - Records per-item outcomes and, optionally, run history
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface persists runs and their items (repositories.RunRepository).
// Recording errors are logged and ignored; the device stays the record of what is synced.
package tasks
