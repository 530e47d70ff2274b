// Package models defines domain entities and persistence interfaces for mtpsync.
//
// The package contains two categories of types:
//
// 1. Sync values: transient structures passed between pipeline stages
//   - [TreeNode] : one node of the device folder hierarchy (file or folder)
//   - [DesiredSet] : absolute source paths a run wants present on the device
//   - [TransferObject] : a transcoded artifact and the device path it stands for
//   - [RunReport] : serialisable summary of a sync run
//
// 2. Persistent entities: database-backed run history
//   - [SyncRun] : one sync run with counters and status
//   - [RunItem] : per-item outcome of a run
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
