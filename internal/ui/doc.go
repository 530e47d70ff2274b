// Package ui implements an interactive terminal interface for a sync run using bubbletea's Elm architecture.
//
// The TUI walks through one run:
//  1. [DiffView] : Resolve playlists, index the device and list what is missing
//  2. [ConfirmView] : Confirm the transfer
//  3. [TransferView] : Monitor transcode and transfer progress
//  4. [ResultView] : Display the run report and any failed items
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.SyncEngine], providing non-blocking status reporting during a run.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
