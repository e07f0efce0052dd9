// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses the configured stream catalog:
//  1. [CatalogView] : Every catalog stream with its cache state
//  2. [TrackSelectView] : Pick the tracks of one stream to download
//  3. [ConfirmView] : Confirm removal of a cached stream
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// The model registers a tracker listener when created and re-reads cache state on every notification. [Model.Close]
// detaches it; [Run] does so when the program exits. Executor progress arrives on a channel and is shown in the footer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, space, d, x, y/n, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
