package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgCatalogLoaded MsgKind = iota
	MsgTracksFetched
	MsgDownloadStarted
	MsgRemoveSubmitted
	MsgTrackedChanged
	MsgProgressUpdate
)

type catalogLoaded struct {
	items []streamItem
	err   error
}

type tracksFetched struct {
	id      models.ResourceID
	options []models.TrackOption
	err     error
}

type actionResult struct {
	id  models.ResourceID
	ok  bool
	err error
}

// catalogLoadedMsg is the constructor for [MsgCatalogLoaded]
func catalogLoadedMsg(items []streamItem, err error) Msg {
	return Msg{kind: MsgCatalogLoaded, data: catalogLoaded{items, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(id models.ResourceID, options []models.TrackOption, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{id, options, err}}
}

// downloadStartedMsg is the constructor for [MsgDownloadStarted]
func downloadStartedMsg(id models.ResourceID, started bool, err error) Msg {
	return Msg{kind: MsgDownloadStarted, data: actionResult{id, started, err}}
}

// removeSubmittedMsg is the constructor for [MsgRemoveSubmitted]
func removeSubmittedMsg(id models.ResourceID, submitted bool) Msg {
	return Msg{kind: MsgRemoveSubmitted, data: actionResult{id: id, ok: submitted}}
}

// trackedChangedMsg is the constructor for [MsgTrackedChanged]
func trackedChangedMsg() Msg {
	return Msg{kind: MsgTrackedChanged}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}
