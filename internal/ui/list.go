package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

var (
	_ list.Item = streamItem{}
	_ list.Item = trackItem{}
)

// streamItem pairs a catalog stream with its current cache state to implement [list.Item].
type streamItem struct {
	stream shared.CatalogEntry
	status models.CacheEntry
}

func (i streamItem) id() models.ResourceID { return models.ResourceID(i.stream.URI) }

func (i streamItem) FilterValue() string { return i.stream.Name }
func (i streamItem) Title() string {
	if mark := styles.marker(i.status.State); mark != "" {
		return mark + " " + i.stream.Name
	}
	return i.stream.Name
}
func (i streamItem) Description() string {
	state := i.status.State
	if state == "" {
		state = "not cached"
	}
	if i.status.Files == 0 {
		return state
	}
	return fmt.Sprintf("%s • %d files • %s", state, i.status.Files, shared.FormatBytes(i.status.Bytes))
}

// trackItem wraps [models.TrackOption] to implement [list.Item].
type trackItem struct {
	option   models.TrackOption
	selected bool
}

func (i trackItem) FilterValue() string { return i.option.Name }
func (i trackItem) Title() string {
	return styles.checkbox(i.selected) + " " + i.option.Name
}
func (i trackItem) Description() string { return i.option.Key.String() }
