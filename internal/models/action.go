package models

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/hlsx/internal/shared"
)

// ResourceID identifies a cacheable stream. Equality is exact string equality.
type ResourceID string

func (id ResourceID) String() string { return string(id) }

// TrackKey identifies one selectable sub-stream (a bitrate or audio variant) within a resource.
type TrackKey struct {
	Period int
	Group  int
	Track  int
}

// String formats the key as "period.group.track".
func (k TrackKey) String() string {
	return fmt.Sprintf("%d.%d.%d", k.Period, k.Group, k.Track)
}

// ParseTrackKey parses the "period.group.track" form produced by [TrackKey.String].
func ParseTrackKey(s string) (TrackKey, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return TrackKey{}, fmt.Errorf("%w: %q (want period.group.track)", shared.ErrInvalidTrackKey, s)
	}

	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return TrackKey{}, fmt.Errorf("%w: %q", shared.ErrInvalidTrackKey, s)
		}
		v[i] = n
	}
	return TrackKey{Period: v[0], Group: v[1], Track: v[2]}, nil
}

// TrackOption is a selectable track offered by a track provider.
type TrackOption struct {
	Key  TrackKey
	Name string // Human-readable name, e.g. "1280x720 2.50 Mbps"
}

// ActionKind discriminates download and removal actions.
type ActionKind int

const (
	KindDownload ActionKind = iota
	KindRemove
)

func (k ActionKind) String() string {
	switch k {
	case KindDownload:
		return "download"
	case KindRemove:
		return "remove"
	default:
		return ""
	}
}

// ParseActionKind is the inverse of [ActionKind.String].
func ParseActionKind(s string) (ActionKind, bool) {
	switch s {
	case "download":
		return KindDownload, true
	case "remove":
		return KindRemove, true
	default:
		return 0, false
	}
}

// ActionRecord describes one tracked download or removal. Records are treated as immutable:
// constructors copy their slice arguments and accessors never hand out the backing arrays.
type ActionRecord struct {
	Resource    ResourceID
	Kind        ActionKind
	Selection   []TrackKey // Empty means all tracks
	DisplayName []byte
}

// NewDownloadAction builds a download record for the selected tracks.
func NewDownloadAction(id ResourceID, selection []TrackKey, name []byte) ActionRecord {
	return ActionRecord{
		Resource:    id,
		Kind:        KindDownload,
		Selection:   slices.Clone(selection),
		DisplayName: bytes.Clone(name),
	}
}

// NewRemoveAction builds a removal record. The display name is derived from the resource itself.
func NewRemoveAction(id ResourceID) ActionRecord {
	return ActionRecord{
		Resource:    id,
		Kind:        KindRemove,
		DisplayName: []byte(id),
	}
}

func (a ActionRecord) IsRemove() bool { return a.Kind == KindRemove }

// Name returns the display name as a string.
func (a ActionRecord) Name() string { return string(a.DisplayName) }

// Keys returns a copy of the selection.
func (a ActionRecord) Keys() []TrackKey {
	if len(a.Selection) == 0 {
		return []TrackKey{}
	}
	return slices.Clone(a.Selection)
}

// Clone returns a deep copy of the record.
func (a ActionRecord) Clone() ActionRecord {
	return ActionRecord{
		Resource:    a.Resource,
		Kind:        a.Kind,
		Selection:   slices.Clone(a.Selection),
		DisplayName: bytes.Clone(a.DisplayName),
	}
}

// Equal reports whether both records describe the same action.
// A nil and an empty selection (or name) are equal.
func (a ActionRecord) Equal(b ActionRecord) bool {
	return a.Resource == b.Resource &&
		a.Kind == b.Kind &&
		slices.Equal(a.Selection, b.Selection) &&
		bytes.Equal(a.DisplayName, b.DisplayName)
}
