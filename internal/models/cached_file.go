package models

import (
	"fmt"
	"strings"
	"time"
)

// CachedFile is one stored playlist or segment belonging to a cached resource.
type CachedFile struct {
	id        string
	sequence  int
	resource  ResourceID
	uri       string
	path      string
	size      int64
	createdAt time.Time
}

// NewCachedFile creates a [CachedFile] that has not been persisted yet.
func NewCachedFile(resource ResourceID, uri, path string, size int64) *CachedFile {
	return &CachedFile{
		resource:  resource,
		uri:       uri,
		path:      path,
		size:      size,
		createdAt: time.Now().UTC(),
	}
}

// RestoreCachedFile rebuilds a [CachedFile] from stored columns.
func RestoreCachedFile(id string, sequence int, resource ResourceID, uri, path string, size int64, createdAt time.Time) *CachedFile {
	return &CachedFile{
		id:        id,
		sequence:  sequence,
		resource:  resource,
		uri:       uri,
		path:      path,
		size:      size,
		createdAt: createdAt,
	}
}

func (f *CachedFile) ID() string           { return f.id }
func (f *CachedFile) SetID(id string)      { f.id = id }
func (f *CachedFile) Sequence() int        { return f.sequence }
func (f *CachedFile) SetSequence(n int)    { f.sequence = n }
func (f *CachedFile) Resource() ResourceID { return f.resource }
func (f *CachedFile) URI() string          { return f.uri }
func (f *CachedFile) Path() string         { return f.path }
func (f *CachedFile) Size() int64          { return f.size }
func (f *CachedFile) CreatedAt() time.Time { return f.createdAt }

// Validate checks required fields.
func (f *CachedFile) Validate() error {
	if strings.TrimSpace(string(f.resource)) == "" {
		return fmt.Errorf("resource is required")
	}
	if strings.TrimSpace(f.path) == "" {
		return fmt.Errorf("path is required")
	}
	if f.size < 0 {
		return fmt.Errorf("size must not be negative")
	}
	return nil
}

// ResourceStats summarizes the indexed files of one resource.
type ResourceStats struct {
	Resource ResourceID
	Files    int
	Bytes    int64
}
