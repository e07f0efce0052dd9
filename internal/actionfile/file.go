package actionfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

const (
	fileMagic   = "HXAF"
	fileVersion = 1
)

// File is a durable store holding the complete set of action records at one path.
type File struct {
	path  string
	codec Codec
}

// New creates a store backed by the file at path. A nil codec selects [BinaryCodec].
func New(path string, codec Codec) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: action file path is required", shared.ErrInvalidConfig)
	}
	if codec == nil {
		codec = NewBinaryCodec()
	}
	return &File{path: path, codec: codec}, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load reads and decodes every record in the file.
//
// A missing file wraps [shared.ErrMissingStore]. Any decoding failure wraps [shared.ErrCorruptStore]
// and no records are returned. When the same resource appears more than once, the last record wins.
func (f *File) Load() ([]models.ActionRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingStore, f.path)
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return Unmarshal(f.codec, data)
}

// Store atomically replaces the file contents with records.
func (f *File) Store(records []models.ActionRecord) error {
	data, err := Marshal(f.codec, records)
	if err != nil {
		return err
	}
	if err := ensureDirDurable(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: ensure dir: %v", shared.ErrPersistenceWrite, err)
	}
	if err := writeFileAtomicDurable(f.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistenceWrite, err)
	}
	return nil
}

// Marshal encodes the header and every record.
func Marshal(codec Codec, records []models.ActionRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileMagic)

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], fileVersion)
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(records)))
	buf.Write(hdr[:])

	for _, rec := range records {
		payload, err := codec.Encode(rec)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", rec.Resource, err)
		}
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(payload)))
		buf.Write(n[:])
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data produced by [Marshal]. Trailing bytes after the last record are rejected.
func Unmarshal(codec Codec, data []byte) ([]models.ActionRecord, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return nil, fmt.Errorf("%w: missing header", shared.ErrCorruptStore)
	}

	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated header", shared.ErrCorruptStore)
	}
	if v := binary.BigEndian.Uint32(hdr[:4]); v != fileVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", shared.ErrCorruptStore, v)
	}
	count := binary.BigEndian.Uint32(hdr[4:])

	index := make(map[models.ResourceID]int)
	var records []models.ActionRecord
	for i := uint32(0); i < count; i++ {
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, fmt.Errorf("%w: truncated record %d", shared.ErrCorruptStore, i)
		}
		size := binary.BigEndian.Uint32(n[:])
		if uint64(size) > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: record %d overruns file", shared.ErrCorruptStore, i)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: truncated record %d", shared.ErrCorruptStore, i)
		}

		rec, err := codec.Decode(payload)
		if err != nil {
			if !errors.Is(err, shared.ErrCorruptStore) {
				err = fmt.Errorf("%w: %v", shared.ErrCorruptStore, err)
			}
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		if at, ok := index[rec.Resource]; ok {
			records[at] = rec
			continue
		}
		index[rec.Resource] = len(records)
		records = append(records, rec)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", shared.ErrCorruptStore, r.Len())
	}
	return records, nil
}

// writeFileAtomicDurable writes data to a temporary sibling, syncs it, renames it over path and syncs the directory.
func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return syncDir(dir)
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
