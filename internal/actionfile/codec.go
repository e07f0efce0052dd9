package actionfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// Codec converts a single action record to and from its payload bytes.
type Codec interface {
	Encode(rec models.ActionRecord) ([]byte, error)
	Decode(data []byte) (models.ActionRecord, error)
}

// recordVersion is written after the kind tag of every record payload.
const recordVersion = 1

// maxKeys caps the selection length accepted while decoding.
const maxKeys = 1 << 16

// BinaryCodec encodes records as a uvarint-prefixed kind tag, a version byte,
// the resource and display name as uvarint-prefixed byte strings, then the
// selection as a key count followed by three uvarints per key.
type BinaryCodec struct{}

// NewBinaryCodec returns the default record codec.
func NewBinaryCodec() BinaryCodec { return BinaryCodec{} }

func (BinaryCodec) Encode(rec models.ActionRecord) ([]byte, error) {
	tag := rec.Kind.String()
	if tag == "" {
		return nil, fmt.Errorf("%w: unknown action kind %d", shared.ErrInvalidInput, rec.Kind)
	}

	var buf bytes.Buffer
	writeBytes(&buf, []byte(tag))
	buf.WriteByte(recordVersion)
	writeBytes(&buf, []byte(rec.Resource))
	writeBytes(&buf, rec.DisplayName)

	writeUvarint(&buf, uint64(len(rec.Selection)))
	for _, k := range rec.Selection {
		if k.Period < 0 || k.Group < 0 || k.Track < 0 {
			return nil, fmt.Errorf("%w: negative track key %v", shared.ErrInvalidTrackKey, k)
		}
		writeUvarint(&buf, uint64(k.Period))
		writeUvarint(&buf, uint64(k.Group))
		writeUvarint(&buf, uint64(k.Track))
	}
	return buf.Bytes(), nil
}

func (BinaryCodec) Decode(data []byte) (models.ActionRecord, error) {
	r := bytes.NewReader(data)

	tag, err := readBytes(r)
	if err != nil {
		return models.ActionRecord{}, corrupt("kind tag", err)
	}
	kind, ok := models.ParseActionKind(string(tag))
	if !ok {
		return models.ActionRecord{}, fmt.Errorf("%w: unknown action kind %q", shared.ErrCorruptStore, tag)
	}

	version, err := r.ReadByte()
	if err != nil {
		return models.ActionRecord{}, corrupt("record version", err)
	}
	if version != recordVersion {
		return models.ActionRecord{}, fmt.Errorf("%w: unsupported record version %d", shared.ErrCorruptStore, version)
	}

	resource, err := readBytes(r)
	if err != nil {
		return models.ActionRecord{}, corrupt("resource", err)
	}
	name, err := readBytes(r)
	if err != nil {
		return models.ActionRecord{}, corrupt("display name", err)
	}

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return models.ActionRecord{}, corrupt("key count", err)
	}
	if count > maxKeys {
		return models.ActionRecord{}, fmt.Errorf("%w: %d track keys", shared.ErrCorruptStore, count)
	}

	var selection []models.TrackKey
	for i := uint64(0); i < count; i++ {
		var v [3]uint64
		for j := range v {
			if v[j], err = binary.ReadUvarint(r); err != nil {
				return models.ActionRecord{}, corrupt("track key", err)
			}
			if v[j] > math.MaxInt32 {
				return models.ActionRecord{}, fmt.Errorf("%w: track key index %d out of range", shared.ErrCorruptStore, v[j])
			}
		}
		selection = append(selection, models.TrackKey{Period: int(v[0]), Group: int(v[1]), Track: int(v[2])})
	}

	if r.Len() != 0 {
		return models.ActionRecord{}, fmt.Errorf("%w: %d trailing bytes in record", shared.ErrCorruptStore, r.Len())
	}

	return models.ActionRecord{
		Resource:    models.ResourceID(resource),
		Kind:        kind,
		Selection:   selection,
		DisplayName: name,
	}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func corrupt(field string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: reading %s: %v", shared.ErrCorruptStore, field, err)
}
