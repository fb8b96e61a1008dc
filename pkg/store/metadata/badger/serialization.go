package badger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// Serialization Strategy
// ======================
//
// BadgerDB stores raw bytes, so node records are serialized before storing.
//
//  1. XDR Encoding (Records)
//     Node records and directory entries. XDR gives a compact, fixed field
//     order with no schema metadata in every value, and timestamps keep
//     their nanosecond precision as (seconds, nanoseconds) pairs.
//
//  2. Binary Encoding (Counters)
//     Sequence numbers are stored as 8-byte big-endian integers so they sort
//     correctly when embedded in keys.

// recordVersion is written first in every node record.
const recordVersion uint32 = 1

// nodeRecord is the on-disk representation of metadata.FileAttr.
type nodeRecord struct {
	Version    uint32
	Type       uint32
	Mode       uint32
	UID        uint32
	GID        uint32
	Nlink      uint32
	Size       uint64
	AtimeSec   int64
	AtimeNsec  uint32
	MtimeSec   int64
	MtimeNsec  uint32
	CtimeSec   int64
	CtimeNsec  uint32
	ContentID  string
	LinkTarget string
}

// direntRecord is the on-disk representation of a child entry.
type direntRecord struct {
	Name string
	Type uint32
}

func splitTime(t time.Time) (int64, uint32) {
	return t.Unix(), uint32(t.Nanosecond())
}

func joinTime(sec int64, nsec uint32) time.Time {
	return time.Unix(sec, int64(nsec))
}

// encodeNode serializes node attributes to XDR bytes.
func encodeNode(attr *metadata.FileAttr) ([]byte, error) {
	rec := nodeRecord{
		Version:    recordVersion,
		Type:       uint32(attr.Type),
		Mode:       attr.Mode,
		UID:        attr.UID,
		GID:        attr.GID,
		Nlink:      attr.Nlink,
		Size:       attr.Size,
		ContentID:  string(attr.ContentID),
		LinkTarget: attr.LinkTarget,
	}
	rec.AtimeSec, rec.AtimeNsec = splitTime(attr.Atime)
	rec.MtimeSec, rec.MtimeNsec = splitTime(attr.Mtime)
	rec.CtimeSec, rec.CtimeNsec = splitTime(attr.Ctime)

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &rec); err != nil {
		return nil, fmt.Errorf("failed to encode node record: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeNode deserializes node attributes from XDR bytes.
func decodeNode(data []byte) (*metadata.FileAttr, error) {
	var rec nodeRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode node record: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("unsupported node record version %d", rec.Version)
	}

	return &metadata.FileAttr{
		Type:       metadata.FileType(rec.Type),
		Mode:       rec.Mode,
		UID:        rec.UID,
		GID:        rec.GID,
		Nlink:      rec.Nlink,
		Size:       rec.Size,
		Atime:      joinTime(rec.AtimeSec, rec.AtimeNsec),
		Mtime:      joinTime(rec.MtimeSec, rec.MtimeNsec),
		Ctime:      joinTime(rec.CtimeSec, rec.CtimeNsec),
		ContentID:  metadata.ContentID(rec.ContentID),
		LinkTarget: rec.LinkTarget,
	}, nil
}

// encodeDirent serializes a child entry to XDR bytes.
func encodeDirent(name string, fileType metadata.FileType) ([]byte, error) {
	rec := direntRecord{Name: name, Type: uint32(fileType)}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &rec); err != nil {
		return nil, fmt.Errorf("failed to encode dirent: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeDirent deserializes a child entry from XDR bytes.
func decodeDirent(data []byte) (string, metadata.FileType, error) {
	var rec direntRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return "", 0, fmt.Errorf("failed to decode dirent: %w", err)
	}
	return rec.Name, metadata.FileType(rec.Type), nil
}

// encodeUint64 encodes a sequence number as 8 bytes big-endian.
func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// decodeUint64 decodes an 8-byte big-endian sequence number.
func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid sequence length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
