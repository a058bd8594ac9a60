// Package archive implements the backup archive format: a gzip-compressed
// JSON document holding every captured collection of one backup run.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/bacli/internal/backup"
)

const (
	// ObjectPrefix is the object store folder archives are uploaded under.
	ObjectPrefix = "database_backups/"
	// ContentType is sent with every upload.
	ContentType = "application/gzip"
	// Extension is appended to every archive name.
	Extension = ".json.gz"

	namePrefix = "backup_"
)

// ErrCorruptArchive is returned when an archive cannot be decompressed or
// parsed. Archives are rejected as a whole; nothing is salvaged.
var ErrCorruptArchive = errors.New("corrupt archive")

// ErrUnencodable marks documents holding a value JSON cannot represent,
// such as NaN or an infinite double.
var ErrUnencodable = errors.New("documents not encodable as JSON")

// CollectionSnapshot is one collection's content at capture time.
type CollectionSnapshot struct {
	Count     int              `json:"count"`
	Documents []map[string]any `json:"documents"`
	Error     string           `json:"error,omitempty"`
}

// Payload is the JSON body of an archive.
type Payload struct {
	BackupID           string                        `json:"backup_id"`
	BackupDate         time.Time                     `json:"backup_date"`
	BackupType         backup.Type                   `json:"backup_type"`
	ChangedCollections []string                      `json:"changed_collections,omitempty"`
	Collections        map[string]CollectionSnapshot `json:"collections"`
}

// NewSnapshot wraps already serialized documents.
func NewSnapshot(docs []map[string]any) CollectionSnapshot {
	if docs == nil {
		docs = []map[string]any{}
	}
	return CollectionSnapshot{Count: len(docs), Documents: docs}
}

// FailedSnapshot records a collection that could not be captured.
func FailedSnapshot(err error) CollectionSnapshot {
	return CollectionSnapshot{Documents: []map[string]any{}, Error: err.Error()}
}

// CheckEncodable reports whether docs can be written into an archive. A
// collection failing it is stored as a FailedSnapshot instead of failing the
// whole archive.
func CheckEncodable(docs []map[string]any) error {
	if _, err := json.Marshal(docs); err != nil {
		return fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	return nil
}

// TotalDocuments sums the document counts of every collection.
func (p *Payload) TotalDocuments() int {
	total := 0
	for _, snap := range p.Collections {
		total += snap.Count
	}
	return total
}

// Validate checks the structural invariants of a decoded payload.
func (p *Payload) Validate() error {
	if p.Collections == nil {
		return fmt.Errorf("%w: missing collections", ErrCorruptArchive)
	}
	for name, snap := range p.Collections {
		if snap.Count != len(snap.Documents) {
			return fmt.Errorf("%w: collection %q declares %d documents but holds %d",
				ErrCorruptArchive, name, snap.Count, len(snap.Documents))
		}
	}
	return nil
}

// Encode serializes v to JSON and gzip-compresses the result.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)

	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode archive JSON: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data and parses the JSON into v.
func Decode(data []byte, v any) error {
	return decode(data, v, false)
}

// DecodePayload decodes an archive into a Payload. Integral numbers inside
// documents come back as int64 and all others as float64. JSON keeps no
// distinction between 2 and 2.0, so a whole-valued double is restored as an
// int64.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := decode(data, &p, true); err != nil {
		return nil, err
	}
	for _, snap := range p.Collections {
		for i, doc := range snap.Documents {
			snap.Documents[i] = normalizeMap(doc)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func decode(data []byte, v any, useNumber bool) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: open gzip stream: %v", ErrCorruptArchive, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrCorruptArchive, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: parse JSON: %v", ErrCorruptArchive, err)
	}
	return nil
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalize(v)
	}
	return m
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeMap(val)
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}

// Name returns the deterministic archive file name for a backup.
func Name(t backup.Type, id string) string {
	return namePrefix + string(t) + "_" + id + Extension
}

// ParseName splits an archive file name back into its type and id.
func ParseName(name string) (backup.Type, string, bool) {
	rest, ok := strings.CutPrefix(name, namePrefix)
	if !ok {
		return "", "", false
	}
	rest, ok = strings.CutSuffix(rest, Extension)
	if !ok {
		return "", "", false
	}
	typ, id, ok := strings.Cut(rest, "_")
	if !ok || id == "" || !backup.Type(typ).Valid() {
		return "", "", false
	}
	return backup.Type(typ), id, true
}

// ObjectPath returns where an archive lives in the object store.
func ObjectPath(name string) string {
	return ObjectPrefix + name
}
