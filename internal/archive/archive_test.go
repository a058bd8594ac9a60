package archive

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/document"
)

func TestRoundTrip_PreservesDocumentsExceptIdentity(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	docs := []document.Record{
		{
			document.IDField: primitive.NewObjectID(),
			"email":          "a@example.com",
			"balance":        int64(1200),
			"rate":           1.5,
			"active":         true,
			"deleted_at":     nil,
			"created_at":     at,
			"address":        bson.M{"city": "Algiers", "geo": bson.A{36.7, 3.05}},
			"history":        bson.A{bson.M{"at": primitive.NewDateTimeFromTime(at), "step": int32(2)}},
		},
		{document.IDField: "second", "email": "b@example.com"},
	}

	payload := Payload{
		BackupID:   "20250601_120000",
		BackupDate: at,
		BackupType: backup.Manual,
		Collections: map[string]CollectionSnapshot{
			"users":  NewSnapshot(document.SerializeAll(docs)),
			"proofs": NewSnapshot(nil),
		},
	}

	data, err := Encode(&payload)
	require.NoError(t, err)

	got, err := DecodePayload(data)
	require.NoError(t, err)

	assert.Equal(t, payload.BackupID, got.BackupID)
	assert.True(t, payload.BackupDate.Equal(got.BackupDate))
	assert.Equal(t, backup.Manual, got.BackupType)
	assert.Equal(t, 2, got.TotalDocuments())

	proofs := got.Collections["proofs"]
	assert.Equal(t, 0, proofs.Count)
	assert.Empty(t, proofs.Documents)

	users := got.Collections["users"]
	require.Len(t, users.Documents, 2)
	assert.Equal(t, map[string]any{
		"email":      "a@example.com",
		"balance":    int64(1200),
		"rate":       1.5,
		"active":     true,
		"deleted_at": nil,
		"created_at": "2025-06-01T12:00:00Z",
		"address":    map[string]any{"city": "Algiers", "geo": []any{36.7, 3.05}},
		"history":    []any{map[string]any{"at": "2025-06-01T12:00:00Z", "step": int64(2)}},
	}, users.Documents[0])
	assert.Equal(t, map[string]any{"email": "b@example.com"}, users.Documents[1])
}

func TestEncode_EmptySnapshotIsAnArray(t *testing.T) {
	data, err := Encode(map[string]CollectionSnapshot{"users": NewSnapshot(nil)})
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var raw bytes.Buffer
	_, err = raw.ReadFrom(zr)
	require.NoError(t, err)

	assert.Contains(t, raw.String(), `"documents":[]`)
}

func TestCheckEncodable(t *testing.T) {
	require.NoError(t, CheckEncodable([]map[string]any{{"amount": 12.5, "tags": []any{"a"}}}))
	require.NoError(t, CheckEncodable(nil))

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := CheckEncodable([]map[string]any{{"ok": 1}, {"nested": map[string]any{"amount": bad}}})
		require.ErrorIs(t, err, ErrUnencodable)
	}
}

// JSON has a single number type: whole-valued doubles come back as int64.
func TestDecodePayload_WholeDoublesBecomeIntegers(t *testing.T) {
	data, err := Encode(&Payload{
		BackupID:   "20250510_080000",
		BackupType: backup.Manual,
		Collections: map[string]CollectionSnapshot{
			"settings": NewSnapshot([]map[string]any{{"fee": 2.0, "rate": 0.25, "limit": int64(10)}}),
		},
	})
	require.NoError(t, err)

	p, err := DecodePayload(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"fee": int64(2), "rate": 0.25, "limit": int64(10)},
		p.Collections["settings"].Documents[0])
}

func TestFailedSnapshot(t *testing.T) {
	snap := FailedSnapshot(errors.New("cursor killed"))
	assert.Equal(t, 0, snap.Count)
	assert.NotNil(t, snap.Documents)
	assert.Empty(t, snap.Documents)
	assert.Equal(t, "cursor killed", snap.Error)
}

func TestDecode_RejectsCorruptInput(t *testing.T) {
	notJSON, err := gzipBytes([]byte("{not json"))
	require.NoError(t, err)
	badCount, err := Encode(map[string]any{
		"backup_id":   "x",
		"collections": map[string]any{"users": map[string]any{"count": 2, "documents": []any{}}},
	})
	require.NoError(t, err)
	noCollections, err := Encode(map[string]any{"backup_id": "x"})
	require.NoError(t, err)

	cases := map[string][]byte{
		"not gzip":       []byte("plain text"),
		"truncated":      notJSON[:len(notJSON)/2],
		"not json":       notJSON,
		"count mismatch": badCount,
		"no collections": noCollections,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePayload(data)
			require.ErrorIs(t, err, ErrCorruptArchive)
		})
	}
}

func TestDecode_Generic(t *testing.T) {
	data, err := Encode([]string{"users", "proofs"})
	require.NoError(t, err)

	var got []string
	require.NoError(t, Decode(data, &got))
	assert.Equal(t, []string{"users", "proofs"}, got)
}

func TestName(t *testing.T) {
	name := Name(backup.Incremental, "20250601_120000")
	assert.Equal(t, "backup_incremental_20250601_120000.json.gz", name)
	assert.Equal(t, "database_backups/backup_incremental_20250601_120000.json.gz", ObjectPath(name))

	typ, id, ok := ParseName(name)
	require.True(t, ok)
	assert.Equal(t, backup.Incremental, typ)
	assert.Equal(t, "20250601_120000", id)
}

func TestParseName_Rejects(t *testing.T) {
	for _, name := range []string{
		"users.json.gz",
		"backup_weekly_20250601.json.gz",
		"backup_manual_.json.gz",
		"backup_manual_20250601.json",
	} {
		_, _, ok := ParseName(name)
		assert.False(t, ok, name)
	}
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
