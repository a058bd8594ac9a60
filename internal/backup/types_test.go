package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestType_Valid(t *testing.T) {
	for _, typ := range []Type{Manual, Scheduled, Incremental} {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, Type("weekly").Valid())
	assert.False(t, Type("").Valid())
}

func TestSortNewestFirst(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{BackupID: "a", BackupDate: t0},
		{BackupID: "c", BackupDate: t0.Add(time.Hour)},
		{BackupID: "b2", BackupDate: t0.Add(30 * time.Minute)},
		{BackupID: "b1", BackupDate: t0.Add(30 * time.Minute)},
	}

	SortNewestFirst(records)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.BackupID)
	}
	assert.Equal(t, []string{"c", "b2", "b1", "a"}, ids)
}

func TestRestoreRecord_Tally(t *testing.T) {
	rec := RestoreRecord{Results: map[string]CollectionResult{
		"users":         {Status: RestoreSuccess, InsertedCount: 3},
		"notifications": {Status: RestoreSkipped, Reason: ReasonNoDocuments},
		"ghost":         {Status: RestoreSkipped, Reason: ReasonNotInBackup},
		"proofs":        {Status: RestoreError, Error: "boom"},
	}}

	assert.Equal(t, map[RestoreStatus]int{
		RestoreSuccess: 1,
		RestoreSkipped: 2,
		RestoreError:   1,
	}, rec.Tally())
}

func TestRecord_Uploaded(t *testing.T) {
	url := "https://storage.example.com/database_backups/x.json.gz"
	assert.True(t, (&Record{StorageURL: &url}).Uploaded())
	assert.False(t, (&Record{}).Uploaded())
}
