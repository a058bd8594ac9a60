package backup

import (
	"sort"
	"time"
)

// Type tells how a backup was triggered.
type Type string

const (
	Manual      Type = "manual"
	Scheduled   Type = "scheduled"
	Incremental Type = "incremental"
)

// Valid reports whether t is one of the known backup types.
func (t Type) Valid() bool {
	switch t {
	case Manual, Scheduled, Incremental:
		return true
	}
	return false
}

// Status of a persisted backup. Only completed runs are ever recorded.
type Status string

const StatusCompleted Status = "completed"

// Record is the history entry written once per backup run.
// It is never mutated after insertion.
type Record struct {
	BackupID         string    `bson:"backup_id"          json:"backup_id"`
	BackupDate       time.Time `bson:"backup_date"        json:"backup_date"`
	BackupType       Type      `bson:"backup_type"        json:"backup_type"`
	ArchiveName      string    `bson:"archive_name"       json:"archive_name"`
	StorageURL       *string   `bson:"storage_url"        json:"storage_url"`
	LocalStagingPath string    `bson:"local_staging_path" json:"local_staging_path"`
	FileSizeBytes    int64     `bson:"file_size_bytes"    json:"file_size_bytes"`
	CollectionsCount int       `bson:"collections_count"  json:"collections_count"`
	TotalDocuments   int       `bson:"total_documents"    json:"total_documents"`
	// ChangedCollections is only set for incremental backups.
	ChangedCollections []string `bson:"changed_collections,omitempty" json:"changed_collections,omitempty"`
	Status             Status   `bson:"status"                        json:"status"`
}

// Uploaded reports whether the archive reached the object store.
func (r *Record) Uploaded() bool {
	return r.StorageURL != nil
}

// SortNewestFirst orders records by backup date, newest first. Records
// sharing a date are ordered by id, which is derived from the same instant.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].BackupDate.Equal(records[j].BackupDate) {
			return records[i].BackupDate.After(records[j].BackupDate)
		}
		return records[i].BackupID > records[j].BackupID
	})
}

// RestoreStatus is the outcome of restoring a single collection.
type RestoreStatus string

const (
	RestoreSuccess RestoreStatus = "success"
	RestoreSkipped RestoreStatus = "skipped"
	RestoreError   RestoreStatus = "error"
)

// Skip reasons.
const (
	ReasonNotInBackup = "not found in backup"
	ReasonNoDocuments = "no documents"
)

// CollectionResult describes what happened to one requested collection.
type CollectionResult struct {
	Status        RestoreStatus `bson:"status"                   json:"status"`
	DeletedCount  int64         `bson:"deleted_count,omitempty"  json:"deleted_count,omitempty"`
	InsertedCount int64         `bson:"inserted_count,omitempty" json:"inserted_count,omitempty"`
	Reason        string        `bson:"reason,omitempty"         json:"reason,omitempty"`
	Error         string        `bson:"error,omitempty"          json:"error,omitempty"`
}

// RestoreRecord is the history entry written once per restore invocation.
// Every requested collection appears exactly once in Results.
type RestoreRecord struct {
	RestoreID            string                      `bson:"restore_id"            json:"restore_id"`
	RestoreDate          time.Time                   `bson:"restore_date"          json:"restore_date"`
	SourceBackupID       string                      `bson:"source_backup_id"      json:"source_backup_id"`
	SourceBackupDate     time.Time                   `bson:"source_backup_date"    json:"source_backup_date"`
	CollectionsRequested []string                    `bson:"collections_requested" json:"collections_requested"`
	Results              map[string]CollectionResult `bson:"per_collection_result" json:"per_collection_result"`
}

// Tally counts results by status.
func (r *RestoreRecord) Tally() map[RestoreStatus]int {
	out := make(map[RestoreStatus]int, 3)
	for _, res := range r.Results {
		out[res.Status]++
	}
	return out
}
