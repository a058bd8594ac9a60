package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSerialize_DropsTopLevelIdentity(t *testing.T) {
	doc := Record{
		IDField: primitive.NewObjectID(),
		"email": "a@example.com",
		"profile": bson.M{
			IDField: "nested-id-is-data",
			"name":  "Amina",
		},
	}

	got := Serialize(doc)

	assert.NotContains(t, got, IDField)
	assert.Equal(t, "a@example.com", got["email"])
	assert.Equal(t, map[string]any{IDField: "nested-id-is-data", "name": "Amina"}, got["profile"])
}

func TestSerialize_NormalizesInstants(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.FixedZone("CET", 3600))
	want := "2025-03-14T08:26:53.589Z"

	doc := Record{
		"created_at":  at,
		"pointer":     &at,
		"nil_pointer": (*time.Time)(nil),
		"mongo_date":  primitive.NewDateTimeFromTime(at),
		"history": bson.A{
			bson.D{{Key: "at", Value: at}, {Key: "status", Value: "approved"}},
			at,
		},
		"events": []map[string]any{{"at": at}},
	}

	got := Serialize(doc)

	assert.Equal(t, want, got["created_at"])
	assert.Equal(t, want, got["pointer"])
	assert.Nil(t, got["nil_pointer"])
	assert.Equal(t, want, got["mongo_date"])
	assert.Equal(t, []any{
		map[string]any{"at": want, "status": "approved"},
		want,
	}, got["history"])
	assert.Equal(t, []any{map[string]any{"at": want}}, got["events"])
}

func TestSerialize_TimestampUsesSeconds(t *testing.T) {
	got := Serialize(Record{"ts": primitive.Timestamp{T: 1700000000, I: 4}})
	assert.Equal(t, "2023-11-14T22:13:20Z", got["ts"])
}

func TestSerialize_ScalarsPassThrough(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := Record{
		"amount":   int64(1250),
		"rate":     0.035,
		"verified": true,
		"note":     nil,
		"user_id":  oid,
		"tags":     []any{"a", 1, false},
	}

	got := Serialize(doc)

	assert.Equal(t, int64(1250), got["amount"])
	assert.Equal(t, 0.035, got["rate"])
	assert.Equal(t, true, got["verified"])
	assert.Nil(t, got["note"])
	assert.Equal(t, oid, got["user_id"])
	assert.Equal(t, []any{"a", 1, false}, got["tags"])
}

func TestSerialize_DoesNotMutateInput(t *testing.T) {
	at := time.Now()
	nested := map[string]any{"at": at}
	doc := Record{IDField: 1, "nested": nested}

	_ = Serialize(doc)

	require.Contains(t, doc, IDField)
	assert.Equal(t, at, nested["at"])
}

func TestSerializeAll_PreservesOrder(t *testing.T) {
	docs := []Record{{"n": 1}, {"n": 2}, {"n": 3}}
	got := SerializeAll(docs)
	require.Len(t, got, 3)
	for i, doc := range got {
		assert.Equal(t, i+1, doc["n"])
	}
}
