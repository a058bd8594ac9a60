// Package document converts store-native documents into a portable,
// JSON-safe representation.
package document

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the store's internal identity key. It is regenerated by the
// store on insert and never leaves Serialize.
const IDField = "_id"

// TimeLayout is the ISO-8601 layout instants are rendered with.
const TimeLayout = time.RFC3339Nano

// Record is a dynamic, schemaless document as read from or written to the
// store. Values are strings, numbers, booleans, nil, instants, nested
// records or sequences of any of these.
type Record map[string]any

// Serialize returns the portable form of doc: the identity field is dropped,
// nested maps and sequences are walked recursively and every instant becomes
// an ISO-8601 string. Any other value passes through untouched.
func Serialize(doc Record) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == IDField {
			continue
		}
		out[k] = Value(v)
	}
	return out
}

// SerializeAll applies Serialize to every document, preserving order.
func SerializeAll(docs []Record) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Serialize(doc))
	}
	return out
}

// Value converts a single field value. Nested maps keep their own identity
// fields; only the top-level one is store managed.
func Value(v any) any {
	switch val := v.(type) {
	case time.Time:
		return FormatTime(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return FormatTime(*val)
	case primitive.DateTime:
		return FormatTime(val.Time())
	case primitive.Timestamp:
		return FormatTime(time.Unix(int64(val.T), 0))
	case Record:
		return mapValue(val)
	case bson.M:
		return mapValue(val)
	case map[string]any:
		return mapValue(val)
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = Value(e.Value)
		}
		return m
	case bson.A:
		return sliceValue(val)
	case []any:
		return sliceValue(val)
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = mapValue(m)
		}
		return out
	default:
		return v
	}
}

// FormatTime renders t as an ISO-8601 string in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func mapValue(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}

func sliceValue(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = Value(v)
	}
	return out
}
