package ingest

import "encoding/json"

// Record is a single flat data record.
type Record = map[string]any

// payloadListKeys are probed in priority order when a payload wraps its
// records in an envelope object.
var payloadListKeys = []string{"data", "results", "items"}

// Normalize flattens an arbitrary response payload into an ordered record
// sequence: a sequence is used as-is; an object is probed for a data/results/
// items list; any other object becomes a one-element sequence; non-object
// payloads yield nothing.
func Normalize(payload any) []Record {
	switch v := payload.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, key := range payloadListKeys {
			if list, ok := v[key].([]any); ok {
				return toRecords(list)
			}
		}
		return []Record{v}
	default:
		return nil
	}
}

func toRecords(list []any) []Record {
	records := make([]Record, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		} else {
			// Scalar list elements are kept rather than dropped.
			records = append(records, Record{"value": item})
		}
	}
	return records
}

// CleanRecord flattens a record to a single level: nested objects and arrays
// are serialized to JSON-encoded strings, scalar fields pass through
// unchanged. Cleaning a flat record is a no-op.
func CleanRecord(rec Record) Record {
	cleaned := make(Record, len(rec))
	for key, value := range rec {
		switch value.(type) {
		case map[string]any, []any:
			encoded, err := json.Marshal(value)
			if err != nil {
				// Unmarshalable values came from JSON in the first place;
				// this path is unreachable in practice but kept total.
				cleaned[key] = ""
				continue
			}
			cleaned[key] = string(encoded)
		default:
			cleaned[key] = value
		}
	}
	return cleaned
}
