package memory

import (
	"encoding/json"
	"fmt"
)

// Buckets names the snapshot sections persisted by the SQL drivers, in write order.
var Buckets = []string{"runs", "samples", "annotations", "counters"}

// EncodeBuckets serialises each snapshot section to JSON.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "runs":
			data, err = json.Marshal(s.Runs)
		case "samples":
			data, err = json.Marshal(s.Samples)
		case "annotations":
			data, err = json.Marshal(s.Annotations)
		case "counters":
			data, err = json.Marshal(s.Counters)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket loads one serialised section into the snapshot. Unknown
// buckets and empty payloads are ignored.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case "runs":
		target = &s.Runs
	case "samples":
		target = &s.Samples
	case "annotations":
		target = &s.Annotations
	case "counters":
		target = &s.Counters
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
