package behaviors

import "encoding/json"

// estimateSize approximates the serialized size of a response for the
// MaxCachedResponseSize gate. A value the encoder rejects is charged the
// maximum int so it is never mistaken for cheap to cache.
func estimateSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return len(b)
}
