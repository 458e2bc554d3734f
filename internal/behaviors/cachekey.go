package behaviors

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/kubilitics-labs/reqopt/internal/ports"
)

// cacheKey builds a deterministic cache key from req's type tag and a stable
// serialization of its payload. A payload that cannot be marshaled (channels,
// functions, cyclic structures the encoder rejects) falls back to a degraded
// key derived from the type tag and a hash of its string representation;
// this never panics and never returns an empty key.
func cacheKey(req ports.Request) (key string) {
	if b, err := json.Marshal(req.Payload); err == nil {
		h := fnv.New64a()
		h.Write(b)
		return fmt.Sprintf("global:%s:%x", req.Type, h.Sum64())
	}
	return fallbackKey(req)
}

func fallbackKey(req ports.Request) (key string) {
	defer func() {
		if recover() != nil {
			key = fmt.Sprintf("fallback:%s:unrepresentable", req.Type)
		}
	}()
	h := fnv.New64a()
	h.Write([]byte(fmt.Sprintf("%v", req.Payload)))
	return fmt.Sprintf("fallback:%s:%x", req.Type, h.Sum64())
}
