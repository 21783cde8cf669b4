package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// ErrNoDecoder means no decoder exists for the event type at or below the
// requested envelope version.
var ErrNoDecoder = errors.New("no decoder registered")

// DecodeFunc turns an envelope's data field into a typed payload.
type DecodeFunc func(payload json.RawMessage) (any, error)

type versioned struct {
	version int
	decode  DecodeFunc
}

// DecoderRegistry resolves payload decoders by event type and version.
// A consumer that only knows v1 keeps decoding v2 envelopes with the v1
// decoder, since payload changes are additive.
type DecoderRegistry struct {
	mu     sync.RWMutex
	byType map[enums.OutboxEventType][]versioned
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{byType: map[enums.OutboxEventType][]versioned{}}
}

// Register adds or replaces the decoder for eventType at version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.byType[eventType]
	for i := range entries {
		if entries[i].version == version {
			entries[i].decode = decode
			return
		}
	}
	entries = append(entries, versioned{version: version, decode: decode})
	sort.Slice(entries, func(i, j int) bool { return entries[i].version > entries[j].version })
	r.byType[eventType] = entries
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	entries := r.byType[eventType]
	r.mu.RUnlock()

	for _, entry := range entries {
		if entry.version <= version {
			return entry.decode(payload)
		}
	}
	return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
}
