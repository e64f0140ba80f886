package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// ErrDecoderNotRegistered is returned for an unknown (event type, version) pair.
var ErrDecoderNotRegistered = errors.New("decoder not registered")

// DecodeFunc turns an envelope's data into a typed payload.
type DecodeFunc func(data json.RawMessage) (any, error)

type decoderKey struct {
	event   enums.OutboxEventType
	version int
}

// Decoders is the consumer-side view of the event catalog, keyed by envelope
// version so payload shapes can evolve. Register everything before sharing it
// between goroutines.
type Decoders struct {
	byKey map[decoderKey]DecodeFunc
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: map[decoderKey]DecodeFunc{}}
}

func (d *Decoders) Register(event enums.OutboxEventType, version int, fn DecodeFunc) {
	d.byKey[decoderKey{event, version}] = fn
}

func (d *Decoders) Decode(event enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	fn, ok := d.byKey[decoderKey{event, version}]
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrDecoderNotRegistered, event, version)
	}
	return fn(data)
}

// JSONDecoder unmarshals into a fresh value from newPayload.
func JSONDecoder(newPayload func() any) DecodeFunc {
	return func(data json.RawMessage) (any, error) {
		target := newPayload()
		if err := json.Unmarshal(data, target); err != nil {
			return nil, err
		}
		return target, nil
	}
}

// NegotiationDecoders registers the v1 JSON decoder of every catalog event.
func NegotiationDecoders() *Decoders {
	d := NewDecoders()
	for _, e := range catalog {
		d.Register(e.event, 1, JSONDecoder(e.payload))
	}
	return d
}
