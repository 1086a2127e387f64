package bus

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"time"
)

// PayloadKind tags the variant held by a Payload.
type PayloadKind uint8

const (
	// PayloadNone carries no data.
	PayloadNone PayloadKind = iota
	// PayloadRecord carries a pre-typed structured value.
	PayloadRecord
	// PayloadRaw carries a plain key-value map that handlers coerce.
	PayloadRaw
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadRecord:
		return "record"
	case PayloadRaw:
		return "raw"
	default:
		return "none"
	}
}

// Payload is the tagged union carried by an Event.
type Payload struct {
	kind   PayloadKind
	record any
	raw    map[string]any
}

// Record wraps a typed value. A nil value yields None.
func Record(v any) Payload {
	if v == nil {
		return None()
	}
	return Payload{kind: PayloadRecord, record: v}
}

// Raw wraps a key-value map. The map is copied.
func Raw(m map[string]any) Payload {
	if m == nil {
		return None()
	}
	return Payload{kind: PayloadRaw, raw: maps.Clone(m)}
}

// None is the absent payload.
func None() Payload {
	return Payload{kind: PayloadNone}
}

// Kind returns the payload variant.
func (p Payload) Kind() PayloadKind {
	return p.kind
}

// Event is an immutable message envelope.
type Event struct {
	topic     string
	payload   Payload
	timestamp time.Time
}

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(topic string, payload Payload) Event {
	return Event{
		topic:     topic,
		payload:   payload,
		timestamp: time.Now().UTC(),
	}
}

// Topic returns the routing key.
func (e Event) Topic() string { return e.topic }

// Payload returns the payload union.
func (e Event) Payload() Payload { return e.payload }

// Timestamp returns the creation time.
func (e Event) Timestamp() time.Time { return e.timestamp }

// recordType is the runtime type used by the type-keyed registry; nil
// unless the payload is a record.
func (e Event) recordType() reflect.Type {
	if e.payload.kind != PayloadRecord {
		return nil
	}
	return reflect.TypeOf(e.payload.record)
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.topic, e.payload.kind)
}

// Decode is the parse-if-needed step at the top of every handler. A record
// of type T or *T is reused directly; a raw map is coerced into T.
func Decode[T any](evt Event) (T, error) {
	var zero T
	p := evt.payload
	switch p.kind {
	case PayloadRecord:
		if v, ok := p.record.(T); ok {
			return v, nil
		}
		if pv, ok := p.record.(*T); ok && pv != nil {
			return *pv, nil
		}
		return zero, &PayloadError{Topic: evt.topic, Want: reflect.TypeFor[T](), Got: reflect.TypeOf(p.record)}
	case PayloadRaw:
		b, err := json.Marshal(p.raw)
		if err != nil {
			return zero, &PayloadError{Topic: evt.topic, Want: reflect.TypeFor[T](), Err: err}
		}
		var out T
		if err := json.Unmarshal(b, &out); err != nil {
			return zero, &PayloadError{Topic: evt.topic, Want: reflect.TypeFor[T](), Err: err}
		}
		return out, nil
	default:
		return zero, &PayloadError{Topic: evt.topic, Want: reflect.TypeFor[T](), Err: ErrPayloadMissing}
	}
}

// DecodeOptional is Decode for handlers that accept an absent payload; ok
// is false for None.
func DecodeOptional[T any](evt Event) (v T, ok bool, err error) {
	if evt.payload.kind == PayloadNone {
		return v, false, nil
	}
	v, err = Decode[T](evt)
	return v, err == nil, err
}
