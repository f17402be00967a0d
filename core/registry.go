package core

import (
	"slices"
	"sync"
)

// codecTable is a format-keyed set of codecs safe for concurrent use.  A
// later registration for the same format replaces the earlier one, which is
// how an optional backend takes over from the built-in codecs.
type codecTable[T any] struct {
	mu    sync.RWMutex
	byFmt map[Format]T
}

func (t *codecTable[T]) put(f Format, c T) {
	t.mu.Lock()
	if t.byFmt == nil {
		t.byFmt = make(map[Format]T)
	}
	t.byFmt[f] = c
	t.mu.Unlock()
}

func (t *codecTable[T]) get(f Format) (T, bool) {
	t.mu.RLock()
	c, ok := t.byFmt[f]
	t.mu.RUnlock()
	return c, ok
}

func (t *codecTable[T]) formats() []Format {
	t.mu.RLock()
	out := make([]Format, 0, len(t.byFmt))
	for f := range t.byFmt {
		out = append(out, f)
	}
	t.mu.RUnlock()
	slices.Sort(out)
	return out
}

// DefaultRegistry is the Registry used by the Manipulator.
type DefaultRegistry struct {
	decoders codecTable[Decoder]
	encoders codecTable[Encoder]
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry { return &DefaultRegistry{} }

func (r *DefaultRegistry) RegisterDecoder(f Format, d Decoder) { r.decoders.put(f, d) }
func (r *DefaultRegistry) RegisterEncoder(f Format, e Encoder) { r.encoders.put(f, e) }

func (r *DefaultRegistry) DecoderFor(f Format) (Decoder, bool) { return r.decoders.get(f) }
func (r *DefaultRegistry) EncoderFor(f Format) (Encoder, bool) { return r.encoders.get(f) }

// DecoderFormats lists the readable formats in sorted order.
func (r *DefaultRegistry) DecoderFormats() []Format { return r.decoders.formats() }

// EncoderFormats lists the writable formats in sorted order.
func (r *DefaultRegistry) EncoderFormats() []Format { return r.encoders.formats() }
