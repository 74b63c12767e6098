// Package capture records session traffic as a CBOR event stream so a run
// can be replayed or inspected after the fact.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Event kinds recorded in a trace.
const (
	EventWrite   = "write"
	EventChunk   = "chunk"
	EventFrame   = "frame"
	EventVarSet  = "var_set"
	EventAccept  = "accept"
	EventReject  = "reject"
	EventTimeout = "timeout"
)

// Event is one recorded occurrence in a session trace.
type Event struct {
	Seq       uint64    `cbor:"seq"`
	Timestamp time.Time `cbor:"ts"`
	Kind      string    `cbor:"kind"`
	SessionID string    `cbor:"session,omitempty"`
	Data      []byte    `cbor:"data,omitempty"`
	Name      string    `cbor:"name,omitempty"`
	Value     string    `cbor:"value,omitempty"`
}

// Header opens every trace file.
type Header struct {
	Magic     string    `cbor:"magic"`
	Version   int       `cbor:"version"`
	CreatedAt time.Time `cbor:"created_at"`
	Tool      string    `cbor:"tool"`
}

const (
	traceMagic   = "serialforge-trace"
	traceVersion = 1
)

// Recorder appends events to a trace stream. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	c   io.Closer
	seq uint64
}

// NewRecorder writes a trace header to w and returns a recorder that appends
// events after it. If w implements io.Closer, Close closes it.
func NewRecorder(w io.Writer) (*Recorder, error) {
	enc := cbor.NewEncoder(w)
	hdr := Header{
		Magic:     traceMagic,
		Version:   traceVersion,
		CreatedAt: time.Now().UTC(),
		Tool:      "serialforge",
	}
	if err := enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	r := &Recorder{enc: enc}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r, nil
}

// Create opens path for writing and returns a recorder over it.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	rec, err := NewRecorder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return rec, nil
}

// Record appends one event, assigning it the next sequence number.
func (r *Recorder) Record(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.Seq = r.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := r.enc.Encode(ev); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	return nil
}

// RecordBytes is shorthand for data-bearing events.
func (r *Recorder) RecordBytes(kind, sessionID string, ts time.Time, data []byte) error {
	return r.Record(Event{Kind: kind, SessionID: sessionID, Timestamp: ts, Data: data})
}

// RecordVar records an extracted or assigned variable.
func (r *Recorder) RecordVar(sessionID, name, value string) error {
	return r.Record(Event{Kind: EventVarSet, SessionID: sessionID, Name: name, Value: value})
}

// Close closes the underlying writer when it is closeable.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		err := r.c.Close()
		r.c = nil
		return err
	}
	return nil
}

// Reader iterates the events of a trace stream.
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader validates the trace header and positions the reader at the first
// event.
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("read trace header: %w", err)
	}
	if hdr.Magic != traceMagic {
		return nil, fmt.Errorf("not a serialforge trace (magic %q)", hdr.Magic)
	}
	if hdr.Version != traceVersion {
		return nil, fmt.Errorf("unsupported trace version %d", hdr.Version)
	}
	return &Reader{dec: dec, header: hdr}, nil
}

// Header returns the trace header.
func (r *Reader) Header() Header { return r.header }

// Next decodes the next event. It returns io.EOF at end of stream.
func (r *Reader) Next() (Event, error) {
	var ev Event
	err := r.dec.Decode(&ev)
	if errors.Is(err, io.EOF) {
		return Event{}, io.EOF
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode trace event: %w", err)
	}
	return ev, nil
}

// ReadAll loads every event from a trace file.
func ReadAll(path string) (Header, []Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	rd, err := NewReader(f)
	if err != nil {
		return Header{}, nil, err
	}
	var events []Event
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rd.header, events, err
		}
		events = append(events, ev)
	}
	return rd.header, events, nil
}
