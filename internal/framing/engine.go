package framing

// Incremental stream reassembly. One Engine per receive session: it owns an
// accumulator buffer and the timestamp of the last byte seen, consumes byte
// chunks and emits complete frames under the configured strategy. Bytes are
// never dropped: everything fed in is attributed to an emitted frame or
// stays in the accumulator, with consumed DELIMITER bytes as the single
// documented exception.
//
// PREFIX_LENGTH frames are header-exclusive: Frame.Data holds the body only.
// The consumed header bytes ride along in Frame.Header so header-inclusive
// consumers can reconstruct the full span and byte-conservation audits see
// every byte.

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/kbaxter/serialforge/internal/codec"
	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/logging"
	"github.com/kbaxter/serialforge/internal/script"
)

// Frame is one complete, strategy-delimited unit of response bytes.
type Frame struct {
	Data      []byte
	Header    []byte // PREFIX_LENGTH length-header bytes, nil otherwise
	Timestamp time.Time
}

// Engine is the per-session reassembly state machine. Not safe for
// concurrent use; the session layer serializes chunks per connection.
type Engine struct {
	cfg      Config
	prog     *script.Program // compiled SCRIPT framer, nil otherwise
	log      *logging.Logger
	acc      []byte
	lastByte time.Time
	lastTick time.Time // INTERVAL flush-clock bookkeeping
}

// NewEngine validates the config and compiles the framing script if one is
// configured.
func NewEngine(cfg Config, log *logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}
	e := &Engine{cfg: cfg, log: log}
	if cfg.Strategy == StrategyScript {
		prog, err := script.Compile(cfg.Script)
		if err != nil {
			return nil, &sferr.ScriptError{Phase: "framing", Err: err}
		}
		e.prog = prog
	}
	return e, nil
}

// Config returns the engine's framing configuration.
func (e *Engine) Config() Config { return e.cfg }

// Pending returns a copy of the unconsumed accumulator bytes.
func (e *Engine) Pending() []byte {
	out := make([]byte, len(e.acc))
	copy(out, e.acc)
	return out
}

// Reset discards all accumulated state. No frame is synthesized from
// leftover partial bytes.
func (e *Engine) Reset() {
	e.acc = nil
	e.lastByte = time.Time{}
	e.lastTick = time.Time{}
}

// Feed consumes one chunk and returns the frames it completes, in order.
func (e *Engine) Feed(chunk []byte, ts time.Time) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	e.lastByte = ts

	switch e.cfg.Strategy {
	case StrategyNone:
		data := make([]byte, len(chunk))
		copy(data, chunk)
		e.log.LogFrame(string(StrategyNone), len(data), 0)
		return []Frame{{Data: data, Timestamp: ts}}
	case StrategyDelimiter:
		e.acc = append(e.acc, chunk...)
		return e.scanDelimiter(ts)
	case StrategyTimeout:
		e.acc = append(e.acc, chunk...)
		return nil
	case StrategyPrefixLength:
		e.acc = append(e.acc, chunk...)
		return e.scanPrefixLength(ts)
	case StrategyScript:
		e.acc = append(e.acc, chunk...)
		return e.runScript(ts, false)
	default:
		return nil
	}
}

// Tick drives idle detection. The session layer calls it at the configured
// timeout granularity; now comes from the session clock so tests can inject
// a fake one.
func (e *Engine) Tick(now time.Time) []Frame {
	if len(e.acc) == 0 {
		return nil
	}
	switch e.cfg.Strategy {
	case StrategyTimeout:
		if e.idleElapsed(now) {
			return e.flushAccumulator(now)
		}
	case StrategyScript:
		if e.cfg.FlushClock == FlushInterval {
			if e.lastTick.IsZero() {
				e.lastTick = now
				return nil
			}
			if now.Sub(e.lastTick) >= e.cfg.Timeout() && e.cfg.TimeoutMs > 0 {
				e.lastTick = now
				return e.runScript(now, true)
			}
			return nil
		}
		if e.idleElapsed(now) {
			return e.runScript(now, true)
		}
	}
	return nil
}

// ForceFlush asks the strategy to flush whatever it can: TIMEOUT emits the
// accumulator, SCRIPT runs with forceFlush=true. Other strategies never
// synthesize frames from partial bytes.
func (e *Engine) ForceFlush(now time.Time) []Frame {
	if len(e.acc) == 0 {
		return nil
	}
	switch e.cfg.Strategy {
	case StrategyTimeout:
		return e.flushAccumulator(now)
	case StrategyScript:
		return e.runScript(now, true)
	}
	return nil
}

func (e *Engine) idleElapsed(now time.Time) bool {
	return e.cfg.TimeoutMs > 0 && !e.lastByte.IsZero() && now.Sub(e.lastByte) >= e.cfg.Timeout()
}

func (e *Engine) flushAccumulator(ts time.Time) []Frame {
	data := e.acc
	e.acc = nil
	e.log.LogFrame(string(e.cfg.Strategy), len(data), 0)
	return []Frame{{Data: data, Timestamp: ts}}
}

func (e *Engine) scanDelimiter(ts time.Time) []Frame {
	delim := []byte(e.cfg.Delimiter)
	var frames []Frame
	for {
		i := bytes.Index(e.acc, delim)
		if i < 0 {
			return frames
		}
		data := make([]byte, i)
		copy(data, e.acc[:i])
		// Delimiter bytes are consumed and discarded.
		e.acc = e.acc[i+len(delim):]
		e.log.LogFrame(string(StrategyDelimiter), len(data), len(e.acc))
		frames = append(frames, Frame{Data: data, Timestamp: ts})
	}
}

func (e *Engine) scanPrefixLength(ts time.Time) []Frame {
	size := e.cfg.PrefixLengthSize
	order := e.cfg.ByteOrder.Binary()
	var frames []Frame
	for len(e.acc) >= size {
		length := codec.Uint(order, e.acc[:size])
		if length > uint64(math.MaxInt-size) {
			// No frame of this length can ever be buffered. Retain the
			// bytes rather than wait on an unsatisfiable header.
			e.log.Error("framing: length header %d exceeds any representable frame (bytes retained)", length)
			break
		}
		total := size + int(length)
		if len(e.acc) < total {
			break
		}
		header := make([]byte, size)
		copy(header, e.acc[:size])
		data := make([]byte, length)
		copy(data, e.acc[size:total])
		e.acc = e.acc[total:]
		e.log.LogFrame(string(StrategyPrefixLength), len(data), len(e.acc))
		frames = append(frames, Frame{Data: data, Header: header, Timestamp: ts})
	}
	return frames
}

// runScript evaluates the framing script against the accumulator. The
// script sees "raw" (accumulator bytes), "data" (the same bytes as a
// string) and "forceFlush", and returns the length of the next complete
// frame, or 0 to keep waiting. It is re-run on the remainder until it
// returns 0 so one invocation chain can emit several frames. Any script
// failure leaves the accumulator exactly as it was.
func (e *Engine) runScript(ts time.Time, forceFlush bool) []Frame {
	var frames []Frame
	for len(e.acc) > 0 {
		result, _, err := e.prog.Run(map[string]script.Value{
			"raw":        script.BytesVal(e.Pending()),
			"data":       script.StrVal(string(e.acc)),
			"forceFlush": script.BoolVal(forceFlush),
		})
		if err != nil {
			e.log.Error("framing script: %v (bytes retained)", &sferr.ScriptError{Phase: "framing", Err: err})
			return frames
		}
		n := int(result.Num)
		if result.Kind == script.KindBool && result.Bool {
			// A bare boolean true means "flush everything".
			n = len(e.acc)
		}
		if n <= 0 {
			return frames
		}
		if n > len(e.acc) {
			e.log.Error("framing script: %v (bytes retained)",
				&sferr.ScriptError{Phase: "framing", Err: fmt.Errorf("frame length %d exceeds %d buffered bytes", n, len(e.acc))})
			return frames
		}
		data := make([]byte, n)
		copy(data, e.acc[:n])
		e.acc = e.acc[n:]
		e.log.LogFrame(string(StrategyScript), len(data), len(e.acc))
		frames = append(frames, Frame{Data: data, Timestamp: ts})
	}
	return frames
}
