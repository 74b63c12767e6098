package session

// Per-connection receive pipeline. A Session owns one framing engine, one
// variable map and at most one pending response wait. Chunks are processed
// under the session lock so frame emission order matches arrival order; no
// state is shared across sessions.

import (
	"context"
	"fmt"
	"sync"
	"time"

	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/logging"
	"github.com/kbaxter/serialforge/internal/respond"
)

// frameQueueSize bounds the frames buffered for a pending awaiter. A slow
// awaiter sheds the oldest frames first.
const frameQueueSize = 256

// Result is a successfully validated response.
type Result struct {
	Frame         framing.Frame
	ExtractedVars map[string]string
}

// Session is one connection's receive state.
type Session struct {
	ID string

	mu      sync.Mutex
	base    framing.Config // configured framing; overrides restore to this
	engine  *framing.Engine
	clock   Clock
	log     *logging.Logger
	vars    map[string]string
	frames  chan framing.Frame
	waiting bool
}

func newSession(id string, cfg framing.Config, clock Clock, log *logging.Logger) (*Session, error) {
	engine, err := framing.NewEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:     id,
		base:   cfg,
		engine: engine,
		clock:  clock,
		log:    log,
		vars:   make(map[string]string),
		frames: make(chan framing.Frame, frameQueueSize),
	}, nil
}

// Feed consumes one transport chunk and returns the frames it completed.
// Completed frames are also queued for a pending AwaitValidatedResponse.
// Chunks for one session are processed strictly in call order.
func (s *Session) Feed(chunk []byte, ts time.Time) []framing.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.engine.Feed(chunk, ts)
	s.enqueueLocked(frames)
	return frames
}

// Tick drives idle-timeout framing. Returns any frames flushed.
func (s *Session) Tick(now time.Time) []framing.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.engine.Tick(now)
	s.enqueueLocked(frames)
	return frames
}

// ForceFlush flushes whatever the strategy will give up.
func (s *Session) ForceFlush() []framing.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.engine.ForceFlush(s.clock.Now())
	s.enqueueLocked(frames)
	return frames
}

// Reset discards accumulated framing state. Leftover partial bytes never
// become a frame.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
}

// Pending returns a copy of the unconsumed accumulator bytes.
func (s *Session) Pending() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Pending()
}

// Vars returns a copy of the session variable map.
func (s *Session) Vars() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// SetVar stores one session variable.
func (s *Session) SetVar(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// ApplyFraming installs a framing override. PERSISTENT overrides replace
// the session's configured framing; TRANSIENT ones last until
// RestoreFraming. The accumulator is reset either way — frames never span a
// strategy change.
func (s *Session) ApplyFraming(cfg framing.Config) error {
	engine, err := framing.NewEngine(cfg, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
	if cfg.Persistence == framing.PersistencePersistent {
		s.base = cfg
	}
	return nil
}

// RestoreFraming reverts a TRANSIENT override to the configured framing.
func (s *Session) RestoreFraming() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.Config().Persistence == framing.PersistencePersistent {
		return nil
	}
	engine, err := framing.NewEngine(s.base, s.log)
	if err != nil {
		return err
	}
	s.engine = engine
	return nil
}

// AwaitValidatedResponse waits for the next frame that passes validation,
// racing it against the configured deadline. Frames that fail validation
// are counted and waiting continues. On deadline expiry the outcome is
// RejectedError when at least one frame was seen, TimeoutError otherwise.
// Only one wait may be pending per session; command serialization is the
// caller's concern.
func (s *Session) AwaitValidatedResponse(ctx context.Context, cfg respond.Config) (Result, error) {
	validator, err := respond.NewValidator(cfg, s.log)
	if err != nil {
		return Result{}, err
	}
	var extractor *respond.Extractor
	if cfg.ExtractionEnabled {
		extractor, err = respond.NewExtractor(cfg.ExtractionRules, s.log)
		if err != nil {
			return Result{}, err
		}
	}

	if err := s.beginWait(); err != nil {
		return Result{}, err
	}
	defer s.endWait()

	deadline := s.clock.After(cfg.Timeout())
	rejected := 0
	for {
		tick := s.tickChan()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-deadline:
			if rejected > 0 {
				return Result{}, &sferr.RejectedError{Frames: rejected, Configured: cfg.Timeout()}
			}
			return Result{}, &sferr.TimeoutError{Configured: cfg.Timeout()}
		case <-tick:
			s.Tick(s.clock.Now())
		case frame := <-s.frames:
			if !validator.Check(frame) {
				rejected++
				s.log.Verbose("frame rejected (%d so far)", rejected)
				continue
			}
			result := Result{Frame: frame, ExtractedVars: map[string]string{}}
			if extractor != nil {
				result.ExtractedVars = extractor.Extract(frame)
				s.mergeVars(result.ExtractedVars)
			}
			return result, nil
		}
	}
}

// tickChan arms the idle-flush timer at the framing timeout granularity;
// nil (never fires) when the strategy has no idle behavior.
func (s *Session) tickChan() <-chan time.Time {
	s.mu.Lock()
	cfg := s.engine.Config()
	s.mu.Unlock()
	switch cfg.Strategy {
	case framing.StrategyTimeout, framing.StrategyScript:
		if cfg.TimeoutMs > 0 {
			return s.clock.After(cfg.Timeout())
		}
	}
	return nil
}

func (s *Session) beginWait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting {
		return fmt.Errorf("session %s already has a pending response wait", s.ID)
	}
	s.waiting = true
	// Drop frames queued before this command was sent.
	for {
		select {
		case <-s.frames:
		default:
			return nil
		}
	}
}

func (s *Session) endWait() {
	s.mu.Lock()
	s.waiting = false
	s.mu.Unlock()
}

func (s *Session) mergeVars(vars map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range vars {
		s.vars[k] = v
	}
}

// enqueueLocked queues frames for the awaiter without ever blocking the
// pipeline. The session lock is the single producer guard, so after
// shedding the oldest entry the send always succeeds.
func (s *Session) enqueueLocked(frames []framing.Frame) {
	for _, f := range frames {
		select {
		case s.frames <- f:
		default:
			<-s.frames
			s.log.Error("session %s: frame queue full, oldest frame dropped", s.ID)
			s.frames <- f
		}
	}
}
