package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferr "github.com/kbaxter/serialforge/internal/errors"
	"github.com/kbaxter/serialforge/internal/framing"
	"github.com/kbaxter/serialforge/internal/respond"
)

// fakeClock lets tests decide when the validation deadline fires.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	ch  chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0), ch: make(chan time.Time, 1)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(time.Duration) <-chan time.Time { return c.ch }

func (c *fakeClock) fire() { c.ch <- c.Now() }

func lineFraming() framing.Config {
	return framing.Config{Strategy: framing.StrategyDelimiter, Delimiter: "\r\n"}
}

type awaitOutcome struct {
	res Result
	err error
}

func startAwait(t *testing.T, s *Session, cfg respond.Config) chan awaitOutcome {
	t.Helper()
	done := make(chan awaitOutcome, 1)
	go func() {
		res, err := s.AwaitValidatedResponse(context.Background(), cfg)
		done <- awaitOutcome{res, err}
	}()
	// Give the waiter time to register before frames arrive.
	time.Sleep(50 * time.Millisecond)
	return done
}

func TestAwaitSkipsRejectedThenAccepts(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	cfg := respond.Config{
		Mode:      respond.ModePattern,
		MatchType: respond.MatchContains,
		Pattern:   "OK",
		TimeoutMs: 1000,
	}
	done := startAwait(t, sess, cfg)

	sess.Feed([]byte("ERROR\r\nOK 42\r\n"), clock.Now())

	o := <-done
	require.NoError(t, o.err)
	assert.Equal(t, "OK 42", string(o.res.Frame.Data))
}

func TestAwaitTimeoutWithNoFrames(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	cfg := respond.Config{Mode: respond.ModeAlwaysPass, TimeoutMs: 100}
	done := startAwait(t, sess, cfg)

	clock.fire()
	o := <-done
	var te *sferr.TimeoutError
	require.ErrorAs(t, o.err, &te)
}

func TestAwaitRejectedAtDeadline(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	cfg := respond.Config{
		Mode:      respond.ModePattern,
		MatchType: respond.MatchContains,
		Pattern:   "OK",
		TimeoutMs: 100,
	}
	done := startAwait(t, sess, cfg)

	sess.Feed([]byte("ERROR\r\n"), clock.Now())
	// Let the waiter consume and reject the frame before the deadline.
	time.Sleep(50 * time.Millisecond)
	clock.fire()

	o := <-done
	var re *sferr.RejectedError
	require.ErrorAs(t, o.err, &re)
	assert.Equal(t, 1, re.Frames)
}

func TestAwaitMergesExtractedVars(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	cfg := respond.Config{
		Mode:              respond.ModePattern,
		MatchType:         respond.MatchContains,
		Pattern:           "VOLTAGE",
		TimeoutMs:         1000,
		ExtractionEnabled: true,
		ExtractionRules: []respond.ExtractionRule{
			{Type: respond.RuleRegex, Pattern: `VOLTAGE=(?P<volts>\d+)`},
		},
	}
	done := startAwait(t, sess, cfg)

	sess.Feed([]byte("VOLTAGE=230\r\n"), clock.Now())

	o := <-done
	require.NoError(t, o.err)
	assert.Equal(t, "230", o.res.ExtractedVars["volts"])
	assert.Equal(t, "230", sess.Vars()["volts"])
}

func TestAwaitSingleWaiter(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sess.AwaitValidatedResponse(ctx, respond.Config{Mode: respond.ModeAlwaysPass, TimeoutMs: 100})
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	_, err = sess.AwaitValidatedResponse(context.Background(), respond.Config{Mode: respond.ModeAlwaysPass, TimeoutMs: 100})
	require.Error(t, err, "second concurrent wait must be refused")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestAwaitDropsStaleFrames(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	// This frame predates the wait and must not satisfy it.
	sess.Feed([]byte("OK old\r\n"), clock.Now())

	cfg := respond.Config{Mode: respond.ModeAlwaysPass, TimeoutMs: 100}
	done := startAwait(t, sess, cfg)
	clock.fire()

	o := <-done
	var te *sferr.TimeoutError
	require.ErrorAs(t, o.err, &te)
}

func TestFramingOverrideTransientAndPersistent(t *testing.T) {
	m := NewManager(newFakeClock(), nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	override := framing.Config{
		Strategy:         framing.StrategyPrefixLength,
		PrefixLengthSize: 1,
		Persistence:      framing.PersistenceTransient,
	}
	require.NoError(t, sess.ApplyFraming(override))
	frames := sess.Feed([]byte{0x02, 0x41, 0x42}, time.Now())
	require.Len(t, frames, 1)
	assert.Equal(t, "AB", string(frames[0].Data))

	// TRANSIENT reverts to the configured delimiter framing.
	require.NoError(t, sess.RestoreFraming())
	frames = sess.Feed([]byte("hi\r\n"), time.Now())
	require.Len(t, frames, 1)
	assert.Equal(t, "hi", string(frames[0].Data))

	override.Persistence = framing.PersistencePersistent
	require.NoError(t, sess.ApplyFraming(override))
	require.NoError(t, sess.RestoreFraming())
	frames = sess.Feed([]byte{0x01, 0x58}, time.Now())
	require.Len(t, frames, 1)
	assert.Equal(t, "X", string(frames[0].Data))
}

func TestApplyFramingResetsAccumulator(t *testing.T) {
	m := NewManager(newFakeClock(), nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	sess.Feed([]byte("partial"), time.Now())
	require.NotEmpty(t, sess.Pending())

	require.NoError(t, sess.ApplyFraming(framing.Config{Strategy: framing.StrategyNone}))
	assert.Empty(t, sess.Pending(), "strategy change must not carry partial bytes over")
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(nil, nil)
	a, err := m.Open(lineFraming())
	require.NoError(t, err)
	b, err := m.Open(lineFraming())
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	require.NoError(t, m.Close(a.ID))
	assert.Equal(t, 1, m.Len())
	_, ok = m.Get(a.ID)
	assert.False(t, ok)
	require.Error(t, m.Close(a.ID))
}

func TestManagerOpenRejectsBadConfig(t *testing.T) {
	m := NewManager(nil, nil)
	_, err := m.Open(framing.Config{Strategy: framing.StrategyDelimiter})
	require.Error(t, err)
}

func TestSessionVars(t *testing.T) {
	m := NewManager(nil, nil)
	sess, err := m.Open(lineFraming())
	require.NoError(t, err)

	sess.SetVar("device_id", "ab12")
	vars := sess.Vars()
	assert.Equal(t, "ab12", vars["device_id"])

	// Vars returns a copy.
	vars["device_id"] = "mutated"
	assert.Equal(t, "ab12", sess.Vars()["device_id"])
}
