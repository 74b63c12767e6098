package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"

	sferr "github.com/kbaxter/serialforge/internal/errors"
)

func TestLoopbackEcho(t *testing.T) {
	l := NewLoopback(nil, nil)
	var got []byte
	l.Subscribe(func(data []byte, ts time.Time) {
		got = data
	})
	if err := l.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("ping")) {
		t.Errorf("echoed = %q, want ping", got)
	}
}

func TestLoopbackResponderChunks(t *testing.T) {
	l := NewLoopback(func(payload []byte) [][]byte {
		return [][]byte{[]byte("OK"), []byte("\r\n")}
	}, nil)
	var chunks [][]byte
	l.Subscribe(func(data []byte, ts time.Time) {
		chunks = append(chunks, data)
	})
	if err := l.Write([]byte("AT")); err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || !bytes.Equal(chunks[0], []byte("OK")) || !bytes.Equal(chunks[1], []byte("\r\n")) {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestLoopbackWriteWithoutHandler(t *testing.T) {
	l := NewLoopback(nil, nil)
	if err := l.Write([]byte("dropped")); err != nil {
		t.Errorf("Write without handler: %v", err)
	}
}

func TestLoopbackClosed(t *testing.T) {
	l := NewLoopback(nil, nil)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	err := l.Write([]byte("x"))
	var ioe *sferr.IoError
	if !errors.As(err, &ioe) {
		t.Fatalf("Write after close = %v, want IoError", err)
	}
}

func TestLoopbackInject(t *testing.T) {
	l := NewLoopback(nil, nil)
	ts := time.Unix(42, 0)
	var gotData []byte
	var gotTs time.Time
	l.Subscribe(func(data []byte, when time.Time) {
		gotData, gotTs = data, when
	})
	l.Inject([]byte("unsolicited"), ts)
	if !bytes.Equal(gotData, []byte("unsolicited")) || !gotTs.Equal(ts) {
		t.Errorf("Inject delivered %q at %v", gotData, gotTs)
	}
}

func TestLoopbackWriteCopiesPayload(t *testing.T) {
	l := NewLoopback(nil, nil)
	var got []byte
	l.Subscribe(func(data []byte, ts time.Time) {
		got = data
	})
	payload := []byte("abc")
	if err := l.Write(payload); err != nil {
		t.Fatal(err)
	}
	payload[0] = 'x'
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("echo aliases the caller's buffer: %q", got)
	}
}
