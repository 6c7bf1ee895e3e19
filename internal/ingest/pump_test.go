package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/sxmlstream/internal/assembler"
	"github.com/danmuck/sxmlstream/internal/testutil/testlog"
)

type feederFunc func(chunk string) error

func (f feederFunc) AddData(chunk string) error { return f(chunk) }

// chunkReader returns one queued chunk per Read.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestPumpFeedsChunksInOrder(t *testing.T) {
	testlog.Start(t)
	var got []string
	err := Pump(context.Background(), strings.NewReader("abcdefg"), feederFunc(func(chunk string) error {
		got = append(got, chunk)
		return nil
	}), 3)
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	want := []string{"abc", "def", "g"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("chunks=%q want=%q", got, want)
	}
}

func TestPumpDefaultChunkSize(t *testing.T) {
	testlog.Start(t)
	payload := strings.Repeat("x", DefaultChunkSize+1)
	var sizes []int
	err := Pump(context.Background(), strings.NewReader(payload), feederFunc(func(chunk string) error {
		sizes = append(sizes, len(chunk))
		return nil
	}), 0)
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != DefaultChunkSize || sizes[1] != 1 {
		t.Fatalf("unexpected chunk sizes: %v", sizes)
	}
}

func TestPumpIgnoresParseErrors(t *testing.T) {
	testlog.Start(t)
	calls := 0
	err := Pump(context.Background(), &chunkReader{chunks: []string{"a", "b"}}, feederFunc(func(string) error {
		calls++
		return assembler.MessageTooLarge
	}), 16)
	if err != nil {
		t.Fatalf("parse errors must not stop the pump, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d want=2", calls)
	}
}

func TestPumpReturnsFeederFailure(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("boom")
	err := Pump(context.Background(), strings.NewReader("abc"), feederFunc(func(string) error {
		return boom
	}), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected feeder error, got %v", err)
	}
}

func TestPumpStopsOnCancelledContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Pump(ctx, strings.NewReader("abc"), feederFunc(func(string) error {
		t.Fatalf("feeder must not run after cancel")
		return nil
	}), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
