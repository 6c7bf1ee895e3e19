package ingest

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/sxmlstream/internal/assembler"
)

const DefaultChunkSize = 4096

// Feeder accepts chunks in arrival order.
type Feeder interface {
	AddData(chunk string) error
}

// Pump reads r in chunks of at most chunkSize bytes and feeds them in
// order until EOF, a read error or ctx cancellation. Recoverable parse
// errors from the feeder do not stop the pump.
func Pump(ctx context.Context, r io.Reader, feeder Feeder, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := feeder.AddData(string(buf[:n])); ferr != nil {
				var perr assembler.ParseError
				if !errors.As(ferr, &perr) {
					return ferr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// deadlineReader refreshes the read deadline before every read.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (d deadlineReader) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		_ = d.conn.SetReadDeadline(time.Now().Add(d.timeout))
	}
	return d.conn.Read(p)
}
