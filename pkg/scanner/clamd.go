package scanner

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const clamdChunkSize = 64 * 1024

// ErrUnexpectedReply is returned when clamd answers with something other than OK or FOUND.
var ErrUnexpectedReply = errors.New("unexpected clamd reply")

// Clamd streams files to a clamd daemon with the INSTREAM command.
type Clamd struct {
	address string
	network string
	dialer  net.Dialer
}

// NewClamd returns a client for address ("host:port" or a unix socket path prefixed with "unix:").
func NewClamd(address string) *Clamd {
	network := "tcp"
	if strings.HasPrefix(address, "unix:") {
		network = "unix"
		address = strings.TrimPrefix(address, "unix:")
	}
	return &Clamd{address: address, network: network}
}

// Scan sends r to clamd and parses the verdict. The context deadline bounds the whole exchange.
func (c *Clamd) Scan(ctx context.Context, r io.Reader) (Verdict, error) {
	conn, err := c.dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return Verdict{}, fmt.Errorf("dial clamd: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return Verdict{}, c.ctxErr(ctx, fmt.Errorf("send command: %w", err))
	}

	buf := make([]byte, clamdChunkSize)
	size := make([]byte, 4)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(size, uint32(n))
			if _, err := conn.Write(size); err != nil {
				return Verdict{}, c.ctxErr(ctx, fmt.Errorf("send chunk size: %w", err))
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return Verdict{}, c.ctxErr(ctx, fmt.Errorf("send chunk: %w", err))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Verdict{}, fmt.Errorf("read upload: %w", readErr)
		}
	}
	binary.BigEndian.PutUint32(size, 0)
	if _, err := conn.Write(size); err != nil {
		return Verdict{}, c.ctxErr(ctx, fmt.Errorf("send terminator: %w", err))
	}

	reply, err := bufio.NewReader(conn).ReadString(0)
	if err != nil && !(errors.Is(err, io.EOF) && reply != "") {
		return Verdict{}, c.ctxErr(ctx, fmt.Errorf("read reply: %w", err))
	}
	return parseReply(reply)
}

// ctxErr prefers the context error so callers can tell a timeout from a broken daemon.
func (c *Clamd) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

func parseReply(reply string) (Verdict, error) {
	reply = strings.TrimRight(reply, "\x00\n")
	reply = strings.TrimPrefix(reply, "stream: ")
	switch {
	case reply == "OK":
		return Verdict{Clean: true}, nil
	case strings.HasSuffix(reply, " FOUND"):
		return Verdict{Clean: false, Signature: strings.TrimSuffix(reply, " FOUND")}, nil
	default:
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, reply)
	}
}
