// Package scanner defines the malware scanning hook used by file ingestion.
package scanner

import (
	"context"
	"io"
)

// Verdict is the outcome of a scan.
type Verdict struct {
	Clean bool
	// Signature names the detected threat when Clean is false.
	Signature string
}

// Scanner inspects a stream and reports whether it is safe to keep.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (Verdict, error)
}

// Noop accepts every file. Used when no scanner address is configured.
type Noop struct{}

// Scan drains nothing and always reports a clean verdict.
func (Noop) Scan(context.Context, io.Reader) (Verdict, error) {
	return Verdict{Clean: true}, nil
}
