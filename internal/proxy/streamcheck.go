package proxy

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aegis-gateway/aegis/internal/extractor"
)

// ClassifyFunc reports whether the accumulated response text trips a
// Block verdict. It is invoked at most once per CopyAndCheck call, per
// spec.md §9's Open Question #2 resolution (only the first successful
// classification window can block; later windows forward verbatim).
type ClassifyFunc func(ctx context.Context, text string) (blocked bool, err error)

// CopyAndCheck streams src to dst, holding back the first
// cfg.MaxBytes-or-cfg.Timeout worth of bytes to run classify against.
// If classify reports blocked, the remaining stream is replaced by the
// block sentinel and upstream reading stops; otherwise the buffered
// prefix is flushed and the rest of the stream forwards unchecked.
// The goroutine reading src is released when CopyAndCheck returns.
func CopyAndCheck(ctx context.Context, dst io.Writer, src io.Reader, cfg extractor.BufferConfig, classify ClassifyFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chunkMsg)
	go pumpChunks(ctx, src, chunks)

	var acc bytes.Buffer
	checked := false
	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			if checked {
				continue
			}
			checked = true
			blocked, err := runCheck(ctx, classify, &acc, dst)
			if err != nil || blocked {
				return err
			}

		case msg, ok := <-chunks:
			if !ok {
				return nil
			}
			if msg.err != nil {
				if !checked && acc.Len() > 0 {
					checked = true
					blocked, err := runCheck(ctx, classify, &acc, dst)
					if err != nil || blocked {
						return err
					}
				}
				if msg.err == io.EOF {
					return nil
				}
				return msg.err
			}

			if checked {
				if _, err := dst.Write(msg.data); err != nil {
					return err
				}
				continue
			}

			acc.Write(msg.data)
			if acc.Len() >= cfg.MaxBytes {
				checked = true
				blocked, err := runCheck(ctx, classify, &acc, dst)
				if err != nil || blocked {
					return err
				}
			}
		}
	}
}

type chunkMsg struct {
	data []byte
	err  error
}

func pumpChunks(ctx context.Context, src io.Reader, out chan<- chunkMsg) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunkMsg{data: chunk}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case out <- chunkMsg{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// runCheck classifies the buffered prefix once: on block it writes the
// sentinel and reports blocked=true; otherwise it flushes the prefix
// verbatim and reports blocked=false.
func runCheck(ctx context.Context, classify ClassifyFunc, acc *bytes.Buffer, dst io.Writer) (bool, error) {
	blocked, err := classify(ctx, acc.String())
	if err != nil {
		// classification failure never blocks a response stream; flush
		// what was buffered and keep forwarding.
		_, werr := dst.Write(acc.Bytes())
		return false, werr
	}
	if blocked {
		_, err := dst.Write(streamBlockSentinel)
		return true, err
	}
	_, werr := dst.Write(acc.Bytes())
	return false, werr
}
