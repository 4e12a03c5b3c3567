// Package engine moves the configured byte range from the source file
// into the destination file through a fixed-size buffer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/bcp/internal/config"
	"github.com/bamsammich/bcp/internal/progress"
)

// ErrUnexpectedEOF is returned when the source runs out of bytes before
// the requested count has been read. That means the source shrank
// between validation and the read; truncating the copy silently would
// hide the loss.
var ErrUnexpectedEOF = errors.New("source ended before the requested byte count")

// Copy transfers the configured byte range from cfg.Src into cfg.Dst.
// srcLen is the source length measured by validate.Check; the transfer
// length is *cfg.Count when set, otherwise srcLen - cfg.SrcOffset.
//
// The destination is created if absent and never truncated; bytes
// outside the written range are untouched. On error the destination may
// be left partially written, with no rollback. Returns the number of
// bytes written, which on success equals the transfer length exactly.
func Copy(ctx context.Context, cfg *config.Config, srcLen int64, sink progress.Sink) (int64, error) {
	src, err := os.Open(cfg.Src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(cfg.Dst, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()

	// Validation makes these near-impossible, but a failed seek would
	// corrupt the destination at the wrong offset, so check anyway.
	if _, err := src.Seek(cfg.SrcOffset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek source to %d: %w", cfg.SrcOffset, err)
	}
	if _, err := dst.Seek(cfg.DstOffset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek destination to %d: %w", cfg.DstOffset, err)
	}

	length := transferLength(cfg, srcLen)
	slog.Debug("starting copy",
		"src", cfg.Src,
		"dst", cfg.Dst,
		"src_offset", cfg.SrcOffset,
		"dst_offset", cfg.DstOffset,
		"length", length,
		"buffer", cfg.BufferSize,
	)

	return transfer(ctx, dst, src, length, cfg.BufferSize, sink)
}

// transferLength is the validator-consistent formula: everything from
// the source offset through end of source unless a count was given.
func transferLength(cfg *config.Config, srcLen int64) int64 {
	if cfg.Count != nil {
		return *cfg.Count
	}
	return srcLen - cfg.SrcOffset
}

// transfer runs the read/write loop, moving exactly length bytes from r
// to w through a buffer of bufSize bytes. Each chunk is fully written
// before the next read; there is never more than one I/O operation in
// flight. Reads interrupted by a signal are retried with no byte loss.
func transfer(
	ctx context.Context,
	w io.Writer,
	r io.Reader,
	length int64,
	bufSize int,
	sink progress.Sink,
) (int64, error) {
	sink.Start(length)
	defer sink.Finish()

	buf := make([]byte, bufSize)
	var written int64

	for written < length {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		toRead := int64(len(buf))
		if remaining := length - written; remaining < toRead {
			toRead = remaining
		}

		n, rerr := r.Read(buf[:toRead])
		if n > 0 {
			// Short reads are fine; write exactly what arrived.
			done := 0
			for done < n {
				m, werr := w.Write(buf[done:n])
				if m > 0 {
					done += m
					written += int64(m)
					sink.Add(int64(m))
				}
				if werr != nil {
					return written, fmt.Errorf("write destination: %w", werr)
				}
				if m == 0 {
					return written, fmt.Errorf("write destination: %w", io.ErrShortWrite)
				}
			}
		}

		switch {
		case rerr == nil && n > 0:
			// keep going
		case errors.Is(rerr, unix.EINTR):
			// Interrupted syscall; retry the read transparently.
		case rerr == nil || errors.Is(rerr, io.EOF):
			// Zero bytes (or EOF) with bytes still owed.
			if written < length {
				return written, fmt.Errorf("%w: got %d of %d bytes",
					ErrUnexpectedEOF, written, length)
			}
		default:
			return written, fmt.Errorf("read source: %w", rerr)
		}
	}

	return written, nil
}
