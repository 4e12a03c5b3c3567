// Package validate rejects copy configurations that would read outside
// the source or write outside the destination, before any byte moves.
package validate

import (
	"errors"
	"fmt"
	"os"

	"github.com/bamsammich/bcp/internal/config"
)

var (
	ErrSourceIsDir         = errors.New("source is a directory")
	ErrOffsetBeyondSource  = errors.New("source offset is at or beyond the end of the source")
	ErrCountExceedsSource  = errors.New("count reaches past the end of the source")
	ErrDestinationIsDir    = errors.New("destination is a directory")
	ErrOffsetBeyondDest    = errors.New("destination offset is beyond the end of the destination")
	ErrOffsetOnMissingDest = errors.New("destination offset requires an existing destination file")
	ErrEmptyBuffer         = errors.New("buffer size must be greater than zero")
)

// Check inspects filesystem metadata for the configured copy. It is
// read-only: no file is opened, created, or modified. On success it
// returns the source file's length so the engine does not stat it again.
func Check(cfg *config.Config) (int64, error) {
	srcInfo, err := os.Stat(cfg.Src)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", cfg.Src, err)
	}
	if srcInfo.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrSourceIsDir, cfg.Src)
	}
	srcLen := srcInfo.Size()

	// An offset equal to the length leaves zero bytes to copy; that is
	// rejected rather than treated as an empty success.
	if cfg.SrcOffset >= srcLen {
		return 0, fmt.Errorf("%w: offset %d, source is %d bytes",
			ErrOffsetBeyondSource, cfg.SrcOffset, srcLen)
	}

	// Written to avoid overflow on offset+count.
	if cfg.Count != nil && *cfg.Count > srcLen-cfg.SrcOffset {
		return 0, fmt.Errorf("%w: offset %d + count %d, source is %d bytes",
			ErrCountExceedsSource, cfg.SrcOffset, *cfg.Count, srcLen)
	}

	dstInfo, err := os.Stat(cfg.Dst)
	switch {
	case err == nil:
		if dstInfo.IsDir() {
			return 0, fmt.Errorf("%w: %s", ErrDestinationIsDir, cfg.Dst)
		}
		if cfg.DstOffset > dstInfo.Size() {
			return 0, fmt.Errorf("%w: offset %d, destination is %d bytes",
				ErrOffsetBeyondDest, cfg.DstOffset, dstInfo.Size())
		}
	case errors.Is(err, os.ErrNotExist):
		if cfg.DstOffset > 0 {
			return 0, fmt.Errorf("%w: seeking past the end of a new file is not portable",
				ErrOffsetOnMissingDest)
		}
	default:
		return 0, fmt.Errorf("destination %s: %w", cfg.Dst, err)
	}

	if cfg.BufferSize <= 0 {
		return 0, ErrEmptyBuffer
	}

	return srcLen, nil
}
