package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/bcp/internal/config"
	"github.com/bamsammich/bcp/internal/progress"
)

// recordSink captures the progress calls the engine makes.
type recordSink struct {
	total    int64
	deltas   []int64
	finished bool
}

func (s *recordSink) Start(total int64) { s.total = total }
func (s *recordSink) Add(n int64)       { s.deltas = append(s.deltas, n) }
func (s *recordSink) Finish()           { s.finished = true }

func (s *recordSink) sum() int64 {
	var t int64
	for _, d := range s.deltas {
		t += d
	}
	return t
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCopy_RangeIntoEmptyDestination(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src", []byte("0123456789"))
	dst := filepath.Join(dir, "dst")

	count := int64(5)
	cfg := &config.Config{
		Src:        src,
		Dst:        dst,
		SrcOffset:  2,
		Count:      &count,
		BufferSize: config.DefaultBufferSize,
	}

	sink := &recordSink{}
	written, err := Copy(context.Background(), cfg, 10, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(5), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("23456"), got)

	assert.Equal(t, int64(5), sink.total)
	assert.Equal(t, int64(5), sink.sum())
	assert.True(t, sink.finished)
}

func TestCopy_TailDefaultsToRemainder(t *testing.T) {
	// With no count, the transfer length is everything after the source
	// offset, not the whole source length.
	dir := t.TempDir()
	src := writeFile(t, dir, "src", []byte("0123456789"))
	dst := filepath.Join(dir, "dst")

	cfg := &config.Config{
		Src:        src,
		Dst:        dst,
		SrcOffset:  4,
		BufferSize: 3, // force several chunks
	}

	written, err := Copy(context.Background(), cfg, 10, progress.Nop{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), got)
}

func TestCopy_LastByte(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src", []byte("0123456789"))
	dst := filepath.Join(dir, "dst")

	cfg := &config.Config{
		Src:        src,
		Dst:        dst,
		SrcOffset:  9,
		BufferSize: config.DefaultBufferSize,
	}

	written, err := Copy(context.Background(), cfg, 10, progress.Nop{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("9"), got)
}

func TestCopy_PreservesBytesOutsideRange(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src", []byte("abcde"))
	dst := writeFile(t, dir, "dst", []byte("XXXXXXXXXX"))

	count := int64(3)
	cfg := &config.Config{
		Src:        src,
		Dst:        dst,
		SrcOffset:  1,
		DstOffset:  4,
		Count:      &count,
		BufferSize: config.DefaultBufferSize,
	}

	written, err := Copy(context.Background(), cfg, 5, progress.Nop{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	// Prefix and suffix untouched, no truncation.
	assert.Equal(t, []byte("XXXXbcdXXX"), got)
}

func TestCopy_BufferSizeDoesNotChangeOutput(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 10_000)
	_, err := rand.Read(data)
	require.NoError(t, err)
	src := writeFile(t, dir, "src", data)

	count := int64(7_000)
	for _, bufSize := range []int{1, 7_000, 1 << 20} {
		dst := filepath.Join(dir, fmt.Sprintf("dst-%d", bufSize))
		cfg := &config.Config{
			Src:        src,
			Dst:        dst,
			SrcOffset:  1_000,
			Count:      &count,
			BufferSize: bufSize,
		}

		written, err := Copy(context.Background(), cfg, int64(len(data)), progress.Nop{})
		require.NoError(t, err, "buffer size %d", bufSize)
		require.Equal(t, count, written)

		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, data[1_000:8_000], got, "buffer size %d", bufSize)
	}
}

func TestCopy_MissingSource(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Src:        filepath.Join(dir, "nope"),
		Dst:        filepath.Join(dir, "dst"),
		BufferSize: config.DefaultBufferSize,
	}

	_, err := Copy(context.Background(), cfg, 10, progress.Nop{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopy_SourceShrankAfterValidation(t *testing.T) {
	// Simulate the validation/copy race: srcLen says 20 bytes but the
	// file only has 5. The engine must report it, not silently truncate.
	dir := t.TempDir()
	src := writeFile(t, dir, "src", []byte("01234"))
	dst := filepath.Join(dir, "dst")

	cfg := &config.Config{
		Src:        src,
		Dst:        dst,
		BufferSize: config.DefaultBufferSize,
	}

	written, err := Copy(context.Background(), cfg, 20, progress.Nop{})
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
	assert.Equal(t, int64(5), written)
}

func TestCopy_ContextCanceled(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src", []byte("0123456789"))
	dst := filepath.Join(dir, "dst")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &config.Config{
		Src:        src,
		Dst:        dst,
		BufferSize: config.DefaultBufferSize,
	}

	written, err := Copy(ctx, cfg, 10, progress.Nop{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, written)
}

// --- transfer loop fakes ---

// eintrReader fails the first reads with EINTR, then serves from data.
type eintrReader struct {
	data      *bytes.Reader
	failures  int
	interrupt int
}

func (r *eintrReader) Read(p []byte) (int, error) {
	if r.failures < r.interrupt {
		r.failures++
		return 0, unix.EINTR
	}
	return r.data.Read(p)
}

// shortReader returns at most max bytes per call.
type shortReader struct {
	data *bytes.Reader
	max  int
}

func (r *shortReader) Read(p []byte) (int, error) {
	if len(p) > r.max {
		p = p[:r.max]
	}
	return r.data.Read(p)
}

// chokedWriter accepts at most max bytes per call without erroring.
type chokedWriter struct {
	buf bytes.Buffer
	max int
}

func (w *chokedWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.buf.Write(p)
}

// stuckWriter reports zero bytes written and no error.
type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

// failWriter fails after accepting some bytes.
type failWriter struct {
	accept int
	buf    bytes.Buffer
}

func (w *failWriter) Write(p []byte) (int, error) {
	if w.buf.Len() >= w.accept {
		return 0, errors.New("device error")
	}
	if len(p) > w.accept-w.buf.Len() {
		p = p[:w.accept-w.buf.Len()]
	}
	return w.buf.Write(p)
}

func TestTransfer_RetriesInterruptedReads(t *testing.T) {
	src := &eintrReader{data: bytes.NewReader([]byte("hello world")), interrupt: 3}
	var dst bytes.Buffer

	sink := &recordSink{}
	written, err := transfer(context.Background(), &dst, src, 11, 4, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(11), written)
	assert.Equal(t, "hello world", dst.String())
	assert.Equal(t, 3, src.failures)
	assert.Equal(t, int64(11), sink.sum())
}

func TestTransfer_ShortReadsAccumulate(t *testing.T) {
	src := &shortReader{data: bytes.NewReader([]byte("0123456789")), max: 3}
	var dst bytes.Buffer

	written, err := transfer(context.Background(), &dst, src, 10, 1<<10, progress.Nop{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), written)
	assert.Equal(t, "0123456789", dst.String())
}

func TestTransfer_ShortWritesDrainChunk(t *testing.T) {
	dst := &chokedWriter{max: 2}

	sink := &recordSink{}
	written, err := transfer(context.Background(), dst, bytes.NewReader([]byte("0123456789")), 10, 1<<10, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(10), written)
	assert.Equal(t, "0123456789", dst.buf.String())
	// One delta per successful write, several per chunk here.
	assert.GreaterOrEqual(t, len(sink.deltas), 5)
	assert.Equal(t, int64(10), sink.sum())
}

func TestTransfer_ZeroByteWriteIsShortWrite(t *testing.T) {
	written, err := transfer(context.Background(), stuckWriter{}, bytes.NewReader([]byte("abc")), 3, 1<<10, progress.Nop{})
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Zero(t, written)
}

func TestTransfer_WriteFailureAborts(t *testing.T) {
	dst := &failWriter{accept: 4}

	written, err := transfer(context.Background(), dst, bytes.NewReader([]byte("0123456789")), 10, 2, progress.Nop{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.ErrShortWrite)
	// Bytes flushed before the failure stay reported.
	assert.Equal(t, int64(4), written)
}

func TestTransfer_ReadFailureAborts(t *testing.T) {
	src := io.MultiReader(
		bytes.NewReader([]byte("abcd")),
		iotest{},
	)
	var dst bytes.Buffer

	written, err := transfer(context.Background(), &dst, src, 10, 4, progress.Nop{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedEOF)
	assert.Equal(t, int64(4), written)
	assert.Equal(t, "abcd", dst.String())
}

// iotest always fails with a non-EOF, non-EINTR error.
type iotest struct{}

func (iotest) Read([]byte) (int, error) { return 0, errors.New("bad disk") }

func TestTransfer_ZeroLength(t *testing.T) {
	var dst bytes.Buffer
	sink := &recordSink{}

	written, err := transfer(context.Background(), &dst, bytes.NewReader(nil), 0, 8, sink)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, sink.total)
	assert.True(t, sink.finished)
}
