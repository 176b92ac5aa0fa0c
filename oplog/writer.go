package oplog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/meshkit/operation"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var magic = [4]byte{'M', 'K', 'O', 'L'}

const headerLen = 5

// Compression selects the stream codec of a log.
type Compression uint8

const (
	// CompressionNone writes frames as is.
	CompressionNone Compression = 0
	// CompressionLZ4 compresses the frame stream with lz4.
	CompressionLZ4 Compression = 1
	// CompressionZSTD compresses the frame stream with zstd.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// Options configures a Writer.
type Options struct {
	Compression Compression
	// ZSTDLevel is the zstd level (1-22); only used with CompressionZSTD.
	ZSTDLevel int
}

// DefaultOptions returns the default writer options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionNone,
		ZSTDLevel:   3,
	}
}

type flushCloser interface {
	Flush() error
	Close() error
}

// Writer appends records to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	codec  flushCloser // nil without compression
	seq    uint64
	frame  []byte
	closed bool
}

var _ operation.Recorder = (*Writer)(nil)

// NewWriter writes the log header to w and returns a Writer for the records.
// Close flushes the stream but does not close w.
func NewWriter(w io.Writer, optFns ...func(o *Options)) (*Writer, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var hdr [headerLen]byte
	copy(hdr[:], magic[:])
	hdr[4] = byte(opts.Compression)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("oplog: write header: %w", err)
	}

	lw := &Writer{}
	switch opts.Compression {
	case CompressionNone:
		lw.buf = bufio.NewWriter(w)
	case CompressionZSTD:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.ZSTDLevel)))
		if err != nil {
			return nil, fmt.Errorf("oplog: create zstd encoder: %w", err)
		}
		lw.codec = enc
		lw.buf = bufio.NewWriter(enc)
	case CompressionLZ4:
		enc := lz4.NewWriter(w)
		lw.codec = enc
		lw.buf = bufio.NewWriter(enc)
	default:
		return nil, fmt.Errorf("oplog: unknown compression %d", opts.Compression)
	}
	return lw, nil
}

// Record implements operation.Recorder.
func (w *Writer) Record(rec operation.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("oplog: writer closed")
	}

	w.frame = encode(w.frame[:0], w.seq, rec)
	var head [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(head[:], uint64(len(w.frame)))
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(w.frame))

	for _, part := range [][]byte{head[:n], w.frame, sum[:]} {
		if _, err := w.buf.Write(part); err != nil {
			return fmt.Errorf("oplog: write record %d: %w", w.seq, err)
		}
	}
	w.seq++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Flush pushes buffered records through the codec to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("oplog: flush: %w", err)
	}
	if w.codec != nil {
		if err := w.codec.Flush(); err != nil {
			return fmt.Errorf("oplog: flush codec: %w", err)
		}
	}
	return nil
}

// Close flushes and terminates the stream. Further records fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("oplog: flush: %w", err)
	}
	if w.codec != nil {
		if err := w.codec.Close(); err != nil {
			return fmt.Errorf("oplog: close codec: %w", err)
		}
	}
	return nil
}
