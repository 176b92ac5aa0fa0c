package oplog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Reader replays a log in record order.
type Reader struct {
	compression Compression
	src         *bufio.Reader
	zdec        *zstd.Decoder
	payload     []byte
	next        uint64
}

// NewReader reads the log header from r.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadHeader, hdr[:4])
	}

	lr := &Reader{compression: Compression(hdr[4])}
	switch lr.compression {
	case CompressionNone:
		lr.src = bufio.NewReader(r)
	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("oplog: create zstd decoder: %w", err)
		}
		lr.zdec = dec
		lr.src = bufio.NewReader(dec)
	case CompressionLZ4:
		lr.src = bufio.NewReader(lz4.NewReader(r))
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrBadHeader, hdr[4])
	}
	return lr, nil
}

// Compression reports the codec named in the header.
func (r *Reader) Compression() Compression { return r.compression }

// Next returns the next record. It returns io.EOF at the end of a complete
// log and io.ErrUnexpectedEOF when the log ends inside a record.
func (r *Reader) Next() (Entry, error) {
	size, err := binary.ReadUvarint(r.src)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, r.wrap(err)
	}
	if size > maxPayload {
		return Entry{}, fmt.Errorf("%w: record %d length %d", ErrCorrupt, r.next, size)
	}
	if uint64(cap(r.payload)) < size+8 {
		r.payload = make([]byte, size+8)
	}
	frame := r.payload[:size+8]
	if _, err := io.ReadFull(r.src, frame); err != nil {
		return Entry{}, r.wrap(err)
	}

	body := frame[:size]
	if binary.LittleEndian.Uint64(frame[size:]) != xxhash.Sum64(body) {
		return Entry{}, fmt.Errorf("%w: record %d checksum mismatch", ErrCorrupt, r.next)
	}
	e, err := decode(body)
	if err != nil {
		return Entry{}, fmt.Errorf("record %d: %w", r.next, err)
	}
	if e.Seq != r.next {
		return Entry{}, fmt.Errorf("%w: expected sequence %d, got %d", ErrCorrupt, r.next, e.Seq)
	}
	r.next++
	return e, nil
}

func (r *Reader) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("oplog: read record %d: %w", r.next, err)
}

// Close releases decoder resources. It does not close the source.
func (r *Reader) Close() error {
	if r.zdec != nil {
		r.zdec.Close()
	}
	return nil
}

// Replay calls fn for every record of the log in r.
func Replay(r io.Reader, fn func(e Entry) error) error {
	lr, err := NewReader(r)
	if err != nil {
		return err
	}
	defer lr.Close()
	for {
		e, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
