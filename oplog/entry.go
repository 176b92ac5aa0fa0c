package oplog

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/meshkit/internal/conv"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/simplex"
)

var (
	// ErrBadHeader is returned when a stream does not start with a log header.
	ErrBadHeader = errors.New("oplog: invalid header")
	// ErrCorrupt is returned when a frame fails its checksum or cannot be decoded.
	ErrCorrupt = errors.New("oplog: corrupt record")
)

// maxPayload bounds a single frame so a damaged length cannot force a huge
// allocation.
const maxPayload = 64 << 20

// Entry is one decoded record.
type Entry struct {
	Seq     uint64
	Worker  int
	Kind    operation.Kind
	Handle  simplex.Handle
	Result  simplex.Handle
	Created [model.NumPrimitives][]model.ElementID
	Deleted [model.NumPrimitives][]model.ElementID
}

func appendHandle(b []byte, h simplex.Handle) []byte {
	b = append(b, h.Local)
	b = binary.AppendVarint(b, int64(h.Cell))
	return binary.AppendVarint(b, h.Epoch)
}

func appendIDs(b []byte, ids []model.ElementID) []byte {
	b = binary.AppendUvarint(b, uint64(len(ids)))
	for _, id := range ids {
		b = binary.AppendVarint(b, int64(id))
	}
	return b
}

// encode appends the payload of rec with sequence number seq.
func encode(b []byte, seq uint64, rec operation.Record) []byte {
	b = binary.AppendUvarint(b, seq)
	b = binary.AppendVarint(b, int64(rec.Worker))
	b = append(b, byte(rec.Kind))
	b = appendHandle(b, rec.Handle)
	b = appendHandle(b, rec.Result)
	for pt := range model.NumPrimitives {
		b = appendIDs(b, rec.Edit.Created[pt])
		b = appendIDs(b, rec.Edit.Deleted[pt])
	}
	return b
}

// decoder walks a payload. The first failure sticks.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
	}
}

func (d *decoder) uvarint(what string) uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail(what)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) varint(what string) int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.fail(what)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) u8(what string) byte {
	if d.err != nil {
		return 0
	}
	if len(d.buf) == 0 {
		d.fail(what)
		return 0
	}
	v := d.buf[0]
	d.buf = d.buf[1:]
	return v
}

func (d *decoder) handle() simplex.Handle {
	return simplex.Handle{
		Local: d.u8("handle"),
		Cell:  model.ElementID(d.varint("handle cell")),
		Epoch: d.varint("handle epoch"),
	}
}

func (d *decoder) ids() []model.ElementID {
	count := d.uvarint("id count")
	if d.err != nil {
		return nil
	}
	n, err := conv.Uint64ToInt(count)
	// Every id takes at least one byte.
	if err != nil || n > len(d.buf) {
		d.err = fmt.Errorf("%w: id count %d exceeds payload", ErrCorrupt, count)
		return nil
	}
	if n == 0 {
		return nil
	}
	out := make([]model.ElementID, n)
	for i := range out {
		out[i] = model.ElementID(d.varint("id"))
	}
	return out
}

func decode(payload []byte) (Entry, error) {
	d := &decoder{buf: payload}
	var e Entry
	e.Seq = d.uvarint("sequence")
	e.Worker = int(d.varint("worker"))
	e.Kind = operation.Kind(d.u8("kind"))
	e.Handle = d.handle()
	e.Result = d.handle()
	for pt := range model.NumPrimitives {
		e.Created[pt] = d.ids()
		e.Deleted[pt] = d.ids()
	}
	if d.err != nil {
		return Entry{}, d.err
	}
	if e.Kind >= operation.NumKinds {
		return Entry{}, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, e.Kind)
	}
	if len(d.buf) != 0 {
		return Entry{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(d.buf))
	}
	return e, nil
}
