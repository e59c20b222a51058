// Package snapshot implements versioned, compressed save states.
//
// A snapshot is a small header (magic + format version) followed by a
// gzip-compressed body. The body is written field by field by each
// component in a fixed order, so the encoder and decoder are exact
// mirrors: restoring leaves the machine bit-identical to the moment the
// snapshot was taken, including mid-scanline timing.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic identifies a dotmatrix save state blob.
	Magic = "DMSS"
	// Version is the current format version. Bump on any layout change:
	// old blobs must fail cleanly, not misparse.
	Version uint16 = 2
)

var (
	// ErrBadMagic is returned for blobs that are not dotmatrix snapshots.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrVersion is returned for snapshots of an incompatible version.
	ErrVersion = errors.New("snapshot: incompatible version")
	// ErrTruncated is returned when the body ends before every component
	// has read its state back.
	ErrTruncated = errors.New("snapshot: truncated body")
)

// Serializable is implemented by every component that participates in
// save states. Serialize and Deserialize must touch the same fields in
// the same order.
type Serializable interface {
	Serialize(w *Writer)
	Deserialize(r *Reader) error
}

// Encode captures the given components into a versioned, compressed blob.
// Components are written in argument order; Decode must receive them in
// the same order.
func Encode(components ...Serializable) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	binary.Write(&buf, binary.LittleEndian, Version)

	gz := gzip.NewWriter(&buf)
	w := &Writer{w: gz}
	for _, c := range components {
		c.Serialize(w)
	}
	if w.err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", w.err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores components from a blob produced by Encode. The header
// is validated before any component state is mutated.
func Decode(blob []byte, components ...Serializable) error {
	if len(blob) < len(Magic)+2 {
		return ErrBadMagic
	}
	if string(blob[:len(Magic)]) != Magic {
		return ErrBadMagic
	}
	version := binary.LittleEndian.Uint16(blob[len(Magic):])
	if version != Version {
		return fmt.Errorf("%w: blob v%d, supported v%d", ErrVersion, version, Version)
	}

	gz, err := gzip.NewReader(bytes.NewReader(blob[len(Magic)+2:]))
	if err != nil {
		return fmt.Errorf("snapshot: decompress: %w", err)
	}
	defer gz.Close()

	r := &Reader{r: gz}
	for _, c := range components {
		if err := c.Deserialize(r); err != nil {
			return err
		}
	}
	return r.Err()
}

// Writer serializes fields in little-endian order. Errors are sticky; the
// first failure is reported once by Encode.
type Writer struct {
	w   io.Writer
	err error
}

func (w *Writer) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *Writer) U8(v uint8)   { w.write(v) }
func (w *Writer) U16(v uint16) { w.write(v) }
func (w *Writer) U32(v uint32) { w.write(v) }
func (w *Writer) U64(v uint64) { w.write(v) }
func (w *Writer) Int(v int)    { w.write(int64(v)) }

func (w *Writer) Bool(v bool) {
	var b uint8
	if v {
		b = 1
	}
	w.write(b)
}

// Bytes writes a length-prefixed byte slice.
func (w *Writer) Bytes(p []byte) {
	w.U32(uint32(len(p)))
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// Raw writes a fixed-size byte region with no length prefix. The reader
// must know the size.
func (w *Writer) Raw(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// Reader mirrors Writer. Errors are sticky and surface through Err; on
// error every accessor returns a zero value so component Deserialize
// methods can stay linear.
type Reader struct {
	r   io.Reader
	err error
}

func (r *Reader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		r.err = err
	}
}

func (r *Reader) U8() uint8   { var v uint8; r.read(&v); return v }
func (r *Reader) U16() uint16 { var v uint16; r.read(&v); return v }
func (r *Reader) U32() uint32 { var v uint32; r.read(&v); return v }
func (r *Reader) U64() uint64 { var v uint64; r.read(&v); return v }
func (r *Reader) Int() int    { var v int64; r.read(&v); return int(v) }

func (r *Reader) Bool() bool {
	return r.U8() != 0
}

// Bytes reads a length-prefixed byte slice written by Writer.Bytes.
func (r *Reader) Bytes() []byte {
	n := r.U32()
	if r.err != nil {
		return nil
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(r.r, p); err != nil {
		r.err = ErrTruncated
		return nil
	}
	return p
}

// Raw fills a fixed-size byte region written by Writer.Raw.
func (r *Reader) Raw(p []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		r.err = ErrTruncated
	}
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error { return r.err }
