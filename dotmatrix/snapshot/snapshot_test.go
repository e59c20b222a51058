package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture exercises every field type the Writer offers.
type fixture struct {
	a uint8
	b uint16
	c uint32
	d uint64
	e int
	f bool
	g []byte
	h [4]byte
}

func (x *fixture) Serialize(w *Writer) {
	w.U8(x.a)
	w.U16(x.b)
	w.U32(x.c)
	w.U64(x.d)
	w.Int(x.e)
	w.Bool(x.f)
	w.Bytes(x.g)
	w.Raw(x.h[:])
}

func (x *fixture) Deserialize(r *Reader) error {
	x.a = r.U8()
	x.b = r.U16()
	x.c = r.U32()
	x.d = r.U64()
	x.e = r.Int()
	x.f = r.Bool()
	x.g = r.Bytes()
	r.Raw(x.h[:])
	return r.Err()
}

func TestRoundTrip(t *testing.T) {
	src := &fixture{
		a: 0x12,
		b: 0x3456,
		c: 0xDEADBEEF,
		d: 0x0123456789ABCDEF,
		e: -42,
		f: true,
		g: []byte("payload"),
		h: [4]byte{1, 2, 3, 4},
	}

	blob, err := Encode(src)
	require.NoError(t, err)

	var dst fixture
	require.NoError(t, Decode(blob, &dst))
	assert.Equal(t, src, &dst)
}

func TestMultipleComponents(t *testing.T) {
	first := &fixture{a: 1, g: []byte{}, e: 10}
	second := &fixture{a: 2, g: []byte{0xFF}, e: 20}

	blob, err := Encode(first, second)
	require.NoError(t, err)

	var da, db fixture
	require.NoError(t, Decode(blob, &da, &db))
	assert.Equal(t, uint8(1), da.a)
	assert.Equal(t, uint8(2), db.a)
	assert.Equal(t, 20, db.e)
}

func TestDecodeBadMagic(t *testing.T) {
	assert.ErrorIs(t, Decode(nil, &fixture{}), ErrBadMagic)
	assert.ErrorIs(t, Decode([]byte("XXXX\x02\x00garbage"), &fixture{}), ErrBadMagic)
}

func TestDecodeBadVersion(t *testing.T) {
	blob, err := Encode(&fixture{g: []byte{}})
	require.NoError(t, err)

	blob[4] = 0x63 // rewrite the version field
	blob[5] = 0x00
	err = Decode(blob, &fixture{})
	assert.ErrorIs(t, err, ErrVersion)
	assert.ErrorContains(t, err, "v99")
}

func TestDecodeTruncated(t *testing.T) {
	blob, err := Encode(&fixture{g: []byte{}})
	require.NoError(t, err)

	// one component encoded, two expected
	var da, db fixture
	assert.ErrorIs(t, Decode(blob, &da, &db), ErrTruncated)
}

func TestDecodeCorruptBody(t *testing.T) {
	blob, err := Encode(&fixture{g: []byte{}})
	require.NoError(t, err)

	blob[len(blob)/2] ^= 0xFF
	assert.Error(t, Decode(blob, &fixture{}))
}

func TestVersionIsValidatedBeforeBody(t *testing.T) {
	blob := []byte("DMSS\x01\x00not-gzip")
	err := Decode(blob, &fixture{})
	assert.ErrorIs(t, err, ErrVersion)
}
