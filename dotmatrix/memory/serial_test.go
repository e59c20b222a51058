package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
)

func TestSerialTransfer(t *testing.T) {
	fired := 0
	s := &Serial{Interrupt: func() { fired++ }}

	s.Write(addr.SB, 0x41)
	s.Write(addr.SC, 0x81) // start, internal clock

	s.Tick(4095)
	assert.Zero(t, fired)
	assert.Equal(t, uint8(0xFF), s.Read(addr.SC)) // start bit still set

	s.Tick(1)
	assert.Equal(t, 1, fired)
	// no peer attached, all ones shift in
	assert.Equal(t, uint8(0xFF), s.Read(addr.SB))
	assert.Equal(t, uint8(0x7F), s.Read(addr.SC))
}

func TestSerialExternalClockNeverCompletes(t *testing.T) {
	fired := 0
	s := &Serial{Interrupt: func() { fired++ }}

	s.Write(addr.SB, 0x42)
	s.Write(addr.SC, 0x80) // external clock, no peer drives it

	s.Tick(100000)
	assert.Zero(t, fired)
	assert.Equal(t, uint8(0x42), s.Read(addr.SB))
}

func TestSerialSCReadMask(t *testing.T) {
	s := &Serial{}
	s.Write(addr.SC, 0x01)
	assert.Equal(t, uint8(0x7F), s.Read(addr.SC))
}

func TestSerialSnapshotRoundTrip(t *testing.T) {
	s := &Serial{}
	s.Write(addr.SB, 0x77)
	s.Write(addr.SC, 0x81)
	s.Tick(1000)

	blob := encodeComponent(t, s)

	restored := &Serial{}
	decodeComponent(t, restored, blob)

	s.Tick(3096)
	restored.Tick(3096)
	assert.Equal(t, s.Read(addr.SB), restored.Read(addr.SB))
	assert.Equal(t, s.Read(addr.SC), restored.Read(addr.SC))
}
