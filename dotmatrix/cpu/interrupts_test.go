package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
)

func TestInterruptService(t *testing.T) {
	t.Run("pending interrupt is dispatched when IME is set", func(t *testing.T) {
		c, bus := newTestCPU()
		c.ime = true
		bus.Write(addr.IE, 0x01)
		bus.Write(addr.IF, 0x01)

		cycles, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, 20, cycles)
		assert.Equal(t, addr.VBlankInterrupt.Vector(), c.PC())
		assert.False(t, c.ime)
		assert.Equal(t, uint8(0x00), bus.Read(addr.IF), "IF bit acknowledged")

		// return address on the stack
		assert.Equal(t, uint8(0x00), bus.mem[c.sp])
		assert.Equal(t, uint8(0xC0), bus.mem[c.sp+1])
	})

	t.Run("lowest bit wins when several are pending", func(t *testing.T) {
		c, bus := newTestCPU()
		c.ime = true
		bus.Write(addr.IE, 0x1F)
		bus.Write(addr.IF, 0x14) // timer and joypad

		_, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, addr.TimerInterrupt.Vector(), c.PC())
		assert.Equal(t, uint8(0x10), bus.Read(addr.IF), "joypad still pending")
	})

	t.Run("IME off leaves pending interrupts alone", func(t *testing.T) {
		c, bus := newTestCPU()
		bus.Write(addr.IE, 0x01)
		bus.Write(addr.IF, 0x01)
		loadProgram(bus, 0xC000, 0x00)

		_, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, uint16(0xC001), c.PC())
		assert.Equal(t, uint8(0x01), bus.Read(addr.IF))
	})

	t.Run("masked interrupts are not dispatched", func(t *testing.T) {
		c, bus := newTestCPU()
		c.ime = true
		bus.Write(addr.IE, 0x00)
		bus.Write(addr.IF, 0x1F)
		loadProgram(bus, 0xC000, 0x00)

		_, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, uint16(0xC001), c.PC())
	})
}

func TestEIDelay(t *testing.T) {
	c, bus := newTestCPU()
	bus.Write(addr.IE, 0x01)
	bus.Write(addr.IF, 0x01)
	loadProgram(bus, 0xC000, 0xFB, 0x00) // EI ; NOP

	// EI itself does not enable interrupts
	_, err := c.Step()
	require.NoError(t, err)
	assert.False(t, c.ime)

	// the following instruction still runs before dispatch
	_, err = c.Step()
	require.NoError(t, err)
	assert.True(t, c.ime)
	assert.Equal(t, uint16(0xC002), c.PC())

	// now the interrupt fires
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 20, cycles)
	assert.Equal(t, addr.VBlankInterrupt.Vector(), c.PC())
}

func TestDISuppressesPendingEI(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0xC000, 0xFB, 0xF3) // EI ; DI

	_, err := c.Step()
	require.NoError(t, err)
	_, err = c.Step()
	require.NoError(t, err)

	assert.False(t, c.ime)
	assert.False(t, c.eiPending)
}

func TestRETI(t *testing.T) {
	c, bus := newTestCPU()
	c.sp = 0xFFF0
	bus.mem[0xFFF0] = 0x34
	bus.mem[0xFFF1] = 0x12
	loadProgram(bus, 0xC000, 0xD9)

	_, err := c.Step()

	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), c.PC())
	assert.True(t, c.ime, "RETI enables interrupts without delay")
}

func TestHALT(t *testing.T) {
	t.Run("halt idles until an interrupt is pending", func(t *testing.T) {
		c, bus := newTestCPU()
		loadProgram(bus, 0xC000, 0x76, 0x00) // HALT ; NOP

		_, err := c.Step()
		require.NoError(t, err)
		assert.True(t, c.Halted())

		// stays halted while nothing is pending
		cycles, err := c.Step()
		require.NoError(t, err)
		assert.Equal(t, 4, cycles)
		assert.True(t, c.Halted())
		assert.Equal(t, uint16(0xC001), c.PC())
	})

	t.Run("pending interrupt wakes halt without IME", func(t *testing.T) {
		c, bus := newTestCPU()
		loadProgram(bus, 0xC000, 0x76, 0x00)

		_, err := c.Step()
		require.NoError(t, err)
		require.True(t, c.Halted())

		bus.Write(addr.IE, 0x04)
		bus.Write(addr.IF, 0x04)

		// wakes and executes the NOP; no dispatch with IME off
		_, err = c.Step()
		require.NoError(t, err)
		assert.False(t, c.Halted())
		assert.Equal(t, uint16(0xC002), c.PC())
	})

	t.Run("halt bug duplicates the next opcode byte", func(t *testing.T) {
		c, bus := newTestCPU()
		// HALT with IME off and an interrupt already pending
		bus.Write(addr.IE, 0x01)
		bus.Write(addr.IF, 0x01)
		loadProgram(bus, 0xC000, 0x76, 0x3C, 0x00) // HALT ; INC A

		_, err := c.Step()
		require.NoError(t, err)
		assert.False(t, c.Halted(), "halt bug skips the halt")
		assert.True(t, c.haltBug)

		// INC A executes but PC does not move past it
		_, err = c.Step()
		require.NoError(t, err)
		assert.Equal(t, uint8(0x01), c.a)
		assert.Equal(t, uint16(0xC001), c.PC())

		// so it executes a second time
		_, err = c.Step()
		require.NoError(t, err)
		assert.Equal(t, uint8(0x02), c.a)
		assert.Equal(t, uint16(0xC002), c.PC())
	})
}

func TestSTOP(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0xC000, 0x10, 0x00, 0x04) // STOP ; (skipped) ; INC B

	_, err := c.Step()
	require.NoError(t, err)
	assert.True(t, c.Stopped())
	assert.Equal(t, uint16(0xC002), c.PC(), "STOP consumes its padding byte")

	// frozen until resumed
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0xC002), c.PC())

	c.Resume()
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), c.b)
}
