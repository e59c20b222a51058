package debugger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valdt/dotmatrix/dotmatrix/cpu"
)

type plannedWrite struct {
	address uint16
	value   uint8
}

// fakeTarget steps a PC through memory one byte at a time and mirrors
// the bus write hook semantics of the real machine.
type fakeTarget struct {
	regs cpu.Regs
	mem  [0x10000]uint8
	hook func(address uint16, value uint8)

	// writes[pc] is performed when the instruction at pc executes
	writes map[uint16]plannedWrite

	failAt  uint16
	failErr error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		regs:   cpu.Regs{PC: 0x0100},
		writes: make(map[uint16]plannedWrite),
	}
}

func (f *fakeTarget) Step() (int, error) {
	if f.failErr != nil && f.regs.PC == f.failAt {
		return 0, f.failErr
	}
	if w, ok := f.writes[f.regs.PC]; ok {
		f.Write(w.address, w.value)
	}
	f.regs.PC++
	return 4, nil
}

func (f *fakeTarget) Registers() cpu.Regs     { return f.regs }
func (f *fakeTarget) SetRegisters(r cpu.Regs) { f.regs = r }
func (f *fakeTarget) Read(address uint16) uint8 {
	return f.mem[address]
}

func (f *fakeTarget) Write(address uint16, value uint8) {
	f.mem[address] = value
	if f.hook != nil {
		f.hook(address, value)
	}
}

func (f *fakeTarget) SetWriteHook(fn func(address uint16, value uint8)) {
	f.hook = fn
}

func TestStepOne(t *testing.T) {
	tgt := newFakeTarget()
	d := New(tgt)

	brk, err := d.StepOne()
	require.NoError(t, err)
	assert.Equal(t, BreakStep, brk.Reason)
	assert.Equal(t, uint16(0x0101), brk.PC)
}

func TestBreakpoint(t *testing.T) {
	tgt := newFakeTarget()
	d := New(tgt)
	d.AddBreakpoint(0x0105)

	brk, err := d.RunUntilBreak()
	require.NoError(t, err)
	assert.Equal(t, BreakBreakpoint, brk.Reason)
	assert.Equal(t, uint16(0x0105), brk.PC)
	// the instruction at the breakpoint has not run yet
	assert.Equal(t, uint16(0x0105), tgt.regs.PC)
}

func TestBreakpointDoesNotRetriggerOnResume(t *testing.T) {
	tgt := newFakeTarget()
	d := New(tgt)
	d.AddBreakpoint(0x0103)
	d.AddBreakpoint(0x0108)

	brk, err := d.RunUntilBreak()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0103), brk.PC)

	// resuming from 0x0103 runs through to the next breakpoint
	brk, err = d.RunUntilBreak()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0108), brk.PC)
}

func TestWatchpoint(t *testing.T) {
	tgt := newFakeTarget()
	tgt.writes[0x0104] = plannedWrite{0xC123, 0x5A}

	d := New(tgt)
	d.AddWatch(0xC123)

	brk, err := d.RunUntilBreak()
	require.NoError(t, err)
	assert.Equal(t, BreakWatch, brk.Reason)
	assert.Equal(t, uint16(0xC123), brk.WatchAddr)
	assert.Equal(t, uint8(0x5A), brk.WatchValue)
	// the write landed before the break was reported
	assert.Equal(t, uint8(0x5A), tgt.mem[0xC123])
	assert.Equal(t, uint16(0x0105), brk.PC)
}

func TestWatchpointViaStepOne(t *testing.T) {
	tgt := newFakeTarget()
	tgt.writes[0x0100] = plannedWrite{0xFF80, 0x01}

	d := New(tgt)
	d.AddWatch(0xFF80)

	brk, err := d.StepOne()
	require.NoError(t, err)
	assert.Equal(t, BreakWatch, brk.Reason)
}

func TestRemove(t *testing.T) {
	tgt := newFakeTarget()
	d := New(tgt)

	d.AddBreakpoint(0x0200)
	d.AddBreakpoint(0x0150)
	d.AddWatch(0xC000)
	assert.Equal(t, []uint16{0x0150, 0x0200}, d.Breakpoints())
	assert.Equal(t, []uint16{0xC000}, d.Watches())

	d.RemoveBreakpoint(0x0150)
	d.RemoveWatch(0xC000)
	assert.Equal(t, []uint16{0x0200}, d.Breakpoints())
	assert.Empty(t, d.Watches())
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	tgt := newFakeTarget()
	d := New(tgt)

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.Stop()
	}()

	brk, err := d.RunUntilBreak()
	require.NoError(t, err)
	assert.Equal(t, BreakStopped, brk.Reason)
}

func TestTargetErrorPropagates(t *testing.T) {
	tgt := newFakeTarget()
	tgt.failAt = 0x0110
	tgt.failErr = errors.New("illegal opcode")

	d := New(tgt)
	_, err := d.RunUntilBreak()
	assert.ErrorContains(t, err, "illegal opcode")
}

func TestDetachReleasesHook(t *testing.T) {
	tgt := newFakeTarget()
	d := New(tgt)
	require.NotNil(t, tgt.hook)

	d.Detach()
	assert.Nil(t, tgt.hook)
}
