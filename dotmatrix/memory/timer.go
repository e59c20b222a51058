package memory

import (
	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/bit"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

// tacBit maps the TAC clock select bits to the divider bit that clocks
// TIMA. The counter increments on the falling edge of the selected bit
// while TAC bit 2 enables the timer.
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacBit = [4]uint16{9, 3, 5, 7}

// Timer implements DIV/TIMA/TMA/TAC. DIV is the upper byte of a free
// running 16 bit counter that advances every cycle; TIMA is clocked from
// a selectable bit of that counter with edge detection, which is what
// makes DIV writes able to skip (or force) timer ticks on hardware.
type Timer struct {
	counter     uint16 // internal divider, DIV reads the upper 8 bits
	lastEdge    bool   // previous state of the selected bit
	overflowIn  int    // cycles until the pending TIMA reload happens
	interruptIn bool   // reload done, interrupt fires on the next cycle

	tima uint8
	tma  uint8
	tac  uint8

	// Interrupt is invoked to raise the timer interrupt.
	Interrupt func()
}

// Tick advances the timer by the given number of machine cycles.
func (t *Timer) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if t.interruptIn {
			t.interruptIn = false
			if t.Interrupt != nil {
				t.Interrupt()
			}
		}

		t.counter++

		if t.overflowIn > 0 {
			// TIMA holds 0 for 4 cycles after overflow, then reloads
			// from TMA and raises the interrupt one cycle later.
			t.overflowIn--
			if t.overflowIn == 0 {
				t.tima = t.tma
				t.interruptIn = true
			}
			continue
		}

		if !bit.IsSet(2, t.tac) {
			t.lastEdge = false
			continue
		}

		edge := bit.IsSet16(tacBit[t.tac&0x03], t.counter)
		if t.lastEdge && !edge {
			t.increment()
		}
		t.lastEdge = edge
	}
}

func (t *Timer) increment() {
	if t.tima == 0xFF {
		t.overflowIn = 4
	}
	t.tima++
}

func (t *Timer) Read(address uint16) uint8 {
	switch address {
	case addr.DIV:
		return uint8(t.counter >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	}
	return 0xFF
}

func (t *Timer) Write(address uint16, value uint8) {
	switch address {
	case addr.DIV:
		// Any write resets the whole internal counter, not just DIV.
		t.counter = 0
	case addr.TIMA:
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
	}
}

// Divider returns the raw internal counter, used by the STOP wake logic.
func (t *Timer) Divider() uint16 { return t.counter }

// ResetDivider clears the internal counter, as entering STOP does.
func (t *Timer) ResetDivider() { t.counter = 0 }

func (t *Timer) Serialize(w *snapshot.Writer) {
	w.U16(t.counter)
	w.Bool(t.lastEdge)
	w.Int(t.overflowIn)
	w.Bool(t.interruptIn)
	w.U8(t.tima)
	w.U8(t.tma)
	w.U8(t.tac)
}

func (t *Timer) Deserialize(r *snapshot.Reader) error {
	t.counter = r.U16()
	t.lastEdge = r.Bool()
	t.overflowIn = r.Int()
	t.interruptIn = r.Bool()
	t.tima = r.U8()
	t.tma = r.U8()
	t.tac = r.U8()
	return r.Err()
}
