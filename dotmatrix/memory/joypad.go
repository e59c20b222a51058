package memory

import (
	"github.com/valdt/dotmatrix/dotmatrix/bit"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

// Button is one of the eight console buttons.
type Button uint8

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

func (b Button) String() string {
	names := [...]string{"right", "left", "up", "down", "a", "b", "select", "start"}
	if int(b) < len(names) {
		return names[b]
	}
	return "unknown"
}

// Joypad implements the P1 button matrix. The register's bits 4-5 select
// which button group drives the low nibble; a low bit means pressed.
// Software writes the selector, then reads back the line states.
type Joypad struct {
	selector uint8 // bits 4-5 of P1, as last written
	dpad     uint8 // low nibble line states for the d-pad group
	buttons  uint8 // low nibble line states for A/B/Select/Start

	// Interrupt is invoked on a high-to-low line transition.
	Interrupt func()
}

// NewJoypad returns a joypad with all buttons released.
func NewJoypad() *Joypad {
	return &Joypad{dpad: 0x0F, buttons: 0x0F, selector: 0x30}
}

// Read returns the P1 register: unused bits 6-7 high, the selector as
// written, and the low nibble ANDed across all selected groups.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) | j.selector
	lines := uint8(0x0F)
	if !bit.IsSet(4, j.selector) {
		lines &= j.dpad
	}
	if !bit.IsSet(5, j.selector) {
		lines &= j.buttons
	}
	return result | lines
}

// Write stores the group selector; the line bits are read only.
func (j *Joypad) Write(value uint8) {
	j.selector = value & 0x30
}

// Press marks a button as held and raises the joypad interrupt on the
// newly grounded line.
func (j *Joypad) Press(b Button) {
	before := j.dpad & j.buttons
	if b <= ButtonDown {
		j.dpad = bit.Clear(uint8(b), j.dpad)
	} else {
		j.buttons = bit.Clear(uint8(b-ButtonA), j.buttons)
	}
	after := j.dpad & j.buttons
	if before&^after != 0 && j.Interrupt != nil {
		j.Interrupt()
	}
}

// Release marks a button as released.
func (j *Joypad) Release(b Button) {
	if b <= ButtonDown {
		j.dpad = bit.Set(uint8(b), j.dpad)
	} else {
		j.buttons = bit.Set(uint8(b-ButtonA), j.buttons)
	}
}

// AnyPressed reports whether any button is currently held. STOP uses
// this as its wake condition.
func (j *Joypad) AnyPressed() bool {
	return j.dpad&j.buttons != 0x0F
}

func (j *Joypad) Serialize(w *snapshot.Writer) {
	w.U8(j.selector)
	w.U8(j.dpad)
	w.U8(j.buttons)
}

func (j *Joypad) Deserialize(r *snapshot.Reader) error {
	j.selector = r.U8()
	j.dpad = r.U8()
	j.buttons = r.U8()
	return r.Err()
}
