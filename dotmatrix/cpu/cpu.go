package cpu

import (
	"errors"
	"fmt"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/bit"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

// Bus is the CPU's view of the memory bus.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Flag is one of the four condition flags in the F register.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

const interruptCycles = 20

// ErrIllegalOpcode is returned by Step when the program counter lands on
// one of the eleven unassigned opcodes. On hardware these lock up the
// CPU, so execution cannot meaningfully continue.
var ErrIllegalOpcode = errors.New("illegal opcode")

// CPU is the SM83 core. It owns the register file and interrupt state;
// everything else is reached through the bus.
type CPU struct {
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	ime       bool
	eiPending bool // EI takes effect after the following instruction
	halted    bool
	stopped   bool
	haltBug   bool
	cycles    uint64

	bus Bus
}

// New returns a CPU with post-boot register values, as left by the DMG
// boot ROM. CGB mode differs only in A.
func New(bus Bus, cgb bool) *CPU {
	c := &CPU{bus: bus}
	c.setAF(0x01B0)
	if cgb {
		c.setAF(0x11B0)
	}
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
	return c
}

// Step executes one instruction, or services one interrupt, and returns
// the machine cycles consumed. A non-nil error means the core fetched an
// illegal opcode and is wedged.
func (c *CPU) Step() (int, error) {
	if pending := c.pendingInterrupts(); pending != 0 {
		// any pending interrupt wakes HALT, even with IME off
		c.halted = false
		if c.ime {
			c.serviceInterrupt(pending)
			c.cycles += interruptCycles
			return interruptCycles, nil
		}
	}

	if c.halted || c.stopped {
		c.cycles += 4
		return 4, nil
	}

	enableIME := c.eiPending

	fetchPC := c.pc
	op := uint16(c.bus.Read(c.pc))
	if c.haltBug {
		// PC fails to advance past the opcode byte, so the next fetch
		// sees it again
		c.haltBug = false
	} else {
		c.pc++
	}

	in := opcodes[op]
	if op == 0xCB {
		op = 0xCB00 | uint16(c.readImmediate())
		in = cbOpcodes[op&0xFF]
	}

	if in.fn == nil {
		return 0, fmt.Errorf("%w 0x%02X at PC 0x%04X (AF=%04X BC=%04X DE=%04X HL=%04X SP=%04X)",
			ErrIllegalOpcode, op, fetchPC, c.getAF(), c.getBC(), c.getDE(), c.getHL(), c.sp)
	}

	cycles := in.fn(c)
	c.cycles += uint64(cycles)

	if enableIME && c.eiPending {
		c.eiPending = false
		c.ime = true
	}
	return cycles, nil
}

// pendingInterrupts returns IF&IE masked to the five interrupt bits.
func (c *CPU) pendingInterrupts() uint8 {
	return c.bus.Read(addr.IF) & c.bus.Read(addr.IE) & 0x1F
}

// serviceInterrupt dispatches the highest priority pending interrupt:
// acknowledge in IF, disable IME, push PC and jump to the vector.
func (c *CPU) serviceInterrupt(pending uint8) {
	for i := addr.VBlankInterrupt; i <= addr.JoypadInterrupt; i++ {
		if !bit.IsSet(uint8(i), pending) {
			continue
		}
		flags := c.bus.Read(addr.IF)
		c.bus.Write(addr.IF, bit.Clear(uint8(i), flags))
		c.ime = false
		c.pushStack(c.pc)
		c.pc = i.Vector()
		return
	}
}

// readImmediate reads the byte at PC and advances past it.
func (c *CPU) readImmediate() uint8 {
	n := c.bus.Read(c.pc)
	c.pc++
	return n
}

// readImmediateWord reads the little-endian word at PC and advances
// past it.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

func (c *CPU) setFlag(flag Flag)   { c.f |= uint8(flag) }
func (c *CPU) resetFlag(flag Flag) { c.f &^= uint8(flag) }

func (c *CPU) isSetFlag(flag Flag) bool { return c.f&uint8(flag) != 0 }

func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) getAF() uint16 { return bit.Combine(c.a, c.f) }
func (c *CPU) getBC() uint16 { return bit.Combine(c.b, c.c) }
func (c *CPU) getDE() uint16 { return bit.Combine(c.d, c.e) }
func (c *CPU) getHL() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// low nibble of F does not exist
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

// PC returns the current program counter.
func (c *CPU) PC() uint16 { return c.pc }

// SetPC moves the program counter, leaving all other state alone.
func (c *CPU) SetPC(pc uint16) { c.pc = pc }

// Halted reports whether the core is in HALT.
func (c *CPU) Halted() bool { return c.halted }

// Stopped reports whether the core is in STOP.
func (c *CPU) Stopped() bool { return c.stopped }

// Resume leaves STOP mode, typically on a joypad line transition.
func (c *CPU) Resume() { c.stopped = false }

// Cycles returns the total machine cycles executed so far.
func (c *CPU) Cycles() uint64 { return c.cycles }

// Regs is an externally visible copy of the register file, used by the
// debugger.
type Regs struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
}

// Registers returns a copy of the register file.
func (c *CPU) Registers() Regs {
	return Regs{
		A: c.a, F: c.f, B: c.b, C: c.c,
		D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc,
	}
}

// SetRegisters overwrites the register file, masking the unused low
// nibble of F.
func (c *CPU) SetRegisters(r Regs) {
	c.a, c.f = r.A, r.F&0xF0
	c.b, c.c = r.B, r.C
	c.d, c.e = r.D, r.E
	c.h, c.l = r.H, r.L
	c.sp, c.pc = r.SP, r.PC
}

func (c *CPU) Serialize(w *snapshot.Writer) {
	w.U8(c.a)
	w.U8(c.f)
	w.U8(c.b)
	w.U8(c.c)
	w.U8(c.d)
	w.U8(c.e)
	w.U8(c.h)
	w.U8(c.l)
	w.U16(c.sp)
	w.U16(c.pc)
	w.Bool(c.ime)
	w.Bool(c.eiPending)
	w.Bool(c.halted)
	w.Bool(c.stopped)
	w.Bool(c.haltBug)
	w.U64(c.cycles)
}

func (c *CPU) Deserialize(r *snapshot.Reader) error {
	c.a = r.U8()
	c.f = r.U8()
	c.b = r.U8()
	c.c = r.U8()
	c.d = r.U8()
	c.e = r.U8()
	c.h = r.U8()
	c.l = r.U8()
	c.sp = r.U16()
	c.pc = r.U16()
	c.ime = r.Bool()
	c.eiPending = r.Bool()
	c.halted = r.Bool()
	c.stopped = r.Bool()
	c.haltBug = r.Bool()
	c.cycles = r.U64()
	return r.Err()
}
