package cpu

import "github.com/valdt/dotmatrix/dotmatrix/bit"

// instruction is a decoded opcode: the mnemonic for diagnostics and the
// handler, which returns the machine cycles consumed. A nil handler
// marks an unassigned opcode.
type instruction struct {
	name string
	fn   func(*CPU) int
}

// Name returns the mnemonic for an opcode value, used by the debugger's
// disassembly output. CB prefixed opcodes are addressed as 0xCBnn.
func Name(op uint16) string {
	var in instruction
	if op > 0xFF {
		in = cbOpcodes[op&0xFF]
	} else {
		in = opcodes[op]
	}
	if in.name == "" {
		return "???"
	}
	return in.name
}

// register operand encoding used by the regular opcode quadrants;
// index 6 is memory at HL
var regNames = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}

func (c *CPU) getReg(i uint8) uint8 {
	switch i {
	case 0:
		return c.b
	case 1:
		return c.c
	case 2:
		return c.d
	case 3:
		return c.e
	case 4:
		return c.h
	case 5:
		return c.l
	case 6:
		return c.bus.Read(c.getHL())
	default:
		return c.a
	}
}

func (c *CPU) setReg(i uint8, value uint8) {
	switch i {
	case 0:
		c.b = value
	case 1:
		c.c = value
	case 2:
		c.d = value
	case 3:
		c.e = value
	case 4:
		c.h = value
	case 5:
		c.l = value
	case 6:
		c.bus.Write(c.getHL(), value)
	default:
		c.a = value
	}
}

func (c *CPU) jrIf(condition bool) int {
	if !condition {
		c.pc++
		return 8
	}
	c.jr()
	return 12
}

func (c *CPU) jpIf(condition bool) int {
	if !condition {
		c.pc += 2
		return 12
	}
	c.pc = c.readImmediateWord()
	return 16
}

func (c *CPU) callIf(condition bool) int {
	if !condition {
		c.pc += 2
		return 12
	}
	target := c.readImmediateWord()
	c.pushStack(c.pc)
	c.pc = target
	return 24
}

func (c *CPU) retIf(condition bool) int {
	if !condition {
		return 8
	}
	c.pc = c.popStack()
	return 20
}

func (c *CPU) rst(vector uint16) int {
	c.pushStack(c.pc)
	c.pc = vector
	return 16
}

// opcodes covers the irregular quadrants explicitly; the regular
// LD r,r' and ALU blocks (0x40-0xBF) are filled by init below.
// Unassigned opcodes (0xD3, 0xDB, ...) stay nil.
var opcodes = [256]instruction{
	0x00: {"NOP", func(c *CPU) int { return 4 }},
	0x01: {"LD BC, nn", func(c *CPU) int { c.setBC(c.readImmediateWord()); return 12 }},
	0x02: {"LD (BC), A", func(c *CPU) int { c.bus.Write(c.getBC(), c.a); return 8 }},
	0x03: {"INC BC", func(c *CPU) int { c.setBC(c.getBC() + 1); return 8 }},
	0x04: {"INC B", func(c *CPU) int { c.b = c.inc(c.b); return 4 }},
	0x05: {"DEC B", func(c *CPU) int { c.b = c.dec(c.b); return 4 }},
	0x06: {"LD B, n", func(c *CPU) int { c.b = c.readImmediate(); return 8 }},
	0x07: {"RLCA", func(c *CPU) int { c.a = c.rlc(c.a, false); return 4 }},
	0x08: {"LD (nn), SP", func(c *CPU) int {
		address := c.readImmediateWord()
		c.bus.Write(address, bit.Low(c.sp))
		c.bus.Write(address+1, bit.High(c.sp))
		return 20
	}},
	0x09: {"ADD HL, BC", func(c *CPU) int { c.addToHL(c.getBC()); return 8 }},
	0x0A: {"LD A, (BC)", func(c *CPU) int { c.a = c.bus.Read(c.getBC()); return 8 }},
	0x0B: {"DEC BC", func(c *CPU) int { c.setBC(c.getBC() - 1); return 8 }},
	0x0C: {"INC C", func(c *CPU) int { c.c = c.inc(c.c); return 4 }},
	0x0D: {"DEC C", func(c *CPU) int { c.c = c.dec(c.c); return 4 }},
	0x0E: {"LD C, n", func(c *CPU) int { c.c = c.readImmediate(); return 8 }},
	0x0F: {"RRCA", func(c *CPU) int { c.a = c.rrc(c.a, false); return 4 }},

	0x10: {"STOP", func(c *CPU) int { c.stop(); return 4 }},
	0x11: {"LD DE, nn", func(c *CPU) int { c.setDE(c.readImmediateWord()); return 12 }},
	0x12: {"LD (DE), A", func(c *CPU) int { c.bus.Write(c.getDE(), c.a); return 8 }},
	0x13: {"INC DE", func(c *CPU) int { c.setDE(c.getDE() + 1); return 8 }},
	0x14: {"INC D", func(c *CPU) int { c.d = c.inc(c.d); return 4 }},
	0x15: {"DEC D", func(c *CPU) int { c.d = c.dec(c.d); return 4 }},
	0x16: {"LD D, n", func(c *CPU) int { c.d = c.readImmediate(); return 8 }},
	0x17: {"RLA", func(c *CPU) int { c.a = c.rl(c.a, false); return 4 }},
	0x18: {"JR e", func(c *CPU) int { c.jr(); return 12 }},
	0x19: {"ADD HL, DE", func(c *CPU) int { c.addToHL(c.getDE()); return 8 }},
	0x1A: {"LD A, (DE)", func(c *CPU) int { c.a = c.bus.Read(c.getDE()); return 8 }},
	0x1B: {"DEC DE", func(c *CPU) int { c.setDE(c.getDE() - 1); return 8 }},
	0x1C: {"INC E", func(c *CPU) int { c.e = c.inc(c.e); return 4 }},
	0x1D: {"DEC E", func(c *CPU) int { c.e = c.dec(c.e); return 4 }},
	0x1E: {"LD E, n", func(c *CPU) int { c.e = c.readImmediate(); return 8 }},
	0x1F: {"RRA", func(c *CPU) int { c.a = c.rr(c.a, false); return 4 }},

	0x20: {"JR NZ, e", func(c *CPU) int { return c.jrIf(!c.isSetFlag(zeroFlag)) }},
	0x21: {"LD HL, nn", func(c *CPU) int { c.setHL(c.readImmediateWord()); return 12 }},
	0x22: {"LD (HL+), A", func(c *CPU) int {
		c.bus.Write(c.getHL(), c.a)
		c.setHL(c.getHL() + 1)
		return 8
	}},
	0x23: {"INC HL", func(c *CPU) int { c.setHL(c.getHL() + 1); return 8 }},
	0x24: {"INC H", func(c *CPU) int { c.h = c.inc(c.h); return 4 }},
	0x25: {"DEC H", func(c *CPU) int { c.h = c.dec(c.h); return 4 }},
	0x26: {"LD H, n", func(c *CPU) int { c.h = c.readImmediate(); return 8 }},
	0x27: {"DAA", func(c *CPU) int { c.daa(); return 4 }},
	0x28: {"JR Z, e", func(c *CPU) int { return c.jrIf(c.isSetFlag(zeroFlag)) }},
	0x29: {"ADD HL, HL", func(c *CPU) int { c.addToHL(c.getHL()); return 8 }},
	0x2A: {"LD A, (HL+)", func(c *CPU) int {
		c.a = c.bus.Read(c.getHL())
		c.setHL(c.getHL() + 1)
		return 8
	}},
	0x2B: {"DEC HL", func(c *CPU) int { c.setHL(c.getHL() - 1); return 8 }},
	0x2C: {"INC L", func(c *CPU) int { c.l = c.inc(c.l); return 4 }},
	0x2D: {"DEC L", func(c *CPU) int { c.l = c.dec(c.l); return 4 }},
	0x2E: {"LD L, n", func(c *CPU) int { c.l = c.readImmediate(); return 8 }},
	0x2F: {"CPL", func(c *CPU) int {
		c.a = ^c.a
		c.setFlag(subFlag)
		c.setFlag(halfCarryFlag)
		return 4
	}},

	0x30: {"JR NC, e", func(c *CPU) int { return c.jrIf(!c.isSetFlag(carryFlag)) }},
	0x31: {"LD SP, nn", func(c *CPU) int { c.sp = c.readImmediateWord(); return 12 }},
	0x32: {"LD (HL-), A", func(c *CPU) int {
		c.bus.Write(c.getHL(), c.a)
		c.setHL(c.getHL() - 1)
		return 8
	}},
	0x33: {"INC SP", func(c *CPU) int { c.sp++; return 8 }},
	0x34: {"INC (HL)", func(c *CPU) int {
		c.bus.Write(c.getHL(), c.inc(c.bus.Read(c.getHL())))
		return 12
	}},
	0x35: {"DEC (HL)", func(c *CPU) int {
		c.bus.Write(c.getHL(), c.dec(c.bus.Read(c.getHL())))
		return 12
	}},
	0x36: {"LD (HL), n", func(c *CPU) int { c.bus.Write(c.getHL(), c.readImmediate()); return 12 }},
	0x37: {"SCF", func(c *CPU) int {
		c.resetFlag(subFlag)
		c.resetFlag(halfCarryFlag)
		c.setFlag(carryFlag)
		return 4
	}},
	0x38: {"JR C, e", func(c *CPU) int { return c.jrIf(c.isSetFlag(carryFlag)) }},
	0x39: {"ADD HL, SP", func(c *CPU) int { c.addToHL(c.sp); return 8 }},
	0x3A: {"LD A, (HL-)", func(c *CPU) int {
		c.a = c.bus.Read(c.getHL())
		c.setHL(c.getHL() - 1)
		return 8
	}},
	0x3B: {"DEC SP", func(c *CPU) int { c.sp--; return 8 }},
	0x3C: {"INC A", func(c *CPU) int { c.a = c.inc(c.a); return 4 }},
	0x3D: {"DEC A", func(c *CPU) int { c.a = c.dec(c.a); return 4 }},
	0x3E: {"LD A, n", func(c *CPU) int { c.a = c.readImmediate(); return 8 }},
	0x3F: {"CCF", func(c *CPU) int {
		c.resetFlag(subFlag)
		c.resetFlag(halfCarryFlag)
		c.setFlagToCondition(carryFlag, !c.isSetFlag(carryFlag))
		return 4
	}},

	0x76: {"HALT", func(c *CPU) int { c.halt(); return 4 }},

	0xC0: {"RET NZ", func(c *CPU) int { return c.retIf(!c.isSetFlag(zeroFlag)) }},
	0xC1: {"POP BC", func(c *CPU) int { c.setBC(c.popStack()); return 12 }},
	0xC2: {"JP NZ, nn", func(c *CPU) int { return c.jpIf(!c.isSetFlag(zeroFlag)) }},
	0xC3: {"JP nn", func(c *CPU) int { c.pc = c.readImmediateWord(); return 16 }},
	0xC4: {"CALL NZ, nn", func(c *CPU) int { return c.callIf(!c.isSetFlag(zeroFlag)) }},
	0xC5: {"PUSH BC", func(c *CPU) int { c.pushStack(c.getBC()); return 16 }},
	0xC7: {"RST 00H", func(c *CPU) int { return c.rst(0x00) }},
	0xC8: {"RET Z", func(c *CPU) int { return c.retIf(c.isSetFlag(zeroFlag)) }},
	0xC9: {"RET", func(c *CPU) int { c.pc = c.popStack(); return 16 }},
	0xCA: {"JP Z, nn", func(c *CPU) int { return c.jpIf(c.isSetFlag(zeroFlag)) }},
	0xCB: {"PREFIX CB", nil}, // dispatched through cbOpcodes, never called
	0xCC: {"CALL Z, nn", func(c *CPU) int { return c.callIf(c.isSetFlag(zeroFlag)) }},
	0xCD: {"CALL nn", func(c *CPU) int {
		target := c.readImmediateWord()
		c.pushStack(c.pc)
		c.pc = target
		return 24
	}},
	0xCF: {"RST 08H", func(c *CPU) int { return c.rst(0x08) }},

	0xD0: {"RET NC", func(c *CPU) int { return c.retIf(!c.isSetFlag(carryFlag)) }},
	0xD1: {"POP DE", func(c *CPU) int { c.setDE(c.popStack()); return 12 }},
	0xD2: {"JP NC, nn", func(c *CPU) int { return c.jpIf(!c.isSetFlag(carryFlag)) }},
	0xD4: {"CALL NC, nn", func(c *CPU) int { return c.callIf(!c.isSetFlag(carryFlag)) }},
	0xD5: {"PUSH DE", func(c *CPU) int { c.pushStack(c.getDE()); return 16 }},
	0xD7: {"RST 10H", func(c *CPU) int { return c.rst(0x10) }},
	0xD8: {"RET C", func(c *CPU) int { return c.retIf(c.isSetFlag(carryFlag)) }},
	0xD9: {"RETI", func(c *CPU) int {
		c.pc = c.popStack()
		c.ime = true
		return 16
	}},
	0xDA: {"JP C, nn", func(c *CPU) int { return c.jpIf(c.isSetFlag(carryFlag)) }},
	0xDC: {"CALL C, nn", func(c *CPU) int { return c.callIf(c.isSetFlag(carryFlag)) }},
	0xDF: {"RST 18H", func(c *CPU) int { return c.rst(0x18) }},

	0xE0: {"LDH (n), A", func(c *CPU) int {
		c.bus.Write(0xFF00+uint16(c.readImmediate()), c.a)
		return 12
	}},
	0xE1: {"POP HL", func(c *CPU) int { c.setHL(c.popStack()); return 12 }},
	0xE2: {"LD (C), A", func(c *CPU) int { c.bus.Write(0xFF00+uint16(c.c), c.a); return 8 }},
	0xE5: {"PUSH HL", func(c *CPU) int { c.pushStack(c.getHL()); return 16 }},
	0xE7: {"RST 20H", func(c *CPU) int { return c.rst(0x20) }},
	0xE8: {"ADD SP, e", func(c *CPU) int { c.sp = c.addSPImmediate(); return 16 }},
	0xE9: {"JP HL", func(c *CPU) int { c.pc = c.getHL(); return 4 }},
	0xEA: {"LD (nn), A", func(c *CPU) int { c.bus.Write(c.readImmediateWord(), c.a); return 16 }},
	0xEF: {"RST 28H", func(c *CPU) int { return c.rst(0x28) }},

	0xF0: {"LDH A, (n)", func(c *CPU) int {
		c.a = c.bus.Read(0xFF00 + uint16(c.readImmediate()))
		return 12
	}},
	0xF1: {"POP AF", func(c *CPU) int { c.setAF(c.popStack()); return 12 }},
	0xF2: {"LD A, (C)", func(c *CPU) int { c.a = c.bus.Read(0xFF00 + uint16(c.c)); return 8 }},
	0xF3: {"DI", func(c *CPU) int {
		c.ime = false
		c.eiPending = false
		return 4
	}},
	0xF5: {"PUSH AF", func(c *CPU) int { c.pushStack(c.getAF()); return 16 }},
	0xF7: {"RST 30H", func(c *CPU) int { return c.rst(0x30) }},
	0xF8: {"LD HL, SP+e", func(c *CPU) int { c.setHL(c.addSPImmediate()); return 12 }},
	0xF9: {"LD SP, HL", func(c *CPU) int { c.sp = c.getHL(); return 8 }},
	0xFA: {"LD A, (nn)", func(c *CPU) int { c.a = c.bus.Read(c.readImmediateWord()); return 16 }},
	0xFB: {"EI", func(c *CPU) int { c.eiPending = true; return 4 }},
	0xFF: {"RST 38H", func(c *CPU) int { return c.rst(0x38) }},
}

// aluOps are the 0x80-0xBF column operations, also reused for the
// immediate forms at 0xC6/0xCE/.../0xFE.
var aluOps = [8]struct {
	name string
	fn   func(*CPU, uint8)
}{
	{"ADD A,", (*CPU).addToA},
	{"ADC A,", (*CPU).adcToA},
	{"SUB", (*CPU).subFromA},
	{"SBC A,", (*CPU).sbcFromA},
	{"AND", (*CPU).andA},
	{"XOR", (*CPU).xorA},
	{"OR", (*CPU).orA},
	{"CP", (*CPU).compareA},
}

func init() {
	// LD r, r'
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		dst := uint8(op>>3) & 7
		src := uint8(op) & 7
		cycles := 4
		if dst == 6 || src == 6 {
			cycles = 8
		}
		opcodes[op] = instruction{
			name: "LD " + regNames[dst] + ", " + regNames[src],
			fn: func(c *CPU) int {
				c.setReg(dst, c.getReg(src))
				return cycles
			},
		}
	}

	// ALU A, r
	for op := 0x80; op <= 0xBF; op++ {
		alu := aluOps[(op>>3)&7]
		src := uint8(op) & 7
		cycles := 4
		if src == 6 {
			cycles = 8
		}
		opcodes[op] = instruction{
			name: alu.name + " " + regNames[src],
			fn: func(c *CPU) int {
				alu.fn(c, c.getReg(src))
				return cycles
			},
		}
	}

	// ALU A, n
	for i, alu := range aluOps {
		alu := alu
		opcodes[0xC6+i*8] = instruction{
			name: alu.name + " n",
			fn: func(c *CPU) int {
				alu.fn(c, c.readImmediate())
				return 8
			},
		}
	}
}
