package cpu

import (
	"fmt"

	"github.com/valdt/dotmatrix/dotmatrix/bit"
)

// cbOpcodes is fully regular, so the whole table is derived from the
// operand encoding: bits 0-2 select the register, bits 3-5 the shift
// operation or bit number, bits 6-7 the quadrant.
var cbOpcodes [256]instruction

// shiftOps are the 0x00-0x3F quadrant operations in encoding order.
var shiftOps = [8]struct {
	name string
	fn   func(*CPU, uint8) uint8
}{
	{"RLC", func(c *CPU, v uint8) uint8 { return c.rlc(v, true) }},
	{"RRC", func(c *CPU, v uint8) uint8 { return c.rrc(v, true) }},
	{"RL", func(c *CPU, v uint8) uint8 { return c.rl(v, true) }},
	{"RR", func(c *CPU, v uint8) uint8 { return c.rr(v, true) }},
	{"SLA", (*CPU).sla},
	{"SRA", (*CPU).sra},
	{"SWAP", (*CPU).swap},
	{"SRL", (*CPU).srl},
}

func init() {
	for op := 0; op <= 0xFF; op++ {
		reg := uint8(op) & 7
		sel := uint8(op>>3) & 7

		switch op >> 6 {
		case 0: // rotates and shifts
			shift := shiftOps[sel]
			cycles := 8
			if reg == 6 {
				cycles = 16
			}
			cbOpcodes[op] = instruction{
				name: shift.name + " " + regNames[reg],
				fn: func(c *CPU) int {
					c.setReg(reg, shift.fn(c, c.getReg(reg)))
					return cycles
				},
			}
		case 1: // BIT b, r
			cycles := 8
			if reg == 6 {
				cycles = 12
			}
			cbOpcodes[op] = instruction{
				name: fmt.Sprintf("BIT %d, %s", sel, regNames[reg]),
				fn: func(c *CPU) int {
					c.bitTest(sel, c.getReg(reg))
					return cycles
				},
			}
		case 2: // RES b, r
			cycles := 8
			if reg == 6 {
				cycles = 16
			}
			cbOpcodes[op] = instruction{
				name: fmt.Sprintf("RES %d, %s", sel, regNames[reg]),
				fn: func(c *CPU) int {
					c.setReg(reg, bit.Clear(sel, c.getReg(reg)))
					return cycles
				},
			}
		default: // SET b, r
			cycles := 8
			if reg == 6 {
				cycles = 16
			}
			cbOpcodes[op] = instruction{
				name: fmt.Sprintf("SET %d, %s", sel, regNames[reg]),
				fn: func(c *CPU) int {
					c.setReg(reg, bit.Set(sel, c.getReg(reg)))
					return cycles
				},
			}
		}
	}
}
