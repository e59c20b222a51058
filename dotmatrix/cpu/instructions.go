package cpu

import "github.com/valdt/dotmatrix/dotmatrix/bit"

func (c *CPU) pushStack(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

func (c *CPU) inc(value uint8) uint8 {
	result := value + 1
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, value&0xF == 0xF)
	return result
}

func (c *CPU) dec(value uint8) uint8 {
	result := value - 1
	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, value&0xF == 0)
	return result
}

func (c *CPU) addToA(value uint8) {
	result, carry := bit.CheckedAdd(c.a, value)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0xF+value&0xF > 0xF)
	c.setFlagToCondition(carryFlag, carry)
	c.a = result
}

func (c *CPU) adcToA(value uint8) {
	carryIn := c.flagToBit(carryFlag)
	sum := uint16(c.a) + uint16(value) + uint16(carryIn)
	result := uint8(sum)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0xF+value&0xF+carryIn > 0xF)
	c.setFlagToCondition(carryFlag, sum > 0xFF)
	c.a = result
}

func (c *CPU) subFromA(value uint8) {
	c.compareA(value)
	c.a -= value
}

func (c *CPU) sbcFromA(value uint8) {
	carryIn := c.flagToBit(carryFlag)
	diff := int16(c.a) - int16(value) - int16(carryIn)
	result := uint8(diff)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, int16(c.a&0xF)-int16(value&0xF)-int16(carryIn) < 0)
	c.setFlagToCondition(carryFlag, diff < 0)
	c.a = result
}

func (c *CPU) andA(value uint8) {
	c.a &= value
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) orA(value uint8) {
	c.a |= value
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) xorA(value uint8) {
	c.a ^= value
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

// compareA sets the flags for A-value without storing the result.
func (c *CPU) compareA(value uint8) {
	result, borrow := bit.CheckedSub(c.a, value)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, c.a&0xF < value&0xF)
	c.setFlagToCondition(carryFlag, borrow)
}

func (c *CPU) addToHL(value uint16) {
	hl := c.getHL()
	result := hl + value
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, hl&0xFFF+value&0xFFF > 0xFFF)
	c.setFlagToCondition(carryFlag, uint32(hl)+uint32(value) > 0xFFFF)
	c.setHL(result)
}

// addSPImmediate computes SP plus a signed immediate, used by both
// ADD SP,e and LD HL,SP+e. Flags come from the unsigned low byte add.
func (c *CPU) addSPImmediate() uint16 {
	n := c.readSignedImmediate()
	sp := c.sp
	result := uint16(int32(sp) + int32(n))
	c.resetFlag(zeroFlag)
	c.resetFlag(subFlag)
	c.setFlagToCondition(halfCarryFlag, sp&0xF+uint16(uint8(n))&0xF > 0xF)
	c.setFlagToCondition(carryFlag, sp&0xFF+uint16(uint8(n)) > 0xFF)
	return result
}

// daa adjusts A back to binary coded decimal after an add or subtract.
func (c *CPU) daa() {
	a := c.a
	if c.isSetFlag(subFlag) {
		if c.isSetFlag(halfCarryFlag) {
			a -= 0x06
		}
		if c.isSetFlag(carryFlag) {
			a -= 0x60
		}
	} else {
		if c.isSetFlag(halfCarryFlag) || c.a&0xF > 9 {
			a += 0x06
		}
		if c.isSetFlag(carryFlag) || c.a > 0x99 {
			a += 0x60
			c.setFlag(carryFlag)
		}
	}
	c.a = a
	c.setFlagToCondition(zeroFlag, a == 0)
	c.resetFlag(halfCarryFlag)
}

// rotate and shift helpers. The CB prefixed forms set the zero flag
// from the result; the bare RLCA/RLA/RRCA/RRA forms always clear it.

func (c *CPU) rlc(value uint8, setZero bool) uint8 {
	result := value<<1 | value>>7
	c.writeRotateFlags(result, value&0x80 != 0, setZero)
	return result
}

func (c *CPU) rl(value uint8, setZero bool) uint8 {
	result := value<<1 | c.flagToBit(carryFlag)
	c.writeRotateFlags(result, value&0x80 != 0, setZero)
	return result
}

func (c *CPU) rrc(value uint8, setZero bool) uint8 {
	result := value>>1 | value<<7
	c.writeRotateFlags(result, value&1 != 0, setZero)
	return result
}

func (c *CPU) rr(value uint8, setZero bool) uint8 {
	result := value>>1 | c.flagToBit(carryFlag)<<7
	c.writeRotateFlags(result, value&1 != 0, setZero)
	return result
}

func (c *CPU) sla(value uint8) uint8 {
	result := value << 1
	c.writeRotateFlags(result, value&0x80 != 0, true)
	return result
}

func (c *CPU) sra(value uint8) uint8 {
	result := value>>1 | value&0x80
	c.writeRotateFlags(result, value&1 != 0, true)
	return result
}

func (c *CPU) srl(value uint8) uint8 {
	result := value >> 1
	c.writeRotateFlags(result, value&1 != 0, true)
	return result
}

func (c *CPU) swap(value uint8) uint8 {
	result := value<<4 | value>>4
	c.writeRotateFlags(result, false, true)
	return result
}

func (c *CPU) writeRotateFlags(result uint8, carry, setZero bool) {
	c.setFlagToCondition(zeroFlag, setZero && result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry)
}

// bitTest sets the zero flag from the given bit of value.
func (c *CPU) bitTest(b uint8, value uint8) {
	c.setFlagToCondition(zeroFlag, !bit.IsSet(b, value))
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
}

// jr adds the signed immediate to PC.
func (c *CPU) jr() {
	n := c.readSignedImmediate()
	c.pc = uint16(int32(c.pc) + int32(n))
}

// halt enters low power mode. Executing HALT with IME off while an
// interrupt is already pending triggers the halt bug instead: the CPU
// does not halt and the next opcode byte is fetched twice.
func (c *CPU) halt() {
	if !c.ime && c.pendingInterrupts() != 0 {
		c.haltBug = true
		return
	}
	c.halted = true
}

// stop enters very low power mode. The following byte is part of the
// instruction encoding and is skipped.
func (c *CPU) stop() {
	c.pc++
	c.stopped = true
}
