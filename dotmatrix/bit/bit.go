package bit

// Combine joins two bytes into a 16 bit value, high byte first.
func Combine(high, low uint8) uint16 {
	return uint16(high)<<8 | uint16(low)
}

// Low returns the least significant byte of a 16 bit value.
func Low(value uint16) uint8 {
	return uint8(value)
}

// High returns the most significant byte of a 16 bit value.
func High(value uint16) uint8 {
	return uint8(value >> 8)
}

// IsSet reports whether the bit at index is 1.
func IsSet(index, b uint8) bool {
	return (b>>index)&1 == 1
}

// IsSet16 reports whether the bit at index of a 16 bit value is 1.
func IsSet16(index, value uint16) bool {
	return (value>>index)&1 == 1
}

// Set returns b with the bit at index set to 1.
func Set(index, b uint8) uint8 {
	return b | 1<<index
}

// Clear returns b with the bit at index set to 0.
func Clear(index, b uint8) uint8 {
	return b &^ (1 << index)
}

// Value returns 1 if the bit at index is set, 0 otherwise.
func Value(index, b uint8) uint8 {
	if IsSet(index, b) {
		return 1
	}
	return 0
}

// CheckedAdd adds two bytes and reports whether the sum carried out of bit 7.
func CheckedAdd(a, b uint8) (result uint8, carry bool) {
	sum := uint16(a) + uint16(b)
	return uint8(sum), sum > 0xFF
}

// CheckedSub subtracts b from a and reports whether a borrow occurred.
func CheckedSub(a, b uint8) (result uint8, borrow bool) {
	return a - b, b > a
}
