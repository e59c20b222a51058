package memory

import (
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

const (
	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// MBC is the banking controller between the CPU address space and the
// oversized ROM/RAM on the cartridge. Writes into the ROM window are bank
// control commands; reads fold the 16 bit address into the physical
// backing store using the variant's translation rule.
type MBC interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)

	// RAM exposes cartridge RAM for battery persistence. The returned
	// slice aliases live memory; callers copy if they hold on to it.
	RAM() []byte
	// LoadRAM replaces cartridge RAM contents, typically with a battery
	// save read back from disk. Oversized input is truncated.
	LoadRAM(data []byte)

	snapshot.Serializable
}

func loadRAMInto(ram, data []byte) {
	copy(ram, data)
}

// romOffset folds a bank index and window address into the physical ROM,
// wrapping indexes past the end of the image the way the address lines do.
func romOffset(rom []byte, bank int, addr uint16) int {
	offset := bank*romBankSize + int(addr-0x4000)
	return offset % len(rom)
}

func ramOffset(ram []byte, bank int, addr uint16) int {
	offset := bank*ramBankSize + int(addr-0xA000)
	return offset % len(ram)
}

// NoMBC is a bare 32KB cartridge: the ROM is wired straight into the
// address space with no banking hardware. A few such boards still carry
// a single RAM chip, so the RAM window is honored when the header
// declares one.
type NoMBC struct {
	rom []uint8
	ram []uint8
}

func NewNoMBC(rom []uint8, ramBanks int) *NoMBC {
	return &NoMBC{
		rom: rom,
		ram: make([]uint8, ramBanks*ramBankSize),
	}
}

func (m *NoMBC) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x7FFF:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF && len(m.ram) > 0:
		return m.ram[ramOffset(m.ram, 0, addr)]
	default:
		return 0xFF
	}
}

func (m *NoMBC) Write(addr uint16, value uint8) {
	// ROM is read only; there is no control logic to talk to.
	if addr >= 0xA000 && addr <= 0xBFFF && len(m.ram) > 0 {
		m.ram[ramOffset(m.ram, 0, addr)] = value
	}
}

func (m *NoMBC) RAM() []byte         { return m.ram }
func (m *NoMBC) LoadRAM(data []byte) { loadRAMInto(m.ram, data) }

func (m *NoMBC) Serialize(w *snapshot.Writer) {
	w.Bytes(m.ram)
}

func (m *NoMBC) Deserialize(r *snapshot.Reader) error {
	loadRAMInto(m.ram, r.Bytes())
	return r.Err()
}

// MBC1 supports up to 2MB ROM and 32KB RAM. The ROM bank register is
// split: writes to 0x2000-0x3FFF set the low 5 bits (a value of 0 selects
// bank 1), writes to 0x4000-0x5FFF set 2 more bits that act as either the
// upper ROM bank bits or the RAM bank, depending on the mode latch.
type MBC1 struct {
	rom []uint8
	ram []uint8

	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	mode       uint8 // 0 = ROM banking, 1 = RAM banking
}

func NewMBC1(rom []uint8, ramBanks int) *MBC1 {
	return &MBC1{
		rom:     rom,
		ram:     make([]uint8, ramBanks*ramBankSize),
		romBank: 1,
	}
}

func (m *MBC1) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return m.rom[romOffset(m.rom, int(m.romBank), addr)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, int(m.ramBank), addr)]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x3FFF:
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.romBank = m.romBank&0x60 | bank
	case addr <= 0x5FFF:
		if m.mode == 0 {
			m.romBank = m.romBank&0x1F | (value&0x03)<<5
		} else {
			m.ramBank = value & 0x03
		}
	case addr <= 0x7FFF:
		m.mode = value & 0x01
		if m.mode == 1 {
			// RAM banking mode cannot address the upper ROM banks.
			m.romBank &= 0x1F
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if m.ramEnabled && len(m.ram) > 0 {
			m.ram[ramOffset(m.ram, int(m.ramBank), addr)] = value
		}
	}
}

func (m *MBC1) RAM() []byte         { return m.ram }
func (m *MBC1) LoadRAM(data []byte) { loadRAMInto(m.ram, data) }

func (m *MBC1) Serialize(w *snapshot.Writer) {
	w.U8(m.romBank)
	w.U8(m.ramBank)
	w.Bool(m.ramEnabled)
	w.U8(m.mode)
	w.Bytes(m.ram)
}

func (m *MBC1) Deserialize(r *snapshot.Reader) error {
	m.romBank = r.U8()
	m.ramBank = r.U8()
	m.ramEnabled = r.Bool()
	m.mode = r.U8()
	loadRAMInto(m.ram, r.Bytes())
	return r.Err()
}

// MBC3 has a flat 7 bit ROM bank register and a RAM bank register that
// doubles as the clock register selector on RTC boards. The clock itself
// is not emulated: latch and register writes are accepted, clock reads
// return zero.
type MBC3 struct {
	rom []uint8
	ram []uint8

	romBank    uint8
	ramBank    uint8
	ramEnabled bool
}

func NewMBC3(rom []uint8, ramBanks int) *MBC3 {
	return &MBC3{
		rom:     rom,
		ram:     make([]uint8, ramBanks*ramBankSize),
		romBank: 1,
	}
}

func (m *MBC3) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return m.rom[romOffset(m.rom, int(m.romBank), addr)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank >= 0x08 {
			// RTC register window; the clock is not implemented.
			return 0x00
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, int(m.ramBank), addr)]
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr <= 0x5FFF:
		m.ramBank = value & 0x0F
	case addr <= 0x7FFF:
		// RTC latch sequence; accepted and ignored.
	case addr >= 0xA000 && addr <= 0xBFFF:
		if m.ramEnabled && m.ramBank < 0x08 && len(m.ram) > 0 {
			m.ram[ramOffset(m.ram, int(m.ramBank), addr)] = value
		}
	}
}

func (m *MBC3) RAM() []byte         { return m.ram }
func (m *MBC3) LoadRAM(data []byte) { loadRAMInto(m.ram, data) }

func (m *MBC3) Serialize(w *snapshot.Writer) {
	w.U8(m.romBank)
	w.U8(m.ramBank)
	w.Bool(m.ramEnabled)
	w.Bytes(m.ram)
}

func (m *MBC3) Deserialize(r *snapshot.Reader) error {
	m.romBank = r.U8()
	m.ramBank = r.U8()
	m.ramEnabled = r.Bool()
	loadRAMInto(m.ram, r.Bytes())
	return r.Err()
}

// MBC5 addresses up to 512 ROM banks through a 9 bit bank register split
// over two write windows. Unlike MBC1 it has no banking quirks: bank 0
// can be mapped into the switchable window.
type MBC5 struct {
	rom []uint8
	ram []uint8

	romBank    uint16
	ramBank    uint8
	ramEnabled bool
}

func NewMBC5(rom []uint8, ramBanks int) *MBC5 {
	return &MBC5{
		rom:     rom,
		ram:     make([]uint8, ramBanks*ramBankSize),
		romBank: 1,
	}
}

func (m *MBC5) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		return m.rom[romOffset(m.rom, int(m.romBank), addr)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, int(m.ramBank), addr)]
	default:
		return 0xFF
	}
}

func (m *MBC5) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x2FFF:
		m.romBank = m.romBank&0x100 | uint16(value)
	case addr <= 0x3FFF:
		m.romBank = m.romBank&0x0FF | uint16(value&0x01)<<8
	case addr <= 0x5FFF:
		// Bit 3 drives the rumble motor on rumble boards; it is masked
		// off the bank index either way.
		m.ramBank = value & 0x07
	case addr >= 0xA000 && addr <= 0xBFFF:
		if m.ramEnabled && len(m.ram) > 0 {
			m.ram[ramOffset(m.ram, int(m.ramBank), addr)] = value
		}
	}
}

func (m *MBC5) RAM() []byte         { return m.ram }
func (m *MBC5) LoadRAM(data []byte) { loadRAMInto(m.ram, data) }

func (m *MBC5) Serialize(w *snapshot.Writer) {
	w.U16(m.romBank)
	w.U8(m.ramBank)
	w.Bool(m.ramEnabled)
	w.Bytes(m.ram)
}

func (m *MBC5) Deserialize(r *snapshot.Reader) error {
	m.romBank = r.U16()
	m.ramBank = r.U8()
	m.ramEnabled = r.Bool()
	loadRAMInto(m.ram, r.Bytes())
	return r.Err()
}
