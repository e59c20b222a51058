// Package addr holds the addresses of the memory mapped hardware registers
// and the fixed memory regions of the console.
package addr

// Memory regions.
const (
	ROM0Start uint16 = 0x0000
	ROMXStart uint16 = 0x4000
	VRAMStart uint16 = 0x8000
	VRAMEnd   uint16 = 0x9FFF
	ERAMStart uint16 = 0xA000
	ERAMEnd   uint16 = 0xBFFF
	WRAMStart uint16 = 0xC000
	WRAMEnd   uint16 = 0xDFFF
	EchoStart uint16 = 0xE000
	EchoEnd   uint16 = 0xFDFF
	OAMStart  uint16 = 0xFE00
	OAMEnd    uint16 = 0xFE9F
	IOStart   uint16 = 0xFF00
	HRAMStart uint16 = 0xFF80
	HRAMEnd   uint16 = 0xFFFE
)

// Joypad and serial.
const (
	// P1 selects and reads the joypad button matrix.
	P1 uint16 = 0xFF00
	// SB holds the byte shifted out (and in) during a serial transfer.
	SB uint16 = 0xFF01
	// SC controls serial transfers: bit 7 start, bit 0 internal clock.
	SC uint16 = 0xFF02
)

// Timer registers.
const (
	// DIV exposes the upper 8 bits of the free running divider. Writes reset it.
	DIV uint16 = 0xFF04
	// TIMA is the programmable timer counter.
	TIMA uint16 = 0xFF05
	// TMA is the value reloaded into TIMA on overflow.
	TMA uint16 = 0xFF06
	// TAC enables the timer and selects its rate.
	TAC uint16 = 0xFF07
)

// Interrupt registers.
const (
	// IF holds the pending interrupt flags. Upper 3 bits read as 1.
	IF uint16 = 0xFF0F
	// IE enables individual interrupts.
	IE uint16 = 0xFFFF
)

// PPU registers.
const (
	LCDC uint16 = 0xFF40 // LCD control
	STAT uint16 = 0xFF41 // LCD status / mode
	SCY  uint16 = 0xFF42 // background scroll Y
	SCX  uint16 = 0xFF43 // background scroll X
	LY   uint16 = 0xFF44 // current scanline (read only)
	LYC  uint16 = 0xFF45 // scanline compare
	DMA  uint16 = 0xFF46 // OAM DMA source (high byte)
	BGP  uint16 = 0xFF47 // background palette (DMG)
	OBP0 uint16 = 0xFF48 // object palette 0 (DMG)
	OBP1 uint16 = 0xFF49 // object palette 1 (DMG)
	WY   uint16 = 0xFF4A // window Y position
	WX   uint16 = 0xFF4B // window X position, offset by 7
)

// CGB-only registers.
const (
	KEY1 uint16 = 0xFF4D // speed switch (stored, not emulated)
	VBK  uint16 = 0xFF4F // VRAM bank select
	SVBK uint16 = 0xFF70 // WRAM bank select
	BCPS uint16 = 0xFF68 // background palette index
	BCPD uint16 = 0xFF69 // background palette data
	OCPS uint16 = 0xFF6A // object palette index
	OCPD uint16 = 0xFF6B // object palette data

	HDMA1 uint16 = 0xFF51 // VRAM DMA source high
	HDMA2 uint16 = 0xFF52 // VRAM DMA source low
	HDMA3 uint16 = 0xFF53 // VRAM DMA destination high
	HDMA4 uint16 = 0xFF54 // VRAM DMA destination low
	HDMA5 uint16 = 0xFF55 // VRAM DMA length, mode and status
)

// APU registers.
const (
	AudioStart uint16 = 0xFF10
	AudioEnd   uint16 = 0xFF3F

	NR10 uint16 = 0xFF10 // channel 1 sweep
	NR11 uint16 = 0xFF11 // channel 1 length timer & duty
	NR12 uint16 = 0xFF12 // channel 1 volume & envelope
	NR13 uint16 = 0xFF13 // channel 1 period low
	NR14 uint16 = 0xFF14 // channel 1 period high & control

	NR21 uint16 = 0xFF16 // channel 2 length timer & duty
	NR22 uint16 = 0xFF17 // channel 2 volume & envelope
	NR23 uint16 = 0xFF18 // channel 2 period low
	NR24 uint16 = 0xFF19 // channel 2 period high & control

	NR30 uint16 = 0xFF1A // channel 3 DAC enable
	NR31 uint16 = 0xFF1B // channel 3 length timer
	NR32 uint16 = 0xFF1C // channel 3 output level
	NR33 uint16 = 0xFF1D // channel 3 period low
	NR34 uint16 = 0xFF1E // channel 3 period high & control

	NR41 uint16 = 0xFF20 // channel 4 length timer
	NR42 uint16 = 0xFF21 // channel 4 volume & envelope
	NR43 uint16 = 0xFF22 // channel 4 frequency & randomness
	NR44 uint16 = 0xFF23 // channel 4 control

	NR50 uint16 = 0xFF24 // master volume
	NR51 uint16 = 0xFF25 // panning
	NR52 uint16 = 0xFF26 // power / channel status

	WaveRAMStart uint16 = 0xFF30
	WaveRAMEnd   uint16 = 0xFF3F
)

// Tile data and tile maps.
const (
	TileData0 uint16 = 0x8000 // unsigned tile indexing base
	TileData1 uint16 = 0x8800 // signed tile indexing, tiles -128..-1
	TileData2 uint16 = 0x9000 // signed tile indexing, tiles 0..127

	TileMap0 uint16 = 0x9800
	TileMap1 uint16 = 0x9C00
)

// Interrupt identifies one of the five interrupt sources, in priority
// order: bit 0 (VBlank) is serviced first, bit 4 (Joypad) last.
type Interrupt uint8

const (
	VBlankInterrupt Interrupt = iota
	LCDSTATInterrupt
	TimerInterrupt
	SerialInterrupt
	JoypadInterrupt
)

// Vector returns the fixed service routine address for the interrupt.
func (i Interrupt) Vector() uint16 {
	return 0x40 + uint16(i)*8
}

func (i Interrupt) String() string {
	switch i {
	case VBlankInterrupt:
		return "vblank"
	case LCDSTATInterrupt:
		return "stat"
	case TimerInterrupt:
		return "timer"
	case SerialInterrupt:
		return "serial"
	case JoypadInterrupt:
		return "joypad"
	}
	return "unknown"
}
