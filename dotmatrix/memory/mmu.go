package memory

import (
	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/audio"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

// region identifies what a 256-byte page of the address space maps to.
// A page table keeps the hot Read/Write paths to one index and one
// switch instead of a ladder of range compares.
type region uint8

const (
	regionROM region = iota
	regionVRAM
	regionERAM
	regionWRAM0
	regionWRAMX
	regionEcho
	regionHigh // OAM, unusable area, IO, HRAM, IE
)

var pageRegions [256]region

func init() {
	for page := 0; page < 256; page++ {
		a := uint16(page) << 8
		switch {
		case a < addr.VRAMStart:
			pageRegions[page] = regionROM
		case a <= addr.VRAMEnd:
			pageRegions[page] = regionVRAM
		case a <= addr.ERAMEnd:
			pageRegions[page] = regionERAM
		case a < 0xD000:
			pageRegions[page] = regionWRAM0
		case a <= addr.WRAMEnd:
			pageRegions[page] = regionWRAMX
		case a <= addr.EchoEnd:
			pageRegions[page] = regionEcho
		default:
			pageRegions[page] = regionHigh
		}
	}
}

// MMU is the memory bus. It owns work RAM, HRAM and the interrupt
// registers and routes every other address to the component that owns
// it: cartridge mapper, PPU, APU, timer, serial port or joypad.
type MMU struct {
	cart *Cartridge
	mbc  MBC

	ppu    video.Unit
	apu    *audio.APU
	timer  *Timer
	serial *Serial
	joypad *Joypad

	cgb      bool
	wram     [8][0x1000]uint8
	wramBank uint8
	hram     [0x7F]uint8

	interruptFlags  uint8
	interruptEnable uint8

	dma  uint8 // last value written to the DMA register
	vdma vramDMA

	// writeHook observes every completed bus write, used for memory
	// watchpoints. Nil when no debugger is attached.
	writeHook func(address uint16, value uint8)
}

// NewMMU wires a bus around the given cartridge and display unit.
func NewMMU(cart *Cartridge, ppu video.Unit, apu *audio.APU) *MMU {
	m := &MMU{
		cart:     cart,
		mbc:      cart.newMBC(),
		ppu:      ppu,
		apu:      apu,
		timer:    &Timer{},
		serial:   &Serial{},
		joypad:   NewJoypad(),
		cgb:      cart.CGB(),
		wramBank: 1,
	}
	m.timer.Interrupt = func() { m.RequestInterrupt(addr.TimerInterrupt) }
	m.serial.Interrupt = func() { m.RequestInterrupt(addr.SerialInterrupt) }
	m.joypad.Interrupt = func() { m.RequestInterrupt(addr.JoypadInterrupt) }
	return m
}

// RequestInterrupt sets the corresponding bit in IF.
func (m *MMU) RequestInterrupt(i addr.Interrupt) {
	m.interruptFlags |= 1 << i
}

// SetWriteHook installs fn as the bus write observer. Pass nil to
// remove it.
func (m *MMU) SetWriteHook(fn func(address uint16, value uint8)) {
	m.writeHook = fn
}

// Cartridge returns the loaded cartridge.
func (m *MMU) Cartridge() *Cartridge { return m.cart }

// Timer returns the timer unit; the machine needs it for STOP handling.
func (m *MMU) Timer() *Timer { return m.timer }

// Joypad returns the joypad unit.
func (m *MMU) Joypad() *Joypad { return m.joypad }

// BatteryRAM returns the mapper's external RAM, or nil when the
// cartridge has no battery backed save.
func (m *MMU) BatteryRAM() []byte {
	if !m.cart.HasBattery() {
		return nil
	}
	return m.mbc.RAM()
}

// LoadBatteryRAM restores a previously saved external RAM image.
func (m *MMU) LoadBatteryRAM(data []byte) {
	m.mbc.LoadRAM(data)
}

// Tick advances the bus-owned peripherals by the given machine cycles.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	m.serial.Tick(cycles)
	if m.cgb {
		m.tickVRAMDMA()
	}
}

// Read returns the byte at the given address.
func (m *MMU) Read(address uint16) uint8 {
	switch pageRegions[address>>8] {
	case regionROM:
		return m.mbc.Read(address)
	case regionVRAM:
		return m.ppu.ReadVRAM(address)
	case regionERAM:
		return m.mbc.Read(address)
	case regionWRAM0:
		return m.wram[0][address&0x0FFF]
	case regionWRAMX:
		return m.wram[m.wramBank][address&0x0FFF]
	case regionEcho:
		return m.Read(address - 0x2000)
	default:
		return m.readHigh(address)
	}
}

func (m *MMU) readHigh(address uint16) uint8 {
	switch {
	case address <= addr.OAMEnd:
		return m.ppu.ReadOAM(address)
	case address < addr.IOStart:
		// unusable area
		return 0xFF
	case address >= addr.HRAMStart && address <= addr.HRAMEnd:
		return m.hram[address-addr.HRAMStart]
	case address == addr.IE:
		return m.interruptEnable
	default:
		return m.readIO(address)
	}
}

func (m *MMU) readIO(address uint16) uint8 {
	switch {
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address == addr.IF:
		return m.interruptFlags | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.apu.ReadRegister(address)
	case address == addr.DMA:
		return m.dma
	case address >= addr.LCDC && address <= addr.WX:
		return m.ppu.ReadRegister(address)
	case address == addr.KEY1 || address == addr.VBK,
		address >= addr.BCPS && address <= addr.OCPD:
		return m.ppu.ReadRegister(address)
	case address == addr.HDMA5:
		if !m.cgb {
			return 0xFF
		}
		return m.vdma.status()
	case address == addr.SVBK:
		if !m.cgb {
			return 0xFF
		}
		return 0xF8 | m.wramBank
	default:
		return 0xFF
	}
}

// Write stores value at the given address.
func (m *MMU) Write(address uint16, value uint8) {
	switch pageRegions[address>>8] {
	case regionROM:
		m.mbc.Write(address, value)
	case regionVRAM:
		m.ppu.WriteVRAM(address, value)
	case regionERAM:
		m.mbc.Write(address, value)
	case regionWRAM0:
		m.wram[0][address&0x0FFF] = value
	case regionWRAMX:
		m.wram[m.wramBank][address&0x0FFF] = value
	case regionEcho:
		m.Write(address-0x2000, value)
		return
	default:
		m.writeHigh(address, value)
	}

	if m.writeHook != nil {
		m.writeHook(address, value)
	}
}

func (m *MMU) writeHigh(address uint16, value uint8) {
	switch {
	case address <= addr.OAMEnd:
		m.ppu.WriteOAM(address, value)
	case address < addr.IOStart:
		// unusable area, writes dropped
	case address >= addr.HRAMStart && address <= addr.HRAMEnd:
		m.hram[address-addr.HRAMStart] = value
	case address == addr.IE:
		m.interruptEnable = value
	default:
		m.writeIO(address, value)
	}
}

func (m *MMU) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.P1:
		m.joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
	case address == addr.IF:
		m.interruptFlags = value & 0x1F
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.apu.WriteRegister(address, value)
	case address == addr.DMA:
		m.dma = value
		m.oamDMA(value)
	case address >= addr.LCDC && address <= addr.WX:
		m.ppu.WriteRegister(address, value)
	case address == addr.KEY1 || address == addr.VBK,
		address >= addr.BCPS && address <= addr.OCPD:
		m.ppu.WriteRegister(address, value)
	case address >= addr.HDMA1 && address <= addr.HDMA5:
		if m.cgb {
			m.writeVRAMDMA(address, value)
		}
	case address == addr.SVBK:
		if m.cgb {
			bank := value & 7
			if bank == 0 {
				bank = 1
			}
			m.wramBank = bank
		}
	}
}

// oamDMA copies 160 bytes from source<<8 into OAM. The copy is modelled
// as instantaneous; games busy-wait in HRAM for the hardware's 160
// cycle window, which reads correctly either way.
func (m *MMU) oamDMA(source uint8) {
	base := uint16(source) << 8
	for i := uint16(0); i < 0xA0; i++ {
		m.ppu.WriteOAM(addr.OAMStart+i, m.Read(base+i))
	}
}

func (m *MMU) Serialize(w *snapshot.Writer) {
	m.mbc.Serialize(w)
	for b := range m.wram {
		w.Raw(m.wram[b][:])
	}
	w.U8(m.wramBank)
	w.Raw(m.hram[:])
	w.U8(m.interruptFlags)
	w.U8(m.interruptEnable)
	w.U8(m.dma)
	m.vdma.Serialize(w)
	m.timer.Serialize(w)
	m.serial.Serialize(w)
	m.joypad.Serialize(w)
}

func (m *MMU) Deserialize(r *snapshot.Reader) error {
	if err := m.mbc.Deserialize(r); err != nil {
		return err
	}
	for b := range m.wram {
		r.Raw(m.wram[b][:])
	}
	m.wramBank = r.U8()
	r.Raw(m.hram[:])
	m.interruptFlags = r.U8()
	m.interruptEnable = r.U8()
	m.dma = r.U8()
	if err := m.vdma.Deserialize(r); err != nil {
		return err
	}
	if err := m.timer.Deserialize(r); err != nil {
		return err
	}
	if err := m.serial.Deserialize(r); err != nil {
		return err
	}
	return m.joypad.Deserialize(r)
}
