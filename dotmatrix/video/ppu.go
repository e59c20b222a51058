package video

import (
	"sync"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/bit"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

// Mode is the PPU's position within a scanline.
type Mode uint8

const (
	// HBlank pads each visible scanline out to its fixed length.
	HBlank Mode = iota
	// VBlank covers the 10 virtual scanlines after the visible frame.
	VBlank
	// OAMScan is the sprite evaluation phase at the start of a line.
	OAMScan
	// PixelTransfer is the phase that actually draws pixels.
	PixelTransfer
)

// Scanline timing in dots (one dot = one 4MHz cycle).
const (
	oamScanDots      = 80
	transferBaseDots = 172
	lineDots         = 456

	visibleLines = 144
	totalLines   = 154

	// spritePenaltyDots approximates the fetcher stall each sprite on a
	// line causes during pixel transfer.
	spritePenaltyDots = 6

	// FrameDots is the length of one complete frame. Emulating exactly
	// this many cycles always yields exactly one finished frame.
	FrameDots = lineDots * totalLines
)

// LCDC bits.
const (
	lcdcEnable       = 7
	lcdcWindowMap    = 6
	lcdcWindowEnable = 5
	lcdcTileData     = 4
	lcdcBGMap        = 3
	lcdcObjSize      = 2
	lcdcObjEnable    = 1
	lcdcBGEnable     = 0
)

// STAT bits 3-6 are interrupt source enables; bit 2 is the LYC=LY
// coincidence flag, bits 0-1 the current mode.
const (
	statHBlankIRQ = 3
	statVBlankIRQ = 4
	statOAMIRQ    = 5
	statLYCIRQ    = 6
)

// PPU is the pixel processing unit: VRAM, OAM, the LCD registers and the
// scanline state machine that turns them into frames.
//
// The PPU owns its memories; the bus delegates reads and writes in the
// VRAM/OAM/register windows here. It never reaches back into the bus, a
// property the threaded mode relies on.
type PPU struct {
	cgb bool

	// memories
	vram     [2][0x2000]uint8
	vramBank uint8
	oam      [0xA0]uint8

	// registers
	lcdc, stat            uint8
	scy, scx              uint8
	ly, lyc               uint8
	bgp, obp0, obp1       uint8
	wy, wx                uint8
	bcps, ocps            uint8
	bgPalette, objPalette [64]uint8
	key1                  uint8 // speed switch register; timing stays single speed

	// scanline machine
	mode         Mode
	dot          int
	transferDots int // dots of PixelTransfer for the current line
	windowLine   int // internal window line counter
	statLine     bool

	frames uint64

	// rendering
	noRender bool // set on the bus-side PPU when a render worker draws instead
	back     *FrameBuffer
	front    *FrameBuffer
	frontMu  sync.Mutex

	lineSprites [10]sprite
	spriteCount int

	// interrupt raises an interrupt request line; nil on shadow copies.
	interrupt func(addr.Interrupt)
}

// New creates a PPU in the given colour mode. The interrupt callback is
// invoked for VBlank and STAT requests.
func New(cgb bool, interrupt func(addr.Interrupt)) *PPU {
	p := &PPU{
		cgb:       cgb,
		interrupt: interrupt,
		back:      NewFrameBuffer(),
		front:     NewFrameBuffer(),
		mode:      OAMScan,
	}
	// post-boot register state
	p.lcdc = 0x91
	p.stat = 0x85
	p.bgp = 0xFC
	p.obp0, p.obp1 = 0xFF, 0xFF
	p.transferDots = transferBaseDots
	for i := range p.bgPalette {
		p.bgPalette[i] = 0xFF
	}
	return p
}

// CGB reports whether the PPU renders in colour mode.
func (p *PPU) CGB() bool { return p.cgb }

// Frame returns the most recently completed frame. The returned buffer
// is only replaced at frame boundaries, never written mid-frame.
func (p *PPU) Frame() *FrameBuffer {
	p.frontMu.Lock()
	defer p.frontMu.Unlock()
	return p.front
}

// Frames returns the count of completed frames since power-on.
func (p *PPU) Frames() uint64 { return p.frames }

// Line returns the current scanline (the LY register).
func (p *PPU) Line() uint8 { return p.ly }

// Dot returns the dot counter within the current scanline.
func (p *PPU) Dot() int { return p.dot }

// CurrentMode returns the PPU mode as reflected in STAT.
func (p *PPU) CurrentMode() Mode { return p.mode }

func (p *PPU) enabled() bool { return bit.IsSet(lcdcEnable, p.lcdc) }

// Tick advances the PPU by the given number of cycles.
func (p *PPU) Tick(cycles int) {
	if !p.enabled() {
		return
	}

	for cycles > 0 {
		step := cycles
		if remaining := p.dotsUntilEvent(); step > remaining {
			step = remaining
		}
		p.dot += step
		cycles -= step
		p.advance()
	}
}

// dotsUntilEvent returns how many dots remain before the next mode or
// line transition.
func (p *PPU) dotsUntilEvent() int {
	switch p.mode {
	case OAMScan:
		return oamScanDots - p.dot
	case PixelTransfer:
		return oamScanDots + p.transferDots - p.dot
	default: // HBlank, VBlank
		return lineDots - p.dot
	}
}

// advance performs any transition the dot counter has reached.
func (p *PPU) advance() {
	switch p.mode {
	case OAMScan:
		if p.dot >= oamScanDots {
			count := p.collectSprites()
			p.transferDots = transferBaseDots + count*spritePenaltyDots
			p.setMode(PixelTransfer)
		}
	case PixelTransfer:
		if p.dot >= oamScanDots+p.transferDots {
			p.renderLine()
			p.setMode(HBlank)
		}
	case HBlank:
		if p.dot >= lineDots {
			p.dot -= lineDots
			p.nextLine()
			if p.ly == visibleLines {
				p.enterVBlank()
			} else {
				p.setMode(OAMScan)
			}
		}
	case VBlank:
		if p.dot >= lineDots {
			p.dot -= lineDots
			p.nextLine()
			if p.ly == 0 {
				p.windowLine = 0
				p.setMode(OAMScan)
			}
		}
	}
}

func (p *PPU) nextLine() {
	p.ly++
	if p.ly >= totalLines {
		p.ly = 0
	}
	p.compareLYC()
}

func (p *PPU) enterVBlank() {
	p.setMode(VBlank)
	p.publishFrame()
	if p.interrupt != nil {
		p.interrupt(addr.VBlankInterrupt)
	}
}

// publishFrame swaps the finished back buffer to the front. Hosts only
// ever observe complete frames.
func (p *PPU) publishFrame() {
	p.frontMu.Lock()
	p.back, p.front = p.front, p.back
	p.frontMu.Unlock()
	p.frames++
}

func (p *PPU) setMode(m Mode) {
	p.mode = m
	p.stat = p.stat&0xFC | uint8(m)
	p.updateSTATLine()
}

func (p *PPU) compareLYC() {
	if p.ly == p.lyc {
		p.stat = bit.Set(2, p.stat)
	} else {
		p.stat = bit.Clear(2, p.stat)
	}
	p.updateSTATLine()
}

// updateSTATLine recomputes the shared STAT interrupt line. The request
// fires on the rising edge only: while any enabled source holds the line
// high, further sources are blocked, which is the hardware's well known
// STAT blocking behaviour.
func (p *PPU) updateSTATLine() {
	line := false
	switch p.mode {
	case HBlank:
		line = bit.IsSet(statHBlankIRQ, p.stat)
	case VBlank:
		line = bit.IsSet(statVBlankIRQ, p.stat)
	case OAMScan:
		line = bit.IsSet(statOAMIRQ, p.stat)
	}
	if bit.IsSet(statLYCIRQ, p.stat) && bit.IsSet(2, p.stat) {
		line = true
	}

	if line && !p.statLine && p.interrupt != nil {
		p.interrupt(addr.LCDSTATInterrupt)
	}
	p.statLine = line
}

// ReadVRAM reads video RAM through the currently selected bank.
func (p *PPU) ReadVRAM(address uint16) uint8 {
	return p.vram[p.vramBank][address-addr.VRAMStart]
}

// WriteVRAM writes video RAM through the currently selected bank.
func (p *PPU) WriteVRAM(address uint16, value uint8) {
	p.vram[p.vramBank][address-addr.VRAMStart] = value
}

// ReadOAM reads object attribute memory.
func (p *PPU) ReadOAM(address uint16) uint8 {
	return p.oam[address-addr.OAMStart]
}

// WriteOAM writes object attribute memory.
func (p *PPU) WriteOAM(address uint16, value uint8) {
	p.oam[address-addr.OAMStart] = value
}

// ReadRegister reads an LCD register. Unmapped and write-only bits read
// as 1.
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		return p.stat | 0x80
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	case addr.VBK:
		if p.cgb {
			return p.vramBank | 0xFE
		}
	case addr.KEY1:
		if p.cgb {
			return p.key1 | 0x7E
		}
	case addr.BCPS:
		if p.cgb {
			return p.bcps
		}
	case addr.BCPD:
		if p.cgb {
			return p.bgPalette[p.bcps&0x3F]
		}
	case addr.OCPS:
		if p.cgb {
			return p.ocps
		}
	case addr.OCPD:
		if p.cgb {
			return p.objPalette[p.ocps&0x3F]
		}
	}
	return 0xFF
}

// WriteRegister writes an LCD register.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case addr.LCDC:
		wasEnabled := p.enabled()
		p.lcdc = value
		if wasEnabled && !p.enabled() {
			// Turning the LCD off resets the scanline machine.
			p.ly = 0
			p.dot = 0
			p.windowLine = 0
			p.setMode(HBlank)
		} else if !wasEnabled && p.enabled() {
			p.setMode(OAMScan)
			p.compareLYC()
		}
	case addr.STAT:
		// only the interrupt enable bits are writable
		p.stat = p.stat&0x07 | value&0x78
		p.updateSTATLine()
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// read only
	case addr.LYC:
		p.lyc = value
		p.compareLYC()
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	case addr.VBK:
		if p.cgb {
			p.vramBank = value & 0x01
		}
	case addr.KEY1:
		if p.cgb {
			// bit 0 arms the switch, bit 7 is the current speed
			p.key1 = value & 0x81
		}
	case addr.BCPS:
		if p.cgb {
			p.bcps = value & 0xBF
		}
	case addr.BCPD:
		if p.cgb {
			p.bgPalette[p.bcps&0x3F] = value
			if bit.IsSet(7, p.bcps) {
				p.bcps = p.bcps&0x80 | (p.bcps+1)&0x3F
			}
		}
	case addr.OCPS:
		if p.cgb {
			p.ocps = value & 0xBF
		}
	case addr.OCPD:
		if p.cgb {
			p.objPalette[p.ocps&0x3F] = value
			if bit.IsSet(7, p.ocps) {
				p.ocps = p.ocps&0x80 | (p.ocps+1)&0x3F
			}
		}
	}
}

func (p *PPU) Serialize(w *snapshot.Writer) {
	w.Raw(p.vram[0][:])
	w.Raw(p.vram[1][:])
	w.U8(p.vramBank)
	w.Raw(p.oam[:])
	w.U8(p.lcdc)
	w.U8(p.stat)
	w.U8(p.scy)
	w.U8(p.scx)
	w.U8(p.ly)
	w.U8(p.lyc)
	w.U8(p.bgp)
	w.U8(p.obp0)
	w.U8(p.obp1)
	w.U8(p.wy)
	w.U8(p.wx)
	w.U8(p.bcps)
	w.U8(p.ocps)
	w.Raw(p.bgPalette[:])
	w.Raw(p.objPalette[:])
	w.U8(p.key1)
	w.U8(uint8(p.mode))
	w.Int(p.dot)
	w.Int(p.transferDots)
	w.Int(p.windowLine)
	w.Bool(p.statLine)
	w.U64(p.frames)
	w.Int(p.spriteCount)
	for i := range p.lineSprites {
		s := &p.lineSprites[i]
		w.Int(s.y)
		w.Int(s.x)
		w.U8(s.tileIndex)
		w.U8(s.flags)
		w.Int(s.oamIndex)
		w.Int(s.height)
	}
}

func (p *PPU) Deserialize(r *snapshot.Reader) error {
	r.Raw(p.vram[0][:])
	r.Raw(p.vram[1][:])
	p.vramBank = r.U8()
	r.Raw(p.oam[:])
	p.lcdc = r.U8()
	p.stat = r.U8()
	p.scy = r.U8()
	p.scx = r.U8()
	p.ly = r.U8()
	p.lyc = r.U8()
	p.bgp = r.U8()
	p.obp0 = r.U8()
	p.obp1 = r.U8()
	p.wy = r.U8()
	p.wx = r.U8()
	p.bcps = r.U8()
	p.ocps = r.U8()
	r.Raw(p.bgPalette[:])
	r.Raw(p.objPalette[:])
	p.key1 = r.U8()
	p.mode = Mode(r.U8())
	p.dot = r.Int()
	p.transferDots = r.Int()
	p.windowLine = r.Int()
	p.statLine = r.Bool()
	p.frames = r.U64()
	p.spriteCount = r.Int()
	for i := range p.lineSprites {
		s := &p.lineSprites[i]
		s.y = r.Int()
		s.x = r.Int()
		s.tileIndex = r.U8()
		s.flags = r.U8()
		s.oamIndex = r.Int()
		s.height = r.Int()
	}
	return r.Err()
}
