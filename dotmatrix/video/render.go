package video

import (
	"sort"

	"github.com/valdt/dotmatrix/dotmatrix/bit"
)

// sprite is one OAM entry selected for the current scanline.
type sprite struct {
	y, x      int
	tileIndex uint8
	flags     uint8
	oamIndex  int
	height    int
}

func (s *sprite) flipX() bool    { return bit.IsSet(5, s.flags) }
func (s *sprite) flipY() bool    { return bit.IsSet(6, s.flags) }
func (s *sprite) behindBG() bool { return bit.IsSet(7, s.flags) }

// collectSprites scans OAM for sprites overlapping the current line, in
// OAM order, stopping at the hardware limit of 10. Returns the count.
func (p *PPU) collectSprites() int {
	height := 8
	if bit.IsSet(lcdcObjSize, p.lcdc) {
		height = 16
	}

	line := int(p.ly)
	count := 0
	for i := 0; i < 40 && count < 10; i++ {
		base := i * 4
		y := int(p.oam[base]) - 16
		if line < y || line >= y+height {
			continue
		}
		p.lineSprites[count] = sprite{
			y:         y,
			x:         int(p.oam[base+1]) - 8,
			tileIndex: p.oam[base+2],
			flags:     p.oam[base+3],
			oamIndex:  i,
			height:    height,
		}
		count++
	}
	p.spriteCount = count
	return count
}

// renderLine composites one scanline into the back buffer: background,
// then window, then sprites.
func (p *PPU) renderLine() {
	if p.noRender || p.ly >= visibleLines {
		return
	}

	// bgIndex keeps the raw 2 bit colour index per pixel for sprite
	// priority decisions; bgPriority carries the CGB tile attribute that
	// forces the background above sprites.
	var bgIndex [FramebufferWidth]uint8
	var bgPriority [FramebufferWidth]bool

	p.renderBackground(&bgIndex, &bgPriority)
	p.renderWindow(&bgIndex, &bgPriority)
	p.renderSprites(&bgIndex, &bgPriority)
}

// bgEnabled reports whether the background (and window) are drawn. On
// CGB, LCDC bit 0 instead demotes background priority, handled in the
// sprite pass.
func (p *PPU) bgEnabled() bool {
	return p.cgb || bit.IsSet(lcdcBGEnable, p.lcdc)
}

func (p *PPU) renderBackground(bgIndex *[FramebufferWidth]uint8, bgPriority *[FramebufferWidth]bool) {
	y := int(p.ly)
	if !p.bgEnabled() {
		for x := 0; x < FramebufferWidth; x++ {
			p.back.SetPixel(x, y, WhiteColor)
		}
		return
	}

	mapBase := uint16(0x1800) // 0x9800 relative to VRAM
	if bit.IsSet(lcdcBGMap, p.lcdc) {
		mapBase = 0x1C00
	}

	bgY := uint8(y) + p.scy
	for x := 0; x < FramebufferWidth; x++ {
		bgX := uint8(x) + p.scx
		index, color, prio := p.tilePixel(mapBase, bgX, bgY)
		bgIndex[x] = index
		bgPriority[x] = prio
		p.back.SetPixel(x, y, color)
	}
}

func (p *PPU) renderWindow(bgIndex *[FramebufferWidth]uint8, bgPriority *[FramebufferWidth]bool) {
	if !bit.IsSet(lcdcWindowEnable, p.lcdc) || !p.bgEnabled() {
		return
	}
	y := int(p.ly)
	if y < int(p.wy) {
		return
	}
	startX := int(p.wx) - 7
	if startX >= FramebufferWidth {
		return
	}
	if startX < 0 {
		startX = 0
	}

	mapBase := uint16(0x1800)
	if bit.IsSet(lcdcWindowMap, p.lcdc) {
		mapBase = 0x1C00
	}

	// The window keeps its own line counter: hiding it mid-frame pauses
	// the counter rather than skipping rows.
	winY := uint8(p.windowLine)
	for x := startX; x < FramebufferWidth; x++ {
		winX := uint8(x - (int(p.wx) - 7))
		index, color, prio := p.tilePixel(mapBase, winX, winY)
		bgIndex[x] = index
		bgPriority[x] = prio
		p.back.SetPixel(x, y, color)
	}
	p.windowLine++
}

// tilePixel resolves one background or window pixel: the raw colour
// index, the final colour, and the CGB priority attribute.
func (p *PPU) tilePixel(mapBase uint16, x, y uint8) (uint8, Color, bool) {
	tileCol := uint16(x / 8)
	tileRow := uint16(y / 8)
	mapOffset := mapBase + tileRow*32 + tileCol

	tileNum := p.vram[0][mapOffset]

	var attrs uint8
	if p.cgb {
		attrs = p.vram[1][mapOffset]
	}

	pixelX := int(x % 8)
	pixelY := int(y % 8)
	if p.cgb {
		if bit.IsSet(5, attrs) { // horizontal flip
			pixelX = 7 - pixelX
		}
		if bit.IsSet(6, attrs) { // vertical flip
			pixelY = 7 - pixelY
		}
	}

	tileAddr := p.tileDataAddress(tileNum) + uint16(pixelY*2)
	bank := uint8(0)
	if p.cgb && bit.IsSet(3, attrs) {
		bank = 1
	}

	low := p.vram[bank][tileAddr]
	high := p.vram[bank][tileAddr+1]
	index := pixelIndex(low, high, pixelX)

	if p.cgb {
		palette := attrs & 0x07
		return index, p.cgbColor(p.bgPalette[:], palette, index), bit.IsSet(7, attrs)
	}
	return index, dmgShades[shadeFor(p.bgp, index)], false
}

// tileDataAddress maps a tile number to its VRAM offset honoring the
// LCDC addressing mode: unsigned from 0x8000 or signed around 0x9000.
func (p *PPU) tileDataAddress(tileNum uint8) uint16 {
	if bit.IsSet(lcdcTileData, p.lcdc) {
		return uint16(tileNum) * 16
	}
	return uint16(0x1000 + int(int8(tileNum))*16)
}

// pixelIndex extracts the 2 bit colour index for a pixel from the two
// bit planes of a tile row. Bit 7 is the leftmost pixel.
func pixelIndex(low, high uint8, x int) uint8 {
	shift := uint8(7 - x)
	return (low>>shift)&1 | (high>>shift)&1<<1
}

// shadeFor resolves a colour index through a DMG palette register.
func shadeFor(palette, index uint8) uint8 {
	return palette >> (index * 2) & 0x03
}

// cgbColor resolves a colour through CGB palette RAM: 8 palettes of 4
// colours, 2 bytes per colour, little endian RGB555.
func (p *PPU) cgbColor(palRAM []uint8, palette, index uint8) Color {
	offset := int(palette)*8 + int(index)*2
	raw := uint16(palRAM[offset]) | uint16(palRAM[offset+1])<<8
	return ColorFromRGB555(raw)
}

func (p *PPU) renderSprites(bgIndex *[FramebufferWidth]uint8, bgPriority *[FramebufferWidth]bool) {
	if !bit.IsSet(lcdcObjEnable, p.lcdc) {
		return
	}

	count := p.spriteCount
	if count == 0 {
		return
	}

	// Sprite-over-sprite priority: on DMG the lowest X wins, ties broken
	// by OAM index; on CGB OAM index alone decides. Drawing in priority
	// order with first-writer-wins per pixel realises both rules.
	order := make([]int, count)
	for i := range order {
		order[i] = i
	}
	if !p.cgb {
		sort.SliceStable(order, func(a, b int) bool {
			return p.lineSprites[order[a]].x < p.lineSprites[order[b]].x
		})
	}

	y := int(p.ly)
	var claimed [FramebufferWidth]bool

	for _, idx := range order {
		s := &p.lineSprites[idx]

		row := y - s.y
		if s.flipY() {
			row = s.height - 1 - row
		}

		tile := s.tileIndex
		if s.height == 16 {
			// 8x16 sprites ignore the low bit of the tile index.
			tile &= 0xFE
		}

		tileAddr := uint16(tile)*16 + uint16(row*2)
		bank := uint8(0)
		if p.cgb && bit.IsSet(3, s.flags) {
			bank = 1
		}
		low := p.vram[bank][tileAddr]
		high := p.vram[bank][tileAddr+1]

		for px := 0; px < 8; px++ {
			x := s.x + px
			if x < 0 || x >= FramebufferWidth || claimed[x] {
				continue
			}

			col := px
			if s.flipX() {
				col = 7 - col
			}
			index := pixelIndex(low, high, col)
			if index == 0 {
				// colour 0 is transparent for sprites
				continue
			}
			claimed[x] = true

			if p.spriteHidden(s, bgIndex[x], bgPriority[x]) {
				continue
			}

			p.back.SetPixel(x, y, p.spriteColor(s, index))
		}
	}
}

// spriteHidden applies the background-over-sprite rules for one pixel.
func (p *PPU) spriteHidden(s *sprite, bgIndex uint8, bgPrio bool) bool {
	if bgIndex == 0 {
		return false
	}
	if p.cgb {
		// LCDC bit 0 cleared lifts all sprites above the background.
		if !bit.IsSet(lcdcBGEnable, p.lcdc) {
			return false
		}
		return bgPrio || s.behindBG()
	}
	return s.behindBG()
}

func (p *PPU) spriteColor(s *sprite, index uint8) Color {
	if p.cgb {
		return p.cgbColor(p.objPalette[:], s.flags&0x07, index)
	}
	palette := p.obp0
	if bit.IsSet(4, s.flags) {
		palette = p.obp1
	}
	return dmgShades[shadeFor(palette, index)]
}
