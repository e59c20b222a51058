package memory

import (
	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

const vramDMABlockSize = 16

// vramDMA is the colour-only VRAM DMA engine behind FF51-FF55. A write
// to HDMA5 with bit 7 clear runs a general purpose transfer on the
// spot; with bit 7 set it arms an HBlank transfer that moves one 16
// byte block each time the PPU enters HBlank.
type vramDMA struct {
	src uint16 // full source address, low 4 bits forced to zero
	dst uint16 // offset into VRAM, 13 bits

	remaining uint8 // 16 byte blocks left
	active    bool  // an HBlank transfer is in flight
	inHBlank  bool  // PPU was in HBlank last tick, for edge detection
}

// status is the HDMA5 read value: remaining blocks minus one, with
// bit 7 set when no transfer is running.
func (v *vramDMA) status() uint8 {
	if v.active {
		return (v.remaining - 1) & 0x7F
	}
	if v.remaining == 0 {
		return 0xFF
	}
	// cancelled mid-transfer
	return 0x80 | (v.remaining - 1)
}

func (m *MMU) writeVRAMDMA(address uint16, value uint8) {
	v := &m.vdma
	switch address {
	case addr.HDMA1:
		v.src = v.src&0x00F0 | uint16(value)<<8
	case addr.HDMA2:
		v.src = v.src&0xFF00 | uint16(value&0xF0)
	case addr.HDMA3:
		v.dst = v.dst&0x00F0 | uint16(value&0x1F)<<8
	case addr.HDMA4:
		v.dst = v.dst&0x1F00 | uint16(value&0xF0)
	case addr.HDMA5:
		m.startVRAMDMA(value)
	}
}

func (m *MMU) startVRAMDMA(value uint8) {
	v := &m.vdma
	blocks := value&0x7F + 1

	if value&0x80 == 0 {
		if v.active {
			// writing with bit 7 clear stops an HBlank transfer
			v.active = false
			return
		}
		for i := uint8(0); i < blocks; i++ {
			m.copyVRAMBlock()
		}
		v.remaining = 0
		return
	}

	v.active = true
	v.remaining = blocks
}

// copyVRAMBlock moves one 16 byte block and advances both pointers.
// The destination wraps inside VRAM the way the address lines do.
func (m *MMU) copyVRAMBlock() {
	v := &m.vdma
	for i := 0; i < vramDMABlockSize; i++ {
		m.ppu.WriteVRAM(addr.VRAMStart|v.dst&0x1FFF, m.Read(v.src))
		v.src++
		v.dst = (v.dst + 1) & 0x1FFF
	}
}

// tickVRAMDMA runs the per-HBlank step: on the transition into HBlank
// an armed transfer moves its next block.
func (m *MMU) tickVRAMDMA() {
	v := &m.vdma
	hblank := m.ppu.ReadRegister(addr.STAT)&0x03 == uint8(video.HBlank)
	entered := hblank && !v.inHBlank
	v.inHBlank = hblank

	if !entered || !v.active {
		return
	}
	m.copyVRAMBlock()
	v.remaining--
	if v.remaining == 0 {
		v.active = false
	}
}

func (v *vramDMA) Serialize(w *snapshot.Writer) {
	w.U16(v.src)
	w.U16(v.dst)
	w.U8(v.remaining)
	w.Bool(v.active)
	w.Bool(v.inHBlank)
}

func (v *vramDMA) Deserialize(r *snapshot.Reader) error {
	v.src = r.U16()
	v.dst = r.U16()
	v.remaining = r.U8()
	v.active = r.Bool()
	v.inHBlank = r.Bool()
	return r.Err()
}
