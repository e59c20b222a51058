package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/audio"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

// one scanline worth of dots
const scanlineDots = 456

func newVRAMDMAMMU(t *testing.T) (*MMU, *video.PPU) {
	t.Helper()
	cart, err := NewCartridge(romImage{title: "T", cgb: true}.build())
	require.NoError(t, err)
	ppu := video.New(true, func(addr.Interrupt) {})
	return NewMMU(cart, ppu, audio.New()), ppu
}

// seedSource fills work RAM at 0xC000 with a recognizable pattern.
func seedSource(m *MMU, n int) {
	for i := 0; i < n; i++ {
		m.Write(0xC000+uint16(i), uint8(i)+1)
	}
}

func TestVRAMDMAGeneralPurpose(t *testing.T) {
	m, _ := newVRAMDMAMMU(t)
	seedSource(m, 32)

	m.Write(addr.HDMA1, 0xC0)
	m.Write(addr.HDMA2, 0x00)
	m.Write(addr.HDMA3, 0x00)
	m.Write(addr.HDMA4, 0x00)
	m.Write(addr.HDMA5, 0x01) // two blocks, instant

	for i := uint16(0); i < 32; i++ {
		assert.Equal(t, uint8(i)+1, m.Read(0x8000+i))
	}
	assert.Equal(t, uint8(0xFF), m.Read(addr.HDMA5), "idle after completion")
}

func TestVRAMDMALowAddressBitsIgnored(t *testing.T) {
	m, _ := newVRAMDMAMMU(t)
	seedSource(m, 16)

	m.Write(addr.HDMA1, 0xC0)
	m.Write(addr.HDMA2, 0x0F) // low 4 source bits forced to zero
	m.Write(addr.HDMA3, 0xFF) // high 3 destination bits forced to zero
	m.Write(addr.HDMA4, 0x1F)
	m.Write(addr.HDMA5, 0x00)

	assert.Equal(t, uint8(1), m.Read(0x9F10))
	assert.Equal(t, uint8(16), m.Read(0x9F1F))
}

func TestVRAMDMAHBlank(t *testing.T) {
	m, ppu := newVRAMDMAMMU(t)
	seedSource(m, 48)

	m.Write(addr.HDMA1, 0xC0)
	m.Write(addr.HDMA2, 0x00)
	m.Write(addr.HDMA3, 0x00)
	m.Write(addr.HDMA4, 0x00)
	m.Write(addr.HDMA5, 0x82) // three blocks, one per HBlank

	// peripherals tick ahead of the PPU, like the instruction loop does
	runDots := func(dots int) {
		for i := 0; i < dots; i += 4 {
			m.Tick(4)
			ppu.Tick(4)
		}
	}

	runDots(scanlineDots)
	assert.Equal(t, uint8(1), m.Read(addr.HDMA5), "two blocks left")
	assert.Equal(t, uint8(16), m.Read(0x800F))
	assert.Equal(t, uint8(0x00), m.Read(0x8010), "second block waits for the next HBlank")

	runDots(2 * scanlineDots)
	assert.Equal(t, uint8(0xFF), m.Read(addr.HDMA5), "idle after the last block")
	for i := uint16(0); i < 48; i++ {
		assert.Equal(t, uint8(i)+1, m.Read(0x8000+i))
	}
}

func TestVRAMDMACancel(t *testing.T) {
	m, ppu := newVRAMDMAMMU(t)
	seedSource(m, 64)

	m.Write(addr.HDMA1, 0xC0)
	m.Write(addr.HDMA2, 0x00)
	m.Write(addr.HDMA3, 0x00)
	m.Write(addr.HDMA4, 0x00)
	m.Write(addr.HDMA5, 0x83) // four blocks

	for i := 0; i < scanlineDots; i += 4 {
		m.Tick(4)
		ppu.Tick(4)
	}
	require.Equal(t, uint8(2), m.Read(addr.HDMA5))

	m.Write(addr.HDMA5, 0x00) // bit 7 clear stops the transfer
	assert.Equal(t, uint8(0x82), m.Read(addr.HDMA5), "remaining count with the stop bit")

	for i := 0; i < scanlineDots; i += 4 {
		m.Tick(4)
		ppu.Tick(4)
	}
	assert.Equal(t, uint8(0x00), m.Read(0x8010), "no block moves after the stop")
}

func TestVRAMDMAInertOnDMG(t *testing.T) {
	m := newTestMMU(t, romImage{title: "T"})
	seedSource(m, 16)

	m.Write(addr.HDMA1, 0xC0)
	m.Write(addr.HDMA2, 0x00)
	m.Write(addr.HDMA3, 0x00)
	m.Write(addr.HDMA4, 0x00)
	m.Write(addr.HDMA5, 0x00)

	assert.Equal(t, uint8(0x00), m.Read(0x8000))
	assert.Equal(t, uint8(0xFF), m.Read(addr.HDMA5))
}

func TestVRAMDMASourceRegistersAreWriteOnly(t *testing.T) {
	m, _ := newVRAMDMAMMU(t)

	m.Write(addr.HDMA1, 0xC0)
	assert.Equal(t, uint8(0xFF), m.Read(addr.HDMA1))
	assert.Equal(t, uint8(0xFF), m.Read(addr.HDMA4))
}
