package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// romImage builds a minimal valid ROM image for tests: the requested
// bank count with the first byte of every bank marked by its index, a
// header with a correct checksum, and the given title.
type romImage struct {
	title    string
	cartType uint8
	romCode  uint8
	ramCode  uint8
	cgb      bool
}

func (img romImage) build() []byte {
	banks := decodeROMBanks(img.romCode)
	data := make([]byte, banks*romBankSize)
	for b := 0; b < banks; b++ {
		data[b*romBankSize] = uint8(b)
	}

	copy(data[titleAddress:], img.title)
	if img.cgb {
		data[cgbFlagAddress] = 0x80
	}
	data[cartridgeTypeAddress] = img.cartType
	data[romSizeAddress] = img.romCode
	data[ramSizeAddress] = img.ramCode
	data[headerChecksumAddress] = headerChecksum(data)
	return data
}

func testROM(cartType uint8) []byte {
	return romImage{title: "TEST", cartType: cartType, ramCode: 0x03}.build()
}

func TestNewCartridge(t *testing.T) {
	tests := []struct {
		name       string
		cartType   uint8
		mbcType    MBCType
		hasBattery bool
	}{
		{"ROM only", 0x00, NoMBCType, false},
		{"ROM with battery", 0x09, NoMBCType, true},
		{"MBC1", 0x01, MBC1Type, false},
		{"MBC1 with RAM and battery", 0x03, MBC1Type, true},
		{"MBC3 with RTC", 0x10, MBC3Type, true},
		{"MBC3 plain", 0x11, MBC3Type, false},
		{"MBC5", 0x19, MBC5Type, false},
		{"MBC5 rumble with battery", 0x1E, MBC5Type, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := NewCartridge(testROM(tt.cartType))

			require.NoError(t, err)
			assert.Equal(t, "TEST", cart.Title())
			assert.Equal(t, tt.mbcType, cart.MBCType())
			assert.Equal(t, tt.hasBattery, cart.HasBattery())
		})
	}
}

func TestNewCartridgeErrors(t *testing.T) {
	t.Run("image too small", func(t *testing.T) {
		_, err := NewCartridge(make([]byte, 0x100))
		assert.ErrorIs(t, err, ErrImageTooSmall)
	})

	t.Run("unknown mapper", func(t *testing.T) {
		_, err := NewCartridge(testROM(0x20)) // MBC6, unsupported
		assert.ErrorIs(t, err, ErrUnknownMapper)
	})
}

func TestCartridgeCGBFlag(t *testing.T) {
	dmg, err := NewCartridge(romImage{title: "MONO", cartType: 0x00}.build())
	require.NoError(t, err)
	assert.False(t, dmg.CGB())

	cgb, err := NewCartridge(romImage{title: "COLOR", cartType: 0x00, cgb: true}.build())
	require.NoError(t, err)
	assert.True(t, cgb.CGB())
}

func TestCartridgeRAMSize(t *testing.T) {
	cart, err := NewCartridge(romImage{title: "T", cartType: 0x03, ramCode: 0x03}.build())
	require.NoError(t, err)
	assert.Equal(t, 4*ramBankSize, cart.RAMSize())
}

func TestNoMapperCartridgeRAM(t *testing.T) {
	cart, err := NewCartridge(romImage{title: "T", cartType: 0x09, ramCode: 0x02}.build())
	require.NoError(t, err)
	require.True(t, cart.HasBattery())
	require.Equal(t, ramBankSize, cart.RAMSize())

	mbc := cart.newMBC()
	mbc.Write(0xA000, 0x42)
	assert.Equal(t, uint8(0x42), mbc.Read(0xA000))
	assert.Len(t, mbc.RAM(), ramBankSize)
}

func TestDecodeROMBanks(t *testing.T) {
	assert.Equal(t, 2, decodeROMBanks(0x00))
	assert.Equal(t, 4, decodeROMBanks(0x01))
	assert.Equal(t, 512, decodeROMBanks(0x08))
	assert.Equal(t, 2, decodeROMBanks(0xFF), "unknown codes fall back to the minimum")
}
