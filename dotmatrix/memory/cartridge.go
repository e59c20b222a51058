package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Cartridge header layout. Addresses are fixed by the boot ROM, which
// verifies the logo and checksum bytes found here.
const (
	titleAddress          = 0x0134
	titleLength           = 16
	cgbFlagAddress        = 0x0143
	cartridgeTypeAddress  = 0x0147
	romSizeAddress        = 0x0148
	ramSizeAddress        = 0x0149
	versionAddress        = 0x014C
	headerChecksumAddress = 0x014D
	headerStart           = 0x0134
	headerEnd             = 0x014C
	minImageSize          = 0x0150
)

// MBCType identifies the mapper chip declared in the cartridge header.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

func (t MBCType) String() string {
	switch t {
	case NoMBCType:
		return "ROM"
	case MBC1Type:
		return "MBC1"
	case MBC3Type:
		return "MBC3"
	case MBC5Type:
		return "MBC5"
	}
	return "unknown"
}

// ErrUnknownMapper is returned when the header declares a mapper chip this
// core does not implement. It is a load-time failure: starting emulation
// with the wrong banking rule would corrupt everything downstream.
var ErrUnknownMapper = errors.New("unsupported mapper type")

// ErrImageTooSmall is returned for images too short to contain a header.
var ErrImageTooSmall = errors.New("cartridge image smaller than header")

// Cartridge holds a parsed ROM image and its header metadata.
type Cartridge struct {
	data       []byte
	title      string
	mbcType    MBCType
	cartType   uint8
	romBanks   int
	ramBanks   int
	hasBattery bool
	cgb        bool
	version    uint8
}

// NewCartridge parses a ROM image. The header checksum is verified but a
// mismatch is only logged: real hardware never checks it after boot.
func NewCartridge(data []byte) (*Cartridge, error) {
	if len(data) < minImageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooSmall, len(data))
	}

	mbcType, hasBattery, err := decodeCartType(data[cartridgeTypeAddress])
	if err != nil {
		return nil, err
	}

	cart := &Cartridge{
		data:       data,
		title:      decodeTitle(data[titleAddress : titleAddress+titleLength]),
		mbcType:    mbcType,
		cartType:   data[cartridgeTypeAddress],
		romBanks:   decodeROMBanks(data[romSizeAddress]),
		ramBanks:   decodeRAMBanks(data[ramSizeAddress]),
		hasBattery: hasBattery,
		cgb:        data[cgbFlagAddress]&0x80 != 0,
		version:    data[versionAddress],
	}

	if sum := headerChecksum(data); sum != data[headerChecksumAddress] {
		slog.Warn("cartridge header checksum mismatch",
			"computed", fmt.Sprintf("0x%02X", sum),
			"header", fmt.Sprintf("0x%02X", data[headerChecksumAddress]))
	}

	slog.Info("cartridge loaded",
		"title", cart.title,
		"mapper", cart.mbcType.String(),
		"rom_banks", cart.romBanks,
		"ram_banks", cart.ramBanks,
		"battery", cart.hasBattery,
		"cgb", cart.cgb)

	return cart, nil
}

// decodeCartType maps header byte 0x147 to a mapper variant and battery flag.
func decodeCartType(b uint8) (MBCType, bool, error) {
	switch b {
	case 0x00, 0x08, 0x09:
		return NoMBCType, b == 0x09, nil
	case 0x01, 0x02:
		return MBC1Type, false, nil
	case 0x03:
		return MBC1Type, true, nil
	case 0x0F, 0x10, 0x13:
		// RTC variants load as plain MBC3: the clock registers read zero.
		return MBC3Type, true, nil
	case 0x11, 0x12:
		return MBC3Type, false, nil
	case 0x19, 0x1A, 0x1C, 0x1D:
		return MBC5Type, false, nil
	case 0x1B, 0x1E:
		return MBC5Type, true, nil
	default:
		return MBCUnknownType, false, fmt.Errorf("%w: 0x%02X", ErrUnknownMapper, b)
	}
}

func decodeTitle(raw []byte) string {
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	return strings.TrimSpace(string(raw[:end]))
}

// decodeROMBanks maps header byte 0x148 to a count of 16KB banks.
func decodeROMBanks(code uint8) int {
	if code > 0x08 {
		return 2
	}
	return 2 << code
}

// decodeRAMBanks maps header byte 0x149 to a count of 8KB banks.
func decodeRAMBanks(code uint8) int {
	switch code {
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// headerChecksum computes the 8 bit checksum over bytes 0x134-0x14C.
func headerChecksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data[headerStart : headerEnd+1] {
		sum = sum - b - 1
	}
	return sum
}

// Title returns the game title from the header.
func (c *Cartridge) Title() string { return c.title }

// CGB reports whether the header requests the colour rendering mode.
func (c *Cartridge) CGB() bool { return c.cgb }

// HasBattery reports whether cartridge RAM is battery backed and worth
// persisting.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// MBCType returns the mapper variant declared in the header.
func (c *Cartridge) MBCType() MBCType { return c.mbcType }

// RAMSize returns the declared cartridge RAM size in bytes.
func (c *Cartridge) RAMSize() int { return c.ramBanks * ramBankSize }

// newMBC builds the mapper for this cartridge's declared variant.
func (c *Cartridge) newMBC() MBC {
	switch c.mbcType {
	case NoMBCType:
		return NewNoMBC(c.data, c.ramBanks)
	case MBC1Type:
		return NewMBC1(c.data, c.ramBanks)
	case MBC3Type:
		return NewMBC3(c.data, c.ramBanks)
	case MBC5Type:
		return NewMBC5(c.data, c.ramBanks)
	}
	// NewCartridge rejects unknown types at load time.
	panic("cartridge: mapper constructed for unknown type")
}
