package audio

import (
	"github.com/valdt/dotmatrix/dotmatrix/addr"
)

const (
	// SampleRate is the host-side output rate in Hz.
	SampleRate = 44100

	cpuHz = 4194304

	// frame sequencer runs at 512 Hz
	frameSeqPeriod = 8192

	// stereo frames buffered before the oldest are dropped
	bufferFrames = 8192
)

var dutyTable = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}

// readMasks are ORed into register reads; unreadable bits return 1.
var readMasks = map[uint16]uint8{
	addr.NR10: 0x80, addr.NR11: 0x3F, addr.NR12: 0x00, addr.NR13: 0xFF, addr.NR14: 0xBF,
	addr.NR21: 0x3F, addr.NR22: 0x00, addr.NR23: 0xFF, addr.NR24: 0xBF,
	addr.NR30: 0x7F, addr.NR31: 0xFF, addr.NR32: 0x9F, addr.NR33: 0xFF, addr.NR34: 0xBF,
	addr.NR41: 0xFF, addr.NR42: 0x00, addr.NR43: 0x00, addr.NR44: 0xBF,
	addr.NR50: 0x00, addr.NR51: 0x00, addr.NR52: 0x70,
}

type envelope struct {
	initial   uint8
	direction bool // true = increase
	period    uint8

	volume uint8
	timer  uint8
}

func (e *envelope) trigger() {
	e.volume = e.initial
	e.timer = e.period
}

func (e *envelope) clock() {
	if e.period == 0 {
		return
	}
	if e.timer > 0 {
		e.timer--
	}
	if e.timer != 0 {
		return
	}
	e.timer = e.period
	if e.direction && e.volume < 15 {
		e.volume++
	} else if !e.direction && e.volume > 0 {
		e.volume--
	}
}

type pulse struct {
	enabled    bool
	dacEnabled bool

	duty     uint8
	dutyStep uint8
	freq     uint16
	timer    int

	length       int
	lengthEnable bool

	env envelope

	// sweep, channel 1 only
	hasSweep    bool
	sweepPeriod uint8
	sweepNegate bool
	sweepShift  uint8
	sweepTimer  uint8
	sweepOn     bool
	shadowFreq  uint16
}

func (c *pulse) trigger() {
	c.enabled = c.dacEnabled
	if c.length == 0 {
		c.length = 64
	}
	c.timer = int(2048-c.freq) * 4
	c.env.trigger()
	if c.hasSweep {
		c.shadowFreq = c.freq
		c.sweepTimer = c.sweepPeriod
		if c.sweepTimer == 0 {
			c.sweepTimer = 8
		}
		c.sweepOn = c.sweepPeriod != 0 || c.sweepShift != 0
		if c.sweepShift != 0 && c.sweepNext() > 2047 {
			c.enabled = false
		}
	}
}

func (c *pulse) sweepNext() uint16 {
	delta := c.shadowFreq >> c.sweepShift
	if c.sweepNegate {
		return c.shadowFreq - delta
	}
	return c.shadowFreq + delta
}

func (c *pulse) clockSweep() {
	if !c.hasSweep || !c.sweepOn {
		return
	}
	if c.sweepTimer > 0 {
		c.sweepTimer--
	}
	if c.sweepTimer != 0 {
		return
	}
	c.sweepTimer = c.sweepPeriod
	if c.sweepTimer == 0 {
		c.sweepTimer = 8
	}
	if c.sweepPeriod == 0 {
		return
	}
	next := c.sweepNext()
	if next > 2047 {
		c.enabled = false
		return
	}
	if c.sweepShift != 0 {
		c.shadowFreq = next
		c.freq = next
		if c.sweepNext() > 2047 {
			c.enabled = false
		}
	}
}

func (c *pulse) clockLength() {
	if c.lengthEnable && c.length > 0 {
		c.length--
		if c.length == 0 {
			c.enabled = false
		}
	}
}

func (c *pulse) step() {
	c.timer--
	if c.timer <= 0 {
		c.timer = int(2048-c.freq) * 4
		c.dutyStep = (c.dutyStep + 1) & 7
	}
}

func (c *pulse) output() uint8 {
	if !c.enabled || !c.dacEnabled {
		return 0
	}
	return dutyTable[c.duty][c.dutyStep] * c.env.volume
}

type wave struct {
	enabled    bool
	dacEnabled bool

	freq  uint16
	timer int

	length       int
	lengthEnable bool

	volumeCode uint8
	position   uint8
}

func (c *wave) trigger() {
	c.enabled = c.dacEnabled
	if c.length == 0 {
		c.length = 256
	}
	c.timer = int(2048-c.freq) * 2
	c.position = 0
}

func (c *wave) clockLength() {
	if c.lengthEnable && c.length > 0 {
		c.length--
		if c.length == 0 {
			c.enabled = false
		}
	}
}

func (c *wave) step() {
	c.timer--
	if c.timer <= 0 {
		c.timer = int(2048-c.freq) * 2
		c.position = (c.position + 1) & 31
	}
}

func (c *wave) output(ram []uint8) uint8 {
	if !c.enabled || !c.dacEnabled {
		return 0
	}
	sample := ram[c.position/2]
	if c.position&1 == 0 {
		sample >>= 4
	}
	sample &= 0x0F
	switch c.volumeCode {
	case 0:
		return 0
	case 1:
		return sample
	case 2:
		return sample >> 1
	default:
		return sample >> 2
	}
}

type noise struct {
	enabled    bool
	dacEnabled bool

	shift   uint8
	width7  bool
	divisor uint8
	timer   int
	lfsr    uint16

	length       int
	lengthEnable bool

	env envelope
}

var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

func (c *noise) period() int {
	return noiseDivisors[c.divisor] << c.shift
}

func (c *noise) trigger() {
	c.enabled = c.dacEnabled
	if c.length == 0 {
		c.length = 64
	}
	c.timer = c.period()
	c.lfsr = 0x7FFF
	c.env.trigger()
}

func (c *noise) clockLength() {
	if c.lengthEnable && c.length > 0 {
		c.length--
		if c.length == 0 {
			c.enabled = false
		}
	}
}

func (c *noise) step() {
	c.timer--
	if c.timer <= 0 {
		c.timer = c.period()
		bit := (c.lfsr ^ (c.lfsr >> 1)) & 1
		c.lfsr >>= 1
		c.lfsr |= bit << 14
		if c.width7 {
			c.lfsr = (c.lfsr &^ 0x40) | bit<<6
		}
	}
}

func (c *noise) output() uint8 {
	if !c.enabled || !c.dacEnabled {
		return 0
	}
	if c.lfsr&1 == 0 {
		return c.env.volume
	}
	return 0
}

// APU is the four-channel sound unit. It produces signed 16-bit stereo
// samples at SampleRate into an internal ring buffer; hosts pull with
// Samples. When the host falls behind, the oldest samples are dropped.
type APU struct {
	ch1 pulse
	ch2 pulse
	ch3 wave
	ch4 noise

	waveRAM [16]uint8

	powered       bool
	nr50          uint8
	nr51          uint8
	frameSeq      uint8
	frameSeqTimer int

	sampleAcc int

	// ring buffer of interleaved L/R frames
	buf   [bufferFrames * 2]int16
	head  int
	count int

	capture func(left, right int16)
}

// New creates an APU with post-boot register state.
func New() *APU {
	a := &APU{}
	a.powerOn()
	// DMG boot ROM leaves channel 1 playing a terminated ding; model the
	// register residue only.
	a.WriteRegister(addr.NR10, 0x80)
	a.WriteRegister(addr.NR11, 0xBF)
	a.WriteRegister(addr.NR12, 0xF3)
	a.WriteRegister(addr.NR14, 0xBF)
	a.WriteRegister(addr.NR21, 0x3F)
	a.WriteRegister(addr.NR24, 0xBF)
	a.WriteRegister(addr.NR30, 0x7F)
	a.WriteRegister(addr.NR31, 0xFF)
	a.WriteRegister(addr.NR32, 0x9F)
	a.WriteRegister(addr.NR34, 0xBF)
	a.WriteRegister(addr.NR41, 0xFF)
	a.WriteRegister(addr.NR44, 0xBF)
	a.WriteRegister(addr.NR50, 0x77)
	a.WriteRegister(addr.NR51, 0xF3)
	a.ch1.enabled = false
	a.ch2.enabled = false
	return a
}

func (a *APU) powerOn() {
	a.powered = true
	a.frameSeq = 0
	a.frameSeqTimer = frameSeqPeriod
	a.ch1.hasSweep = true
}

func (a *APU) powerOff() {
	wave := a.waveRAM
	*a = APU{
		waveRAM: wave,
		buf:     a.buf,
		head:    a.head,
		count:   a.count,
		capture: a.capture,
	}
	a.ch1.hasSweep = true
}

// SetCapture installs a tap that observes every generated sample frame,
// used for WAV recording. Pass nil to remove it.
func (a *APU) SetCapture(fn func(left, right int16)) {
	a.capture = fn
}

// Tick advances the APU by the given number of machine cycles.
func (a *APU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if a.powered {
			a.ch1.step()
			a.ch2.step()
			a.ch3.step()
			a.ch4.step()

			a.frameSeqTimer--
			if a.frameSeqTimer <= 0 {
				a.frameSeqTimer = frameSeqPeriod
				a.clockFrameSequencer()
			}
		}

		a.sampleAcc += SampleRate
		if a.sampleAcc >= cpuHz {
			a.sampleAcc -= cpuHz
			a.pushSample()
		}
	}
}

func (a *APU) clockFrameSequencer() {
	switch a.frameSeq {
	case 0, 4:
		a.clockLengths()
	case 2, 6:
		a.clockLengths()
		a.ch1.clockSweep()
	case 7:
		a.ch1.env.clock()
		a.ch2.env.clock()
		a.ch4.env.clock()
	}
	a.frameSeq = (a.frameSeq + 1) & 7
}

func (a *APU) clockLengths() {
	a.ch1.clockLength()
	a.ch2.clockLength()
	a.ch3.clockLength()
	a.ch4.clockLength()
}

func (a *APU) pushSample() {
	outputs := [4]uint8{
		a.ch1.output(),
		a.ch2.output(),
		a.ch3.output(a.waveRAM[:]),
		a.ch4.output(),
	}

	var left, right int
	for ch := 0; ch < 4; ch++ {
		// centre each 0..15 DAC level around zero
		level := int(outputs[ch])*2 - 15
		if a.nr51&(1<<(ch+4)) != 0 {
			left += level
		}
		if a.nr51&(1<<ch) != 0 {
			right += level
		}
	}

	leftVol := int(a.nr50>>4&7) + 1
	rightVol := int(a.nr50&7) + 1
	l := int16(left * leftVol * 64)
	r := int16(right * rightVol * 64)

	if a.capture != nil {
		a.capture(l, r)
	}

	if a.count == bufferFrames {
		// drop the oldest frame
		a.head = (a.head + 1) % bufferFrames
		a.count--
	}
	tail := (a.head + a.count) % bufferFrames
	a.buf[tail*2] = l
	a.buf[tail*2+1] = r
	a.count++
}

// Samples moves up to n stereo frames of interleaved L/R samples into
// dst and reports how many frames were written.
func (a *APU) Samples(dst []int16) int {
	frames := len(dst) / 2
	if frames > a.count {
		frames = a.count
	}
	for i := 0; i < frames; i++ {
		idx := (a.head + i) % bufferFrames
		dst[i*2] = a.buf[idx*2]
		dst[i*2+1] = a.buf[idx*2+1]
	}
	a.head = (a.head + frames) % bufferFrames
	a.count -= frames
	return frames
}

// Buffered reports how many stereo frames are waiting to be pulled.
func (a *APU) Buffered() int { return a.count }

// ReadRegister reads an APU register or wave RAM byte.
func (a *APU) ReadRegister(address uint16) uint8 {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.waveRAM[address-addr.WaveRAMStart]
	}

	mask, known := readMasks[address]
	if !known {
		return 0xFF
	}

	var value uint8
	switch address {
	case addr.NR10:
		value = a.ch1.sweepPeriod<<4 | a.ch1.sweepShift
		if a.ch1.sweepNegate {
			value |= 0x08
		}
	case addr.NR11:
		value = a.ch1.duty << 6
	case addr.NR12:
		value = envByte(&a.ch1.env)
	case addr.NR14:
		value = lengthEnableBit(a.ch1.lengthEnable)
	case addr.NR21:
		value = a.ch2.duty << 6
	case addr.NR22:
		value = envByte(&a.ch2.env)
	case addr.NR24:
		value = lengthEnableBit(a.ch2.lengthEnable)
	case addr.NR30:
		if a.ch3.dacEnabled {
			value = 0x80
		}
	case addr.NR32:
		value = a.ch3.volumeCode << 5
	case addr.NR34:
		value = lengthEnableBit(a.ch3.lengthEnable)
	case addr.NR42:
		value = envByte(&a.ch4.env)
	case addr.NR43:
		value = a.ch4.shift<<4 | a.ch4.divisor
		if a.ch4.width7 {
			value |= 0x08
		}
	case addr.NR44:
		value = lengthEnableBit(a.ch4.lengthEnable)
	case addr.NR50:
		value = a.nr50
	case addr.NR51:
		value = a.nr51
	case addr.NR52:
		if a.powered {
			value |= 0x80
		}
		if a.ch1.enabled {
			value |= 0x01
		}
		if a.ch2.enabled {
			value |= 0x02
		}
		if a.ch3.enabled {
			value |= 0x04
		}
		if a.ch4.enabled {
			value |= 0x08
		}
	}
	return value | mask
}

func envByte(e *envelope) uint8 {
	value := e.initial<<4 | e.period
	if e.direction {
		value |= 0x08
	}
	return value
}

func lengthEnableBit(on bool) uint8 {
	if on {
		return 0x40
	}
	return 0
}

// WriteRegister writes an APU register or wave RAM byte. While the APU
// is powered off only NR52 and wave RAM are writable.
func (a *APU) WriteRegister(address uint16, value uint8) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.waveRAM[address-addr.WaveRAMStart] = value
		return
	}
	if !a.powered && address != addr.NR52 {
		return
	}

	switch address {
	case addr.NR10:
		a.ch1.sweepPeriod = value >> 4 & 7
		a.ch1.sweepNegate = value&0x08 != 0
		a.ch1.sweepShift = value & 7
	case addr.NR11:
		a.ch1.duty = value >> 6
		a.ch1.length = 64 - int(value&0x3F)
	case addr.NR12:
		writeEnv(&a.ch1.env, value)
		a.ch1.dacEnabled = value&0xF8 != 0
		if !a.ch1.dacEnabled {
			a.ch1.enabled = false
		}
	case addr.NR13:
		a.ch1.freq = a.ch1.freq&0x700 | uint16(value)
	case addr.NR14:
		a.ch1.freq = a.ch1.freq&0xFF | uint16(value&7)<<8
		a.ch1.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch1.trigger()
		}
	case addr.NR21:
		a.ch2.duty = value >> 6
		a.ch2.length = 64 - int(value&0x3F)
	case addr.NR22:
		writeEnv(&a.ch2.env, value)
		a.ch2.dacEnabled = value&0xF8 != 0
		if !a.ch2.dacEnabled {
			a.ch2.enabled = false
		}
	case addr.NR23:
		a.ch2.freq = a.ch2.freq&0x700 | uint16(value)
	case addr.NR24:
		a.ch2.freq = a.ch2.freq&0xFF | uint16(value&7)<<8
		a.ch2.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch2.trigger()
		}
	case addr.NR30:
		a.ch3.dacEnabled = value&0x80 != 0
		if !a.ch3.dacEnabled {
			a.ch3.enabled = false
		}
	case addr.NR31:
		a.ch3.length = 256 - int(value)
	case addr.NR32:
		a.ch3.volumeCode = value >> 5 & 3
	case addr.NR33:
		a.ch3.freq = a.ch3.freq&0x700 | uint16(value)
	case addr.NR34:
		a.ch3.freq = a.ch3.freq&0xFF | uint16(value&7)<<8
		a.ch3.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch3.trigger()
		}
	case addr.NR41:
		a.ch4.length = 64 - int(value&0x3F)
	case addr.NR42:
		writeEnv(&a.ch4.env, value)
		a.ch4.dacEnabled = value&0xF8 != 0
		if !a.ch4.dacEnabled {
			a.ch4.enabled = false
		}
	case addr.NR43:
		a.ch4.shift = value >> 4
		a.ch4.width7 = value&0x08 != 0
		a.ch4.divisor = value & 7
	case addr.NR44:
		a.ch4.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch4.trigger()
		}
	case addr.NR50:
		a.nr50 = value
	case addr.NR51:
		a.nr51 = value
	case addr.NR52:
		on := value&0x80 != 0
		if on && !a.powered {
			a.powerOn()
		} else if !on && a.powered {
			a.powerOff()
		}
	}
}

func writeEnv(e *envelope, value uint8) {
	e.initial = value >> 4
	e.direction = value&0x08 != 0
	e.period = value & 7
}
