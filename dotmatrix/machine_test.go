package dotmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/cpu"
	"github.com/valdt/dotmatrix/dotmatrix/memory"
)

// buildROM assembles a minimal 32 KiB image with a valid header. The
// code bytes are placed at the entry point; the rest of the ROM is NOPs.
func buildROM(cartType, ramCode uint8, cgb bool, code ...byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], code)
	copy(rom[0x0134:], "TEST")
	if cgb {
		rom[0x0143] = 0x80
	}
	rom[0x0147] = cartType
	rom[0x0149] = ramCode

	var sum uint8
	for _, b := range rom[0x0134:0x014D] {
		sum = sum - b - 1
	}
	rom[0x014D] = sum
	return rom
}

func newTestMachine(t *testing.T, cfg Config, code ...byte) *Machine {
	t.Helper()
	m, err := New(buildROM(0x00, 0x00, false, code...), cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNewRejectsBadImage(t *testing.T) {
	_, err := New([]byte{0x00}, Config{})
	assert.ErrorIs(t, err, memory.ErrImageTooSmall)
}

func TestTitle(t *testing.T) {
	m := newTestMachine(t, Config{})
	assert.Equal(t, "TEST", m.Title())
}

func TestStepAdvances(t *testing.T) {
	m := newTestMachine(t, Config{}) // NOP sled

	cycles, err := m.Step()
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0x0101), m.Registers().PC)
}

func TestIllegalOpcodeIsSticky(t *testing.T) {
	m := newTestMachine(t, Config{}, 0xD3)

	_, err := m.Step()
	require.ErrorIs(t, err, cpu.ErrIllegalOpcode)

	// the machine refuses to run further
	_, err2 := m.Step()
	assert.Equal(t, err, err2)
	assert.Error(t, m.RunFrame())
}

func TestStopFreezesUntilButton(t *testing.T) {
	m := newTestMachine(t, Config{}, 0x10, 0x00) // STOP

	_, err := m.Step()
	require.NoError(t, err)
	pc := m.Registers().PC
	require.Equal(t, uint16(0x0102), pc)

	// frozen: further steps do not advance
	for i := 0; i < 10; i++ {
		_, err = m.Step()
		require.NoError(t, err)
	}
	assert.Equal(t, pc, m.Registers().PC)

	m.Press(memory.ButtonStart)
	_, err = m.Step() // wakes
	require.NoError(t, err)
	_, err = m.Step() // executes again
	require.NoError(t, err)
	assert.Equal(t, pc+1, m.Registers().PC)
}

func TestCGBSpeedSwitch(t *testing.T) {
	rom := buildROM(0x00, 0x00, true, 0x10, 0x00)
	m, err := New(rom, Config{})
	require.NoError(t, err)
	defer m.Close()

	m.Write(addr.KEY1, 0x01) // arm the switch
	_, err = m.Step()        // STOP completes it
	require.NoError(t, err)

	// switch done: bit 7 set, bit 0 clear, CPU running
	assert.Equal(t, uint8(0xFE), m.Read(addr.KEY1))
	_, err = m.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0103), m.Registers().PC)
}

func TestRunFrame(t *testing.T) {
	m := newTestMachine(t, Config{})

	require.NoError(t, m.RunFrame())
	assert.Equal(t, uint64(1), m.Frames())

	require.NoError(t, m.RunFrame())
	assert.Equal(t, uint64(2), m.Frames())
}

func TestRunFrameBoundedWithLCDOff(t *testing.T) {
	m := newTestMachine(t, Config{})
	m.Write(addr.LCDC, 0x00)

	require.NoError(t, m.RunFrame())
	assert.Equal(t, uint64(0), m.Frames())
}

func TestSamples(t *testing.T) {
	m := newTestMachine(t, Config{})
	require.NoError(t, m.RunFrame())

	dst := make([]int16, 512)
	assert.Greater(t, m.Samples(dst), 0)
}

func TestBatteryRAM(t *testing.T) {
	rom := buildROM(0x03, 0x02, false) // MBC1 with battery backed RAM
	m, err := New(rom, Config{})
	require.NoError(t, err)
	defer m.Close()

	ram := m.BatteryRAM()
	require.NotNil(t, ram)

	save := make([]byte, len(ram))
	save[0] = 0xAB
	m.LoadBatteryRAM(save)
	assert.Equal(t, uint8(0xAB), m.BatteryRAM()[0])

	// no battery, no save
	plain := newTestMachine(t, Config{})
	assert.Nil(t, plain.BatteryRAM())
}

func TestSaveStateRoundTrip(t *testing.T) {
	m := newTestMachine(t, Config{})
	for i := 0; i < 1000; i++ {
		_, err := m.Step()
		require.NoError(t, err)
	}

	blob, err := m.SaveState()
	require.NoError(t, err)

	restored := newTestMachine(t, Config{})
	require.NoError(t, restored.LoadState(blob))
	assert.Equal(t, m.Registers(), restored.Registers())
	assert.Equal(t, m.Frames(), restored.Frames())

	// both machines stay in lockstep after the restore
	require.NoError(t, m.RunFrame())
	require.NoError(t, restored.RunFrame())
	assert.Equal(t, m.Registers(), restored.Registers())
	assert.True(t, m.Frame().Equal(restored.Frame()))
}

func TestLoadStateRejectsGarbage(t *testing.T) {
	m := newTestMachine(t, Config{})
	before := m.Registers()

	assert.Error(t, m.LoadState([]byte("not a save state")))
	assert.Equal(t, before, m.Registers())
}

func TestLoadStateClearsFatalError(t *testing.T) {
	m := newTestMachine(t, Config{}, 0xD3)

	blob, err := m.SaveState()
	require.NoError(t, err)

	_, stepErr := m.Step()
	require.Error(t, stepErr)

	require.NoError(t, m.LoadState(blob))
	// restored to before the illegal fetch; it fails again when reached
	_, stepErr = m.Step()
	assert.Error(t, stepErr)
}

func TestThreadedPPUMatchesSynchronous(t *testing.T) {
	sync := newTestMachine(t, Config{})
	threaded := newTestMachine(t, Config{ThreadedPPU: true})

	for i := 0; i < 3; i++ {
		require.NoError(t, sync.RunFrame())
		require.NoError(t, threaded.RunFrame())
	}

	blob, err := threaded.SaveState() // quiesces the worker
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	assert.Equal(t, sync.Frames(), threaded.Frames())
	assert.Equal(t, sync.Registers(), threaded.Registers())
	assert.True(t, sync.Frame().Equal(threaded.Frame()))
}

func TestThreadedSaveStateRestoresIntoSynchronous(t *testing.T) {
	threaded := newTestMachine(t, Config{ThreadedPPU: true})
	for i := 0; i < 2; i++ {
		require.NoError(t, threaded.RunFrame())
	}

	blob, err := threaded.SaveState()
	require.NoError(t, err)

	sync := newTestMachine(t, Config{})
	require.NoError(t, sync.LoadState(blob))
	assert.Equal(t, threaded.Registers(), sync.Registers())
	assert.Equal(t, threaded.Frames(), sync.Frames())
}
