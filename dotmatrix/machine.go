// Package dotmatrix emulates the original 8-bit handheld game console
// and its colour successor: an SM83 CPU, tile-based PPU, four channel
// APU and the common cartridge mappers, wired together behind a single
// Machine type.
package dotmatrix

import (
	"fmt"
	"log/slog"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/audio"
	"github.com/valdt/dotmatrix/dotmatrix/cpu"
	"github.com/valdt/dotmatrix/dotmatrix/memory"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

// Config selects optional machine behaviour.
type Config struct {
	// ThreadedPPU moves rendering onto a worker goroutine. Emulated
	// behaviour is identical; only host-side scheduling changes.
	ThreadedPPU bool
}

// Machine is a complete emulated console with a cartridge inserted.
// It is not safe for concurrent use; drive it from one goroutine.
type Machine struct {
	cpu *cpu.CPU
	mmu *memory.MMU
	ppu video.Unit
	apu *audio.APU

	threaded *video.Threaded // nil in synchronous mode

	// err latches the first fatal execution error; the machine refuses
	// to run further once set
	err error
}

// New builds a machine around the given ROM image.
func New(rom []byte, cfg Config) (*Machine, error) {
	cart, err := memory.NewCartridge(rom)
	if err != nil {
		return nil, fmt.Errorf("load cartridge: %w", err)
	}

	m := &Machine{}
	interrupt := func(i addr.Interrupt) { m.mmu.RequestInterrupt(i) }

	if cfg.ThreadedPPU {
		m.threaded = video.NewThreaded(cart.CGB(), interrupt)
		m.ppu = m.threaded
	} else {
		m.ppu = video.New(cart.CGB(), interrupt)
	}

	m.apu = audio.New()
	m.mmu = memory.NewMMU(cart, m.ppu, m.apu)
	m.cpu = cpu.New(m.mmu, cart.CGB())

	slog.Debug("machine assembled", "threaded_ppu", cfg.ThreadedPPU)
	return m, nil
}

// Close releases the render worker in threaded mode. The machine must
// not be stepped afterwards.
func (m *Machine) Close() {
	if m.threaded != nil {
		m.threaded.Stop()
	}
}

// Step executes one CPU instruction (or one interrupt dispatch) and
// advances every other component by the cycles it consumed. The
// returned error is fatal and sticky: the CPU hit an illegal opcode.
func (m *Machine) Step() (int, error) {
	if m.err != nil {
		return 0, m.err
	}

	if m.cpu.Stopped() {
		return m.stepStopped(), nil
	}

	cycles, err := m.cpu.Step()
	if err != nil {
		m.err = err
		slog.Error("execution halted", "error", err)
		return 0, err
	}

	if m.cpu.Stopped() {
		m.enterStop()
	}

	m.mmu.Tick(cycles)
	m.ppu.Tick(cycles)
	m.apu.Tick(cycles)
	return cycles, nil
}

// enterStop applies the side effects of the STOP instruction: the
// divider resets, and an armed speed switch completes immediately
// instead of freezing the machine.
func (m *Machine) enterStop() {
	m.mmu.Timer().ResetDivider()

	if !m.mmu.Cartridge().CGB() {
		// KEY1 reads 0xFF on monochrome hardware
		return
	}
	key1 := m.mmu.Read(addr.KEY1)
	if key1&0x01 != 0 {
		m.mmu.Write(addr.KEY1, key1&0x80^0x80)
		m.cpu.Resume()
	}
}

// stepStopped idles the machine while the CPU is in STOP. Everything is
// frozen, including the timer; a pressed button wakes the core.
func (m *Machine) stepStopped() int {
	if m.mmu.Joypad().AnyPressed() {
		m.cpu.Resume()
	}
	return 4
}

// RunFrame steps the machine until the PPU completes the next frame.
// With the LCD disabled no frames complete, so the run is also bounded
// by one frame's worth of cycles.
func (m *Machine) RunFrame() error {
	start := m.ppu.Frames()
	budget := video.FrameDots
	for m.ppu.Frames() == start && budget > 0 {
		cycles, err := m.Step()
		if err != nil {
			return err
		}
		budget -= cycles
	}
	return nil
}

// Frame returns the most recently completed frame.
func (m *Machine) Frame() *video.FrameBuffer { return m.ppu.Frame() }

// Frames returns the number of frames completed so far.
func (m *Machine) Frames() uint64 { return m.ppu.Frames() }

// Press pushes a button down. A press also wakes the CPU from STOP.
func (m *Machine) Press(b memory.Button) { m.mmu.Joypad().Press(b) }

// Release lets a button up.
func (m *Machine) Release(b memory.Button) { m.mmu.Joypad().Release(b) }

// Samples drains up to len(dst)/2 stereo sample frames from the APU.
func (m *Machine) Samples(dst []int16) int { return m.apu.Samples(dst) }

// APU exposes the sound unit, used to attach a recorder.
func (m *Machine) APU() *audio.APU { return m.apu }

// Title returns the cartridge header title.
func (m *Machine) Title() string { return m.mmu.Cartridge().Title() }

// BatteryRAM returns the battery backed external RAM, or nil when the
// cartridge has none.
func (m *Machine) BatteryRAM() []byte { return m.mmu.BatteryRAM() }

// LoadBatteryRAM restores a save file written from BatteryRAM.
func (m *Machine) LoadBatteryRAM(data []byte) { m.mmu.LoadBatteryRAM(data) }

// SaveState captures the complete machine state as a portable blob.
func (m *Machine) SaveState() ([]byte, error) {
	if m.threaded != nil {
		m.threaded.Quiesce()
	}
	return snapshot.Encode(m.cpu, m.mmu, m.ppu, m.apu)
}

// LoadState restores a blob produced by SaveState. On a decode error
// the machine is left unchanged if the header was bad, and must be
// discarded if the body was truncated mid-restore.
func (m *Machine) LoadState(blob []byte) error {
	if m.threaded != nil {
		m.threaded.Quiesce()
	}
	if err := snapshot.Decode(blob, m.cpu, m.mmu, m.ppu, m.apu); err != nil {
		return err
	}
	m.err = nil
	return nil
}

// Debugger target surface.

// Read returns the byte the CPU would see at the given address.
func (m *Machine) Read(address uint16) uint8 { return m.mmu.Read(address) }

// Write stores a byte through the bus, with all its side effects.
func (m *Machine) Write(address uint16, value uint8) { m.mmu.Write(address, value) }

// Registers returns a copy of the CPU register file.
func (m *Machine) Registers() cpu.Regs { return m.cpu.Registers() }

// SetRegisters overwrites the CPU register file.
func (m *Machine) SetRegisters(r cpu.Regs) { m.cpu.SetRegisters(r) }

// SetWriteHook installs an observer for completed bus writes.
func (m *Machine) SetWriteHook(fn func(address uint16, value uint8)) {
	m.mmu.SetWriteHook(fn)
}
