package video

import (
	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

// Unit is the PPU surface the bus talks to. Both the plain PPU and the
// threaded wrapper satisfy it, so the scheduling mode is invisible to
// the rest of the machine.
type Unit interface {
	ReadVRAM(address uint16) uint8
	WriteVRAM(address uint16, value uint8)
	ReadOAM(address uint16) uint8
	WriteOAM(address uint16, value uint8)
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
	Tick(cycles int)
	Frame() *FrameBuffer
	Frames() uint64

	snapshot.Serializable
}

var (
	_ Unit = (*PPU)(nil)
	_ Unit = (*Threaded)(nil)
)

type eventKind uint8

const (
	evTick eventKind = iota
	evVRAM
	evOAM
	evReg
	evSync
)

type event struct {
	kind    eventKind
	address uint16
	value   uint8
	cycles  int
	done    chan struct{}
}

// Threaded runs rendering on a worker goroutine so the timing-critical
// CPU/APU path never pays for pixel compositing.
//
// The bus-facing PPU keeps running the full scanline state machine (LY,
// STAT and interrupts must stay synchronous) but skips rendering. Every
// write and cycle budget is forwarded, in program order, over a
// back-pressured channel to a shadow PPU that does render. Because the
// shadow sees the identical event sequence, its frames are byte-for-byte
// the frames the synchronous mode would have produced.
type Threaded struct {
	main   *PPU // bus-facing: timing, registers, interrupts
	shadow *PPU // worker-owned: rendering and frame publication

	events  chan event
	stopped chan struct{}
}

// NewThreaded wraps a threaded render worker around a fresh PPU pair.
func NewThreaded(cgb bool, interrupt func(addr.Interrupt)) *Threaded {
	t := &Threaded{
		main:    New(cgb, interrupt),
		shadow:  New(cgb, nil),
		events:  make(chan event, 4096),
		stopped: make(chan struct{}),
	}
	t.main.noRender = true
	go t.run()
	return t
}

func (t *Threaded) run() {
	defer close(t.stopped)
	for ev := range t.events {
		switch ev.kind {
		case evTick:
			t.shadow.Tick(ev.cycles)
		case evVRAM:
			t.shadow.WriteVRAM(ev.address, ev.value)
		case evOAM:
			t.shadow.WriteOAM(ev.address, ev.value)
		case evReg:
			t.shadow.WriteRegister(ev.address, ev.value)
		case evSync:
			close(ev.done)
		}
	}
}

// Quiesce blocks until the worker has drained every forwarded event.
// Callers must quiesce before snapshotting, resetting or unloading so
// the worker cannot observe torn state.
func (t *Threaded) Quiesce() {
	done := make(chan struct{})
	t.events <- event{kind: evSync, done: done}
	<-done
}

// Stop quiesces and terminates the worker. The wrapper must not be used
// afterwards.
func (t *Threaded) Stop() {
	t.Quiesce()
	close(t.events)
	<-t.stopped
}

func (t *Threaded) ReadVRAM(address uint16) uint8 { return t.main.ReadVRAM(address) }
func (t *Threaded) ReadOAM(address uint16) uint8  { return t.main.ReadOAM(address) }

func (t *Threaded) ReadRegister(address uint16) uint8 {
	return t.main.ReadRegister(address)
}

func (t *Threaded) WriteVRAM(address uint16, value uint8) {
	t.main.WriteVRAM(address, value)
	t.events <- event{kind: evVRAM, address: address, value: value}
}

func (t *Threaded) WriteOAM(address uint16, value uint8) {
	t.main.WriteOAM(address, value)
	t.events <- event{kind: evOAM, address: address, value: value}
}

func (t *Threaded) WriteRegister(address uint16, value uint8) {
	t.main.WriteRegister(address, value)
	t.events <- event{kind: evReg, address: address, value: value}
}

func (t *Threaded) Tick(cycles int) {
	t.main.Tick(cycles)
	t.events <- event{kind: evTick, cycles: cycles}
}

// Frame returns the last frame the worker finished. It may trail the
// synchronous machine by in-flight events; it is never partial.
func (t *Threaded) Frame() *FrameBuffer { return t.shadow.Frame() }

// Frames counts completed frames in machine time (not worker time), so
// frame-stepping loops behave identically in both modes.
func (t *Threaded) Frames() uint64 { return t.main.Frames() }

func (t *Threaded) Serialize(w *snapshot.Writer) {
	// The shadow is derived state; only the bus-facing PPU is captured.
	// Callers quiesce first, so the worker is idle here.
	t.main.Serialize(w)
}

func (t *Threaded) Deserialize(r *snapshot.Reader) error {
	if err := t.main.Deserialize(r); err != nil {
		return err
	}
	return t.syncShadow()
}

// syncShadow rebuilds the worker's PPU from the bus-facing one after a
// state restore.
func (t *Threaded) syncShadow() error {
	blob, err := snapshot.Encode(t.main)
	if err != nil {
		return err
	}
	return snapshot.Decode(blob, t.shadow)
}
