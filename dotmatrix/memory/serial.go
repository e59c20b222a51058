package memory

import (
	"log/slog"

	"github.com/valdt/dotmatrix/dotmatrix/addr"
	"github.com/valdt/dotmatrix/dotmatrix/bit"
	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

// transferCycles is how long one serial byte takes with the internal
// 8192 Hz clock: 8 bits at 512 cycles each.
const transferCycles = 4096

// Serial implements the SB/SC link port with no peer attached: outgoing
// bytes are collected into lines and logged, incoming bits read as 1.
// Test ROMs report their results this way, which makes the sink worth
// keeping around even though link cable play is a host concern.
type Serial struct {
	sb        uint8
	sc        uint8
	active    bool
	countdown int
	line      []byte

	// Interrupt is invoked when a transfer completes.
	Interrupt func()
}

func (s *Serial) Read(address uint16) uint8 {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		return s.sc | 0x7E
	}
	return 0xFF
}

func (s *Serial) Write(address uint16, value uint8) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		// A transfer starts when the start bit and the internal clock
		// select are both set. With an external clock and no peer,
		// nothing ever drives the line, so the transfer never begins.
		if !s.active && bit.IsSet(7, s.sc) && bit.IsSet(0, s.sc) {
			s.logByte(s.sb)
			s.active = true
			s.countdown = transferCycles
		}
	}
}

func (s *Serial) Tick(cycles int) {
	if !s.active {
		return
	}
	s.countdown -= cycles
	if s.countdown <= 0 {
		s.complete()
	}
}

func (s *Serial) logByte(b uint8) {
	if b == '\n' || b == '\r' || b == 0 {
		if len(s.line) > 0 {
			slog.Info("serial", "line", string(s.line))
			s.line = s.line[:0]
		}
		return
	}
	s.line = append(s.line, b)
}

func (s *Serial) complete() {
	s.active = false
	s.countdown = 0
	// No peer: all ones shift in.
	s.sb = 0xFF
	s.sc = bit.Clear(7, s.sc)
	if s.Interrupt != nil {
		s.Interrupt()
	}
}

func (s *Serial) Serialize(w *snapshot.Writer) {
	w.U8(s.sb)
	w.U8(s.sc)
	w.Bool(s.active)
	w.Int(s.countdown)
}

func (s *Serial) Deserialize(r *snapshot.Reader) error {
	s.sb = r.U8()
	s.sc = r.U8()
	s.active = r.Bool()
	s.countdown = r.Int()
	s.line = s.line[:0]
	return r.Err()
}
