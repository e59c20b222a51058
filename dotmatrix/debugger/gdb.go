package debugger

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/valdt/dotmatrix/dotmatrix/cpu"
)

// Server speaks the GDB remote serial protocol over TCP so external
// frontends can drive the debugger. One client is served at a time;
// while a client is attached the server goroutine is the only thing
// stepping the target.
type Server struct {
	dbg *Debugger
	ln  net.Listener
}

// Serve starts listening on the given TCP address and accepts debugger
// clients in the background.
func Serve(address string, dbg *Debugger) (*Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("debugger: listen %s: %w", address, err)
	}
	s := &Server{dbg: dbg, ln: ln}
	slog.Info("debug server listening", "addr", ln.Addr().String())
	go s.acceptLoop()
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting clients. An attached session ends when its
// connection drops.
func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		slog.Info("debug client attached", "remote", conn.RemoteAddr().String())
		s.session(conn)
		conn.Close()
		slog.Info("debug client detached", "remote", conn.RemoteAddr().String())
	}
}

// session runs the packet loop for one client. Incoming bytes are
// pumped through a channel so a break request (0x03) can be seen while
// the target is running.
func (s *Server) session(conn net.Conn) {
	bytes := make(chan byte, 512)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(bytes)
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			for _, b := range buf[:n] {
				select {
				case bytes <- b:
				case <-done:
					// session ended with bytes still queued
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	sess := &gdbSession{server: s, conn: conn, in: bytes, ack: true}
	sess.loop()
}

type gdbSession struct {
	server *Server
	conn   net.Conn
	in     <-chan byte
	ack    bool
}

func (g *gdbSession) loop() {
	for {
		payload, ok := g.readPacket()
		if !ok {
			return
		}
		if g.ack {
			g.conn.Write([]byte{'+'})
		}
		if done := g.handle(payload); done {
			return
		}
	}
}

// readPacket consumes one $payload#checksum frame, skipping acks and
// stray interrupt bytes between packets.
func (g *gdbSession) readPacket() (string, bool) {
	for {
		b, ok := <-g.in
		if !ok {
			return "", false
		}
		if b != '$' {
			continue
		}

		var payload strings.Builder
		for {
			b, ok = <-g.in
			if !ok {
				return "", false
			}
			if b == '#' {
				break
			}
			payload.WriteByte(b)
		}
		// checksum, two hex digits
		if _, ok = <-g.in; !ok {
			return "", false
		}
		if _, ok = <-g.in; !ok {
			return "", false
		}
		return payload.String(), true
	}
}

func (g *gdbSession) send(payload string) {
	sum := uint8(0)
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	fmt.Fprintf(g.conn, "$%s#%02x", payload, sum)
}

// handle dispatches one packet and reports whether the session is over.
func (g *gdbSession) handle(p string) bool {
	switch {
	case p == "?":
		g.send("S05")
	case strings.HasPrefix(p, "qSupported"):
		g.send("PacketSize=1000;QStartNoAckMode+")
	case p == "QStartNoAckMode":
		g.send("OK")
		g.ack = false
	case p == "qAttached":
		g.send("1")
	case p == "g":
		g.send(g.readRegisters())
	case strings.HasPrefix(p, "G"):
		g.send(g.writeRegisters(p[1:]))
	case strings.HasPrefix(p, "p"):
		g.send(g.readRegister(p[1:]))
	case strings.HasPrefix(p, "P"):
		g.send(g.writeRegister(p[1:]))
	case strings.HasPrefix(p, "m"):
		g.send(g.readMemory(p[1:]))
	case strings.HasPrefix(p, "M"):
		g.send(g.writeMemory(p[1:]))
	case strings.HasPrefix(p, "Z"), strings.HasPrefix(p, "z"):
		g.send(g.breakpoint(p))
	case p == "s":
		g.send(g.step())
	case p == "c":
		g.send(g.cont())
	case p == "D":
		g.send("OK")
		return true
	case p == "k":
		return true
	default:
		// unsupported packet, empty response by convention
		g.send("")
	}
	return false
}

// register order on the wire: A F B C D E H L, then SP and PC little
// endian.
func (g *gdbSession) registerBytes() []byte {
	r := g.server.dbg.target.Registers()
	return []byte{
		r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L,
		uint8(r.SP), uint8(r.SP >> 8),
		uint8(r.PC), uint8(r.PC >> 8),
	}
}

func (g *gdbSession) readRegisters() string {
	return hex.EncodeToString(g.registerBytes())
}

func (g *gdbSession) writeRegisters(payload string) string {
	raw, err := hex.DecodeString(payload)
	if err != nil || len(raw) < 12 {
		return "E01"
	}
	g.server.dbg.target.SetRegisters(decodeRegs(raw))
	return "OK"
}

func decodeRegs(raw []byte) cpu.Regs {
	return cpu.Regs{
		A: raw[0], F: raw[1], B: raw[2], C: raw[3],
		D: raw[4], E: raw[5], H: raw[6], L: raw[7],
		SP: uint16(raw[8]) | uint16(raw[9])<<8,
		PC: uint16(raw[10]) | uint16(raw[11])<<8,
	}
}

func (g *gdbSession) readRegister(payload string) string {
	n, err := strconv.ParseUint(payload, 16, 8)
	if err != nil {
		return "E01"
	}
	all := g.registerBytes()
	switch {
	case n < 8:
		return hex.EncodeToString(all[n : n+1])
	case n == 8:
		return hex.EncodeToString(all[8:10])
	case n == 9:
		return hex.EncodeToString(all[10:12])
	default:
		return "E01"
	}
}

func (g *gdbSession) writeRegister(payload string) string {
	idx, value, ok := strings.Cut(payload, "=")
	if !ok {
		return "E01"
	}
	n, err := strconv.ParseUint(idx, 16, 8)
	if err != nil {
		return "E01"
	}
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) == 0 {
		return "E01"
	}

	r := g.server.dbg.target.Registers()
	switch {
	case n < 8:
		p := [8]*uint8{&r.A, &r.F, &r.B, &r.C, &r.D, &r.E, &r.H, &r.L}[n]
		*p = raw[0]
	case n == 8 && len(raw) >= 2:
		r.SP = uint16(raw[0]) | uint16(raw[1])<<8
	case n == 9 && len(raw) >= 2:
		r.PC = uint16(raw[0]) | uint16(raw[1])<<8
	default:
		return "E01"
	}
	g.server.dbg.target.SetRegisters(r)
	return "OK"
}

func (g *gdbSession) readMemory(payload string) string {
	addrStr, lenStr, ok := strings.Cut(payload, ",")
	if !ok {
		return "E01"
	}
	address, err1 := strconv.ParseUint(addrStr, 16, 16)
	count, err2 := strconv.ParseUint(lenStr, 16, 16)
	if err1 != nil || err2 != nil {
		return "E01"
	}

	out := make([]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		out = append(out, g.server.dbg.target.Read(uint16(address+i)))
	}
	return hex.EncodeToString(out)
}

func (g *gdbSession) writeMemory(payload string) string {
	spec, data, ok := strings.Cut(payload, ":")
	if !ok {
		return "E01"
	}
	addrStr, lenStr, ok := strings.Cut(spec, ",")
	if !ok {
		return "E01"
	}
	address, err1 := strconv.ParseUint(addrStr, 16, 16)
	count, err2 := strconv.ParseUint(lenStr, 16, 16)
	raw, err3 := hex.DecodeString(data)
	if err1 != nil || err2 != nil || err3 != nil || uint64(len(raw)) < count {
		return "E01"
	}

	for i := uint64(0); i < count; i++ {
		g.server.dbg.target.Write(uint16(address+i), raw[i])
	}
	return "OK"
}

// breakpoint handles Z/z insert and remove packets. Types 0 and 1 are
// execution breakpoints, type 2 is a write watchpoint.
func (g *gdbSession) breakpoint(p string) string {
	parts := strings.Split(p[1:], ",")
	if len(parts) < 2 {
		return "E01"
	}
	kind := parts[0]
	address, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return "E01"
	}

	insert := p[0] == 'Z'
	switch kind {
	case "0", "1":
		if insert {
			g.server.dbg.AddBreakpoint(uint16(address))
		} else {
			g.server.dbg.RemoveBreakpoint(uint16(address))
		}
	case "2":
		if insert {
			g.server.dbg.AddWatch(uint16(address))
		} else {
			g.server.dbg.RemoveWatch(uint16(address))
		}
	default:
		return ""
	}
	return "OK"
}

func (g *gdbSession) step() string {
	brk, err := g.server.dbg.StepOne()
	if err != nil {
		return "S06"
	}
	return stopReply(brk)
}

// cont resumes the target, watching the connection for an interrupt
// byte while it runs.
func (g *gdbSession) cont() string {
	type result struct {
		brk Break
		err error
	}
	res := make(chan result, 1)
	go func() {
		brk, err := g.server.dbg.RunUntilBreak()
		res <- result{brk, err}
	}()

	for {
		select {
		case r := <-res:
			if r.err != nil {
				return "S06"
			}
			return stopReply(r.brk)
		case b, ok := <-g.in:
			if !ok || b == 0x03 {
				g.server.dbg.Stop()
			}
		}
	}
}

func stopReply(brk Break) string {
	if brk.Reason == BreakWatch {
		return fmt.Sprintf("T05watch:%04x;", brk.WatchAddr)
	}
	return "S05"
}
