package audio

import "github.com/valdt/dotmatrix/dotmatrix/snapshot"

func serializePulse(w *snapshot.Writer, c *pulse) {
	w.Bool(c.enabled)
	w.Bool(c.dacEnabled)
	w.U8(c.duty)
	w.U8(c.dutyStep)
	w.U16(c.freq)
	w.Int(c.timer)
	w.Int(c.length)
	w.Bool(c.lengthEnable)
	serializeEnvelope(w, &c.env)
	w.U8(c.sweepPeriod)
	w.Bool(c.sweepNegate)
	w.U8(c.sweepShift)
	w.U8(c.sweepTimer)
	w.Bool(c.sweepOn)
	w.U16(c.shadowFreq)
}

func deserializePulse(r *snapshot.Reader, c *pulse) {
	c.enabled = r.Bool()
	c.dacEnabled = r.Bool()
	c.duty = r.U8()
	c.dutyStep = r.U8()
	c.freq = r.U16()
	c.timer = r.Int()
	c.length = r.Int()
	c.lengthEnable = r.Bool()
	deserializeEnvelope(r, &c.env)
	c.sweepPeriod = r.U8()
	c.sweepNegate = r.Bool()
	c.sweepShift = r.U8()
	c.sweepTimer = r.U8()
	c.sweepOn = r.Bool()
	c.shadowFreq = r.U16()
}

func serializeEnvelope(w *snapshot.Writer, e *envelope) {
	w.U8(e.initial)
	w.Bool(e.direction)
	w.U8(e.period)
	w.U8(e.volume)
	w.U8(e.timer)
}

func deserializeEnvelope(r *snapshot.Reader, e *envelope) {
	e.initial = r.U8()
	e.direction = r.Bool()
	e.period = r.U8()
	e.volume = r.U8()
	e.timer = r.U8()
}

// Serialize captures the synthesis state. The host-side sample buffer is
// transient and intentionally excluded.
func (a *APU) Serialize(w *snapshot.Writer) {
	serializePulse(w, &a.ch1)
	serializePulse(w, &a.ch2)

	w.Bool(a.ch3.enabled)
	w.Bool(a.ch3.dacEnabled)
	w.U16(a.ch3.freq)
	w.Int(a.ch3.timer)
	w.Int(a.ch3.length)
	w.Bool(a.ch3.lengthEnable)
	w.U8(a.ch3.volumeCode)
	w.U8(a.ch3.position)

	w.Bool(a.ch4.enabled)
	w.Bool(a.ch4.dacEnabled)
	w.U8(a.ch4.shift)
	w.Bool(a.ch4.width7)
	w.U8(a.ch4.divisor)
	w.Int(a.ch4.timer)
	w.U16(a.ch4.lfsr)
	w.Int(a.ch4.length)
	w.Bool(a.ch4.lengthEnable)
	serializeEnvelope(w, &a.ch4.env)

	w.Raw(a.waveRAM[:])
	w.Bool(a.powered)
	w.U8(a.nr50)
	w.U8(a.nr51)
	w.U8(a.frameSeq)
	w.Int(a.frameSeqTimer)
	w.Int(a.sampleAcc)
}

func (a *APU) Deserialize(r *snapshot.Reader) error {
	deserializePulse(r, &a.ch1)
	deserializePulse(r, &a.ch2)

	a.ch3.enabled = r.Bool()
	a.ch3.dacEnabled = r.Bool()
	a.ch3.freq = r.U16()
	a.ch3.timer = r.Int()
	a.ch3.length = r.Int()
	a.ch3.lengthEnable = r.Bool()
	a.ch3.volumeCode = r.U8()
	a.ch3.position = r.U8()

	a.ch4.enabled = r.Bool()
	a.ch4.dacEnabled = r.Bool()
	a.ch4.shift = r.U8()
	a.ch4.width7 = r.Bool()
	a.ch4.divisor = r.U8()
	a.ch4.timer = r.Int()
	a.ch4.lfsr = r.U16()
	a.ch4.length = r.Int()
	a.ch4.lengthEnable = r.Bool()
	deserializeEnvelope(r, &a.ch4.env)

	r.Raw(a.waveRAM[:])
	a.powered = r.Bool()
	a.nr50 = r.U8()
	a.nr51 = r.U8()
	a.frameSeq = r.U8()
	a.frameSeqTimer = r.Int()
	a.sampleAcc = r.Int()
	a.ch1.hasSweep = true
	return r.Err()
}
