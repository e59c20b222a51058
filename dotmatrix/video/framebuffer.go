package video

// Screen dimensions in pixels.
const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
)

// Color is a packed 0xAARRGGBB pixel value.
type Color uint32

// The four DMG shades, mapped to the classic grey ramp.
const (
	WhiteColor     Color = 0xFFFFFFFF
	LightGreyColor Color = 0xFF989898
	DarkGreyColor  Color = 0xFF4C4C4C
	BlackColor     Color = 0xFF000000
)

// dmgShades indexes the fixed DMG colours by the 2 bit shade value a
// palette register resolves to.
var dmgShades = [4]Color{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

// ColorFromRGB555 converts a CGB palette RAM entry (15 bit BGR, 5 bits
// per component) to a packed ARGB value.
func ColorFromRGB555(raw uint16) Color {
	r := uint32(raw) & 0x1F
	g := uint32(raw>>5) & 0x1F
	b := uint32(raw>>10) & 0x1F
	// expand 5 bits to 8, duplicating the top bits into the low ones
	r = r<<3 | r>>2
	g = g<<3 | g>>2
	b = b<<3 | b>>2
	return Color(0xFF000000 | r<<16 | g<<8 | b)
}

// FrameBuffer is one complete 160x144 frame.
type FrameBuffer struct {
	pixels [FramebufferWidth * FramebufferHeight]uint32
}

// NewFrameBuffer returns a frame cleared to white.
func NewFrameBuffer() *FrameBuffer {
	fb := &FrameBuffer{}
	fb.Clear(WhiteColor)
	return fb
}

func (fb *FrameBuffer) SetPixel(x, y int, c Color) {
	fb.pixels[y*FramebufferWidth+x] = uint32(c)
}

func (fb *FrameBuffer) GetPixel(x, y int) Color {
	return Color(fb.pixels[y*FramebufferWidth+x])
}

// Clear fills the whole frame with one colour.
func (fb *FrameBuffer) Clear(c Color) {
	for i := range fb.pixels {
		fb.pixels[i] = uint32(c)
	}
}

// Pixels returns the backing slice in row-major order. The slice aliases
// the buffer; hosts that hold frames across emulation steps must copy.
func (fb *FrameBuffer) Pixels() []uint32 {
	return fb.pixels[:]
}

// CopyInto copies this frame into dst.
func (fb *FrameBuffer) CopyInto(dst *FrameBuffer) {
	dst.pixels = fb.pixels
}

// Equal reports whether two frames are pixel-identical.
func (fb *FrameBuffer) Equal(other *FrameBuffer) bool {
	return fb.pixels == other.pixels
}
