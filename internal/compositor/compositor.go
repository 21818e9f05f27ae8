package compositor

import (
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Compositor overlays a prepared watermark onto raw RGBA frames.
type Compositor struct {
	frameW  int
	frameH  int
	rect    image.Rectangle
	overlay *image.RGBA

	skipped int
}

// New resolves geometry for the run and prepares the scaled, opacity-adjusted
// overlay. The watermark image is not referenced after New returns.
func New(frameW, frameH int, watermark image.Image, spec Spec) (*Compositor, error) {
	if watermark == nil {
		return nil, fmt.Errorf("watermark image is nil")
	}
	wmBounds := watermark.Bounds()
	rect, err := Geometry(spec, frameW, frameH, wmBounds.Dx(), wmBounds.Dy())
	if err != nil {
		return nil, err
	}

	scaled := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), watermark, wmBounds, xdraw.Over, nil)

	if spec.Opacity < 1 {
		applyOpacity(scaled, spec.Opacity)
	}

	return &Compositor{frameW: frameW, frameH: frameH, rect: rect, overlay: scaled}, nil
}

// Rect reports the resolved watermark rectangle in frame coordinates.
func (c *Compositor) Rect() image.Rectangle { return c.rect }

// SkippedFrames reports how many ticks arrived without a complete frame.
func (c *Compositor) SkippedFrames() int { return c.skipped }

// ComposeFrame overlays the watermark in place on a raw RGBA frame buffer.
// A buffer that is not exactly one frame long is counted as a skipped frame
// and left untouched; stale or partial pixel data is never composited.
func (c *Compositor) ComposeFrame(buf []byte) bool {
	if len(buf) != c.frameW*c.frameH*4 {
		c.skipped++
		return false
	}
	frame := &image.RGBA{Pix: buf, Stride: c.frameW * 4, Rect: image.Rect(0, 0, c.frameW, c.frameH)}
	draw.Draw(frame, c.rect, c.overlay, image.Point{}, draw.Over)
	return true
}

// applyOpacity premultiplies a uniform opacity into the overlay so the
// per-frame draw stays a plain Over.
func applyOpacity(img *image.RGBA, opacity float64) {
	if opacity < 0 {
		opacity = 0
	}
	scale := uint32(opacity * 65536)
	for i := 0; i < len(img.Pix); i++ {
		img.Pix[i] = uint8(uint32(img.Pix[i]) * scale >> 16)
	}
}
