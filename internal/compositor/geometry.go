package compositor

import (
	"fmt"
	"image"
	"math"
)

// Position anchors the watermark to a frame corner or the center.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

// Spec is the immutable overlay configuration for one run.
type Spec struct {
	Position Position
	Opacity  float64
	Scale    float64
	Margin   int
}

// Geometry computes the output rectangle for the watermark. The width is
// scale × source width; the height preserves the watermark's aspect ratio.
// Corner positions inset by margin from the relevant edges; center ignores
// margin and centers both axes. The result is deterministic for fixed inputs.
func Geometry(spec Spec, srcW, srcH, wmW, wmH int) (image.Rectangle, error) {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}, fmt.Errorf("source dimensions %dx%d are invalid", srcW, srcH)
	}
	if wmW <= 0 || wmH <= 0 {
		return image.Rectangle{}, fmt.Errorf("watermark dimensions %dx%d are invalid", wmW, wmH)
	}
	if spec.Scale <= 0 || spec.Scale > 1 {
		return image.Rectangle{}, fmt.Errorf("scale %.3f out of range (0, 1]", spec.Scale)
	}
	if spec.Margin < 0 {
		return image.Rectangle{}, fmt.Errorf("margin %d must not be negative", spec.Margin)
	}

	outW := int(math.Round(spec.Scale * float64(srcW)))
	if outW < 1 {
		outW = 1
	}
	outH := int(math.Round(float64(outW) * float64(wmH) / float64(wmW)))
	if outH < 1 {
		outH = 1
	}

	var x, y int
	margin := spec.Margin
	switch spec.Position {
	case PositionTopLeft:
		x, y = margin, margin
	case PositionTopRight:
		x, y = srcW-outW-margin, margin
	case PositionBottomLeft:
		x, y = margin, srcH-outH-margin
	case PositionBottomRight:
		x, y = srcW-outW-margin, srcH-outH-margin
	case PositionCenter:
		x, y = (srcW-outW)/2, (srcH-outH)/2
	default:
		return image.Rectangle{}, fmt.Errorf("position %q is not recognized", spec.Position)
	}

	if outW > srcW || outH > srcH {
		return image.Rectangle{}, fmt.Errorf("watermark %dx%d does not fit a %dx%d frame", outW, outH, srcW, srcH)
	}
	// An oversized margin can push a corner anchor off-frame; shift back in
	// rather than shrinking, so the aspect ratio survives.
	x = clamp(x, 0, srcW-outW)
	y = clamp(y, 0, srcH-outH)
	return image.Rect(x, y, x+outW, y+outH), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
