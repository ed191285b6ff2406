// Package images - Image processing utilities
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight pixel-space bounding box.
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	// X2,Y2 are exclusive (like image.Rectangle).
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rectangle converts the rect to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2).Canon()
}

// Box is an axis-aligned box described by its center and extents.
//
// The unit is up to the caller (normalized image fractions or pixels) as long as
// two boxes that are compared use the same one.
type Box struct {
	// CenterX is the horizontal center of the box.
	CenterX float32 `json:"cx" yaml:"cx"`
	// CenterY is the vertical center of the box.
	CenterY float32 `json:"cy" yaml:"cy"`
	// Width is the full width of the box.
	Width float32 `json:"w" yaml:"w"`
	// Height is the full height of the box.
	Height float32 `json:"h" yaml:"h"`
}

// Left returns the minimum x coordinate of the box.
func (b Box) Left() float32 { return b.CenterX - b.Width/2 }

// Right returns the maximum x coordinate of the box.
func (b Box) Right() float32 { return b.CenterX + b.Width/2 }

// Top returns the minimum y coordinate of the box.
func (b Box) Top() float32 { return b.CenterY - b.Height/2 }

// Bottom returns the maximum y coordinate of the box.
func (b Box) Bottom() float32 { return b.CenterY + b.Height/2 }

// Area returns the area of the box.
func (b Box) Area() float32 { return b.Width * b.Height }

// Rect scales a normalized box to a pixel rectangle of the given image size.
//
// Arguments:
//   - width: The width of the target image in pixels.
//   - height: The height of the target image in pixels.
//
// Returns:
//   - Rect: The box in pixel coordinates, clamped to the image bounds.
//
// Example Usage:
// ```go
//
//	b := Box{CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.4}
//	r := b.Rect(640, 480) // Rect{X1: 256, Y1: 144, X2: 384, Y2: 336}
//
// ```
func (b Box) Rect(width, height int) Rect {
	w, h := float32(width), float32(height)
	clamp := func(v, hi float32) int {
		return int(math32.Floor(math32.Max(0, math32.Min(v, hi)) + 0.5))
	}
	return Rect{
		X1: clamp(b.Left()*w, w),
		Y1: clamp(b.Top()*h, h),
		X2: clamp(b.Right()*w, w),
		Y2: clamp(b.Bottom()*h, h),
	}
}

// Intersection returns the overlapping area of two boxes, or 0 when they are disjoint.
func Intersection(a, b Box) float32 {
	xA := math32.Max(a.Left(), b.Left())
	yA := math32.Max(a.Top(), b.Top())
	xB := math32.Min(a.Right(), b.Right())
	yB := math32.Min(a.Bottom(), b.Bottom())

	return math32.Max(0, xB-xA) * math32.Max(0, yB-yA)
}

// Union returns the area covered by either box.
func Union(a, b Box) float32 {
	return a.Area() + b.Area() - Intersection(a, b)
}

// CalculateIoU measures how much two boxes overlap as Intersection over Union.
//
// The result is a number between 0.0 and 1.0:
//
//	IoU = Area of Intersection / Area of Union
//
//	- 1.0 means the boxes are identical.
//	- 0.0 means the boxes do not overlap at all.
//
// **1. Intersection**
//
//	The top-left corner of the overlap is the maximum of the two top-left corners and
//	the bottom-right corner is the minimum of the two bottom-right corners. A
//	non-positive width or height means there is no overlap.
//
// **2. Union**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// **3. Degenerate boxes**
//
//	Two zero-area boxes have a zero union. Instead of dividing by zero the method
//	reports 0.0 ("no usable overlap signal"), so the result is never NaN and
//	suppression stays well defined.
//
// Arguments:
//   - a: The first box.
//   - b: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	a := Box{CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.2}
//	b := Box{CenterX: 0.5, CenterY: 0.5, Width: 0.22, Height: 0.22}
//
//	iou := CalculateIoU(a, b) // 0.04 / 0.0484 ≈ 0.826
//
// ```
func CalculateIoU(a, b Box) float32 {
	inter := Intersection(a, b)
	if inter <= 0 {
		return 0
	}

	union := a.Area() + b.Area() - inter
	if union <= 0 || math32.IsNaN(union) || math32.IsInf(union, 0) {
		return 0
	}

	iou := inter / union
	if math32.IsNaN(iou) {
		return 0
	}

	// Float rounding can push a perfect overlap a hair past 1.
	return math32.Min(iou, 1)
}
