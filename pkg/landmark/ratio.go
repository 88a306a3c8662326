package landmark

import "math"

// Face mesh contour indices (MediaPipe 468-point topology), ordered p1..p6
// as the aspect-ratio formula expects.
var (
	LeftEye  = []int{33, 160, 158, 133, 153, 144}
	RightEye = []int{362, 385, 387, 263, 373, 380}
	Mouth    = []int{61, 84, 17, 314, 405, 320}
)

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// AspectRatio computes (|p2-p6| + |p3-p5|) / (2*|p1-p4|) over six ordered
// contour points. Fewer than six points, or a degenerate horizontal span,
// yields 0.
func AspectRatio(pts []Point) float64 {
	if len(pts) < 6 {
		return 0
	}
	a := Distance(pts[1], pts[5])
	b := Distance(pts[2], pts[4])
	c := Distance(pts[0], pts[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2 * c)
}

// Contour gathers the points at idx. It returns nil when any index falls
// outside the mesh.
func Contour(points []Point, idx []int) []Point {
	out := make([]Point, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(points) {
			return nil
		}
		out = append(out, points[i])
	}
	return out
}

// EyeAspectRatio is the mean of the left and right eye ratios.
func EyeAspectRatio(f *Frame) float64 {
	if f == nil {
		return 0
	}
	left := AspectRatio(Contour(f.Points, LeftEye))
	right := AspectRatio(Contour(f.Points, RightEye))
	return (left + right) / 2
}

// MouthAspectRatio is the aspect ratio of the mouth contour.
func MouthAspectRatio(f *Frame) float64 {
	if f == nil {
		return 0
	}
	return AspectRatio(Contour(f.Points, Mouth))
}
