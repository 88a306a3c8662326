package landmark

import "time"

// MeshSize is the number of points in a full face mesh.
const MeshSize = 468

// Synthetic builds a face mesh whose eye and mouth contours have exactly the
// requested aspect ratios. Points outside the contours sit at the origin.
// Used by the replay tool and tests to script detector input.
func Synthetic(ts time.Time, ear, mar float64) *Frame {
	pts := make([]Point, MeshSize)
	placeContour(pts, LeftEye, Point{X: 0.35, Y: 0.40}, 0.10, ear)
	placeContour(pts, RightEye, Point{X: 0.65, Y: 0.40}, 0.10, ear)
	placeContour(pts, Mouth, Point{X: 0.50, Y: 0.75}, 0.20, mar)
	return &Frame{Timestamp: ts, Points: pts}
}

// WithExpression sets one blendshape score and returns the frame.
func (f *Frame) WithExpression(name string, score float64) *Frame {
	if f.Expressions == nil {
		f.Expressions = make(map[string]float64)
	}
	f.Expressions[name] = score
	return f
}

// NoFace returns an empty frame stamped at ts.
func NoFace(ts time.Time) *Frame {
	return &Frame{Timestamp: ts}
}

func placeContour(pts []Point, idx []int, center Point, width, ratio float64) {
	half := width / 2
	lift := ratio * width / 2
	inner := width / 5

	pts[idx[0]] = Point{X: center.X - half, Y: center.Y}
	pts[idx[3]] = Point{X: center.X + half, Y: center.Y}
	pts[idx[1]] = Point{X: center.X - inner, Y: center.Y - lift}
	pts[idx[5]] = Point{X: center.X - inner, Y: center.Y + lift}
	pts[idx[2]] = Point{X: center.X + inner, Y: center.Y - lift}
	pts[idx[4]] = Point{X: center.X + inner, Y: center.Y + lift}
}
