// Package landmark defines the per-frame face landmark contract supplied by the
// external landmark extractor, and the aspect-ratio metrics derived from it.
package landmark

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Expression category names read from the blendshape map.
const (
	JawOpen     = "jawOpen"
	MouthFunnel = "mouthFunnel"
)

var (
	// ErrNonFinite is returned when a landmark coordinate or expression score is NaN or Inf.
	ErrNonFinite = errors.New("landmark: non-finite value")

	// ErrNoCommonSchema is returned when negotiation finds no supported schema version.
	ErrNoCommonSchema = errors.New("landmark: no common schema version")
)

// Point is a normalized 2D image coordinate (0-1 on both axes).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is one camera frame worth of landmarks. An empty Points slice means
// the extractor found no face.
type Frame struct {
	// Timestamp is when the frame was captured. Zero means "use the receiver's clock".
	Timestamp time.Time

	// Points is the full face mesh in extractor order.
	Points []Point

	// Expressions maps blendshape category names to scores in [0,1].
	// Nil when the negotiated schema carries no expressions.
	Expressions map[string]float64
}

// HasFace reports whether the extractor produced any landmarks.
func (f *Frame) HasFace() bool {
	return f != nil && len(f.Points) > 0
}

// Validate rejects frames carrying NaN or Inf values. Missing or short point
// lists are not errors; they degrade the ratios to zero.
func (f *Frame) Validate() error {
	if f == nil {
		return nil
	}
	for i, p := range f.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("point %d: %w", i, ErrNonFinite)
		}
	}
	for name, v := range f.Expressions {
		if !finite(v) {
			return fmt.Errorf("expression %q: %w", name, ErrNonFinite)
		}
	}
	return nil
}

// MouthOpenScore returns max(jawOpen, mouthFunnel). ok is false when neither
// category is present or the maximum is not positive.
func (f *Frame) MouthOpenScore() (score float64, ok bool) {
	if f == nil || len(f.Expressions) == 0 {
		return 0, false
	}
	score = math.Max(f.Expressions[JawOpen], f.Expressions[MouthFunnel])
	if score <= 0 {
		return 0, false
	}
	return score, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Schema is a versioned shape of the frames an extractor emits.
type Schema int

const (
	// SchemaMesh carries landmark points only.
	SchemaMesh Schema = 1
	// SchemaMeshBlendshapes carries landmark points and expression scores.
	SchemaMeshBlendshapes Schema = 2
)

// SupportedSchemas lists the versions this module understands, newest first.
var SupportedSchemas = []Schema{SchemaMeshBlendshapes, SchemaMesh}

// HasExpressions reports whether frames in this schema carry blendshapes.
func (s Schema) HasExpressions() bool {
	return s >= SchemaMeshBlendshapes
}

func (s Schema) String() string {
	switch s {
	case SchemaMesh:
		return "mesh/v1"
	case SchemaMeshBlendshapes:
		return "mesh+blendshapes/v2"
	default:
		return fmt.Sprintf("unknown/v%d", int(s))
	}
}

// Negotiate picks the newest schema both sides support. It runs once per
// session, before the first frame.
func Negotiate(offered []Schema) (Schema, error) {
	for _, s := range SupportedSchemas {
		for _, o := range offered {
			if o == s {
				return s, nil
			}
		}
	}
	return 0, fmt.Errorf("offered %v: %w", offered, ErrNoCommonSchema)
}
