package network

import (
	"fmt"
	"math"

	"github.com/chazu/lanegraph/pkg/geometry"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Turn is an angle stored as a fixed-point fraction of a full turn: 1<<32
// is 360 degrees. Addition wraps, so rotations never drift out of range.
type Turn uint32

const turnsPerRev = 1 << 32

// Common turns.
const (
	QuarterTurn Turn = 1 << 30
	HalfTurn    Turn = 1 << 31
)

// TurnFromRadians converts an angle in radians, normalizing it into
// [0, 2pi).
func TurnFromRadians(rad float64) Turn {
	return TurnFromFraction(rad / (2 * math.Pi))
}

// TurnFromDegrees converts an angle in degrees.
func TurnFromDegrees(deg float64) Turn {
	return TurnFromFraction(deg / 360)
}

// TurnFromFraction converts a fraction of a full turn.
func TurnFromFraction(f float64) Turn {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f -= math.Floor(f)
	return Turn(uint64(math.Round(f*turnsPerRev)) % turnsPerRev)
}

// Fraction returns the angle as a fraction of a full turn in [0, 1).
func (t Turn) Fraction() float64 { return float64(t) / turnsPerRev }

// Radians returns the angle in radians.
func (t Turn) Radians() float64 { return t.Fraction() * 2 * math.Pi }

// Degrees returns the angle in degrees.
func (t Turn) Degrees() float64 { return t.Fraction() * 360 }

func (t Turn) String() string { return fmt.Sprintf("%.3f°", t.Degrees()) }

// Pose places a node in the world. Inclination pitches the forward axis up
// and Tilt rolls the cross-section about it; both are radians.
type Pose struct {
	Position    v3.Vec  `json:"position"`
	Azimuth     Turn    `json:"azimuth"`
	Inclination float64 `json:"inclination"`
	Tilt        float64 `json:"tilt"`
}

// At returns an unrotated pose at p.
func At(p v3.Vec) Pose {
	return Pose{Position: p}
}

// Frame returns the local reference frame of the pose.
func (p Pose) Frame() geometry.Frame {
	return geometry.NewFrame(p.Position, p.Azimuth.Radians(), p.Inclination, p.Tilt)
}

func (p Pose) validate() error {
	for _, f := range []float64{p.Position.X, p.Position.Y, p.Position.Z, p.Inclination, p.Tilt} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component in %+v", ErrInvalidPose, p)
		}
	}
	return nil
}
