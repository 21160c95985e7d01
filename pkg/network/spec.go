package network

import (
	"fmt"
	"image/color"
	"strings"
)

// Vehicles is a bitmask of vehicle classes allowed on a lane.
type Vehicles uint32

const (
	Cars Vehicles = 1 << iota
	Trucks
	Buses
	Bicycles
	Pedestrians

	AllVehicles = Cars | Trucks | Buses | Bicycles | Pedestrians
)

// Flags is a bitmask of lane roles.
type Flags uint32

const (
	Shoulder Flags = 1 << iota
	Sidewalk
	Median
	Parking
	NoOvertake
)

// LaneSpec describes what a lane is for. It is a plain value: two specs are
// equal when all their fields are.
type LaneSpec struct {
	Color      color.NRGBA `json:"color"`
	Vehicles   Vehicles    `json:"vehicles"`
	Flags      Flags       `json:"flags,omitempty"`
	Width      float64     `json:"width"`       // design width, meters
	SpeedLimit float64     `json:"speed_limit"` // km/h, 0 for none
}

// DefaultLaneWidth is the design width of a standard traffic lane.
const DefaultLaneWidth = 3.5

// DefaultLaneSpec returns a grey general-traffic lane.
func DefaultLaneSpec() LaneSpec {
	return LaneSpec{
		Color:      color.NRGBA{R: 96, G: 96, B: 96, A: 255},
		Vehicles:   Cars | Trucks | Buses,
		Width:      DefaultLaneWidth,
		SpeedLimit: 50,
	}
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 255}
	s = strings.TrimPrefix(s, "#")
	var err error
	switch len(s) {
	case 6:
		_, err = fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return c, fmt.Errorf("network: bad color %q: want #rrggbb or #rrggbbaa", s)
	}
	if err != nil {
		return c, fmt.Errorf("network: bad color %q: %w", s, err)
	}
	return c, nil
}
