package main

import (
	"fmt"
	"image/color"
	"time"

	"github.com/chazu/lanegraph/pkg/config"
	"github.com/chazu/lanegraph/pkg/engine"
	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/metrics"
	"github.com/chazu/lanegraph/pkg/network"
	"github.com/chazu/lanegraph/pkg/pick"
	"github.com/chazu/lanegraph/pkg/tessellate"
	"github.com/rs/zerolog"
)

// App runs the script-to-mesh pipeline and keeps the last network built
// for picking.
type App struct {
	engine  *engine.Engine
	pick    pick.Options
	metrics *metrics.Metrics
	log     zerolog.Logger

	net *network.Network
}

// MeshData is the JSON-serializable form of one part.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Colors   []float32 `json:"colors"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Kind     string    `json:"kind"`
	Color    string    `json:"color"` // base color of the entity
}

// EvalErrorData is a JSON-serializable eval error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// StatsData summarizes the meshes of a result.
type StatsData struct {
	Parts     int            `json:"parts"`
	Vertices  int            `json:"vertices"`
	Triangles int            `json:"triangles"`
	Min       [3]float64     `json:"min"`
	Max       [3]float64     `json:"max"`
	ByKind    map[string]int `json:"byKind"`
}

// EvalResult is the full result of one evaluation.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
	Stats    StatsData       `json:"stats"`
}

// PickData describes a picked entity.
type PickData struct {
	Kind     string     `json:"kind"`
	Entity   string     `json:"entity"`
	LaneEnd  string     `json:"laneEnd,omitempty"`
	Distance float64    `json:"distance"`
	Point    [3]float64 `json:"point"`
	Mesh     string     `json:"mesh"`
}

// NewApp creates an App from cfg. m may be nil.
func NewApp(cfg config.Config, log zerolog.Logger, m *metrics.Metrics) *App {
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithGeometry(cfg.Geometry.Options()),
	}
	if m != nil {
		opts = append(opts, engine.WithSubscriber(m.Observe))
	}
	return &App{
		engine:  engine.NewEngine(opts...),
		pick:    cfg.Pick.Options(),
		metrics: m,
		log:     log,
	}
}

// Network returns the network of the last successful evaluation.
func (a *App) Network() *network.Network { return a.net }

// Evaluate takes script source and returns mesh data, errors and warnings.
// On success the new network replaces the previous one.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the script into a network and validate it.
	start := time.Now()
	res := a.engine.Run(source)
	a.metrics.ObserveEvaluation(len(res.Errors) == 0, time.Since(start))

	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.Message, NodeID: string(w.NodeID)})
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 2: Tessellate the network into parts.
	parts, err := tessellate.Tessellate(res.Network)
	if err != nil {
		a.log.Error().Err(err).Msg("tessellate failed")
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	// Step 3: Convert parts to MeshData.
	for _, p := range parts {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: p.Mesh.Vertices,
			Normals:  p.Mesh.Normals,
			Colors:   p.Mesh.Colors,
			Indices:  p.Mesh.Indices,
			PartName: p.Name,
			Kind:     p.Kind.String(),
			Color:    hexColor(p.Color),
		})
	}
	result.Stats = statsData(tessellate.Summarize(parts))

	a.net = res.Network
	return result
}

// hexColor formats c as #rrggbb, or #rrggbbaa when it is translucent.
func hexColor(c color.NRGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func statsData(s tessellate.Stats) StatsData {
	d := StatsData{
		Parts:     s.Parts,
		Vertices:  s.Vertices,
		Triangles: s.Triangles,
		Min:       [3]float64{s.Bounds.Min.X, s.Bounds.Min.Y, s.Bounds.Min.Z},
		Max:       [3]float64{s.Bounds.Max.X, s.Bounds.Max.Y, s.Bounds.Max.Z},
		ByKind:    make(map[string]int, len(s.ByKind)),
	}
	for k, n := range s.ByKind {
		d.ByKind[k.String()] = n
	}
	return d
}

// Pick resolves r against the current network.
func (a *App) Pick(r kernel.Ray) (PickData, bool) {
	if a.net == nil {
		return PickData{}, false
	}
	t, ok := pick.NewPicker(a.net, a.pick).Pick(r)
	if !ok {
		return PickData{}, false
	}
	d := PickData{
		Kind:     t.Kind.String(),
		Distance: t.Distance,
		Point:    [3]float64{t.Point.X, t.Point.Y, t.Point.Z},
		Mesh:     t.Mesh.Name,
	}
	switch t.Kind {
	case pick.KindLaneEnd:
		d.Entity = t.LaneEnd.String()
	case pick.KindLaneStrip:
		d.Entity = t.LaneStrip.String()
		d.LaneEnd = t.LaneEnd.String()
	case pick.KindSection:
		d.Entity = t.Section.String()
	}
	return d, true
}
