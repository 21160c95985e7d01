package engine

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/chazu/lanegraph/pkg/network"
	"github.com/chazu/lanegraph/pkg/taper"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a vector.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpLane is a lane description waiting to be added to a node. Lanes
// without explicit offsets are stacked after the previous lane.
type sexpLane struct {
	left, right float64
	explicit    bool
	spec        network.LaneSpec
}

func (l *sexpLane) SexpString(ps *zygo.PrintState) string {
	if l.explicit {
		return fmt.Sprintf("(lane %g %g)", l.left, l.right)
	}
	return fmt.Sprintf("(lane :width %g)", l.spec.Width)
}
func (l *sexpLane) Type() *zygo.RegisteredType { return nil }

// sexpNode refers to a node of the network under construction.
type sexpNode struct {
	node *network.Node
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %q)", n.node.String())
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpEnd refers to a node-end.
type sexpEnd struct {
	end network.NodeEnd
}

func (e *sexpEnd) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", e.end.End, e.end.Node.String())
}
func (e *sexpEnd) Type() *zygo.RegisteredType { return nil }

// sexpStrip refers to a strip.
type sexpStrip struct {
	strip *network.Strip
}

func (s *sexpStrip) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(strip %s %d)", s.strip, s.strip.Len())
}
func (s *sexpStrip) Type() *zygo.RegisteredType { return nil }

// sexpLaneStrip refers to a lane-strip.
type sexpLaneStrip struct {
	ls *network.LaneStrip
}

func (s *sexpLaneStrip) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(lane-strip %s)", s.ls)
}
func (s *sexpLaneStrip) Type() *zygo.RegisteredType { return nil }

// sexpSection refers to a section.
type sexpSection struct {
	sec *network.Section
}

func (s *sexpSection) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %d)", s.sec, s.sec.Len())
}
func (s *sexpSection) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// trailing keyword without a value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// number reads keyword key into *dst when present.
func (a kwArgs) number(key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// integer reads keyword key into *dst when present.
func (a kwArgs) integer(key string, dst *int) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer. Floats are accepted when integral.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
		return 0, fmt.Errorf("expected integer, got %g", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toLane extracts a lane description.
func toLane(s zygo.Sexp) (*sexpLane, error) {
	if l, ok := s.(*sexpLane); ok {
		return l, nil
	}
	return nil, fmt.Errorf("expected lane, got %T (%s)", s, s.SexpString(nil))
}

// toNode resolves a node reference or a node name.
func toNode(net *network.Network, s zygo.Sexp) (*network.Node, error) {
	switch v := s.(type) {
	case *sexpNode:
		return v.node, nil
	case *zygo.SexpStr:
		if n := net.Lookup(v.S); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("no node named %q", v.S)
	}
	return nil, fmt.Errorf("expected node or node name, got %T (%s)", s, s.SexpString(nil))
}

// toEnd extracts a node-end reference.
func toEnd(s zygo.Sexp) (network.NodeEnd, error) {
	if e, ok := s.(*sexpEnd); ok {
		return e.end, nil
	}
	return network.NodeEnd{}, fmt.Errorf("expected node-end, got %T (%s)", s, s.SexpString(nil))
}

// toColor parses a "#rrggbb" or "#rrggbbaa" string.
func toColor(s zygo.Sexp) (color.NRGBA, error) {
	str, err := toString(s)
	if err != nil {
		return color.NRGBA{}, err
	}
	return network.ParseColor(str)
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the network DSL into a zygomys environment.
// The builtins edit net as the script runs; a rejected edit aborts the
// script with the network's error.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals and
// kebab-case names match the underscore names registered here.
func registerBuiltins(env *zygo.Zlisp, net *network.Network) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (lane 0 3.5 :color "#606060" :speed 50 :vehicles 7 :flags 0)
	// (lane :width 3.5 ...)   stacked after the previous lane of the node
	// -----------------------------------------------------------------------
	env.AddFunction("lane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		l := &sexpLane{spec: network.DefaultLaneSpec()}

		switch len(pa.positional) {
		case 0:
		case 2:
			var err error
			if l.left, err = toFloat64(pa.positional[0]); err != nil {
				return zygo.SexpNull, fmt.Errorf("lane: left: %w", err)
			}
			if l.right, err = toFloat64(pa.positional[1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("lane: right: %w", err)
			}
			l.explicit = true
			l.spec.Width = l.right - l.left
		default:
			return zygo.SexpNull, fmt.Errorf("lane takes either no offsets or left and right, got %d", len(pa.positional))
		}

		if err := pa.number("width", &l.spec.Width); err != nil {
			return zygo.SexpNull, fmt.Errorf("lane: %w", err)
		}
		if err := pa.number("speed", &l.spec.SpeedLimit); err != nil {
			return zygo.SexpNull, fmt.Errorf("lane: %w", err)
		}
		vehicles, flags := int(l.spec.Vehicles), int(l.spec.Flags)
		if err := pa.integer("vehicles", &vehicles); err != nil {
			return zygo.SexpNull, fmt.Errorf("lane: %w", err)
		}
		if err := pa.integer("flags", &flags); err != nil {
			return zygo.SexpNull, fmt.Errorf("lane: %w", err)
		}
		l.spec.Vehicles, l.spec.Flags = network.Vehicles(vehicles), network.Flags(flags)
		if v, ok := pa.kw["color"]; ok {
			c, err := toColor(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("lane: color: %w", err)
			}
			l.spec.Color = c
		}
		if !l.explicit && !(l.spec.Width > 0) {
			return zygo.SexpNull, fmt.Errorf("lane: width must be positive, got %g", l.spec.Width)
		}
		return l, nil
	})

	// -----------------------------------------------------------------------
	// (node "name" :at (vec3 0 0 0) :azimuth 0.25 :inclination 0 :tilt 0
	//       :lanes (list (lane ...) ...))
	// Lanes may also follow the name as positional arguments.
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a name argument")
		}
		nodeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: name: %w", err)
		}

		var pose network.Pose
		if v, ok := pa.kw["at"]; ok {
			if pose.Position, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: at: %w", nodeName, err)
			}
		}
		var azimuth float64
		if err := pa.number("azimuth", &azimuth); err != nil {
			return zygo.SexpNull, fmt.Errorf("node %q: %w", nodeName, err)
		}
		pose.Azimuth = network.TurnFromFraction(azimuth)
		if err := pa.number("inclination", &pose.Inclination); err != nil {
			return zygo.SexpNull, fmt.Errorf("node %q: %w", nodeName, err)
		}
		if err := pa.number("tilt", &pose.Tilt); err != nil {
			return zygo.SexpNull, fmt.Errorf("node %q: %w", nodeName, err)
		}

		laneArgs := pa.positional[1:]
		if v, ok := pa.kw["lanes"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: lanes: %w", nodeName, err)
			}
			laneArgs = append(laneArgs, items...)
		}
		lanes := make([]*sexpLane, 0, len(laneArgs))
		for i, a := range laneArgs {
			l, err := toLane(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: lane %d: %w", nodeName, i, err)
			}
			lanes = append(lanes, l)
		}

		node, err := net.AddNode(nodeName, pose)
		if err != nil {
			return zygo.SexpNull, err
		}
		cursor := 0.0
		for _, l := range lanes {
			left, right := l.left, l.right
			if !l.explicit {
				left, right = cursor, cursor+l.spec.Width
			}
			if _, err := node.AddLane(left, right, l.spec); err != nil {
				return zygo.SexpNull, err
			}
			cursor = right
		}
		return &sexpNode{node: node}, nil
	})

	// -----------------------------------------------------------------------
	// (front "name") (back node-ref)
	// -----------------------------------------------------------------------
	endFn := func(e network.End) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires a node or node name", name)
			}
			node, err := toNode(net, args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return &sexpEnd{end: node.End(e)}, nil
		}
	}
	env.AddFunction("front", endFn(network.Front))
	env.AddFunction("back", endFn(network.Back))

	// -----------------------------------------------------------------------
	// (connect (front "a") 0 4 (back "b") 0 2 :shift-start 1 :shift-end 0)
	// -----------------------------------------------------------------------
	env.AddFunction("connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 6 {
			return zygo.SexpNull, fmt.Errorf("connect requires start-end left right end-end left right, got %d arguments",
				len(pa.positional))
		}
		start, err := toEnd(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: start: %w", err)
		}
		end, err := toEnd(pa.positional[3])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: end: %w", err)
		}
		var bounds [4]int
		for i, p := range []zygo.Sexp{pa.positional[1], pa.positional[2], pa.positional[4], pa.positional[5]} {
			if bounds[i], err = toInt(p); err != nil {
				return zygo.SexpNull, fmt.Errorf("connect: range bound %d: %w", i, err)
			}
		}
		var shiftStart, shiftEnd int
		if err := pa.integer("shift-start", &shiftStart); err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}
		if err := pa.integer("shift-end", &shiftEnd); err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}

		s, err := net.Connect(
			start, taper.Range{Left: bounds[0], Right: bounds[1]},
			end, taper.Range{Left: bounds[2], Right: bounds[3]},
			shiftStart, shiftEnd)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpStrip{strip: s}, nil
	})

	// -----------------------------------------------------------------------
	// (lane-strip (front "a") 0 (back "b") 1 :color "#ff0000")
	//
	// Registered as "lane_strip" because zygomys does not support hyphens
	// in identifiers; the preprocessor rewrites lane-strip to lane_strip.
	// -----------------------------------------------------------------------
	env.AddFunction("lane_strip", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 4 {
			return zygo.SexpNull, fmt.Errorf("lane-strip requires start-end lane end-end lane, got %d arguments",
				len(pa.positional))
		}
		startEnd, err := toEnd(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lane-strip: start: %w", err)
		}
		endEnd, err := toEnd(pa.positional[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lane-strip: end: %w", err)
		}
		si, err := toInt(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lane-strip: start lane: %w", err)
		}
		ei, err := toInt(pa.positional[3])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lane-strip: end lane: %w", err)
		}

		start, err := startEnd.Lane(si)
		if err != nil {
			return zygo.SexpNull, err
		}
		end, err := endEnd.Lane(ei)
		if err != nil {
			return zygo.SexpNull, err
		}
		s, err := net.AddStrip(startEnd, endEnd)
		if err != nil {
			return zygo.SexpNull, err
		}
		ls, err := s.AddLaneStrip(start, end)
		if err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["color"]; ok {
			c, err := toColor(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("lane-strip: color: %w", err)
			}
			spec := ls.Spec()
			spec.Color = c
			if err := ls.SetSpec(spec); err != nil {
				return zygo.SexpNull, err
			}
		}
		return &sexpLaneStrip{ls: ls}, nil
	})

	// -----------------------------------------------------------------------
	// (section (front "a") (back "b") ... :color "#484848")
	// -----------------------------------------------------------------------
	env.AddFunction("section", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		ends := make([]network.NodeEnd, 0, len(pa.positional))
		for i, a := range pa.positional {
			ne, err := toEnd(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("section: member %d: %w", i, err)
			}
			ends = append(ends, ne)
		}
		sec, err := net.AddSection(ends...)
		if err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["color"]; ok {
			c, err := toColor(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("section: color: %w", err)
			}
			if err := sec.SetColor(c); err != nil {
				return zygo.SexpNull, err
			}
		}
		return &sexpSection{sec: sec}, nil
	})
}
