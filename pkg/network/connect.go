package network

import (
	"fmt"

	"github.com/chazu/lanegraph/pkg/taper"
)

// Connect joins the lanes [startRange) at startEnd to the lanes [endRange)
// at endEnd with the minimal set of lane-strips given by the taper plan,
// inside the strip between the two node-ends (created when missing).
//
// shiftStart and shiftEnd count lanes already opened or closed at the left
// edge of each side by other connections sharing the node-end. The whole
// request is validated first: on any error nothing is changed.
func (n *Network) Connect(startEnd NodeEnd, startRange taper.Range, endEnd NodeEnd, endRange taper.Range,
	shiftStart, shiftEnd int) (*Strip, error) {
	plan, err := n.PlanConnection(startEnd, startRange, endEnd, endRange, shiftStart, shiftEnd)
	if err != nil {
		return nil, err
	}

	pairs := plan.Pairs()
	existing := n.Strip(startEnd, endEnd)
	for _, p := range pairs {
		start := LaneEnd{Lane: startEnd.Node.lanes[p.Start], End: startEnd.End}
		end := LaneEnd{Lane: endEnd.Node.lanes[p.End], End: endEnd.End}
		if existing != nil && existing.Find(start, end) != nil {
			return nil, n.reject("connect", fmt.Errorf("network: connect %s to %s: lanes %d->%d: %w",
				startEnd, endEnd, p.Start, p.End, ErrDuplicateLaneStrip))
		}
	}

	s := n.addStrip(startEnd, endEnd)
	for _, p := range pairs {
		s.addLaneStrip(
			LaneEnd{Lane: startEnd.Node.lanes[p.Start], End: startEnd.End},
			LaneEnd{Lane: endEnd.Node.lanes[p.End], End: endEnd.End},
		)
	}
	n.log.Debug().
		Str("start", startEnd.String()).
		Str("end", endEnd.String()).
		Int("lane_strips", len(pairs)).
		Int("left_shift", plan.LeftShift).
		Int("right_shift", plan.RightShift).
		Msg("connected")
	return s, nil
}

// PlanConnection validates a Connect request and returns its taper plan
// without changing the network.
func (n *Network) PlanConnection(startEnd NodeEnd, startRange taper.Range, endEnd NodeEnd, endRange taper.Range,
	shiftStart, shiftEnd int) (taper.Plan, error) {
	if err := n.checkStripEnds(startEnd, endEnd); err != nil {
		return taper.Plan{}, n.reject("connect", err)
	}
	if err := checkRange(startEnd, startRange); err != nil {
		return taper.Plan{}, n.reject("connect", err)
	}
	if err := checkRange(endEnd, endRange); err != nil {
		return taper.Plan{}, n.reject("connect", err)
	}
	plan, err := taper.NewPlan(startRange, endRange, shiftStart, shiftEnd)
	if err != nil {
		return taper.Plan{}, n.reject("connect", fmt.Errorf("network: connect %s to %s: %w: %w",
			startEnd, endEnd, ErrInvalidTaper, err))
	}
	return plan, nil
}

func checkRange(ne NodeEnd, r taper.Range) error {
	count := ne.Node.LaneCount()
	if r.Left < 0 || r.Right > count || r.Left > r.Right {
		return fmt.Errorf("network: connect: range %s at %s with %d lanes: %w", r, ne, count, ErrIndexOutOfRange)
	}
	return nil
}
