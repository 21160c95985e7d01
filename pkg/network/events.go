package network

import (
	"fmt"

	"github.com/samber/lo"
)

// EventKind classifies a change notification.
type EventKind int

const (
	NodeAdded EventKind = iota
	NodeRemoved
	NodeMoved
	LaneAdded
	LaneRemoved
	LaneChanged
	StripAdded
	StripRemoved
	LaneStripAdded
	LaneStripRemoved
	LaneStripChanged
	SectionAdded
	SectionRemoved
	SectionChanged
	MeshBuilt
)

var eventNames = [...]string{
	NodeAdded:        "node-added",
	NodeRemoved:      "node-removed",
	NodeMoved:        "node-moved",
	LaneAdded:        "lane-added",
	LaneRemoved:      "lane-removed",
	LaneChanged:      "lane-changed",
	StripAdded:       "strip-added",
	StripRemoved:     "strip-removed",
	LaneStripAdded:   "lane-strip-added",
	LaneStripRemoved: "lane-strip-removed",
	LaneStripChanged: "lane-strip-changed",
	SectionAdded:     "section-added",
	SectionRemoved:   "section-removed",
	SectionChanged:   "section-changed",
	MeshBuilt:        "mesh-built",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// EventKinds lists every kind in declaration order.
func EventKinds() []EventKind {
	kinds := make([]EventKind, len(eventNames))
	for i := range kinds {
		kinds[i] = EventKind(i)
	}
	return kinds
}

// Event is a change notification. Only the fields relevant to Kind are
// set; for MeshBuilt exactly one entity field names the rebuilt owner.
// Removed entities are already destroyed when the event fires.
type Event struct {
	Kind      EventKind
	Node      *Node
	Lane      *Lane
	Strip     *Strip
	LaneStrip *LaneStrip
	Section   *Section
}

// Subscribe registers fn to receive every event, in order, synchronously
// from the mutating call. The returned function cancels the subscription.
func (n *Network) Subscribe(fn func(Event)) (cancel func()) {
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.subOrder = append(n.subOrder, id)
	return func() {
		delete(n.subs, id)
		n.subOrder = lo.Without(n.subOrder, id)
	}
}

func (n *Network) emit(e Event) {
	for _, id := range n.subOrder {
		if fn, ok := n.subs[id]; ok {
			fn(e)
		}
	}
}
