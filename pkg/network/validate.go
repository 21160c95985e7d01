package network

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// ValidationSeverity indicates whether a finding means the back-references
// are broken or is merely advisory.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // broken invariant
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if network-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// laneGapTolerance is how far adjacent lane edges may drift before the
// contiguity warning fires.
const laneGapTolerance = 1e-6

// Validate checks the network's back-references and conventions and
// returns every finding. An empty slice means the network is consistent.
// It never mutates the network.
func Validate(n *Network) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateNodes(n)...)
	errs = append(errs, validateLanes(n)...)
	errs = append(errs, validateStrips(n)...)
	errs = append(errs, validateSections(n)...)
	return errs
}

// Errors returns only the error-severity findings.
func Errors(findings []ValidationError) []ValidationError {
	return lo.Filter(findings, func(e ValidationError, _ int) bool { return e.Severity == SeverityError })
}

// validateNodes checks the ID and name indexes against the node list.
func validateNodes(n *Network) []ValidationError {
	var errs []ValidationError
	if len(n.byID) != len(n.nodes) {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("id index has %d entries for %d nodes", len(n.byID), len(n.nodes)),
			Severity: SeverityError,
		})
	}
	for _, node := range n.nodes {
		if node.destroyed {
			errs = append(errs, ValidationError{NodeID: node.id, Message: "destroyed node still listed", Severity: SeverityError})
		}
		if n.byID[node.id] != node {
			errs = append(errs, ValidationError{NodeID: node.id, Message: "missing from id index", Severity: SeverityError})
		}
		if node.name != "" && n.byName[node.name] != node {
			errs = append(errs, ValidationError{
				NodeID:   node.id,
				Message:  fmt.Sprintf("name %q missing from name index", node.name),
				Severity: SeverityError,
			})
		}
		if len(node.lanes) == 0 {
			errs = append(errs, ValidationError{NodeID: node.id, Message: "node has no lanes", Severity: SeverityWarning})
		}
	}
	return errs
}

// validateLanes checks ownership, numbering, ordering and connection sets,
// and warns where adjacent lanes do not share an edge.
func validateLanes(n *Network) []ValidationError {
	var errs []ValidationError
	for _, node := range n.nodes {
		for i, l := range node.lanes {
			if l.node != node || l.index != i || l.destroyed {
				errs = append(errs, ValidationError{
					NodeID:   node.id,
					Message:  fmt.Sprintf("lane at position %d has index %d (destroyed=%v)", i, l.index, l.destroyed),
					Severity: SeverityError,
				})
			}
			if l.right <= l.left {
				errs = append(errs, ValidationError{
					NodeID:   node.id,
					Message:  fmt.Sprintf("lane %d right %v not beyond left %v", i, l.right, l.left),
					Severity: SeverityError,
				})
			}
			if i == 0 {
				continue
			}
			prev := node.lanes[i-1]
			if l.left < prev.left {
				errs = append(errs, ValidationError{
					NodeID:   node.id,
					Message:  fmt.Sprintf("lane %d is left of lane %d", i, i-1),
					Severity: SeverityError,
				})
			}
			if math.Abs(prev.right-l.left) > laneGapTolerance {
				errs = append(errs, ValidationError{
					NodeID:   node.id,
					Message:  fmt.Sprintf("lane %d right %v does not meet lane %d left %v", i-1, prev.right, i, l.left),
					Severity: SeverityWarning,
				})
			}
		}

		for _, l := range node.lanes {
			for _, ls := range l.conns {
				if ls.destroyed || (ls.start.Lane != l && ls.end.Lane != l) {
					errs = append(errs, ValidationError{
						NodeID:   node.id,
						Message:  fmt.Sprintf("lane %d lists stale connection %s", l.index, ls),
						Severity: SeverityError,
					})
				}
			}
		}
	}
	return errs
}

// validateStrips checks that strips and lane-strips are registered with
// the node-ends and lanes they touch, and that no pair is duplicated.
func validateStrips(n *Network) []ValidationError {
	var errs []ValidationError
	for _, s := range n.strips {
		if s.destroyed {
			errs = append(errs, ValidationError{Message: fmt.Sprintf("destroyed strip %s still listed", s), Severity: SeverityError})
			continue
		}
		if n.stripIndex[keyOf(s.a, s.b)] != s {
			errs = append(errs, ValidationError{Message: fmt.Sprintf("strip %s missing from index", s), Severity: SeverityError})
		}
		for _, ne := range []NodeEnd{s.a, s.b} {
			if !lo.Contains(ne.Node.strips[ne.End], s) {
				errs = append(errs, ValidationError{
					NodeID:   ne.Node.id,
					Message:  fmt.Sprintf("%s does not list strip %s", ne, s),
					Severity: SeverityError,
				})
			}
		}
		if len(s.lanes) == 0 {
			errs = append(errs, ValidationError{Message: fmt.Sprintf("strip %s has no lane-strips", s), Severity: SeverityWarning})
		}

		for i, ls := range s.lanes {
			if ls.strip != s || ls.destroyed {
				errs = append(errs, ValidationError{Message: fmt.Sprintf("strip %s holds foreign lane-strip %s", s, ls), Severity: SeverityError})
			}
			sa, ea := ls.start.NodeEnd(), ls.end.NodeEnd()
			if !(sa == s.a && ea == s.b) && !(sa == s.b && ea == s.a) {
				errs = append(errs, ValidationError{Message: fmt.Sprintf("lane-strip %s is not on strip %s", ls, s), Severity: SeverityError})
			}
			for _, le := range []LaneEnd{ls.start, ls.end} {
				if le.Lane.destroyed || !lo.Contains(le.Lane.conns, ls) {
					errs = append(errs, ValidationError{
						NodeID:   le.Lane.node.id,
						Message:  fmt.Sprintf("lane %d does not list lane-strip %s", le.Lane.index, ls),
						Severity: SeverityError,
					})
				}
			}
			for _, other := range s.lanes[i+1:] {
				if other.joins(ls.start, ls.end) {
					errs = append(errs, ValidationError{Message: fmt.Sprintf("duplicate lane-strip %s", ls), Severity: SeverityError})
				}
			}
		}
	}

	for _, node := range n.nodes {
		for e, strips := range node.strips {
			for _, s := range strips {
				if s.destroyed || !s.Has(NodeEnd{Node: node, End: End(e)}) {
					errs = append(errs, ValidationError{
						NodeID:   node.id,
						Message:  fmt.Sprintf("%s lists stale strip %s", node.End(End(e)), s),
						Severity: SeverityError,
					})
				}
			}
		}
	}
	return errs
}

// validateSections checks section membership against the nodes' section
// lists.
func validateSections(n *Network) []ValidationError {
	var errs []ValidationError
	for _, sec := range n.sections {
		for _, ne := range sec.ends {
			if ne.Node.destroyed || !lo.Contains(ne.Node.sections, sec) {
				errs = append(errs, ValidationError{
					NodeID:   ne.Node.id,
					Message:  fmt.Sprintf("%s member %s does not list the section", sec, ne),
					Severity: SeverityError,
				})
			}
		}
		if len(sec.ends) < 2 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("%s has %d members", sec, len(sec.ends)),
				Severity: SeverityWarning,
			})
		}
	}
	for _, node := range n.nodes {
		for _, sec := range node.sections {
			if sec.destroyed || (!sec.Contains(node.Front()) && !sec.Contains(node.Back())) {
				errs = append(errs, ValidationError{
					NodeID:   node.id,
					Message:  fmt.Sprintf("node lists %s without being a member", sec),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
