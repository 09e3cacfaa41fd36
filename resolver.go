package rsvg

import "fmt"

// maxUseDepth bounds nested <use> instancing; exceeding it is
// treated the same as a detected cycle.
const maxUseDepth = 32

// maxExpandedNodes bounds the total number of node-instances a single
// render may visit, counting every <use> expansion, guarding against
// exponential blowup from nested references well under the depth
// ceiling.
const maxExpandedNodes = 500000

// refGuard tracks the chain of node indices currently being expanded,
// so the render driver, the geometry walker and the gradient href
// walkers can detect a reference cycle (an id that refers back to
// one of its own ancestors-by-reference) and refuse to recurse into
// it.
type refGuard struct {
	active    map[int]bool
	chain     []int
	instances int
}

func newRefGuard() *refGuard {
	return &refGuard{active: map[int]bool{}}
}

// enter pushes idx onto the active chain. It reports false (and leaves
// the guard unchanged) if idx is already active (a cycle) or the
// instance/depth budget is exhausted.
func (g *refGuard) enter(idx int) (ok bool, reason error) {
	if g.active[idx] {
		return false, fmt.Errorf("reference cycle at node %d", idx)
	}
	if len(g.chain) >= maxUseDepth {
		return false, fmt.Errorf("exceeded maximum nesting depth %d", maxUseDepth)
	}
	if g.instances >= maxExpandedNodes {
		return false, fmt.Errorf("exceeded maximum expanded node count %d", maxExpandedNodes)
	}
	g.instances++
	g.active[idx] = true
	g.chain = append(g.chain, idx)
	return true, nil
}

func (g *refGuard) leave(idx int) {
	delete(g.active, idx)
	if n := len(g.chain); n > 0 && g.chain[n-1] == idx {
		g.chain = g.chain[:n-1]
	}
}

// resolveRef looks up a url(#id)/xlink:href target, restricted to one
// of kinds, and reports a diagnostic through diag when the id is
// missing or the wrong kind.
func resolveRef(doc *Document, id string, diag *diagSink, elementID string, kinds ...Kind) (*Node, bool) {
	if id == "" {
		return nil, false
	}
	n, ok := doc.LookupKind(id, kinds...)
	if !ok {
		if diag != nil {
			diag.warn(ErrUnresolvedReference, elementID, "unresolved reference #"+id)
		}
		return nil, false
	}
	return n, true
}

// gradientStops walks a <linearGradient>/<radialGradient>'s own <stop>
// children, or — if it has none — follows its xlink:href chain to
// inherit another gradient's stops.
func gradientStops(doc *Document, n *Node, diag *diagSink) []Stop {
	guard := newRefGuard()
	return gradientStopsGuarded(doc, n, diag, guard)
}

func gradientStopsGuarded(doc *Document, n *Node, diag *diagSink, guard *refGuard) []Stop {
	if n == nil || n.Gradient == nil {
		return nil
	}
	if stops := ownStops(doc, n); len(stops) > 0 {
		return stops
	}
	if n.Gradient.Href == "" {
		return nil
	}
	if ok, _ := guard.enter(n.Index); !ok {
		diag.warn(ErrCycleDetected, n.ID, "gradient href cycle via #"+n.Gradient.Href)
		return nil
	}
	defer guard.leave(n.Index)

	target, ok := resolveRef(doc, n.Gradient.Href, diag, n.ID, KindLinearGradient, KindRadialGradient)
	if !ok {
		return nil
	}
	return gradientStopsGuarded(doc, target, diag, guard)
}

func ownStops(doc *Document, n *Node) []Stop {
	var stops []Stop
	for _, ci := range n.Children {
		c := doc.Node(ci)
		if c == nil || c.Kind != KindStop {
			continue
		}
		stop := Stop{Offset: 1, Opacity: 1, Color: Paint{Kind: PaintColorValue}}
		if v, ok := c.Attrs["offset"]; ok {
			stop.Offset = parseStopOffset(v)
		}
		if c.Computed != nil {
			stop.Color = c.Computed.StopColor
			stop.Opacity = c.Computed.StopOpacity
		}
		stops = append(stops, stop)
	}
	return stops
}

func parseStopOffset(s string) float64 {
	f, ok := ParseOpacity(s) // offset shares opacity's "number or percent, clamp to [0,1]" grammar
	if !ok {
		return 0
	}
	return f
}

// resolvedGradient materializes the gradient data a paint server needs
// (paint.go): when n sets no gradientTransform, the first gradient
// along its href chain that sets one supplies it. gradientUnits and
// spreadMethod are always n's own; they are not taken from the chain.
// Stops come from gradientStops.
func resolvedGradient(doc *Document, n *Node, diag *diagSink) *GradientData {
	if n == nil || n.Gradient == nil {
		return nil
	}
	guard := newRefGuard()
	g := *n.Gradient
	cur := n
	for g.Href != "" && !g.HasTransform {
		if ok, _ := guard.enter(cur.Index); !ok {
			break
		}
		target, ok := resolveRef(doc, g.Href, diag, n.ID, KindLinearGradient, KindRadialGradient)
		if !ok || target.Gradient == nil {
			break
		}
		if target.Gradient.HasTransform {
			g.Transform, g.HasTransform = target.Gradient.Transform, true
		}
		cur = target
		g.Href = target.Gradient.Href
	}
	g.Stops = gradientStops(doc, n, diag)
	return &g
}
