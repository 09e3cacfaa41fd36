package rsvg

import "strings"

// decodeKindSpecificAttrs fills in a freshly-created Node's typed
// fields (Shape, Gradient, Use, …) from its raw Attrs map. It runs once
// per node, right after the loader has collected every attribute of
// its start tag; anything not decoded here stays in Attrs for the
// cascade to re-read.
func decodeKindSpecificAttrs(n *Node, diag *diagSink) {
	a := n.Attrs
	length := func(name string, def Length) Length {
		v, ok := a[name]
		if !ok {
			return def
		}
		l, ok := ParseLength(v)
		if !ok {
			diag.warnOnce(n.ID, name, "invalid length "+v)
			return def
		}
		return l
	}

	switch n.Kind {
	case KindSVG, KindSymbol, KindPattern, KindMarker:
		if vb, ok := a["viewBox"]; ok {
			nums, ok := ParseNumberList(vb)
			if ok && len(nums) == 4 {
				n.ViewBox = &ViewBox{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}
			} else {
				diag.warnOnce(n.ID, "viewBox", "expected 4 numbers")
			}
		}
		n.PAR = parsePAR(a["preserveAspectRatio"])
	}

	switch n.Kind {
	case KindRect:
		s := &ShapeData{
			X: length("x", Length{}), Y: length("y", Length{}),
			Width: length("width", Length{}), Height: length("height", Length{}),
		}
		if v, ok := a["rx"]; ok {
			if l, ok := ParseLength(v); ok {
				s.Rx, s.HasRx = l, true
			}
		}
		if v, ok := a["ry"]; ok {
			if l, ok := ParseLength(v); ok {
				s.Ry, s.HasRy = l, true
			}
		}
		n.Shape = s
	case KindCircle:
		n.Shape = &ShapeData{
			Cx: length("cx", Length{}), Cy: length("cy", Length{}), R: length("r", Length{}),
		}
	case KindEllipse:
		n.Shape = &ShapeData{
			Cx: length("cx", Length{}), Cy: length("cy", Length{}),
			Rx: length("rx", Length{}), Ry: length("ry", Length{}),
		}
	case KindLine:
		n.Shape = &ShapeData{
			X1: length("x1", Length{}), Y1: length("y1", Length{}),
			X2: length("x2", Length{}), Y2: length("y2", Length{}),
		}
	case KindPolyline, KindPolygon:
		pts, ok := parsePoints(a["points"])
		if !ok {
			diag.warnOnce(n.ID, "points", "malformed points list")
		}
		n.Shape = &ShapeData{Points: pts}
	case KindPath:
		if d, ok := a["d"]; ok {
			p := ParsePath(d)
			n.PathData = &p
			if p.Warning {
				diag.warnOnce(n.ID, "d", "path data truncated at first syntax error")
			}
		}
	}

	switch n.Kind {
	case KindText, KindTSpan:
		n.TextPos = TextPosition{
			X: lengthList(a["x"]), Y: lengthList(a["y"]),
			Dx: lengthList(a["dx"]), Dy: lengthList(a["dy"]),
			Rotate: numberList(a["rotate"]),
		}
	}

	switch n.Kind {
	case KindLinearGradient, KindRadialGradient:
		g := &GradientData{Radial: n.Kind == KindRadialGradient, Transform: Identity}
		g.ObjectBoundingBox = a["gradientUnits"] != "userSpaceOnUse"
		if v, ok := a["gradientTransform"]; ok {
			g.Transform, g.HasTransform = ParseTransform(v), true
		}
		if v, ok := a["spreadMethod"]; ok {
			g.Spread = v
		} else {
			g.Spread = "pad"
		}
		g.Href = refAttr(a)
		if g.Radial {
			if v, ok := a["cx"]; ok {
				g.Cx, g.HasCx = mustLen(v, diag, n.ID, "cx")
			}
			if v, ok := a["cy"]; ok {
				g.Cy, g.HasCy = mustLen(v, diag, n.ID, "cy")
			}
			if v, ok := a["r"]; ok {
				g.R, g.HasR = mustLen(v, diag, n.ID, "r")
			}
			if v, ok := a["fx"]; ok {
				g.Fx, g.HasFx = mustLen(v, diag, n.ID, "fx")
			}
			if v, ok := a["fy"]; ok {
				g.Fy, g.HasFy = mustLen(v, diag, n.ID, "fy")
			}
			if v, ok := a["fr"]; ok {
				g.Fr, _ = mustLen(v, diag, n.ID, "fr")
			}
		} else {
			if v, ok := a["x1"]; ok {
				g.X1, g.HasX1 = mustLen(v, diag, n.ID, "x1")
			}
			if v, ok := a["y1"]; ok {
				g.Y1, g.HasY1 = mustLen(v, diag, n.ID, "y1")
			}
			if v, ok := a["x2"]; ok {
				g.X2, g.HasX2 = mustLen(v, diag, n.ID, "x2")
			}
			if v, ok := a["y2"]; ok {
				g.Y2, g.HasY2 = mustLen(v, diag, n.ID, "y2")
			}
		}
		n.Gradient = g
	case KindStop:
		// Stops are collected by the resolver when it walks a
		// gradient's children (resolver.go); the raw attrs survive on
		// Attrs for that pass.
	}

	switch n.Kind {
	case KindPattern:
		p := &PatternData{
			Transform: Identity,
			X:         length("x", Length{}), Y: length("y", Length{}),
			Width: length("width", Length{}), Height: length("height", Length{}),
			ViewBox: n.ViewBox, PAR: n.PAR,
			ObjectBoundingBox:        a["patternUnits"] != "userSpaceOnUse",
			ContentObjectBoundingBox: a["patternContentUnits"] == "objectBoundingBox",
			Href:                     refAttr(a),
		}
		if v, ok := a["patternTransform"]; ok {
			p.Transform, p.HasTransform = ParseTransform(v), true
		}
		n.Pattern = p
	case KindMarker:
		m := &MarkerData{
			RefX: length("refX", Length{}), RefY: length("refY", Length{}),
			MarkerWidth:  length("markerWidth", Length{Value: 3}),
			MarkerHeight: length("markerHeight", Length{Value: 3}),
			ViewBox:      n.ViewBox, PAR: n.PAR,
		}
		m.StrokeWidthUnits = a["markerUnits"] != "userSpaceOnUse"
		switch a["orient"] {
		case "auto":
			m.OrientAuto = true
		case "auto-start-reverse":
			m.OrientAuto, m.OrientAutoStartReverse = true, true
		default:
			if v, ok := a["orient"]; ok {
				if n, ok := ParseNumberList(v); ok && len(n) == 1 {
					m.OrientAngle = n[0]
				}
			}
		}
		n.Marker = m
	case KindUse:
		u := &UseData{Href: refAttr(a), X: length("x", Length{}), Y: length("y", Length{})}
		if v, ok := a["width"]; ok {
			u.Width, u.HasWidth = mustLen(v, diag, n.ID, "width")
		}
		if v, ok := a["height"]; ok {
			u.Height, u.HasHeight = mustLen(v, diag, n.ID, "height")
		}
		n.Use = u
	case KindImage:
		n.Image = &ImageData{
			Href: refAttr(a), X: length("x", Length{}), Y: length("y", Length{}),
			Width: length("width", Length{}), Height: length("height", Length{}),
			PAR: parsePAR(a["preserveAspectRatio"]),
		}
	case KindFilter:
		f := &FilterData{
			ObjectBoundingBox:          a["filterUnits"] != "userSpaceOnUse",
			PrimitiveObjectBoundingBox: a["primitiveUnits"] == "objectBoundingBox",
		}
		if _, ok := a["x"]; ok {
			f.HasRegion = true
		}
		f.X, f.Y = length("x", Length{Value: -10, Unit: UnitPercent}), length("y", Length{Value: -10, Unit: UnitPercent})
		f.Width, f.Height = length("width", Length{Value: 120, Unit: UnitPercent}), length("height", Length{Value: 120, Unit: UnitPercent})
		n.Filter = f
	case KindMask:
		m := &MaskData{
			ObjectBoundingBox:        a["maskUnits"] != "userSpaceOnUse",
			ContentObjectBoundingBox: a["maskContentUnits"] == "objectBoundingBox",
		}
		if _, ok := a["x"]; ok {
			m.HasRegion = true
		}
		m.X, m.Y = length("x", Length{Value: -10, Unit: UnitPercent}), length("y", Length{Value: -10, Unit: UnitPercent})
		m.Width, m.Height = length("width", Length{Value: 120, Unit: UnitPercent}), length("height", Length{Value: 120, Unit: UnitPercent})
		n.Mask = m
	case KindClipPath:
		n.ClipPath = &ClipPathData{ObjectBoundingBox: a["clipPathUnits"] == "objectBoundingBox"}
	}
}

func mustLen(v string, diag *diagSink, id, attr string) (Length, bool) {
	l, ok := ParseLength(v)
	if !ok {
		diag.warnOnce(id, attr, "invalid length "+v)
		return Length{}, false
	}
	return l, true
}

func refAttr(a map[string]string) string {
	v, ok := a["xlink:href"]
	if !ok {
		v, ok = a["href"]
	}
	if !ok {
		return ""
	}
	return strings.TrimPrefix(v, "#")
}

func parsePAR(s string) PreserveAspectRatio {
	if s == "" {
		return DefaultPAR
	}
	fields := strings.Fields(s)
	par := PreserveAspectRatio{Align: "xMidYMid"}
	for _, f := range fields {
		switch f {
		case "none":
			par.Align = "none"
		case "slice":
			par.Slice = true
		case "meet":
			par.Slice = false
		default:
			if strings.HasPrefix(f, "x") {
				par.Align = f
			}
		}
	}
	return par
}

func lengthList(s string) []Length {
	if s == "" {
		return nil
	}
	var out []Length
	for _, f := range splitListValues(s) {
		if l, ok := ParseLength(f); ok {
			out = append(out, l)
		}
	}
	return out
}

func numberList(s string) []float64 {
	n, _ := ParseNumberList(s)
	return n
}

func parsePoints(s string) ([]Point, bool) {
	nums, ok := ParseNumberList(s)
	if !ok || len(nums)%2 != 0 {
		return nil, false
	}
	pts := make([]Point, len(nums)/2)
	for i := range pts {
		pts[i] = Point{X: nums[2*i], Y: nums[2*i+1]}
	}
	return pts, true
}
