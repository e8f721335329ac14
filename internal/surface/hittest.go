package surface

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

// glyphSize is the side of a marker entry in normalised surface space.
const glyphSize = 1e-9

// glyph is a painted marker at normalised offsets u, v in [0,1].
type glyph struct {
	index int
	u, v  float64
}

func (g *glyph) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(rtreego.Point{g.u, g.v}, []float64{glyphSize, glyphSize})
	return rect
}

// glyphIndex answers "which marker glyph is under this pixel" for the fallback surface.
type glyphIndex struct {
	tree   *rtreego.Rtree
	glyphs []*glyph
}

func newGlyphIndex(glyphs []*glyph) *glyphIndex {
	tree := rtreego.NewTree(2, 25, 50)
	for _, g := range glyphs {
		tree.Insert(g)
	}
	return &glyphIndex{tree: tree, glyphs: glyphs}
}

// hit returns the index of the glyph nearest to pixel (x, y) on a width x height surface,
// within radius pixels. On a tie the glyph painted last wins, since it is drawn on top.
func (gi *glyphIndex) hit(x, y, width, height, radius float64) (int, bool) {
	if gi == nil || len(gi.glyphs) == 0 || width <= 0 || height <= 0 || radius <= 0 {
		return 0, false
	}
	ru, rv := radius/width, radius/height
	u, v := x/width, y/height

	query, err := rtreego.NewRect(rtreego.Point{u - ru, v - rv}, []float64{2 * ru, 2 * rv})
	if err != nil {
		return 0, false
	}

	best, bestDist := -1, math.Inf(1)
	for _, s := range gi.tree.SearchIntersect(query) {
		g, ok := s.(*glyph)
		if !ok {
			continue
		}
		dx := (g.u - u) * width
		dy := (g.v - v) * height
		d := math.Hypot(dx, dy)
		if d > radius {
			continue
		}
		if d < bestDist || (d == bestDist && g.index > best) {
			best, bestDist = g.index, d
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}
