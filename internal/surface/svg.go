package surface

import (
	"fmt"
	"html/template"
	"io"

	"carbontwin/mapsurface/internal/markers"
)

// MarkerRadius is the glyph radius in pixels on the rendered fallback surface.
const MarkerRadius = 8

var svgTemplate = template.Must(template.New("surface").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}" data-mode="{{.Mode}}">
<rect x="0" y="0" width="{{.Width}}" height="{{.Height}}" fill="#f3f4f6"/>
{{- if .ImageURL}}
<image href="{{.ImageURL}}" x="0" y="0" width="{{.Width}}" height="{{.Height}}" preserveAspectRatio="none"/>
{{- else}}
<g stroke="#d1d5db" stroke-width="1">
{{- range .GridX}}
<line x1="{{.}}" y1="0" x2="{{.}}" y2="{{$.Height}}"/>
{{- end}}
{{- range .GridY}}
<line x1="0" y1="{{.}}" x2="{{$.Width}}" y2="{{.}}"/>
{{- end}}
</g>
{{- end}}
{{- range .Glyphs}}
<circle data-id="{{.ID}}" cx="{{.X}}" cy="{{.Y}}" r="{{.R}}" fill="{{.Color}}" fill-opacity="0.85" stroke="{{.Stroke}}" stroke-width="2"><title>{{.Title}}</title></circle>
{{- end}}
{{- with .Selection}}
<g data-selection="{{.ID}}">
<rect x="8" y="8" width="{{.BoxWidth}}" height="{{.BoxHeight}}" rx="4" fill="#ffffff" stroke="#6b7280"/>
<text x="16" y="28" font-family="sans-serif" font-size="14" font-weight="bold">{{.Title}}</text>
{{- range $i, $f := .Lines}}
<text x="16" y="{{index $.LineY $i}}" font-family="sans-serif" font-size="12">{{$f}}</text>
{{- end}}
</g>
{{- end}}
{{- if .Banner}}
<text x="{{.HalfWidth}}" y="{{.BannerY}}" text-anchor="middle" font-family="sans-serif" font-size="13" fill="#111827">{{.Banner}}</text>
{{- end}}
</svg>
`))

type svgGlyph struct {
	ID     string
	X, Y   string
	R      int
	Color  string
	Stroke string
	Title  string
}

type svgSelection struct {
	ID        string
	Title     string
	Lines     []string
	BoxWidth  int
	BoxHeight int
}

type svgData struct {
	Width, Height int
	HalfWidth     int
	BannerY       int
	Mode          string
	ImageURL      string
	GridX, GridY  []string
	Glyphs        []svgGlyph
	Selection     *svgSelection
	LineY         []int
	Banner        string
}

// SVG writes the fallback surface at width x height pixels. It paints the same offsets and
// selection as Render, whatever the current mode, so it doubles as a static snapshot.
func (s *Surface) SVG(w io.Writer, width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSurfaceSize
	}
	v := s.Render()

	d := svgData{
		Width:     width,
		Height:    height,
		HalfWidth: width / 2,
		BannerY:   height - 16,
		Mode:      string(v.Mode),
		ImageURL:  v.BackgroundURL,
	}
	for i := 1; i < 10; i++ {
		d.GridX = append(d.GridX, px(float64(width)*float64(i)/10))
		d.GridY = append(d.GridY, px(float64(height)*float64(i)/10))
	}

	selectedID := ""
	if v.Selection != nil {
		selectedID = v.Selection.Marker.ID
	}
	for _, m := range v.Markers {
		if m.Offset == nil {
			continue
		}
		g := svgGlyph{
			ID:     m.ID,
			X:      px(m.Offset.X * float64(width) / 100),
			Y:      px(m.Offset.Y * float64(height) / 100),
			R:      MarkerRadius,
			Color:  m.Color,
			Stroke: "#ffffff",
			Title:  markers.Describe(m.Marker).Title,
		}
		if m.ID == selectedID {
			g.R = MarkerRadius + 3
			g.Stroke = "#111827"
		}
		d.Glyphs = append(d.Glyphs, g)
	}

	if v.Selection != nil {
		sel := &svgSelection{ID: v.Selection.Marker.ID, Title: v.Selection.Detail.Title, BoxWidth: 240}
		for i, f := range v.Selection.Detail.Fields {
			sel.Lines = append(sel.Lines, f.Label+": "+f.Value)
			d.LineY = append(d.LineY, 48+18*i)
		}
		sel.BoxHeight = 32 + 18*len(sel.Lines)
		d.Selection = sel
	}

	switch {
	case v.Notice != "":
		d.Banner = v.Notice
	case v.Hint != "":
		d.Banner = v.Hint
	case v.Prompt != "":
		d.Banner = v.Prompt
	}

	return svgTemplate.Execute(w, d)
}

func px(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
