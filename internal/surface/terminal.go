package surface

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"carbontwin/mapsurface/internal/markers"
)

var (
	termTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10b981"))
	termDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(markers.ColorNeutral))
	termBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#243141")).Padding(0, 1)
)

const (
	termBackground = "·"
	termGlyph      = "●"
	termSelected   = "◉"
)

// TerminalCells maps each cell of a cols x rows grid to the index of the marker drawn there,
// or -1. The last marker in render order wins a shared cell.
func (v View) TerminalCells(cols, rows int) [][]int {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	grid := make([][]int, rows)
	for r := range grid {
		grid[r] = make([]int, cols)
		for c := range grid[r] {
			grid[r][c] = -1
		}
	}
	for i, m := range v.Markers {
		if m.Offset == nil {
			continue
		}
		c := clampCell(m.Offset.X/100*float64(cols), cols)
		r := clampCell(m.Offset.Y/100*float64(rows), rows)
		grid[r][c] = i
	}
	return grid
}

func clampCell(v float64, n int) int {
	i := int(math.Floor(v))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Terminal renders the fallback surface as a coloured character grid with a legend.
func (s *Surface) Terminal(cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	v := s.Render()
	cells := v.TerminalCells(cols, rows)

	selectedID := ""
	if v.Selection != nil {
		selectedID = v.Selection.Marker.ID
	}

	var b strings.Builder
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := cells[r][c]
			if idx < 0 {
				b.WriteString(termDimStyle.Render(termBackground))
				continue
			}
			m := v.Markers[idx]
			glyph := termGlyph
			if m.ID == selectedID {
				glyph = termSelected
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(m.Color)).Render(glyph))
		}
		if r < rows-1 {
			b.WriteByte('\n')
		}
	}

	header := termTitleStyle.Render(fmt.Sprintf("CO₂ surface  %.4f,%.4f → %.4f,%.4f",
		v.Region.MinLat, v.Region.MinLng, v.Region.MaxLat, v.Region.MaxLng))
	parts := []string{header, termBoxStyle.Render(b.String()), legend(v)}
	if v.Selection != nil {
		lines := []string{termTitleStyle.Render(v.Selection.Detail.Title)}
		for _, f := range v.Selection.Detail.Fields {
			lines = append(lines, f.Label+": "+f.Value)
		}
		parts = append(parts, termBoxStyle.Render(strings.Join(lines, "\n")))
	}
	if v.Notice != "" {
		parts = append(parts, termDimStyle.Render(v.Notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func legend(v View) string {
	var items []string
	for _, st := range []markers.Status{markers.StatusSafe, markers.StatusModerate, markers.StatusUnhealthy, markers.StatusHazardous} {
		items = append(items, lipgloss.NewStyle().Foreground(lipgloss.Color(markers.StatusColor(st))).Render(termGlyph)+" "+st.String())
	}
	items = append(items, lipgloss.NewStyle().Foreground(lipgloss.Color(markers.ColorPositive)).Render(termGlyph)+" intervention")
	items = append(items, termDimStyle.Render(fmt.Sprintf("%d markers", len(v.Markers))))
	return strings.Join(items, "  ")
}
