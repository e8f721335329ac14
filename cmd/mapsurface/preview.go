package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"carbontwin/mapsurface/internal/markers"
	"carbontwin/mapsurface/internal/planner"
	"carbontwin/mapsurface/internal/surface"
)

var (
	previewCols    int
	previewRows    int
	previewInputs  string
	previewCatalog string
	previewSelect  string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the offline surface in the terminal",
	Long: `Draws the fallback surface with coloured glyphs. Without --inputs the sample
CO₂ zones are shown.`,
	RunE: runPreview,
}

var catalogTitleStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)

func init() {
	previewCmd.Flags().IntVar(&previewCols, "cols", 60, "Surface width in characters")
	previewCmd.Flags().IntVar(&previewRows, "rows", 20, "Surface height in characters")
	previewCmd.Flags().StringVarP(&previewInputs, "inputs", "i", "", "JSON file with points_of_interest, measurements and interventions")
	previewCmd.Flags().StringVar(&previewCatalog, "catalog", "", "YAML intervention catalogue")
	previewCmd.Flags().StringVar(&previewSelect, "select", "", "Marker id to show details for")
}

func runPreview(cmd *cobra.Command, args []string) error {
	if previewCols <= 0 || previewRows <= 0 {
		return fmt.Errorf("--cols and --rows must be positive")
	}

	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	s := surface.New(log, nil, surface.Options{SeedSamples: true})

	if previewInputs != "" {
		raw, err := os.ReadFile(previewInputs)
		if err != nil {
			return err
		}
		var in markers.Inputs
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("parse %s: %w", previewInputs, err)
		}
		s.SetInputs(in)
	}

	if previewSelect != "" {
		if _, err := s.SelectMarker(previewSelect); err != nil {
			return fmt.Errorf("select %q: %w", previewSelect, err)
		}
	}

	catalog := planner.DefaultCatalog()
	if previewCatalog != "" {
		c, err := planner.LoadCatalog(previewCatalog)
		if err != nil {
			return err
		}
		catalog = c
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.Terminal(previewCols, previewRows))
	fmt.Fprintln(out, catalogTitleStyle.Render("Interventions"))
	for _, t := range planner.ByEfficiency(catalog) {
		bar := strings.Repeat("█", int(t.Efficiency/10))
		fmt.Fprintf(out, "  %-24s %s %3.0f%%\n", t.Name, lipgloss.NewStyle().Foreground(lipgloss.Color(markers.ColorPositive)).Render(bar), t.Efficiency)
	}
	return nil
}
