package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/selivandex/vollab/internal/screener"
	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// Plotter renders the diagnostic charts into an output directory.
type Plotter struct {
	dir string
}

// NewPlotter creates the output directory if needed.
func NewPlotter(dir string) (*Plotter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &Plotter{dir: dir}, nil
}

// CorrelationBar renders target correlations per feature.
func (pl *Plotter) CorrelationBar(correlations []screener.Correlation) error {
	names := make([]string, len(correlations))
	vals := make(plotter.Values, len(correlations))
	for i, c := range correlations {
		names[i] = c.Feature
		vals[i] = c.Coefficient
	}
	return pl.barChart("correlations.png", "Correlation with target", "Pearson r", names, vals)
}

// VIFBar renders variance inflation factors per surviving feature.
func (pl *Plotter) VIFBar(vifs []screener.VIF) error {
	names := make([]string, len(vifs))
	vals := make(plotter.Values, len(vifs))
	for i, v := range vifs {
		names[i] = v.Feature
		vals[i] = v.Value
	}
	return pl.barChart("vif.png", "Variance inflation factors", "VIF", names, vals)
}

// Importances renders the fitted model's per-feature importances.
func (pl *Plotter) Importances(features []string, importances []float64) error {
	vals := make(plotter.Values, len(importances))
	copy(vals, importances)
	return pl.barChart("importances.png", "Feature importances", "importance", features, vals)
}

// PredictedVsActual renders the test scatter with the identity line.
func (pl *Plotter) PredictedVsActual(ps *models.PredictionSet) error {
	pts := make(plotter.XYs, len(ps.Predictions))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range ps.Predictions {
		pts[i].X = p.Actual
		pts[i].Y = p.Predicted
		lo = math.Min(lo, math.Min(p.Actual, p.Predicted))
		hi = math.Max(hi, math.Max(p.Actual, p.Predicted))
	}

	plt := plot.New()
	plt.Title.Text = "Predicted vs actual volatility"
	plt.X.Label.Text = "actual"
	plt.Y.Label.Text = "predicted"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	plt.Add(scatter)

	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return fmt.Errorf("failed to build identity line: %w", err)
	}
	plt.Add(identity)

	return pl.save(plt, "predicted_vs_actual.png")
}

// ResidualHistogram renders the distribution of test residuals.
func (pl *Plotter) ResidualHistogram(ps *models.PredictionSet) error {
	residuals := ps.Residuals()
	vals := make(plotter.Values, len(residuals))
	copy(vals, residuals)

	plt := plot.New()
	plt.Title.Text = "Residuals"
	plt.X.Label.Text = "actual - predicted"

	hist, err := plotter.NewHist(vals, 20)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	plt.Add(hist)

	return pl.save(plt, "residuals.png")
}

func (pl *Plotter) barChart(file, title, yLabel string, names []string, vals plotter.Values) error {
	plt := plot.New()
	plt.Title.Text = title
	plt.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(vals, vg.Points(18))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	plt.Add(bars)
	plt.NominalX(names...)
	plt.X.Tick.Label.Rotation = math.Pi / 3
	plt.X.Tick.Label.XAlign = -0.9

	return pl.save(plt, file)
}

func (pl *Plotter) save(plt *plot.Plot, file string) error {
	path := filepath.Join(pl.dir, file)
	if err := plt.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", file, err)
	}
	logger.Debug("plot written", zap.String("path", path))
	return nil
}
