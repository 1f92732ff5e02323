package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selivandex/vollab/internal/adapters/config"
	"github.com/selivandex/vollab/internal/dataset"
	"github.com/selivandex/vollab/internal/evaluate"
	"github.com/selivandex/vollab/internal/features"
	"github.com/selivandex/vollab/internal/model"
	"github.com/selivandex/vollab/internal/report"
	"github.com/selivandex/vollab/internal/screener"
	"github.com/selivandex/vollab/internal/split"
	"github.com/selivandex/vollab/internal/trainer"
	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// Loader yields the dataset; CSV and Postgres loaders implement it.
type Loader interface {
	Load(ctx context.Context) (*models.Dataset, error)
}

// RunStore persists run reports.
type RunStore interface {
	SaveRun(ctx context.Context, report *models.RunReport) error
}

// PredictionStore persists per-record predictions.
type PredictionStore interface {
	SavePredictions(ctx context.Context, runID uuid.UUID, ps *models.PredictionSet) error
}

// Pipeline runs one Loaded → Screened → Split → Trained → Evaluated pass.
// All run state is recomputed per invocation; nothing persists between runs
// beyond the optional sinks.
type Pipeline struct {
	cfg       *config.Config
	loader    Loader
	runStore  RunStore
	predStore PredictionStore
	plotter   *report.Plotter
}

// New creates a pipeline over a dataset loader.
func New(cfg *config.Config, loader Loader) *Pipeline {
	return &Pipeline{cfg: cfg, loader: loader}
}

// SetRunStore attaches the optional run-history sink.
func (p *Pipeline) SetRunStore(s RunStore) {
	p.runStore = s
}

// SetPredictionStore attaches the optional prediction sink.
func (p *Pipeline) SetPredictionStore(s PredictionStore) {
	p.predStore = s
}

// SetPlotter attaches the optional diagnostics renderer.
func (p *Pipeline) SetPlotter(pl *report.Plotter) {
	p.plotter = pl
}

// Run executes the full pipeline and returns the run report. Configuration
// faults abort immediately; sink and plot failures are logged, never fatal.
func (p *Pipeline) Run(ctx context.Context) (*models.RunReport, error) {
	runReport := &models.RunReport{
		ID:          uuid.New(),
		Seed:        p.cfg.Run.Seed,
		CombineMode: p.cfg.Models.Combine,
		StartedAt:   time.Now(),
	}

	logger.Info("pipeline run starting",
		zap.String("run_id", runReport.ID.String()),
		zap.Strings("families", p.cfg.Models.Families),
		zap.String("combine", p.cfg.Models.Combine),
		zap.Int64("seed", p.cfg.Run.Seed),
	)

	// Loaded
	ds, err := p.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if p.cfg.Run.DeriveMomentum {
		ds = features.Derive(ds)
	}
	ds = dataset.Clean(ds)

	// Screened
	scr, err := screener.Screen(ds, p.cfg.Dataset.Target, p.cfg.Run.MaxVIF)
	if err != nil {
		return nil, err
	}

	// Split
	sp, err := split.New(ds, p.cfg.Run.TrainFraction, p.cfg.Run.Seed)
	if err != nil {
		return nil, err
	}
	runReport.TrainRecords = sp.Train.Len()
	runReport.TestRecords = sp.Test.Len()
	runReport.FeatureCount = len(scr.Features.Columns)

	// Trained
	families, err := p.parseFamilies()
	if err != nil {
		return nil, err
	}

	tr := trainer.New(p.cfg.Run.Folds, p.cfg.Run.Seed, p.cfg.Run.Workers)

	results := make([]*trainer.Result, 0, len(families))
	trainSets := make([]*models.PredictionSet, 0, len(families))
	testSets := make([]*models.PredictionSet, 0, len(families))

	for _, family := range families {
		var grid trainer.Grid
		if p.cfg.Models.GridSearch {
			grid = trainer.DefaultGrid(family)
		}

		res, err := tr.Fit(ctx, sp.Train, scr.Features, p.cfg.Dataset.Target, family, grid)
		if err != nil {
			return nil, fmt.Errorf("fit %s: %w", family, err)
		}
		results = append(results, res)

		trainSet, err := evaluate.Evaluate(res.Predictor, sp.Train, scr.Features, p.cfg.Dataset.Target, string(family))
		if err != nil {
			return nil, err
		}
		trainSets = append(trainSets, trainSet)

		testSet, err := evaluate.Evaluate(res.Predictor, sp.Test, scr.Features, p.cfg.Dataset.Target, string(family))
		if err != nil {
			return nil, err
		}
		testSets = append(testSets, testSet)
	}

	// Combined and Evaluated
	final, err := p.combine(runReport, results, trainSets, testSets)
	if err != nil {
		return nil, err
	}
	runReport.Metrics = evaluate.ComputeMetrics(final)
	runReport.FinishedAt = time.Now()

	logger.Info("pipeline run evaluated",
		zap.String("run_id", runReport.ID.String()),
		zap.Float64("rmse", runReport.Metrics.RMSE),
		zap.Float64("r2", runReport.Metrics.R2),
		zap.Float64("mae", runReport.Metrics.MAE),
	)

	p.report(ctx, runReport, scr, results, final)

	return runReport, nil
}

func (p *Pipeline) parseFamilies() ([]model.Family, error) {
	out := make([]model.Family, 0, len(p.cfg.Models.Families))
	for _, s := range p.cfg.Models.Families {
		f, err := model.ParseFamily(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// combine resolves the Trained variant: single model, mean ensemble, or
// stacked. The stacked combiner is fit on training-set predictions only.
func (p *Pipeline) combine(runReport *models.RunReport, results []*trainer.Result, trainSets, testSets []*models.PredictionSet) (*models.PredictionSet, error) {
	switch p.cfg.Models.Combine {
	case "ensemble":
		runReport.Family = "ensemble"
		runReport.SelectedParams = combinedParams(results)
		return evaluate.Ensemble(testSets...)

	case "stacked":
		runReport.Family = "stacked"
		runReport.SelectedParams = combinedParams(results)
		stacker, err := evaluate.FitStacker(trainSets...)
		if err != nil {
			return nil, err
		}
		return stacker.Combine(testSets...)

	default:
		if len(results) > 1 {
			logger.Warn("combine mode is none, only the first family is reported",
				zap.String("family", string(results[0].Family)),
			)
		}
		runReport.Family = string(results[0].Family)
		runReport.SelectedParams = results[0].Params
		return testSets[0], nil
	}
}

// combinedParams flattens every family's selected hyperparameters under
// family-prefixed keys so combined runs keep them in the report.
func combinedParams(results []*trainer.Result) map[string]float64 {
	out := make(map[string]float64)
	for _, res := range results {
		for name, v := range res.Params {
			out[string(res.Family)+"."+name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// report renders plots and feeds the optional sinks.
func (p *Pipeline) report(ctx context.Context, runReport *models.RunReport, scr *screener.Result, results []*trainer.Result, final *models.PredictionSet) {
	if p.plotter != nil {
		if err := p.plotter.CorrelationBar(scr.Correlations); err != nil {
			logger.Warn("failed to render correlation chart", zap.Error(err))
		}
		if err := p.plotter.VIFBar(scr.VIFs); err != nil {
			logger.Warn("failed to render VIF chart", zap.Error(err))
		}
		if err := p.plotter.PredictedVsActual(final); err != nil {
			logger.Warn("failed to render scatter", zap.Error(err))
		}
		if err := p.plotter.ResidualHistogram(final); err != nil {
			logger.Warn("failed to render residual histogram", zap.Error(err))
		}
		if imp, ok := results[0].Predictor.(model.Importancer); ok && p.cfg.Models.Combine == "none" {
			if err := p.plotter.Importances(scr.Features.Columns, imp.Importances()); err != nil {
				logger.Warn("failed to render importance chart", zap.Error(err))
			}
		}
	}

	// Sink failures never invalidate the computed result.
	if p.runStore != nil {
		if err := p.runStore.SaveRun(ctx, runReport); err != nil {
			logger.Warn("failed to save run report", zap.Error(err))
		}
	}
	if p.predStore != nil {
		if err := p.predStore.SavePredictions(ctx, runReport.ID, final); err != nil {
			logger.Warn("failed to save predictions", zap.Error(err))
		}
	}
}
