package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sits/internal/economy"
	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/output"
)

// ManifestName is the run manifest written next to the datasets.
const ManifestName = "sits_run.json"

// KindReport summarises the run of one zone kind.
type KindReport struct {
	Kind            model.Kind        `json:"kind"`
	LayerPath       string            `json:"layer_path,omitempty"`
	TablePath       string            `json:"table_path,omitempty"`
	Encoding        string            `json:"encoding,omitempty"`
	Zones           int               `json:"zones"`
	Join            JoinReport        `json:"join"`
	Economy         economy.Stats     `json:"economy"`
	SlopeSource     model.SlopeSource `json:"slope_source,omitempty"`
	SlopeFailed     int               `json:"slope_failed"`
	GasRestricted   int               `json:"gas_restricted"`
	WaterRestricted int               `json:"water_restricted"`
	Fallbacks       []string          `json:"fallbacks,omitempty"`
	Outputs         []string          `json:"outputs,omitempty"`
	DurationMS      int64             `json:"duration_ms"`
	Error           string            `json:"error,omitempty"`
}

// Failed reports whether the kind produced no dataset.
func (k KindReport) Failed() bool { return k.Error != "" }

// Manifest describes one run.
type Manifest struct {
	RunID        string       `json:"run_id"`
	Municipality string       `json:"municipality"`
	Started      time.Time    `json:"started"`
	Finished     time.Time    `json:"finished"`
	Kinds        []KindReport `json:"kinds"`
}

// Run builds and writes both zone kinds, then the manifest. A kind that
// fails does not stop the other one; the returned error joins every kind
// failure. The manifest is returned even when err is non-nil.
func (r *Runner) Run(ctx context.Context) (*Manifest, error) {
	m := &Manifest{
		RunID:        uuid.New().String(),
		Municipality: r.cfg.Municipality.Name,
		Started:      r.now().UTC(),
		Kinds:        make([]KindReport, len(model.Kinds)),
	}
	restore := zap.ReplaceGlobals(zap.L().With(zap.String("run_id", m.RunID)))
	defer restore()

	log := zap.L().With(zap.String("component", "assembler"))
	log.Info("assembler: run starting",
		zap.String("municipality", m.Municipality),
		zap.Bool("parallel", r.cfg.Pipeline.Parallel),
	)

	in := r.LoadInputs()

	var (
		mu   sync.Mutex
		errs []error
	)
	runKind := func(ctx context.Context, i int, kind model.Kind) {
		rep, err := r.runKind(ctx, kind, in)
		m.Kinds[i] = rep
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	if r.cfg.Pipeline.Parallel {
		var g errgroup.Group
		for i, kind := range model.Kinds {
			g.Go(func() error {
				runKind(ctx, i, kind)
				return nil // one kind failing must not cancel the other
			})
		}
		_ = g.Wait()
	} else {
		for i, kind := range model.Kinds {
			runKind(ctx, i, kind)
		}
	}

	m.Finished = r.now().UTC()
	if err := r.writeManifest(m); err != nil {
		log.Warn("assembler: manifest not written", zap.Error(err))
	}
	if r.metrics != nil {
		r.metrics.RunFinished(m.Finished)
	}

	if len(errs) > 0 {
		log.Error("assembler: run finished with failures", zap.Int("failed_kinds", len(errs)))
		return m, errors.Join(errs...)
	}
	log.Info("assembler: run complete", zap.Duration("elapsed", m.Finished.Sub(m.Started)))
	return m, nil
}

func (r *Runner) runKind(ctx context.Context, kind model.Kind, in *Inputs) (KindReport, error) {
	log := zap.L().With(zap.String("component", "assembler"), zap.String("kind", string(kind)))
	start := r.now()

	zones, rep, err := r.Build(ctx, kind, in)
	if err == nil {
		rep.Outputs, err = output.WriteAll(ctx, r.cfg.Output.Dir, kind, zones, r.cfg.Output.Formats)
	}
	rep.DurationMS = r.now().Sub(start).Milliseconds()

	if err != nil {
		rep.Error = err.Error()
		log.Error("assembler: kind failed", zap.Error(err))
		if r.metrics != nil {
			r.metrics.KindFailed(string(kind))
		}
		return rep, err
	}

	log.Info("assembler: kind complete",
		zap.Int("zones", rep.Zones),
		zap.Strings("fallbacks", rep.Fallbacks),
		zap.Int64("duration_ms", rep.DurationMS),
	)
	if r.metrics != nil {
		r.metrics.KindDone(string(kind), rep.Zones, rep.Join.DroppedTable, rep.Join.DroppedLayer, r.now().Sub(start))
		r.metrics.Restricted(string(kind), "gas", rep.GasRestricted)
		r.metrics.Restricted(string(kind), "water", rep.WaterRestricted)
		for _, f := range rep.Fallbacks {
			r.metrics.Fallback(string(kind), f)
		}
	}
	return rep, nil
}

func (r *Runner) writeManifest(m *Manifest) error {
	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "assembler: create %s", r.cfg.Output.Dir)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "assembler: encode manifest")
	}
	path := filepath.Join(r.cfg.Output.Dir, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "assembler: write %s", path)
	}
	return nil
}

// ReadManifest loads the manifest of the last run in dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "assembler: read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "assembler: decode %s", path)
	}
	return &m, nil
}
