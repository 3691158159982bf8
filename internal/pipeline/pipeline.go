// Package pipeline matches bike-share trips onto a street network and
// stores the resulting routes, checkpointing progress so an interrupted
// run resumes where it stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gobike/internal/graph"
	"gobike/internal/ledger"
	"gobike/internal/storage"
	"gobike/internal/trips"
)

// RouteSink consumes matched routes. *storage.DB implements it.
type RouteSink interface {
	PutRoutes(ctx context.Context, routes []storage.RouteRecord) error
	CountRoutes(ctx context.Context, networkID int64) (int64, error)
}

// Config tunes one ingestion run. Zero values for the numeric fields fall
// back to the standard 150 m / 100 rows / 50 rows.
type Config struct {
	NetworkID          int64
	City               string
	Strategy           string
	MaxDistance        float64 // metres from trip endpoint to matched node
	BatchSize          int     // routes per storage flush
	CheckpointInterval int     // rows between ledger saves
}

// FileSummary reports the outcome of ingesting one trip file.
type FileSummary struct {
	File            string
	Loaded          int
	Clean           int
	StartOffset     int
	Processed       int
	Saved           int
	SkippedDistance int
	SkippedNoPath   int
	Duration        time.Duration
}

// SuccessRate is the fraction of attempted rows that produced a route.
func (s FileSummary) SuccessRate() float64 {
	return successRate(s.Processed, s.SkippedDistance+s.SkippedNoPath)
}

// Summary aggregates every file processed in one run.
type Summary struct {
	Files           int
	Processed       int
	Saved           int
	SkippedDistance int
	SkippedNoPath   int
}

// SuccessRate is the fraction of attempted rows that produced a route.
func (s Summary) SuccessRate() float64 {
	return successRate(s.Processed, s.SkippedDistance+s.SkippedNoPath)
}

func successRate(processed, skipped int) float64 {
	attempts := processed + skipped
	if attempts == 0 {
		return 0
	}
	return float64(processed) / float64(attempts)
}

// Pipeline ingests trip files against one city's street network.
type Pipeline struct {
	graph    *graph.Graph
	sink     RouteSink
	ledger   *ledger.Ledger
	files    []trips.File
	strategy graph.Strategy
	cfg      Config
	logger   *slog.Logger
}

// New builds a pipeline. The strategy name is resolved here so an unknown
// strategy fails before any file is touched.
func New(g *graph.Graph, sink RouteSink, led *ledger.Ledger, files []trips.File, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	strategy, err := graph.StrategyByName(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = 150
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 50
	}
	return &Pipeline{
		graph:    g,
		sink:     sink,
		ledger:   led,
		files:    files,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run processes every remaining file in chronological order and returns
// the aggregated counters.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	existing, err := p.sink.CountRoutes(ctx, p.cfg.NetworkID)
	if err != nil {
		return sum, fmt.Errorf("count existing routes: %w", err)
	}
	p.logger.Info("starting ingestion",
		"city", p.cfg.City,
		"files", len(p.files),
		"strategy", p.strategy.Name(),
		"existing_routes", existing,
	)

	for {
		fs, ok, err := p.ProcessNext(ctx)
		if err != nil {
			return sum, err
		}
		if !ok {
			break
		}
		sum.Files++
		sum.Processed += fs.Processed
		sum.Saved += fs.Saved
		sum.SkippedDistance += fs.SkippedDistance
		sum.SkippedNoPath += fs.SkippedNoPath
	}

	p.logger.Info("ingestion session complete",
		"city", p.cfg.City,
		"files", sum.Files,
		"processed", sum.Processed,
		"saved", sum.Saved,
		"skipped_distance", sum.SkippedDistance,
		"skipped_no_path", sum.SkippedNoPath,
		"success_rate_pct", round1(sum.SuccessRate()*100),
	)
	return sum, nil
}

// ProcessNext ingests the chronologically first file whose ledger status
// is not done. The boolean result reports whether any file remained.
func (p *Pipeline) ProcessNext(ctx context.Context) (*FileSummary, bool, error) {
	for _, f := range p.files {
		st := p.ledger.Status(p.cfg.City, f.Name)
		if st.Done {
			continue
		}
		fs, err := p.processFile(ctx, f, st.Offset)
		if err != nil {
			return nil, false, err
		}
		return fs, true, nil
	}
	return nil, false, nil
}

func (p *Pipeline) processFile(ctx context.Context, f trips.File, start int) (*FileSummary, error) {
	begin := time.Now()

	rows, loaded, err := trips.LoadFile(f.Path)
	if err != nil {
		return nil, err
	}
	total := len(rows)
	fs := &FileSummary{File: f.Name, Loaded: loaded, Clean: total, StartOffset: start}

	p.logger.Info("processing trip file",
		"file", f.Name,
		"loaded", loaded,
		"clean", total,
		"start_row", start,
	)

	// All rows already covered by a checkpoint, or nothing survived
	// cleaning. Mark done so the file is never selected again.
	if start >= total {
		if err := p.ledger.Save(p.cfg.City, f.Name, ledger.Done()); err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", f.Name, err)
		}
		fs.Duration = time.Since(begin)
		p.logger.Info("no rows remaining", "file", f.Name)
		return fs, nil
	}

	batch := make([]storage.RouteRecord, 0, p.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.sink.PutRoutes(ctx, batch); err != nil {
			return fmt.Errorf("save batch: %w", err)
		}
		fs.Saved += len(batch)
		batch = batch[:0]
		return nil
	}

	for idx := start; idx < total; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := rows[idx]

		origin, originDist, err := graph.NearestNode(p.graph, t.Unlock)
		if err != nil {
			return nil, fmt.Errorf("match trip %s: %w", t.ID, err)
		}
		dest, destDist, err := graph.NearestNode(p.graph, t.Lock)
		if err != nil {
			return nil, fmt.Errorf("match trip %s: %w", t.ID, err)
		}

		switch {
		case originDist > p.cfg.MaxDistance:
			p.logger.Warn("origin too far from network",
				"file", f.Name, "row", idx, "trip", t.ID, "distance_m", round1(originDist))
			fs.SkippedDistance++
		case destDist > p.cfg.MaxDistance:
			p.logger.Warn("destination too far from network",
				"file", f.Name, "row", idx, "trip", t.ID, "distance_m", round1(destDist))
			fs.SkippedDistance++
		default:
			_, err := p.strategy.Route(p.graph, origin, dest)
			switch {
			case errors.Is(err, graph.ErrNoPath):
				p.logger.Warn("no path between matched nodes",
					"file", f.Name, "row", idx, "trip", t.ID, "origin", origin, "dest", dest)
				fs.SkippedNoPath++
			case err != nil:
				return nil, fmt.Errorf("route trip %s: %w", t.ID, err)
			default:
				batch = append(batch, storage.RouteRecord{
					NetworkID:   p.cfg.NetworkID,
					TripID:      t.ID,
					OriginNode:  origin,
					DestNode:    dest,
					Strategy:    p.strategy.Name(),
					TripMinutes: t.Minutes,
					BikeID:      t.BikeID,
				})
				fs.Processed++
			}
		}

		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		// A checkpoint must never run ahead of the saved routes, so the
		// pending batch is flushed first. Resuming then reprocesses at
		// most the rows since the last checkpoint, and the route store
		// ignores the duplicates.
		if idx%p.cfg.CheckpointInterval == 0 || idx == total-1 {
			if err := flush(); err != nil {
				return nil, err
			}
			st := ledger.ResumeAt(idx + 1)
			if idx == total-1 {
				st = ledger.Done()
			}
			if err := p.ledger.Save(p.cfg.City, f.Name, st); err != nil {
				return nil, fmt.Errorf("checkpoint %s: %w", f.Name, err)
			}
		}

		if done := idx - start + 1; done%10000 == 0 {
			p.logger.Info("ingestion progress",
				"file", f.Name, "row", idx+1, "of", total, "saved", fs.Saved)
		}
	}

	fs.Duration = time.Since(begin)
	p.logger.Info("finished trip file",
		"file", f.Name,
		"duration", fs.Duration.Round(time.Millisecond),
		"processed", fs.Processed,
		"saved", fs.Saved,
		"skipped_distance", fs.SkippedDistance,
		"skipped_no_path", fs.SkippedNoPath,
		"success_rate_pct", round1(fs.SuccessRate()*100),
	)
	return fs, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
