package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gobike/internal/catalog"
	"gobike/internal/config"
	"gobike/internal/graph"
	"gobike/internal/ledger"
	"gobike/internal/network"
	"gobike/internal/pipeline"
	"gobike/internal/server"
	"gobike/internal/storage"
	"gobike/internal/trips"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// SIGINT during a long ingestion cancels cleanly; progress is
	// already checkpointed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "populate":
		err = runPopulate(ctx, os.Args[2:], logger)
	case "ingest":
		err = runIngest(ctx, os.Args[2:], logger)
	case "summary":
		err = runSummary(ctx, os.Args[2:], logger)
	case "serve":
		err = runServe(ctx, os.Args[2:], logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: gobike <command> [flags]

commands:
  populate   load a node-link graph file and store it as a city network
  ingest     match trip CSVs onto a stored network and save the routes
  summary    show stored networks and ingestion progress
  serve      run the JSON API server

run "gobike <command> -h" for the flags of one command
`)
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.Load(*configPath)
}

func runPopulate(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("populate", flag.ExitOnError)
	graphPath := fs.String("graph", "", "node-link JSON graph file (required)")
	city := fs.String("city", "", "override the configured city")
	radius := fs.Float64("radius", 15000, "network radius around the city centre in metres")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *city != "" {
		cfg.City = *city
	}
	if *graphPath == "" {
		return errors.New("populate needs -graph")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	c, err := cat.Lookup(cfg.City)
	if err != nil {
		return err
	}

	f, err := os.Open(*graphPath)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer f.Close()
	g, err := graph.LoadNodeLink(f)
	if err != nil {
		return fmt.Errorf("load %s: %w", *graphPath, err)
	}

	// A city network an order of magnitude smaller than expected is
	// almost always a truncated download.
	if minNodes := cfg.Ingest.MinGraphSize; g.NumNodes() < minNodes {
		return fmt.Errorf("graph has %d nodes, below the configured minimum %d", g.NumNodes(), minNodes)
	}

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	nw, err := db.GetOrCreateNetwork(ctx, cfg.City)
	if err != nil {
		return err
	}
	if err := db.UpdateNetworkCenter(ctx, nw.ID, c.Lat, c.Lon, *radius); err != nil {
		return err
	}

	if err := network.NewImporter(db, logger).Import(ctx, g, nw.ID); err != nil {
		return err
	}
	logger.Info("network populated",
		"city", cfg.City, "network", nw.ID,
		"nodes", g.NumNodes(), "edges", g.NumEdges())
	return nil
}

func runIngest(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	city := fs.String("city", "", "override the configured city")
	strategy := fs.String("strategy", "", "override the configured routing strategy")
	maxDistance := fs.Float64("max-distance", 0, "override the matching cutoff in metres")
	batchSize := fs.Int("batch-size", 0, "override the route batch size")
	checkpointInterval := fs.Int("checkpoint-interval", 0, "override the checkpoint interval in rows")
	singleFile := fs.Bool("single-file", false, "process at most one trip file")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *city != "" {
		cfg.City = *city
	}
	if *strategy != "" {
		cfg.Ingest.Strategy = *strategy
	}
	if *maxDistance > 0 {
		cfg.Ingest.MaxDistance = *maxDistance
	}
	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}
	if *checkpointInterval > 0 {
		cfg.Ingest.CheckpointInterval = *checkpointInterval
	}

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	nw, err := db.GetOrCreateNetwork(ctx, cfg.City)
	if err != nil {
		return err
	}
	g, err := network.Reconstruct(ctx, db, nw.ID)
	if err != nil {
		return fmt.Errorf("reconstruct %s: %w (run populate first)", cfg.City, err)
	}
	logger.Info("network reconstructed",
		"city", cfg.City, "nodes", g.NumNodes(), "edges", g.NumEdges())

	files, err := trips.ListFiles(filepath.Join(cfg.DataDir, cfg.City))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Info("no trip files found", "dir", filepath.Join(cfg.DataDir, cfg.City))
		return nil
	}

	led, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	p, err := pipeline.New(g, db, led, files, pipeline.Config{
		NetworkID:          nw.ID,
		City:               cfg.City,
		Strategy:           cfg.Ingest.Strategy,
		MaxDistance:        cfg.Ingest.MaxDistance,
		BatchSize:          cfg.Ingest.BatchSize,
		CheckpointInterval: cfg.Ingest.CheckpointInterval,
	}, logger)
	if err != nil {
		return err
	}

	run := func() error {
		if *singleFile {
			fsum, ok, err := p.ProcessNext(ctx)
			if err != nil {
				return err
			}
			if !ok {
				logger.Info("nothing left to ingest", "city", cfg.City)
			} else {
				logger.Info("file ingested",
					"file", fsum.File, "processed", fsum.Processed, "saved", fsum.Saved)
			}
			return nil
		}
		_, err := p.Run(ctx)
		return err
	}
	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("ingestion interrupted, progress is checkpointed")
			return nil
		}
		return err
	}
	return nil
}

func runSummary(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	networks, err := db.ListNetworks(ctx)
	if err != nil {
		return err
	}
	if len(networks) == 0 {
		fmt.Println("no networks stored")
		return nil
	}

	for _, n := range networks {
		stats, err := db.Stats(ctx, n.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s (network %d): %d nodes, %d edges, %d routes\n",
			n.Name, n.ID, stats.Nodes, stats.Edges, stats.Routes)
		if b := stats.Bounds; b != nil {
			fmt.Printf("  bounds: lat %.4f..%.4f lon %.4f..%.4f\n",
				b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
		}
	}

	led, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	positions := led.Snapshot()
	if len(positions) == 0 {
		fmt.Println("no ingestion progress recorded")
		return nil
	}
	fmt.Println("ingestion progress:")
	for _, pos := range positions {
		if pos.Status.Done {
			fmt.Printf("  %s/%s: done\n", pos.City, pos.File)
		} else {
			fmt.Printf("  %s/%s: row %d\n", pos.City, pos.File, pos.Status.Offset)
		}
	}
	return nil
}

func runServe(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "override the configured HTTP port")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Port = *port
	}

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(cfg, db, logger)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
