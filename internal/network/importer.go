package network

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"gobike/internal/graph"
	"gobike/internal/storage"
)

// Importer loads street graphs into SQLite.
type Importer struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(db *storage.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// Import replaces the stored nodes and edges of a network with the
// contents of g. The entire operation runs in a single transaction for
// atomicity; stored routes are untouched.
func (imp *Importer) Import(ctx context.Context, g *graph.Graph, networkID int64) error {
	start := time.Now()
	nodes, edges := Serialize(g, networkID)

	tx, err := imp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := imp.clearNetwork(ctx, tx, networkID); err != nil {
		return err
	}
	if err := imp.db.PutNodes(ctx, tx, nodes); err != nil {
		return err
	}
	if err := imp.db.PutEdges(ctx, tx, edges); err != nil {
		return err
	}
	if err := imp.db.RebuildRTree(ctx, tx); err != nil {
		return fmt.Errorf("rebuild rtree: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	imp.logger.Info("network import complete",
		"network", networkID,
		"duration", time.Since(start).Round(time.Millisecond),
		"nodes", len(nodes),
		"edges", len(edges),
	)
	return nil
}

func (imp *Importer) clearNetwork(ctx context.Context, tx *sql.Tx, networkID int64) error {
	for _, table := range []string{"edges", "nodes"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE network_id = ?", table), networkID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
