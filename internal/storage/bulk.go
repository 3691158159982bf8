package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PutNodes upserts node records inside the given transaction.
func (db *DB) PutNodes(ctx context.Context, tx *sql.Tx, nodes []NodeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (network_id, id, osmid, lat, lon, geom, street_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (network_id, id) DO UPDATE SET
			osmid = excluded.osmid,
			lat = excluded.lat,
			lon = excluded.lon,
			geom = excluded.geom,
			street_count = excluded.street_count`)
	if err != nil {
		return fmt.Errorf("prepare nodes: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.ExecContext(ctx, n.NetworkID, n.ID, n.OSMID,
			n.Lat, n.Lon, n.GeomWKT, n.StreetCount); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}
	db.logger.Info("stored nodes", "count", len(nodes))
	return nil
}

// PutEdges upserts edge records inside the given transaction.
func (db *DB) PutEdges(ctx context.Context, tx *sql.Tx, edges []EdgeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (network_id, osmid, u, v, k, geom, highway, name,
			length, width, maxspeed, lanes, oneway, tunnel, bridge)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (network_id, u, v, k) DO UPDATE SET
			osmid = excluded.osmid,
			geom = excluded.geom,
			highway = excluded.highway,
			name = excluded.name,
			length = excluded.length,
			width = excluded.width,
			maxspeed = excluded.maxspeed,
			lanes = excluded.lanes,
			oneway = excluded.oneway,
			tunnel = excluded.tunnel,
			bridge = excluded.bridge`)
	if err != nil {
		return fmt.Errorf("prepare edges: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.NetworkID, e.OSMID, e.U, e.V, e.K,
			e.GeomWKT, nullStr(e.Highway), nullStr(e.Name), e.Length,
			e.Width, encodeIntList(e.MaxSpeeds), encodeIntList(e.Lanes),
			e.Oneway, e.Tunnel, e.Bridge); err != nil {
			return fmt.Errorf("insert edge %d->%d/%d: %w", e.U, e.V, e.K, err)
		}
	}
	db.logger.Info("stored edges", "count", len(edges))
	return nil
}

// PutRoutes inserts route records in one transaction. A record whose
// (network, trip) pair already exists is silently skipped, which makes
// redelivery after a checkpoint resume harmless.
func (db *DB) PutRoutes(ctx context.Context, routes []RouteRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO routes (network_id, id_trip, origin_node, dest_node,
			strategy, trip_minutes, datetime_unlock, id_bike)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (network_id, id_trip) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare routes: %w", err)
	}
	defer stmt.Close()

	for _, r := range routes {
		if _, err := stmt.ExecContext(ctx, r.NetworkID, r.TripID, r.OriginNode,
			r.DestNode, r.Strategy, r.TripMinutes, nullStr(r.DatetimeUnlock),
			r.BikeID); err != nil {
			return fmt.Errorf("insert route for trip %s: %w", r.TripID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit routes: %w", err)
	}
	return nil
}

// RebuildRTree repopulates the R-Tree index from the nodes table.
func (db *DB) RebuildRTree(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes_rtree`); err != nil {
		return fmt.Errorf("clear rtree: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO nodes_rtree(id, min_lat, max_lat, min_lon, max_lon)
		 SELECT rowid, lat, lat, lon, lon FROM nodes`); err != nil {
		return fmt.Errorf("populate rtree: %w", err)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeIntList(v []int) any {
	if len(v) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

func decodeIntList(s sql.NullString) []int {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}
