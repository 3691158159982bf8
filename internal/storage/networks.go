package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNetworkNotFound is returned when a network lookup matches nothing.
var ErrNetworkNotFound = errors.New("network not found")

// GetOrCreateNetwork returns the network with the given name, creating it
// first if necessary.
func (db *DB) GetOrCreateNetwork(ctx context.Context, name string) (Network, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO networks (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return Network{}, fmt.Errorf("create network %q: %w", name, err)
	}
	return db.networkByName(ctx, name)
}

// UpdateNetworkCenter stores the center point and radius of a network.
func (db *DB) UpdateNetworkCenter(ctx context.Context, networkID int64, lat, lon, radiusMeters float64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE networks SET center_lat = ?, center_lon = ?, radius = ? WHERE id = ?`,
		lat, lon, radiusMeters, networkID)
	if err != nil {
		return fmt.Errorf("update network center: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update network center %d: %w", networkID, ErrNetworkNotFound)
	}
	return nil
}

// NetworkByID returns one network.
func (db *DB) NetworkByID(ctx context.Context, networkID int64) (Network, error) {
	return db.scanNetwork(db.QueryRowContext(ctx, `
		SELECT id, name, description, center_lat, center_lon, radius, created_at
		FROM networks WHERE id = ?`, networkID))
}

func (db *DB) networkByName(ctx context.Context, name string) (Network, error) {
	return db.scanNetwork(db.QueryRowContext(ctx, `
		SELECT id, name, description, center_lat, center_lon, radius, created_at
		FROM networks WHERE name = ?`, name))
}

func (db *DB) scanNetwork(row *sql.Row) (Network, error) {
	var (
		n           Network
		description sql.NullString
		centerLat   sql.NullFloat64
		centerLon   sql.NullFloat64
		radius      sql.NullFloat64
	)
	err := row.Scan(&n.ID, &n.Name, &description, &centerLat, &centerLon, &radius, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return Network{}, ErrNetworkNotFound
	}
	if err != nil {
		return Network{}, fmt.Errorf("scan network: %w", err)
	}
	n.Description = description.String
	n.CenterLat = centerLat.Float64
	n.CenterLon = centerLon.Float64
	n.Radius = radius.Float64
	return n, nil
}

// ListNetworks returns all networks ordered by id.
func (db *DB) ListNetworks(ctx context.Context) ([]Network, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, center_lat, center_lon, radius, created_at
		FROM networks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	defer rows.Close()

	var networks []Network
	for rows.Next() {
		var (
			n           Network
			description sql.NullString
			centerLat   sql.NullFloat64
			centerLon   sql.NullFloat64
			radius      sql.NullFloat64
		)
		if err := rows.Scan(&n.ID, &n.Name, &description, &centerLat, &centerLon, &radius, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan network: %w", err)
		}
		n.Description = description.String
		n.CenterLat = centerLat.Float64
		n.CenterLon = centerLon.Float64
		n.Radius = radius.Float64
		networks = append(networks, n)
	}
	return networks, rows.Err()
}

// Stats returns node, edge and route counts plus the node bounding box for
// one network.
func (db *DB) Stats(ctx context.Context, networkID int64) (NetworkStats, error) {
	n, err := db.NetworkByID(ctx, networkID)
	if err != nil {
		return NetworkStats{}, err
	}

	stats := NetworkStats{NetworkID: n.ID, NetworkName: n.Name}
	if stats.Nodes, err = db.CountNodes(ctx, networkID); err != nil {
		return NetworkStats{}, err
	}
	if stats.Edges, err = db.CountEdges(ctx, networkID); err != nil {
		return NetworkStats{}, err
	}
	if stats.Routes, err = db.CountRoutes(ctx, networkID); err != nil {
		return NetworkStats{}, err
	}

	var minLat, maxLat, minLon, maxLon sql.NullFloat64
	err = db.QueryRowContext(ctx, `
		SELECT MIN(lat), MAX(lat), MIN(lon), MAX(lon)
		FROM nodes WHERE network_id = ?`, networkID).
		Scan(&minLat, &maxLat, &minLon, &maxLon)
	if err != nil {
		return NetworkStats{}, fmt.Errorf("network bounds: %w", err)
	}
	if minLat.Valid && maxLat.Valid && minLon.Valid && maxLon.Valid {
		stats.Bounds = &Bounds{
			MinLat: minLat.Float64,
			MaxLat: maxLat.Float64,
			MinLon: minLon.Float64,
			MaxLon: maxLon.Float64,
		}
	}
	return stats, nil
}
