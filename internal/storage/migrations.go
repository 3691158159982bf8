package storage

import "fmt"

// migrate creates the network schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

var migrations = []string{
	// Networks (one per city)
	`CREATE TABLE IF NOT EXISTS networks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT UNIQUE NOT NULL,
		description TEXT,
		center_lat  REAL,
		center_lon  REAL,
		radius      REAL,
		created_at  TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	// Nodes (street intersections, ids scoped per network)
	`CREATE TABLE IF NOT EXISTS nodes (
		network_id   INTEGER NOT NULL REFERENCES networks(id),
		id           INTEGER NOT NULL,
		osmid        INTEGER,
		lat          REAL NOT NULL,
		lon          REAL NOT NULL,
		geom         TEXT NOT NULL,
		street_count INTEGER,
		PRIMARY KEY (network_id, id)
	)`,

	// Edges (directed street segments; maxspeed and lanes are JSON arrays)
	`CREATE TABLE IF NOT EXISTS edges (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		network_id INTEGER NOT NULL REFERENCES networks(id),
		osmid      INTEGER,
		u          INTEGER NOT NULL,
		v          INTEGER NOT NULL,
		k          INTEGER NOT NULL DEFAULT 0,
		geom       TEXT NOT NULL,
		highway    TEXT,
		name       TEXT,
		length     REAL,
		width      REAL,
		maxspeed   TEXT,
		lanes      TEXT,
		oneway     INTEGER NOT NULL DEFAULT 0,
		tunnel     INTEGER NOT NULL DEFAULT 0,
		bridge     INTEGER NOT NULL DEFAULT 0,
		UNIQUE (network_id, u, v, k)
	)`,

	// Routes (one per successfully matched trip)
	`CREATE TABLE IF NOT EXISTS routes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		network_id      INTEGER NOT NULL REFERENCES networks(id),
		id_trip         TEXT NOT NULL,
		origin_node     INTEGER NOT NULL,
		dest_node       INTEGER NOT NULL,
		strategy        TEXT NOT NULL,
		trip_minutes    REAL,
		datetime_unlock TEXT,
		id_bike         INTEGER,
		created_at      TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE (network_id, id_trip)
	)`,

	// R-Tree spatial index on nodes for bounding-box queries
	`CREATE VIRTUAL TABLE IF NOT EXISTS nodes_rtree USING rtree(
		id,
		min_lat, max_lat,
		min_lon, max_lon
	)`,

	// Indexes for common query patterns
	`CREATE INDEX IF NOT EXISTS idx_edges_network_highway ON edges(network_id, highway)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_network_u ON edges(network_id, u)`,
	`CREATE INDEX IF NOT EXISTS idx_routes_network_strategy ON routes(network_id, strategy)`,
	`CREATE INDEX IF NOT EXISTS idx_routes_network_minutes ON routes(network_id, trip_minutes)`,
}
