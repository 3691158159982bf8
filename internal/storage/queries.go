package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const edgeColumns = `e.id, e.network_id, e.osmid, e.u, e.v, e.k, e.geom,
	e.highway, e.name, e.length, e.width, e.maxspeed, e.lanes,
	e.oneway, e.tunnel, e.bridge`

// CountNodes returns the node count for a network.
func (db *DB) CountNodes(ctx context.Context, networkID int64) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE network_id = ?`, networkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// CountEdges returns the edge count for a network.
func (db *DB) CountEdges(ctx context.Context, networkID int64) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges WHERE network_id = ?`, networkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return n, nil
}

// CountRoutes returns the stored route count for a network.
func (db *DB) CountRoutes(ctx context.Context, networkID int64) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM routes WHERE network_id = ?`, networkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count routes: %w", err)
	}
	return n, nil
}

// GetNodes returns all nodes of a network ordered by id.
func (db *DB) GetNodes(ctx context.Context, networkID int64) ([]NodeRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT network_id, id, osmid, lat, lon, geom, street_count
		FROM nodes WHERE network_id = ? ORDER BY id`, networkID)
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetEdges returns all edges of a network ordered by (u, v, k).
func (db *DB) GetEdges(ctx context.Context, networkID int64) ([]EdgeRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM edges e WHERE e.network_id = ? ORDER BY e.u, e.v, e.k`, networkID)
	if err != nil {
		return nil, fmt.Errorf("get edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// NodesPage returns one page of nodes ordered by id, plus the total count
// for the same filter. A non-nil bbox restricts to the box via the R-Tree
// index.
func (db *DB) NodesPage(ctx context.Context, networkID int64, bbox *Bounds, limit, offset int) ([]NodeRecord, int64, error) {
	var (
		total int64
		rows  *sql.Rows
		err   error
	)
	if bbox == nil {
		if err = db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM nodes WHERE network_id = ?`, networkID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count nodes page: %w", err)
		}
		rows, err = db.QueryContext(ctx, `
			SELECT network_id, id, osmid, lat, lon, geom, street_count
			FROM nodes WHERE network_id = ?
			ORDER BY id LIMIT ? OFFSET ?`, networkID, limit, offset)
	} else {
		if err = db.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM nodes_rtree r JOIN nodes n ON n.rowid = r.id
			WHERE n.network_id = ?
			  AND r.min_lat >= ? AND r.max_lat <= ?
			  AND r.min_lon >= ? AND r.max_lon <= ?`,
			networkID, bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count nodes page: %w", err)
		}
		rows, err = db.QueryContext(ctx, `
			SELECT n.network_id, n.id, n.osmid, n.lat, n.lon, n.geom, n.street_count
			FROM nodes_rtree r JOIN nodes n ON n.rowid = r.id
			WHERE n.network_id = ?
			  AND r.min_lat >= ? AND r.max_lat <= ?
			  AND r.min_lon >= ? AND r.max_lon <= ?
			ORDER BY n.id LIMIT ? OFFSET ?`,
			networkID, bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon, limit, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("nodes page: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	return nodes, total, err
}

// EdgesPage returns one page of edges ordered by id, plus the total count
// for the same filter. An empty highway matches all classes; a non-nil
// bbox restricts by the position of the from-endpoint.
func (db *DB) EdgesPage(ctx context.Context, networkID int64, highway string, bbox *Bounds, limit, offset int) ([]EdgeRecord, int64, error) {
	conditions := []string{"e.network_id = ?"}
	args := []any{networkID}
	join := ""

	if highway != "" {
		conditions = append(conditions, "e.highway = ?")
		args = append(args, highway)
	}
	if bbox != nil {
		join = " JOIN nodes n ON n.network_id = e.network_id AND n.id = e.u"
		conditions = append(conditions,
			"n.lat BETWEEN ? AND ?", "n.lon BETWEEN ? AND ?")
		args = append(args, bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon)
	}
	where := strings.Join(conditions, " AND ")

	var total int64
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edges e"+join+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count edges page: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+edgeColumns+" FROM edges e"+join+" WHERE "+where+
			" ORDER BY e.id LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("edges page: %w", err)
	}
	defer rows.Close()

	edges, err := scanEdges(rows)
	return edges, total, err
}

// RoutesPage returns one page of routes ordered by id, plus the total
// count for the same filter. Empty strategy and nil duration bounds match
// everything.
func (db *DB) RoutesPage(ctx context.Context, networkID int64, strategy string, minMinutes, maxMinutes *float64, limit, offset int) ([]RouteRecord, int64, error) {
	conditions := []string{"network_id = ?"}
	args := []any{networkID}

	if strategy != "" {
		conditions = append(conditions, "strategy = ?")
		args = append(args, strategy)
	}
	if minMinutes != nil {
		conditions = append(conditions, "trip_minutes >= ?")
		args = append(args, *minMinutes)
	}
	if maxMinutes != nil {
		conditions = append(conditions, "trip_minutes <= ?")
		args = append(args, *maxMinutes)
	}
	where := strings.Join(conditions, " AND ")

	var total int64
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM routes WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count routes page: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, network_id, id_trip, origin_node, dest_node, strategy,
		       trip_minutes, datetime_unlock, id_bike, created_at
		FROM routes WHERE `+where+`
		ORDER BY id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("routes page: %w", err)
	}
	defer rows.Close()

	var routes []RouteRecord
	for rows.Next() {
		var (
			r        RouteRecord
			minutes  sql.NullFloat64
			unlockAt sql.NullString
			bikeID   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.NetworkID, &r.TripID, &r.OriginNode,
			&r.DestNode, &r.Strategy, &minutes, &unlockAt, &bikeID, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan route: %w", err)
		}
		r.TripMinutes = minutes.Float64
		r.DatetimeUnlock = unlockAt.String
		r.BikeID = bikeID.Int64
		routes = append(routes, r)
	}
	return routes, total, rows.Err()
}

// NearbyNodes finds nodes within a bounding box using the R-Tree index.
// The caller should refine distances with Haversine and re-sort.
func (db *DB) NearbyNodes(ctx context.Context, networkID int64, lat, lon, latDeg, lonDeg float64, limit int) ([]NodeRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.network_id, n.id, n.osmid, n.lat, n.lon, n.geom, n.street_count
		FROM nodes_rtree AS r
		JOIN nodes AS n ON n.rowid = r.id
		WHERE n.network_id = ?
		  AND r.min_lat >= ? AND r.max_lat <= ?
		  AND r.min_lon >= ? AND r.max_lon <= ?
		ORDER BY (n.lat - ?)*(n.lat - ?) + (n.lon - ?)*(n.lon - ?)
		LIMIT ?`,
		networkID,
		lat-latDeg, lat+latDeg,
		lon-lonDeg, lon+lonDeg,
		lat, lat, lon, lon,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("nearby nodes query: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanNodes(rows *sql.Rows) ([]NodeRecord, error) {
	var nodes []NodeRecord
	for rows.Next() {
		var (
			n           NodeRecord
			osmid       sql.NullInt64
			streetCount sql.NullInt64
		)
		if err := rows.Scan(&n.NetworkID, &n.ID, &osmid, &n.Lat, &n.Lon,
			&n.GeomWKT, &streetCount); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.OSMID = osmid.Int64
		n.StreetCount = int(streetCount.Int64)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]EdgeRecord, error) {
	var edges []EdgeRecord
	for rows.Next() {
		var (
			e        EdgeRecord
			osmid    sql.NullInt64
			highway  sql.NullString
			name     sql.NullString
			length   sql.NullFloat64
			width    sql.NullFloat64
			maxspeed sql.NullString
			lanes    sql.NullString
		)
		if err := rows.Scan(&e.RowID, &e.NetworkID, &osmid, &e.U, &e.V, &e.K,
			&e.GeomWKT, &highway, &name, &length, &width, &maxspeed, &lanes,
			&e.Oneway, &e.Tunnel, &e.Bridge); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.OSMID = osmid.Int64
		e.Highway = highway.String
		e.Name = name.String
		e.Length = length.Float64
		if width.Valid {
			w := width.Float64
			e.Width = &w
		}
		e.MaxSpeeds = decodeIntList(maxspeed)
		e.Lanes = decodeIntList(lanes)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
