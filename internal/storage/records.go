package storage

// Network is a city street network registered in the store.
type Network struct {
	ID          int64
	Name        string
	Description string
	CenterLat   float64
	CenterLon   float64
	Radius      float64
	CreatedAt   string
}

// NetworkStats summarizes the stored contents of one network.
type NetworkStats struct {
	NetworkID   int64
	NetworkName string
	Nodes       int64
	Edges       int64
	Routes      int64
	Bounds      *Bounds
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// NodeRecord is one street intersection as persisted. Geometry is WKT.
type NodeRecord struct {
	NetworkID   int64
	ID          int64
	OSMID       int64
	Lat         float64
	Lon         float64
	GeomWKT     string
	StreetCount int
}

// EdgeRecord is one directed street segment as persisted. Geometry is WKT;
// MaxSpeeds and Lanes round-trip through JSON array columns.
type EdgeRecord struct {
	RowID     int64 // assigned by the store, zero on insert
	NetworkID int64
	OSMID     int64
	U         int64
	V         int64
	K         int
	GeomWKT   string
	Highway   string
	Name      string
	Length    float64
	Width     *float64
	MaxSpeeds []int
	Lanes     []int
	Oneway    bool
	Tunnel    bool
	Bridge    bool
}

// RouteRecord is one resolved trip as persisted. TripID is unique per
// network, so re-saving after a crash resume is a no-op.
type RouteRecord struct {
	ID             int64 // assigned by the store, zero on insert
	NetworkID      int64
	TripID         string
	OriginNode     int64
	DestNode       int64
	Strategy       string
	TripMinutes    float64
	DatetimeUnlock string // RFC 3339, empty when the source file carries none
	BikeID         int64
	CreatedAt      string
}
