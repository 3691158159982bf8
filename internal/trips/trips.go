// Package trips reads monthly bike-share trip exports. Files are
// semicolon-separated CSVs named trips_YY_MM*.csv, with unlock and lock
// positions encoded as GeoJSON-style point documents.
package trips

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Trip is one cleaned row of a trip export.
type Trip struct {
	ID      string
	BikeID  int64
	Minutes float64
	Unlock  orb.Point
	Lock    orb.Point
}

// File is a trip export on disk, with the year and month parsed from its
// name.
type File struct {
	Path  string
	Name  string
	Year  int
	Month int
}

var tripFilePattern = regexp.MustCompile(`^trips_(\d{2})_(\d{2}).*\.csv$`)

// ListFiles returns the trip exports in dir in chronological order.
// Names that don't match the trips_YY_MM pattern are ignored.
func ListFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list trip files: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := tripFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		files = append(files, File{
			Path:  filepath.Join(dir, e.Name()),
			Name:  e.Name(),
			Year:  year,
			Month: month,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Year != files[j].Year {
			return files[i].Year < files[j].Year
		}
		return files[i].Month < files[j].Month
	})
	return files, nil
}

type columnIndex struct {
	unlock, lock, trip, bike, minutes int
}

// LoadFile reads one trip export and returns the cleaned trips plus the
// raw row count. A row is dropped when the unlock or lock position or the
// trip id is missing, when the unlock and lock positions are identical,
// or when a position document doesn't parse.
func LoadFile(path string) ([]Trip, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open trip file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var (
		trips  []Trip
		loaded int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read %s row %d: %w", filepath.Base(path), loaded+1, err)
		}
		loaded++
		if t, ok := cleanRow(record, cols); ok {
			trips = append(trips, t)
		}
	}
	return trips, loaded, nil
}

func indexColumns(header []string) (columnIndex, error) {
	cols := columnIndex{unlock: -1, lock: -1, trip: -1, bike: -1, minutes: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "geolocation_unlock":
			cols.unlock = i
		case "geolocation_lock":
			cols.lock = i
		case "idTrip":
			cols.trip = i
		case "idBike":
			cols.bike = i
		case "trip_minutes":
			cols.minutes = i
		}
	}
	for _, c := range []struct {
		idx  int
		name string
	}{
		{cols.unlock, "geolocation_unlock"},
		{cols.lock, "geolocation_lock"},
		{cols.trip, "idTrip"},
		{cols.bike, "idBike"},
		{cols.minutes, "trip_minutes"},
	} {
		if c.idx < 0 {
			return cols, fmt.Errorf("missing column %q", c.name)
		}
	}
	return cols, nil
}

func cleanRow(record []string, cols columnIndex) (Trip, bool) {
	unlock := field(record, cols.unlock)
	lock := field(record, cols.lock)
	id := field(record, cols.trip)

	if unlock == "" || lock == "" || id == "" {
		return Trip{}, false
	}
	if unlock == lock {
		return Trip{}, false
	}

	from, err := ParsePoint(unlock)
	if err != nil {
		return Trip{}, false
	}
	to, err := ParsePoint(lock)
	if err != nil {
		return Trip{}, false
	}

	t := Trip{ID: id, Unlock: from, Lock: to}
	// Missing numeric fields don't disqualify a row.
	if v, err := strconv.ParseFloat(field(record, cols.bike), 64); err == nil {
		t.BikeID = int64(v)
	}
	if v, err := strconv.ParseFloat(field(record, cols.minutes), 64); err == nil {
		t.Minutes = v
	}
	return t, true
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParsePoint decodes a point document like
//
//	{'type': 'Point', 'coordinates': [-3.6986, 40.4001]}
//
// into a lon/lat point. The upstream export writes single quotes, so both
// quote styles are accepted.
func ParsePoint(s string) (orb.Point, error) {
	var doc struct {
		Coordinates []float64 `json:"coordinates"`
	}
	normalized := strings.ReplaceAll(s, "'", `"`)
	if err := json.Unmarshal([]byte(normalized), &doc); err != nil {
		return orb.Point{}, fmt.Errorf("parse point %q: %w", s, err)
	}
	if len(doc.Coordinates) < 2 {
		return orb.Point{}, fmt.Errorf("parse point %q: missing coordinates", s)
	}
	return orb.Point{doc.Coordinates[0], doc.Coordinates[1]}, nil
}
