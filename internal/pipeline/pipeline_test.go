package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gobike/internal/geo"
	"gobike/internal/graph"
	"gobike/internal/ledger"
	"gobike/internal/storage"
	"gobike/internal/trips"
)

var errTestSink = errors.New("sink unavailable")

// memSink collects routes in memory and can fail on a chosen call.
type memSink struct {
	routes []storage.RouteRecord
	puts   int
	failOn int // 1-based PutRoutes call to fail; 0 never fails
}

func (s *memSink) PutRoutes(ctx context.Context, routes []storage.RouteRecord) error {
	s.puts++
	if s.failOn != 0 && s.puts == s.failOn {
		return errTestSink
	}
	s.routes = append(s.routes, routes...)
	return nil
}

func (s *memSink) CountRoutes(ctx context.Context, networkID int64) (int64, error) {
	return int64(len(s.routes)), nil
}

func (s *memSink) tripIDs() []string {
	ids := make([]string, len(s.routes))
	for i, r := range s.routes {
		ids[i] = r.TripID
	}
	return ids
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testGraph is a short north-south street with one isolated node.
//
//	1 - 2 - 3 - 4        99 (no edges)
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, n := range []graph.Node{
		{ID: 1, Lat: 40.0000, Lon: -3.0},
		{ID: 2, Lat: 40.0010, Lon: -3.0},
		{ID: 3, Lat: 40.0020, Lon: -3.0},
		{ID: 4, Lat: 40.0030, Lon: -3.0},
		{ID: 99, Lat: 40.0100, Lon: -3.0100},
	} {
		g.AddNode(n)
	}
	for _, e := range []graph.Edge{
		{From: 1, To: 2, Length: 111}, {From: 2, To: 1, Length: 111},
		{From: 2, To: 3, Length: 111}, {From: 3, To: 2, Length: 111},
		{From: 3, To: 4, Length: 111}, {From: 4, To: 3, Length: 111},
	} {
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	return g
}

// Trip endpoints against testGraph, as (lon, lat). nearNode1 and
// nearNode4 sit about a metre from their nodes, farFromAll is ~220 m
// from the closest node, and atIsolated is exactly node 99.
var (
	nearNode1  = [2]float64{-3.0, 40.00001}
	nearNode4  = [2]float64{-3.0, 40.00301}
	farFromAll = [2]float64{-3.0, 40.005}
	atIsolated = [2]float64{-3.0100, 40.0100}
)

func pointDoc(lonLat [2]float64) string {
	return fmt.Sprintf("{'type': 'Point', 'coordinates': [%g, %g]}", lonLat[0], lonLat[1])
}

type tripRow struct {
	id     string
	unlock [2]float64
	lock   [2]float64
}

func writeTripFile(t *testing.T, dir, name string, rows []tripRow) {
	t.Helper()
	var b strings.Builder
	b.WriteString("idTrip;idBike;geolocation_unlock;geolocation_lock;trip_minutes\n")
	for i, r := range rows {
		if r.id == "" { // a dirty row the cleaner must drop
			fmt.Fprintf(&b, ";%d;%s;%s;1.0\n", 4000+i, pointDoc(r.unlock), pointDoc(r.lock))
			continue
		}
		fmt.Fprintf(&b, "%s;%d;%s;%s;%.1f\n",
			r.id, 4000+i, pointDoc(r.unlock), pointDoc(r.lock), 10.0+float64(i))
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func openLedger(t *testing.T, dir string) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(filepath.Join(dir, "ledger.jsonl"), discardLogger())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { led.Close() })
	return led
}

func listFiles(t *testing.T, dir string) []trips.File {
	t.Helper()
	files, err := trips.ListFiles(dir)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	return files
}

func newPipeline(t *testing.T, g *graph.Graph, sink RouteSink, led *ledger.Ledger, files []trips.File, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(g, sink, led, files, cfg, discardLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New(testGraph(t), &memSink{}, nil, nil,
		Config{City: "madrid", Strategy: "scenic"}, discardLogger())
	if !errors.Is(err, graph.ErrUnknownStrategy) {
		t.Fatalf("err = %v, want ErrUnknownStrategy", err)
	}
}

func TestProcessNext_CountersAndOutcomes(t *testing.T) {
	dir := t.TempDir()
	writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
		{id: "t0", unlock: nearNode1, lock: nearNode4},
		{id: "t1", unlock: farFromAll, lock: nearNode1}, // origin too far
		{id: "t2", unlock: nearNode4, lock: nearNode1},
		{id: "t3", unlock: nearNode1, lock: atIsolated}, // no path to node 99
		{id: ""}, // dropped during cleaning
		{id: "t4", unlock: nearNode1, lock: nearNode4},
	})

	sink := &memSink{}
	led := openLedger(t, dir)
	p := newPipeline(t, testGraph(t), sink, led, listFiles(t, dir), Config{
		NetworkID: 1, City: "madrid", Strategy: "shortest",
	})

	fs, ok, err := p.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ok {
		t.Fatal("expected a file to be processed")
	}

	if fs.File != "trips_23_01.csv" || fs.Loaded != 6 || fs.Clean != 5 {
		t.Errorf("file summary = %+v", fs)
	}
	if fs.Processed != 3 || fs.Saved != 3 {
		t.Errorf("processed/saved = %d/%d, want 3/3", fs.Processed, fs.Saved)
	}
	if fs.SkippedDistance != 1 || fs.SkippedNoPath != 1 {
		t.Errorf("skips = %d/%d, want 1/1", fs.SkippedDistance, fs.SkippedNoPath)
	}
	if got := fs.SuccessRate(); got != 0.6 {
		t.Errorf("success rate = %v, want 0.6", got)
	}

	ids := sink.tripIDs()
	want := []string{"t0", "t2", "t4"}
	if len(ids) != len(want) {
		t.Fatalf("saved ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("saved[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	if st := led.Status("madrid", "trips_23_01.csv"); !st.Done {
		t.Errorf("ledger status = %+v, want done", st)
	}

	// Saved routes carry the right fields.
	r := sink.routes[0]
	if r.OriginNode != 1 || r.DestNode != 4 || r.Strategy != "shortest" {
		t.Errorf("route = %+v", r)
	}
	if r.TripMinutes != 10.0 || r.BikeID != 4000 || r.NetworkID != 1 {
		t.Errorf("route = %+v", r)
	}
}

func TestRun_MultipleFilesInChronologicalOrder(t *testing.T) {
	dir := t.TempDir()
	// Written out of order on purpose; listing must sort them.
	writeTripFile(t, dir, "trips_23_02.csv", []tripRow{
		{id: "feb-1", unlock: nearNode1, lock: nearNode4},
	})
	writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
		{id: "jan-1", unlock: nearNode1, lock: nearNode4},
		{id: "jan-2", unlock: nearNode4, lock: nearNode1},
	})

	sink := &memSink{}
	led := openLedger(t, dir)
	p := newPipeline(t, testGraph(t), sink, led, listFiles(t, dir), Config{
		NetworkID: 1, City: "madrid", Strategy: "shortest",
	})

	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Files != 2 || sum.Processed != 3 || sum.Saved != 3 {
		t.Errorf("summary = %+v", sum)
	}

	ids := sink.tripIDs()
	want := []string{"jan-1", "jan-2", "feb-1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("saved ids = %v, want %v (january before february)", ids, want)
		}
	}
}

func TestProcessNext_NothingToDo(t *testing.T) {
	dir := t.TempDir()
	writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
		{id: "t0", unlock: nearNode1, lock: nearNode4},
	})

	led := openLedger(t, dir)
	if err := led.Save("madrid", "trips_23_01.csv", ledger.Done()); err != nil {
		t.Fatalf("save: %v", err)
	}

	sink := &memSink{}
	p := newPipeline(t, testGraph(t), sink, led, listFiles(t, dir), Config{
		NetworkID: 1, City: "madrid", Strategy: "shortest",
	})

	fs, ok, err := p.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ok || fs != nil {
		t.Errorf("got %+v ok=%v, want nothing to do", fs, ok)
	}

	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Files != 0 || len(sink.routes) != 0 {
		t.Errorf("summary = %+v, routes = %d", sum, len(sink.routes))
	}
}

func TestResume_AfterSinkFailure(t *testing.T) {
	dir := t.TempDir()
	rows := make([]tripRow, 7)
	for i := range rows {
		rows[i] = tripRow{id: fmt.Sprintf("t%d", i), unlock: nearNode1, lock: nearNode4}
	}
	writeTripFile(t, dir, "trips_23_01.csv", rows)

	cfg := Config{
		NetworkID: 1, City: "madrid", Strategy: "shortest",
		BatchSize: 2, CheckpointInterval: 2,
	}
	sink := &memSink{failOn: 3}
	led := openLedger(t, dir)
	files := listFiles(t, dir)

	p := newPipeline(t, testGraph(t), sink, led, files, cfg)
	_, _, err := p.ProcessNext(context.Background())
	if !errors.Is(err, errTestSink) {
		t.Fatalf("err = %v, want the sink failure", err)
	}

	// Two flushes landed before the failure, covering rows 0..2; the
	// last durable checkpoint points at row 3.
	if st := led.Status("madrid", "trips_23_01.csv"); st.Done || st.Offset != 3 {
		t.Fatalf("checkpoint = %+v, want offset 3", st)
	}
	if got := sink.tripIDs(); len(got) != 3 {
		t.Fatalf("saved before failure = %v, want t0..t2", got)
	}

	// Restart with the same ledger and a healthy sink.
	sink.failOn = 0
	p = newPipeline(t, testGraph(t), sink, led, files, cfg)
	fs, ok, err := p.ProcessNext(context.Background())
	if err != nil || !ok {
		t.Fatalf("resume: ok=%v err=%v", ok, err)
	}
	if fs.StartOffset != 3 {
		t.Errorf("start offset = %d, want 3", fs.StartOffset)
	}
	if fs.Processed != 4 || fs.Saved != 4 {
		t.Errorf("resume summary = %+v", fs)
	}

	ids := sink.tripIDs()
	if len(ids) != 7 {
		t.Fatalf("final ids = %v, want t0..t6 exactly once", ids)
	}
	for i, id := range ids {
		if id != fmt.Sprintf("t%d", i) {
			t.Errorf("ids[%d] = %s", i, id)
		}
	}

	if st := led.Status("madrid", "trips_23_01.csv"); !st.Done {
		t.Errorf("status = %+v, want done", st)
	}
	if _, ok, _ := p.ProcessNext(context.Background()); ok {
		t.Error("finished file was selected again")
	}
}

func TestDone_WhenLastRowSkipped(t *testing.T) {
	dir := t.TempDir()
	writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
		{id: "t0", unlock: nearNode1, lock: nearNode4},
		{id: "t1", unlock: farFromAll, lock: nearNode1}, // skipped, and last
	})

	sink := &memSink{}
	led := openLedger(t, dir)
	p := newPipeline(t, testGraph(t), sink, led, listFiles(t, dir), Config{
		NetworkID: 1, City: "madrid", Strategy: "shortest",
	})

	fs, _, err := p.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if fs.Processed != 1 || fs.SkippedDistance != 1 {
		t.Errorf("summary = %+v", fs)
	}
	if st := led.Status("madrid", "trips_23_01.csv"); !st.Done {
		t.Errorf("status = %+v, want done even though the last row was skipped", st)
	}
}

func TestMaxDistance_BoundaryIsInclusive(t *testing.T) {
	// Unlock sits a known distance from node 2; lock is exactly node 3.
	unlock := [2]float64{-3.0, 40.0011}
	cutoff := geo.Haversine(40.0011, -3.0, 40.0010, -3.0)

	run := func(maxDistance float64) *FileSummary {
		dir := t.TempDir()
		writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
			{id: "t0", unlock: unlock, lock: [2]float64{-3.0, 40.0020}},
		})
		led := openLedger(t, dir)
		p := newPipeline(t, testGraph(t), &memSink{}, led, listFiles(t, dir), Config{
			NetworkID: 1, City: "madrid", Strategy: "shortest",
			MaxDistance: maxDistance,
		})
		fs, _, err := p.ProcessNext(context.Background())
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		return fs
	}

	if fs := run(cutoff); fs.Processed != 1 || fs.SkippedDistance != 0 {
		t.Errorf("at the threshold: %+v, want accepted", fs)
	}
	if fs := run(cutoff - 0.01); fs.Processed != 0 || fs.SkippedDistance != 1 {
		t.Errorf("just under the threshold: %+v, want skipped", fs)
	}
}

func TestRun_Deterministic(t *testing.T) {
	rows := []tripRow{
		{id: "a", unlock: nearNode1, lock: nearNode4},
		{id: "b", unlock: farFromAll, lock: nearNode1},
		{id: "c", unlock: nearNode4, lock: nearNode1},
		{id: "d", unlock: nearNode1, lock: atIsolated},
		{id: "e", unlock: nearNode1, lock: nearNode4},
	}

	run := func() []string {
		dir := t.TempDir()
		writeTripFile(t, dir, "trips_23_01.csv", rows)
		sink := &memSink{}
		led := openLedger(t, dir)
		p := newPipeline(t, testGraph(t), sink, led, listFiles(t, dir), Config{
			NetworkID: 1, City: "madrid", Strategy: "shortest",
		})
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
		return sink.tripIDs()
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("runs differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("runs diverge at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestProcessNext_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
		{id: "t0", unlock: nearNode1, lock: nearNode4},
	})

	led := openLedger(t, dir)
	p := newPipeline(t, testGraph(t), &memSink{}, led, listFiles(t, dir), Config{
		NetworkID: 1, City: "madrid", Strategy: "shortest",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := p.ProcessNext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// End-to-end against a real SQLite sink: routes land in the table and a
// second run finds nothing left to do.
func TestRun_WithSQLiteSink(t *testing.T) {
	dir := t.TempDir()
	writeTripFile(t, dir, "trips_23_01.csv", []tripRow{
		{id: "t0", unlock: nearNode1, lock: nearNode4},
		{id: "t1", unlock: nearNode4, lock: nearNode1},
		{id: "t2", unlock: farFromAll, lock: nearNode1},
	})

	db, err := storage.Open(filepath.Join(dir, "test.db"), discardLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	nw, err := db.GetOrCreateNetwork(ctx, "madrid")
	if err != nil {
		t.Fatalf("network: %v", err)
	}

	cfg := Config{NetworkID: nw.ID, City: "madrid", Strategy: "shortest"}
	led := openLedger(t, dir)
	files := listFiles(t, dir)

	p := newPipeline(t, testGraph(t), db, led, files, cfg)
	sum, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 2 || sum.Saved != 2 || sum.SkippedDistance != 1 {
		t.Errorf("summary = %+v", sum)
	}

	n, err := db.CountRoutes(ctx, nw.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("stored routes = %d, want 2", n)
	}

	p = newPipeline(t, testGraph(t), db, led, files, cfg)
	sum, err = p.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Files != 0 {
		t.Errorf("second run processed %d files, want 0", sum.Files)
	}
}
