package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestNearestNode_PicksClosest(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: 1, Lat: 40.400, Lon: -3.700})
	g.AddNode(Node{ID: 2, Lat: 40.410, Lon: -3.690})
	g.AddNode(Node{ID: 3, Lat: 40.500, Lon: -3.600})

	id, dist, err := NearestNode(g, orb.Point{-3.6901, 40.4099})
	if err != nil {
		t.Fatalf("NearestNode: %v", err)
	}
	if id != 2 {
		t.Errorf("NearestNode id = %d, want 2", id)
	}
	if dist <= 0 || dist > 50 {
		t.Errorf("NearestNode distance = %.1f m, want a small positive value", dist)
	}
}

func TestNearestNode_ExactHit(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: 7, Lat: 40.400, Lon: -3.700})

	id, dist, err := NearestNode(g, orb.Point{-3.700, 40.400})
	if err != nil {
		t.Fatalf("NearestNode: %v", err)
	}
	if id != 7 || dist != 0 {
		t.Errorf("NearestNode = (%d, %v), want (7, 0)", id, dist)
	}
}

func TestNearestNode_TieBreaksToLowerID(t *testing.T) {
	// Two nodes mirrored around the query longitude are exactly equidistant.
	g := New()
	g.AddNode(Node{ID: 9, Lat: 40.400, Lon: -3.699})
	g.AddNode(Node{ID: 4, Lat: 40.400, Lon: -3.701})

	id, _, err := NearestNode(g, orb.Point{-3.700, 40.400})
	if err != nil {
		t.Fatalf("NearestNode: %v", err)
	}
	if id != 4 {
		t.Errorf("NearestNode id = %d, want lower id 4 on distance tie", id)
	}
}

func TestNearestNode_DistanceMatchesHaversine(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: 1, Lat: 40.401, Lon: -3.700})

	// 0.001 degrees of latitude is about 111.2 m.
	_, dist, err := NearestNode(g, orb.Point{-3.700, 40.400})
	if err != nil {
		t.Fatalf("NearestNode: %v", err)
	}
	if math.Abs(dist-111.2) > 0.5 {
		t.Errorf("NearestNode distance = %.2f m, want ~111.2 m", dist)
	}
}

func TestNearestNode_EmptyGraph(t *testing.T) {
	_, _, err := NearestNode(New(), orb.Point{-3.700, 40.400})
	if !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("NearestNode on empty graph = %v, want ErrEmptyGraph", err)
	}
}
