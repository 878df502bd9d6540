package poi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/logging"
)

var region = geo.Bounds{MinLat: 37.80, MinLon: -122.44, MaxLat: 37.81, MaxLon: -122.42}

func TestCategoryWeights(t *testing.T) {
	cases := map[Category]float64{
		Viewpoint:       1.4,
		Trailhead:       1.3,
		BicycleParking:  1.2,
		FoodMarket:      1.0,
		Park:            0.9,
		PublicTransport: 0.9,
		Unknown:         0.9,
	}
	for c, want := range cases {
		if got := c.Weight(); got != want {
			t.Fatalf("%s weight = %v, want %v", c, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"Golden Gate Park":  Park,
		"Bay Trail":         Park,
		"Bike Parking Area": BicycleParking,
		"Alcatraz Lookout":  Viewpoint,
		"Farmers Market":    FoodMarket,
		"Van Ness Station":  PublicTransport,
		"Museum":            Unknown,
		"":                  Unknown,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Fatalf("Classify(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestStaticFiltersByCategoryAndRegion(t *testing.T) {
	s := Static{Places: []Place{
		{Name: "Great Meadow Point", Category: Viewpoint, Coordinate: geo.Coordinate{Lat: 37.804, Lon: -122.430}},
		{Name: "Far Away View", Category: Viewpoint, Coordinate: geo.Coordinate{Lat: 38.5, Lon: -122.430}},
		{Name: "Fort Mason Lookout", Coordinate: geo.Coordinate{Lat: 37.805, Lon: -122.431}},
		{Name: "Pier Market", Category: FoodMarket, Coordinate: geo.Coordinate{Lat: 37.803, Lon: -122.432}},
	}}
	got, err := s.Search(context.Background(), region, Viewpoint)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d viewpoints, want 2: %+v", len(got), got)
	}
	for _, p := range got {
		if p.Category != Viewpoint {
			t.Fatalf("place %q has category %s", p.Name, p.Category)
		}
	}
}

func TestQueryIncludesFiltersAndBoundingBox(t *testing.T) {
	q, err := Query(region, BicycleParking)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !strings.Contains(q, `["amenity"="bicycle_parking"]`) {
		t.Fatalf("query missing tag filter: %s", q)
	}
	if !strings.Contains(q, "(37.800000,-122.440000,37.810000,-122.420000)") {
		t.Fatalf("query missing bbox: %s", q)
	}
	if _, err := Query(region, Unknown); err == nil {
		t.Fatalf("expected error for unmapped category")
	}
}

func TestOverpassSearchParsesElements(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotQuery = form.Get("data")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"elements":[
			{"type":"node","lat":37.8041,"lon":-122.4309,"tags":{"name":"Great Meadow Point"}},
			{"type":"way","center":{"lat":37.8035,"lon":-122.4312},"tags":{"name":"Meadow Overlook"}},
			{"type":"node","lat":37.8030,"lon":-122.4300,"tags":{}},
			{"type":"node","lat":39.0,"lon":-122.4300,"tags":{"name":"Outside"}}
		]}`)
	}))
	defer srv.Close()

	client := NewOverpass(srv.URL, WithHTTPClient(srv.Client()))
	places, err := client.Search(context.Background(), region, Viewpoint)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(gotQuery, `["tourism"="viewpoint"]`) {
		t.Fatalf("unexpected query: %s", gotQuery)
	}
	if len(places) != 2 {
		t.Fatalf("got %d places, want 2: %+v", len(places), places)
	}
	if places[1].Name != "Meadow Overlook" || places[1].Coordinate.Lat != 37.8035 {
		t.Fatalf("way centre not used: %+v", places[1])
	}
	if places[0].Category != Viewpoint {
		t.Fatalf("category = %s, want viewpoint", places[0].Category)
	}
}

func TestOverpassSearchReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	log := logging.New(logging.Config{Level: "warn", Writer: &logs})
	_, err := NewOverpass(srv.URL, WithLogger(log)).Search(context.Background(), region, Park)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("Search error = %v, want 429 failure", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("failed search logged at warn; the caller reports it:\n%s", logs.String())
	}
}
