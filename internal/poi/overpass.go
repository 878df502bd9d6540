package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultOverpassEndpoint is the public OpenStreetMap Overpass interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// osmFilters maps each category to the OpenStreetMap tag selectors queried for it.
var osmFilters = map[Category][]string{
	PublicTransport: {`["public_transport"="station"]`, `["highway"="bus_stop"]`, `["railway"="tram_stop"]`},
	BicycleParking:  {`["amenity"="bicycle_parking"]`},
	FoodMarket:      {`["amenity"="marketplace"]`, `["shop"="supermarket"]`, `["shop"="greengrocer"]`},
	Viewpoint:       {`["tourism"="viewpoint"]`},
	Park:            {`["leisure"="park"]`},
	Trailhead:       {`["highway"="trailhead"]`},
}

// Overpass queries an Overpass API endpoint.
type Overpass struct {
	endpoint  string
	client    *http.Client
	userAgent string
	log       logging.Logger
}

// OverpassOption customises an Overpass client.
type OverpassOption func(*Overpass)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OverpassOption {
	return func(o *Overpass) {
		if c != nil {
			o.client = c
		}
	}
}

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(l logging.Logger) OverpassOption {
	return func(o *Overpass) {
		if l != nil {
			o.log = l
		}
	}
}

// NewOverpass builds a client for endpoint, defaulting to the public server.
func NewOverpass(endpoint string, opts ...OverpassOption) *Overpass {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	o := &Overpass{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: "riderunner/1.0",
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Query renders the Overpass QL request for category inside region.
func Query(region geo.Bounds, category Category) (string, error) {
	filters, ok := osmFilters[category]
	if !ok {
		return "", fmt.Errorf("poi: no OpenStreetMap filter for category %q", category)
	}
	bbox := fmt.Sprintf("(%f,%f,%f,%f)", region.MinLat, region.MinLon, region.MaxLat, region.MaxLon)
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];(")
	for _, f := range filters {
		fmt.Fprintf(&b, "node%s%s;way%s%s;", f, bbox, f, bbox)
	}
	b.WriteString(");out center;")
	return b.String(), nil
}

type overpassResponse struct {
	Elements []struct {
		Type   string            `json:"type"`
		Lat    float64           `json:"lat"`
		Lon    float64           `json:"lon"`
		Center *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Search implements Searcher.
func (o *Overpass) Search(ctx context.Context, region geo.Bounds, category Category) ([]Place, error) {
	ctx, span := otel.Tracer("github.com/signalsfoundry/riderunner/internal/poi").Start(ctx, "poi.overpass.search")
	defer span.End()
	span.SetAttributes(attribute.String("poi.category", string(category)))

	places, err := o.search(ctx, region, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Debug(ctx, "poi search failed",
			logging.String("category", string(category)),
			logging.Err(err),
		)
		return nil, err
	}
	span.SetAttributes(attribute.Int("poi.results", len(places)))
	return places, nil
}

func (o *Overpass) search(ctx context.Context, region geo.Bounds, category Category) ([]Place, error) {
	q, err := Query(region, category)
	if err != nil {
		return nil, err
	}
	form := url.Values{"data": {q}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("poi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poi: overpass request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("poi: overpass returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("poi: decode overpass response: %w", err)
	}

	places := make([]Place, 0, len(decoded.Elements))
	for _, el := range decoded.Elements {
		name := el.Tags["name"]
		if name == "" {
			continue
		}
		c := geo.Coordinate{Lat: el.Lat, Lon: el.Lon}
		if el.Center != nil {
			c = geo.Coordinate{Lat: el.Center.Lat, Lon: el.Center.Lon}
		}
		if !region.Contains(c) {
			continue
		}
		places = append(places, Place{Name: name, Category: category, Coordinate: c})
	}
	return places, nil
}
