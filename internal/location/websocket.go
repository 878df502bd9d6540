package location

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/model"
)

// WireSample is the JSON form of a fix sent by a device over the websocket.
type WireSample struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Speed     *float64   `json:"speed,omitempty"`
	Heading   float64    `json:"heading,omitempty"`
	Accuracy  float64    `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Sample converts the wire form. A missing speed is recorded as unknown.
func (w WireSample) Sample() model.Sample {
	s := model.Sample{
		Coordinate:         geo.Coordinate{Lat: w.Lat, Lon: w.Lon},
		Speed:              -1,
		Heading:            w.Heading,
		HorizontalAccuracy: w.Accuracy,
	}
	if w.Speed != nil {
		s.Speed = *w.Speed
	}
	if w.Timestamp != nil {
		s.Timestamp = *w.Timestamp
	}
	return s
}

// Ack answers every websocket message.
type Ack struct {
	Type     string `json:"type"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// WebsocketHandler streams device fixes into a Feed.
type WebsocketHandler struct {
	feed     *Feed
	log      logging.Logger
	upgrader websocket.Upgrader
}

// NewWebsocketHandler returns a handler that pushes every received fix into feed.
func NewWebsocketHandler(feed *Feed, log logging.Logger) *WebsocketHandler {
	if log == nil {
		log = logging.Noop()
	}
	return &WebsocketHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()
	h.log.Info(ctx, "location stream connected", logging.String("remote", r.RemoteAddr))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug(ctx, "location stream read ended", logging.Err(err))
			}
			return
		}

		ack := Ack{Type: "ack"}
		var msg WireSample
		if err := json.Unmarshal(payload, &msg); err != nil {
			ack.Type, ack.Error = "error", "malformed sample: "+err.Error()
		} else {
			accepted, err := h.feed.Push(msg.Sample())
			switch {
			case errors.Is(err, ErrClosed):
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			case err != nil:
				ack.Type, ack.Error = "error", err.Error()
			default:
				ack.Accepted = accepted
			}
		}

		if err := conn.WriteJSON(ack); err != nil {
			h.log.Debug(ctx, "location stream write failed", logging.Err(err))
			return
		}
	}
}
