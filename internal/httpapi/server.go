package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"fleet-tracker/internal/feed"
	"fleet-tracker/internal/fleet"
	"fleet-tracker/internal/gui"
	"fleet-tracker/internal/mapview"
)

// Fleet is the part of the controller the shell reads. ClickBus runs on the
// render loop.
type Fleet interface {
	Status(id string) (fleet.Status, bool)
	Statuses() []fleet.Status
	Routes() []fleet.BusRoute
	ClickBus(id string) error
}

// Renderer runs fn on the render loop and waits for it.
type Renderer interface {
	Call(ctx context.Context, fn func()) error
}

type Deps struct {
	Log    logrus.FieldLogger
	Loop   Renderer
	Fleet  Fleet
	Map    *mapview.Map
	Labels *gui.Labels
	Dialog *gui.Dialog
	Speed  *gui.Scale
	// OnSpeed is called with the stored value after every slider change.
	OnSpeed func(float64)
	Now     func() time.Time
}

// Server exposes the tracker window over HTTP: the map scene, the label panel,
// the speed slider and marker clicks.
type Server struct {
	log     logrus.FieldLogger
	loop    Renderer
	fleet   Fleet
	view    *mapview.Map
	labels  *gui.Labels
	dialog  *gui.Dialog
	speed   *gui.Scale
	onSpeed func(float64)
	now     func() time.Time
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	s := &Server{
		log:     d.Log.WithField("component", "httpapi"),
		loop:    d.Loop,
		fleet:   d.Fleet,
		view:    d.Map,
		labels:  d.Labels,
		dialog:  d.Dialog,
		speed:   d.Speed,
		onSpeed: d.OnSpeed,
		now:     d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.GET("/healthz", s.healthz)
	r.GET("/api/scene", s.scene)
	r.GET("/api/labels", s.labelPanel)
	r.GET("/api/speed", s.getSpeed)
	r.PUT("/api/speed", s.putSpeed)
	r.GET("/api/buses", s.buses)
	r.GET("/api/buses/:id", s.bus)
	r.POST("/api/buses/:id/click", s.clickBus)
	r.POST("/api/markers/:handle/click", s.clickMarker)
	r.GET("/api/routes", s.routes)
	r.GET("/gtfs-rt/vehicle-positions", s.vehiclePositions)
	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusNotFound, "resource not found")
	})
	r.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.log.WithField("panic", v).WithField("path", r.URL.Path).Error("handler panicked")
		s.errorResponse(w, r, http.StatusInternalServerError, "internal error")
	}
	return s.logRequests(r)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var sc mapview.Scene
	if !s.onLoop(w, r, func() { sc = s.view.Snapshot() }) {
		return
	}
	s.sendJSON(w, r, http.StatusOK, sc)
}

func (s *Server) labelPanel(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var labels []gui.Label
	if !s.onLoop(w, r, func() { labels = s.labels.Snapshot() }) {
		return
	}
	s.sendJSON(w, r, http.StatusOK, labels)
}

type speedBody struct {
	Speed *float64 `json:"speed"`
}

type speedResponse struct {
	Speed float64 `json:"speed"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func (s *Server) getSpeed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendJSON(w, r, http.StatusOK, speedResponse{Speed: s.speed.Value(), Min: s.speed.From, Max: s.speed.To})
}

func (s *Server) putSpeed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body speedBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Speed == nil {
		s.errorResponse(w, r, http.StatusBadRequest, "speed is required")
		return
	}
	v := s.speed.Set(*body.Speed)
	if s.onSpeed != nil {
		s.onSpeed(v)
	}
	s.log.WithField("speed", v).Info("speed changed")
	s.sendJSON(w, r, http.StatusOK, speedResponse{Speed: v, Min: s.speed.From, Max: s.speed.To})
}

func (s *Server) buses(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendJSON(w, r, http.StatusOK, s.fleet.Statuses())
}

func (s *Server) bus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st, ok := s.fleet.Status(ps.ByName("id"))
	if !ok {
		s.errorResponse(w, r, http.StatusNotFound, "unknown bus")
		return
	}
	s.sendJSON(w, r, http.StatusOK, st)
}

func (s *Server) clickBus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	s.click(w, r, func() error { return s.fleet.ClickBus(id) })
}

func (s *Server) clickMarker(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h := mapview.Handle(ps.ByName("handle"))
	s.click(w, r, func() error { return s.view.Click(h) })
}

// click runs fn on the render loop and answers with the dialog it opened.
// Markers without a handler open nothing and get 204.
func (s *Server) click(w http.ResponseWriter, r *http.Request, fn func() error) {
	var (
		err    error
		msg    gui.Message
		opened bool
	)
	ok := s.onLoop(w, r, func() {
		before := s.dialog.Shown()
		if err = fn(); err != nil {
			return
		}
		if s.dialog.Shown() > before {
			msg, opened = s.dialog.Last()
		}
	})
	if !ok {
		return
	}
	switch {
	case errors.Is(err, fleet.ErrUnknownBus), errors.Is(err, mapview.ErrUnknownMarker):
		s.errorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, fleet.ErrNoMarker):
		s.errorResponse(w, r, http.StatusConflict, err.Error())
	case err != nil:
		s.serverErrorResponse(w, r, err)
	case !opened:
		w.WriteHeader(http.StatusNoContent)
	default:
		s.sendJSON(w, r, http.StatusOK, msg)
	}
}

type routeResponse struct {
	ID       string   `json:"id"`
	Color    string   `json:"color"`
	Polyline string   `json:"polyline"`
	Stops    []string `json:"stops"`
	LengthM  float64  `json:"lengthMeters"`
}

func (s *Server) routes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	all := s.fleet.Routes()
	out := make([]routeResponse, 0, len(all))
	for _, br := range all {
		out = append(out, routeResponse{
			ID:       br.ID,
			Color:    br.Color,
			Polyline: br.Route.Polyline(),
			Stops:    br.Route.Stops(),
			LengthM:  br.Route.GreatCircleLength(),
		})
	}
	s.sendJSON(w, r, http.StatusOK, out)
}

func (s *Server) vehiclePositions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := feed.Marshal(s.fleet.Statuses(), s.now())
	if err != nil {
		s.serverErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(data)
}

// onLoop runs fn on the render loop, writing an error response when it could not.
func (s *Server) onLoop(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := s.loop.Call(r.Context(), fn); err != nil {
		if errors.Is(err, gui.ErrLoopStopped) {
			s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
		} else {
			s.serverErrorResponse(w, r, err)
		}
		return false
	}
	return true
}
