package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"fleet-tracker/internal/gui"
	"fleet-tracker/internal/mapview"
	"fleet-tracker/internal/publisher"
	"fleet-tracker/internal/route"
)

var (
	ErrDuplicateBus = errors.New("bus already registered")
	ErrInvalidBus   = errors.New("invalid bus")
	ErrUnknownBus   = errors.New("unknown bus")
	ErrNoMarker     = errors.New("bus has no marker yet")
)

const (
	routeLineColor = "black"
	routeLineWidth = 2
	stopColor      = "yellow"
)

// MapView is the map widget as the controller uses it. Calls happen on the
// render loop only.
type MapView interface {
	SetLine(from, to route.Point, color string, width int)
	SetMarker(at route.Point, text, color string) mapview.Handle
	DeleteMarker(h mapview.Handle)
	BindClick(h mapview.Handle, fn func()) error
	Click(h mapview.Handle) error
}

// Poster hands work to the render loop without blocking.
type Poster interface {
	Post(fn func())
}

type SpeedControl interface {
	Value() float64
}

type LabelPanel interface {
	Pack(name string, v *gui.StringVar)
}

type InfoDialog interface {
	ShowInfo(title, body string)
}

type PositionPublisher interface {
	PublishPosition(msg publisher.PositionMessage) error
}

// Metrics receives fleet observations. Nil disables them.
type Metrics interface {
	BusStarted()
	BusFinished()
	SubStep(conflict bool)
}

type Options struct {
	Substeps       int
	DistanceScale  float64
	Pacing         Pacing
	DetailsBaseURL string
	Sleep          Sleeper
}

func DefaultOptions() Options {
	return Options{
		Substeps:       30,
		DistanceScale:  0.1,
		Pacing:         DefaultPacing(),
		DetailsBaseURL: "https://fleet-tracker.example.com/",
		Sleep:          SleepContext,
	}
}

// Deps are the collaborators a Controller drives. Publisher and Metrics are optional.
type Deps struct {
	Log       logrus.FieldLogger
	Loop      Poster
	Map       MapView
	Labels    LabelPanel
	Dialog    InfoDialog
	Speed     SpeedControl
	Publisher PositionPublisher
	Metrics   Metrics
}

// Controller registers buses, draws their static route geometry and runs one
// animator goroutine per bus.
type Controller struct {
	log     logrus.FieldLogger
	loop    Poster
	view    MapView
	labels  LabelPanel
	dialog  InfoDialog
	speed   SpeedControl
	pub     PositionPublisher
	metrics Metrics
	opts    Options

	registry *Registry
	wg       sync.WaitGroup
}

func NewController(d Deps, opts Options) *Controller {
	def := DefaultOptions()
	if opts.Substeps <= 0 {
		opts.Substeps = def.Substeps
	}
	if opts.DistanceScale <= 0 {
		opts.DistanceScale = def.DistanceScale
	}
	if opts.Sleep == nil {
		opts.Sleep = def.Sleep
	}
	if opts.Pacing == (Pacing{}) {
		opts.Pacing = def.Pacing
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &Controller{
		log:      d.Log.WithField("component", "fleet"),
		loop:     d.Loop,
		view:     d.Map,
		labels:   d.Labels,
		dialog:   d.Dialog,
		speed:    d.Speed,
		pub:      d.Publisher,
		metrics:  d.Metrics,
		opts:     opts,
		registry: NewRegistry(),
	}
}

// AddBus validates the route, queues its static geometry and status label on
// the render loop and starts the bus's animator. It does not block.
func (c *Controller) AddBus(ctx context.Context, id string, waypoints []route.Point, stops []string, color string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidBus)
	}
	r, err := route.New(waypoints, stops)
	if err != nil {
		return fmt.Errorf("bus %q: %w", id, err)
	}
	b := newBus(id, color, r)
	b.label = gui.NewStringVar(waitingText(id))
	b.onClick = func() {
		st := b.Status()
		c.dialog.ShowInfo(DetailsTitle(st), DetailsBody(st, c.opts.DetailsBaseURL))
	}
	if err := c.registry.Add(b); err != nil {
		return err
	}

	c.loop.Post(func() {
		for i := 0; i < r.Segments(); i++ {
			c.view.SetLine(r.Waypoint(i), r.Waypoint(i+1), routeLineColor, routeLineWidth)
		}
		for i := 0; i < r.Len(); i++ {
			c.view.SetMarker(r.Waypoint(i), r.Stop(i), stopColor)
		}
		c.labels.Pack(id, b.label)
	})

	log := c.log.WithFields(logrus.Fields{"bus": id, "stops": r.Len(), "color": color})
	log.Info("starting bus")
	if c.metrics != nil {
		c.metrics.BusStarted()
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		a := &Animator{bus: b, ctrl: c, log: log}
		if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("bus animation stopped")
		}
		if c.metrics != nil {
			c.metrics.BusFinished()
		}
	}()
	return nil
}

// drawPosition replaces the bus marker and refreshes its label. Render loop only.
func (c *Controller) drawPosition(b *Bus, st Status) {
	if b.marker != "" {
		c.view.DeleteMarker(b.marker)
	}
	b.marker = c.view.SetMarker(st.Position, b.ID, b.Color)
	if err := c.view.BindClick(b.marker, b.onClick); err != nil {
		c.log.WithError(err).WithField("bus", b.ID).Warn("bind click failed")
	}
	b.label.Set(movingText(st))
}

// ClickBus runs the click handler of the bus's current marker. Render loop only.
func (c *Controller) ClickBus(id string) error {
	b, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("bus %q: %w", id, ErrUnknownBus)
	}
	if b.marker == "" {
		return fmt.Errorf("bus %q: %w", id, ErrNoMarker)
	}
	return c.view.Click(b.marker)
}

// MarkerOf returns the bus's current marker handle. Render loop only.
func (c *Controller) MarkerOf(id string) (mapview.Handle, bool) {
	b, ok := c.registry.Get(id)
	if !ok || b.marker == "" {
		return "", false
	}
	return b.marker, true
}

func (c *Controller) Status(id string) (Status, bool) {
	b, ok := c.registry.Get(id)
	if !ok {
		return Status{}, false
	}
	return b.Status(), true
}

// Statuses returns a snapshot of every bus in registration order.
func (c *Controller) Statuses() []Status {
	buses := c.registry.All()
	out := make([]Status, 0, len(buses))
	for _, b := range buses {
		out = append(out, b.Status())
	}
	return out
}

type BusRoute struct {
	ID    string
	Color string
	Route route.Route
}

// Routes returns every bus's route in registration order.
func (c *Controller) Routes() []BusRoute {
	buses := c.registry.All()
	out := make([]BusRoute, 0, len(buses))
	for _, b := range buses {
		out = append(out, BusRoute{ID: b.ID, Color: b.Color, Route: b.Route})
	}
	return out
}

// Wait blocks until every animator has returned.
func (c *Controller) Wait() { c.wg.Wait() }
