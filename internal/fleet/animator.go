package fleet

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-tracker/internal/publisher"
	"fleet-tracker/internal/route"
)

// Animator walks one bus over its route once, from the first waypoint to the
// last, and posts every intermediate position to the render loop.
type Animator struct {
	bus  *Bus
	ctrl *Controller
	log  logrus.FieldLogger
}

func (a *Animator) Run(ctx context.Context) error {
	c := a.ctrl
	b := a.bus
	r := b.Route
	n := c.opts.Substeps

	var bearing float64
	for i := 0; i < r.Segments(); i++ {
		from, to := r.Waypoint(i), r.Waypoint(i+1)
		bearing = route.Bearing(from, to)
		step := math.Hypot((to.Lat-from.Lat)/float64(n), (to.Lon-from.Lon)/float64(n)) * c.opts.DistanceScale
		for s := 0; s < n; s++ {
			pos := route.Lerp(from, to, float64(s)/float64(n))
			b.addDistance(step)

			conflict := c.registry.Conflicts(b)
			if c.metrics != nil {
				c.metrics.SubStep(conflict)
			}
			if err := c.opts.Sleep(ctx, c.opts.Pacing.Delay(c.speed.Value(), conflict)); err != nil {
				return err
			}
			a.update(pos, bearing, r.Stop(i))
		}
		b.depart(i+1, r.Stop(i))
		a.log.WithFields(logrus.Fields{"index": i + 1, "departed": r.Stop(i)}).Debug("segment complete")
	}

	last := r.Len() - 1
	b.moveTo(r.Waypoint(last), bearing, r.Stop(last))
	b.finish(r.Stop(last))
	st := b.Status()
	c.loop.Post(func() { c.drawPosition(b, st) })
	c.loop.Post(func() { b.label.Set(completedText(st)) })
	a.publish(st)
	a.log.WithFields(logrus.Fields{"trip_km": st.TripKm, "total_km": st.TotalKm}).Info("bus completed route")
	return nil
}

func (a *Animator) update(p route.Point, bearing float64, stop string) {
	b, c := a.bus, a.ctrl
	b.moveTo(p, bearing, stop)
	st := b.Status()
	c.loop.Post(func() { c.drawPosition(b, st) })
	a.publish(st)
}

func (a *Animator) publish(st Status) {
	pub := a.ctrl.pub
	if pub == nil {
		return
	}
	msg := publisher.PositionMessage{
		BusID:     st.ID,
		Timestamp: time.Now(),
		Lat:       st.Position.Lat,
		Lon:       st.Position.Lon,
		Bearing:   st.Bearing,
		Stop:      st.CurrentStop,
		Index:     st.Index,
		TripKm:    st.TripKm,
		TotalKm:   st.TotalKm,
		Completed: st.Completed,
	}
	if err := pub.PublishPosition(msg); err != nil {
		a.log.WithError(err).Warn("publish position failed")
	}
}
