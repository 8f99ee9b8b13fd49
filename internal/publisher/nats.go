package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	conn        Conn
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	log         logrus.FieldLogger
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, log logrus.FieldLogger, m PublisherMetrics) (*NATSPublisher, error) {
	log = log.WithField("component", "nats")
	nc, err := nats.Connect(url,
		nats.Name("fleet-tracker"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
				return
			}
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := NewPublisher(nc, prefix, logSubjects, log, m)
	p.nc = nc
	return p, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string, logSubjects bool, log logrus.FieldLogger, m PublisherMetrics) *NATSPublisher {
	if prefix = strings.Trim(strings.TrimSpace(prefix), "."); prefix == "" {
		prefix = "fleet"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logSubjects: logSubjects, log: log, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	BusID     string    `json:"busId"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Bearing   float64   `json:"bearing"`
	Stop      string    `json:"stop"`
	Index     int       `json:"index"`
	TripKm    float64   `json:"tripKm"`
	TotalKm   float64   `json:"totalKm"`
	Completed bool      `json:"completed"`
}

// Subject is <prefix>.<bus>.
func (p *NATSPublisher) Subject(busID string) string {
	return fmt.Sprintf("%s.%s", p.prefix, subjectToken(busID))
}

func (p *NATSPublisher) PublishPosition(msg PositionMessage) error {
	subject := p.Subject(msg.BusID)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.log.WithField("subject", subject).Debug("nats publish")
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
