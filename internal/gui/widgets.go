package gui

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// StringVar is reactive label text. Set and Trace must be called on the loop.
type StringVar struct {
	value    string
	watchers []func(string)
}

func NewStringVar(initial string) *StringVar {
	return &StringVar{value: initial}
}

func (v *StringVar) Get() string { return v.value }

func (v *StringVar) Set(s string) {
	v.value = s
	for _, w := range v.watchers {
		w(s)
	}
}

// Trace registers fn to be called with every new value.
func (v *StringVar) Trace(fn func(string)) {
	v.watchers = append(v.watchers, fn)
}

type Label struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Labels is the status panel: labels in the order they were packed.
type Labels struct {
	names []string
	vars  map[string]*StringVar
}

func NewLabels() *Labels {
	return &Labels{vars: make(map[string]*StringVar)}
}

// Pack adds a label bound to v. Packing an existing name rebinds it.
func (p *Labels) Pack(name string, v *StringVar) {
	if _, ok := p.vars[name]; !ok {
		p.names = append(p.names, name)
	}
	p.vars[name] = v
}

func (p *Labels) Snapshot() []Label {
	out := make([]Label, 0, len(p.names))
	for _, n := range p.names {
		out = append(out, Label{Name: n, Text: p.vars[n].Get()})
	}
	return out
}

// Scale is a bounded numeric slider. Value is safe to read from any goroutine.
type Scale struct {
	From, To float64
	bits     atomic.Uint64
}

func NewScale(from, to, initial float64) *Scale {
	s := &Scale{From: from, To: to}
	s.Set(initial)
	return s
}

// Set clamps v into [From, To] and returns the stored value.
func (s *Scale) Set(v float64) float64 {
	if math.IsNaN(v) {
		v = s.From
	}
	v = math.Max(s.From, math.Min(s.To, v))
	s.bits.Store(math.Float64bits(v))
	return v
}

func (s *Scale) Value() float64 { return math.Float64frombits(s.bits.Load()) }

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Dialog records info boxes shown to the user, keeping the most recent ones.
type Dialog struct {
	log   logrus.FieldLogger
	limit int

	mu      sync.Mutex
	history []Message
	shown   int
}

func NewDialog(log logrus.FieldLogger, limit int) *Dialog {
	if limit <= 0 {
		limit = 1
	}
	return &Dialog{log: log.WithField("component", "dialog"), limit: limit}
}

func (d *Dialog) ShowInfo(title, body string) {
	d.mu.Lock()
	d.history = append(d.history, Message{Title: title, Body: body})
	d.shown++
	if len(d.history) > d.limit {
		d.history = d.history[len(d.history)-d.limit:]
	}
	d.mu.Unlock()
	d.log.WithField("title", title).Info(body)
}

// Last returns the most recently shown message.
func (d *Dialog) Last() (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return Message{}, false
	}
	return d.history[len(d.history)-1], true
}

// Shown counts every message ever shown, including ones trimmed from History.
func (d *Dialog) Shown() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

func (d *Dialog) History() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.history))
	copy(out, d.history)
	return out
}
