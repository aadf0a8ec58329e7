// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package trace records named, explicitly started and stopped spans.
package trace

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Record describes a stopped span.
type Record struct {
	ID       uint64            `json:"id"`
	ParentID uint64            `json:"parentId,omitempty"`
	Name     string            `json:"name"`
	Start    time.Time         `json:"start"`
	Duration time.Duration     `json:"duration"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Reporter receives records of stopped spans. Report must be safe for
// concurrent use.
type Reporter interface {
	Report(Record)
}

// Discard is a Reporter that drops all records.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Record) {}

// Tracer starts spans.
type Tracer struct {
	r      Reporter
	now    func() time.Time // used in tests
	nextID atomic.Uint64
}

// New returns a Tracer reporting to r. If r is nil, Discard is used.
func New(r Reporter) *Tracer {
	if r == nil {
		r = Discard
	}
	return &Tracer{r: r, now: time.Now}
}

// Start opens a root span.
func (t *Tracer) Start(name string) *Span {
	return t.start(name, 0)
}

func (t *Tracer) start(name string, parent uint64) *Span {
	return &Span{
		t:      t,
		id:     t.nextID.Add(1),
		parent: parent,
		name:   name,
		start:  t.now(),
		attrs:  make(map[string]string),
	}
}

// Span is an observability interval. Only the first call to Stop ends it.
type Span struct {
	t      *Tracer
	id     uint64
	parent uint64
	name   string
	start  time.Time

	mu    sync.Mutex
	attrs map[string]string
	stops int
}

// Name returns the span name.
func (s *Span) Name() string { return s.name }

// Child opens a span nested in s.
func (s *Span) Child(name string) *Span {
	return s.t.start(name, s.id)
}

// SetAttribute attaches a key/value pair to s. Attributes set after Stop are
// ignored.
func (s *Span) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stops > 0 {
		return
	}
	s.attrs[key] = value
}

// Stop ends s and reports it.
func (s *Span) Stop() {
	s.mu.Lock()
	s.stops++
	if s.stops > 1 {
		s.mu.Unlock()
		return
	}
	rec := Record{
		ID:       s.id,
		ParentID: s.parent,
		Name:     s.name,
		Start:    s.start,
		Duration: s.t.now().Sub(s.start),
		Attrs:    maps.Clone(s.attrs),
	}
	s.mu.Unlock()
	s.t.r.Report(rec)
}

// Stops returns how many times Stop was called.
func (s *Span) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Run calls f within a child span of s named name and stops the child when f
// returns.
func (s *Span) Run(name string, f func(*Span) error) error {
	c := s.Child(name)
	defer c.Stop()
	return f(c)
}

// JSONReporter writes each record as a line of JSON.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONReporter returns a JSONReporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

// Report implements Reporter.
func (r *JSONReporter) Report(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.err = r.enc.Encode(rec)
}

// Err returns the first write error, if any.
func (r *JSONReporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
