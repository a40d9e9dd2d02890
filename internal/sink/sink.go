// Package sink is the boundary the observer emits through. The observer
// guarantees it never calls a Sink concurrently and never re-sends a file's
// content; everything else, including the storage format, is the
// implementation's business.
package sink

import (
	"sync"

	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/vname"
)

// NoOrdinal marks an edge without an ordinal.
const NoOrdinal = -1

// Sink receives emitted facts.
type Sink interface {
	AddProperty(v vname.VName, name string, value []byte)
	AddEdge(source vname.VName, kind schema.EdgeKind, target vname.VName, ordinal int)
	AddFileContent(v vname.VName, content []byte)
	AddMarkedSource(v vname.VName, ms *schema.MarkedSource)
}

// Locked serializes access to a shared underlying sink so several observers
// can write to one store. Each observer on its own never needs this.
type Locked struct {
	mu sync.Mutex
	s  Sink
}

// NewLocked wraps s.
func NewLocked(s Sink) *Locked {
	return &Locked{s: s}
}

func (l *Locked) AddProperty(v vname.VName, name string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.AddProperty(v, name, value)
}

func (l *Locked) AddEdge(source vname.VName, kind schema.EdgeKind, target vname.VName, ordinal int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.AddEdge(source, kind, target, ordinal)
}

func (l *Locked) AddFileContent(v vname.VName, content []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.AddFileContent(v, content)
}

func (l *Locked) AddMarkedSource(v vname.VName, ms *schema.MarkedSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.AddMarkedSource(v, ms)
}
