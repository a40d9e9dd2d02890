package sink

import (
	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/vname"
)

// Fact is one recorded property.
type Fact struct {
	VName vname.VName
	Name  string
	Value string
}

// Edge is one recorded edge. Ordinal is NoOrdinal when absent.
type Edge struct {
	Source  vname.VName
	Kind    schema.EdgeKind
	Target  vname.VName
	Ordinal int
}

// FileContent is one recorded file body.
type FileContent struct {
	VName   vname.VName
	Content string
}

// Memory records everything it receives, in order. Used by tests and the
// dump tooling.
type Memory struct {
	Facts []Fact
	Edges []Edge
	Files []FileContent
	Code  map[vname.VName]*schema.MarkedSource
}

// NewMemory returns an empty recording sink.
func NewMemory() *Memory {
	return &Memory{Code: make(map[vname.VName]*schema.MarkedSource)}
}

func (m *Memory) AddProperty(v vname.VName, name string, value []byte) {
	m.Facts = append(m.Facts, Fact{VName: v, Name: name, Value: string(value)})
}

func (m *Memory) AddEdge(source vname.VName, kind schema.EdgeKind, target vname.VName, ordinal int) {
	m.Edges = append(m.Edges, Edge{Source: source, Kind: kind, Target: target, Ordinal: ordinal})
}

func (m *Memory) AddFileContent(v vname.VName, content []byte) {
	m.Files = append(m.Files, FileContent{VName: v, Content: string(content)})
}

func (m *Memory) AddMarkedSource(v vname.VName, ms *schema.MarkedSource) {
	m.Code[v] = ms
}

// FactsFor returns the facts recorded against v.
func (m *Memory) FactsFor(v vname.VName) []Fact {
	var out []Fact
	for _, f := range m.Facts {
		if f.VName.Equal(v) {
			out = append(out, f)
		}
	}
	return out
}

// FactValue returns the value of the named fact on v, if recorded.
func (m *Memory) FactValue(v vname.VName, name string) (string, bool) {
	for _, f := range m.Facts {
		if f.Name == name && f.VName.Equal(v) {
			return f.Value, true
		}
	}
	return "", false
}

// EdgesWithKind returns all recorded edges of the given kind.
func (m *Memory) EdgesWithKind(kind schema.EdgeKind) []Edge {
	var out []Edge
	for _, e := range m.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// NodesWithKind returns the VNames that carry the given node kind fact.
func (m *Memory) NodesWithKind(kind string) []vname.VName {
	var out []vname.VName
	for _, f := range m.Facts {
		if f.Name == schema.FactNodeKind && f.Value == kind {
			out = append(out, f.VName)
		}
	}
	return out
}
