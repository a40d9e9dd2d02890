package observer

import (
	"strconv"
	"strings"

	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/sink"
	"github.com/DeusData/semgraph/internal/vname"
)

// Completeness states how much of a declarable entity this compilation saw.
type Completeness int

const (
	Incomplete Completeness = iota
	Complete
	Definition
)

func (c Completeness) String() string {
	switch c {
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	default:
		return "definition"
	}
}

// FunctionSubkind refines function nodes.
type FunctionSubkind int

const (
	FunctionNone FunctionSubkind = iota
	FunctionConstructor
	FunctionDestructor
	FunctionInitializer
)

func (f FunctionSubkind) spelling() string {
	switch f {
	case FunctionConstructor:
		return "constructor"
	case FunctionDestructor:
		return "destructor"
	case FunctionInitializer:
		return "initializer"
	default:
		return ""
	}
}

// VariableSubkind refines variable nodes.
type VariableSubkind int

const (
	VariableNone VariableSubkind = iota
	VariableField
	VariableLocal
	VariableLocalParameter
)

func (v VariableSubkind) spelling() string {
	switch v {
	case VariableField:
		return "field"
	case VariableLocal:
		return "local"
	case VariableLocalParameter:
		return "local/parameter"
	default:
		return ""
	}
}

// RecordKind distinguishes the flavors of record nodes.
type RecordKind int

const (
	RecordStruct RecordKind = iota
	RecordClass
	RecordUnion
	RecordCategory
)

func (r RecordKind) spelling() string {
	switch r {
	case RecordClass:
		return "class"
	case RecordUnion:
		return "union"
	case RecordCategory:
		return "category"
	default:
		return "struct"
	}
}

// EnumKind distinguishes scoped from unscoped enumerations.
type EnumKind int

const (
	EnumUnscoped EnumKind = iota
	EnumScoped
)

// Confidence qualifies speculative edges.
type Confidence int

const (
	Certain Confidence = iota
	Speculative
)

// Access is the visibility of an inheritance edge.
type Access int

const (
	AccessDefault Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) spelling() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return ""
	}
}

func (o *Observer) nodeKind(id NodeID, kind string) {
	o.sink.AddProperty(o.VNameFromNodeID(id), schema.FactNodeKind, []byte(kind))
}

func (o *Observer) fact(id NodeID, name, value string) {
	o.sink.AddProperty(o.VNameFromNodeID(id), name, []byte(value))
}

func (o *Observer) edge(source, target NodeID, kind schema.EdgeKind) {
	o.sink.AddEdge(o.VNameFromNodeID(source), kind, o.VNameFromNodeID(target), sink.NoOrdinal)
}

// RecordFunctionNode emits a function node with its completeness and
// optional subkind.
func (o *Observer) RecordFunctionNode(id NodeID, c Completeness, sub FunctionSubkind) {
	o.nodeKind(id, schema.NodeFunction)
	o.fact(id, schema.FactComplete, c.String())
	if s := sub.spelling(); s != "" {
		o.fact(id, schema.FactSubkind, s)
	}
}

// RecordVariableNode emits a variable node.
func (o *Observer) RecordVariableNode(id NodeID, c Completeness, sub VariableSubkind) {
	o.nodeKind(id, schema.NodeVariable)
	o.fact(id, schema.FactComplete, c.String())
	if s := sub.spelling(); s != "" {
		o.fact(id, schema.FactSubkind, s)
	}
}

// RecordRecordNode emits a record (struct, class, union) node.
func (o *Observer) RecordRecordNode(id NodeID, kind RecordKind, c Completeness) {
	o.nodeKind(id, schema.NodeRecord)
	o.fact(id, schema.FactSubkind, kind.spelling())
	o.fact(id, schema.FactComplete, c.String())
}

// RecordEnumNode emits a sum node for an enumeration.
func (o *Observer) RecordEnumNode(id NodeID, c Completeness, kind EnumKind) {
	o.nodeKind(id, schema.NodeSum)
	if kind == EnumScoped {
		o.fact(id, schema.FactSubkind, "enumClass")
	} else {
		o.fact(id, schema.FactSubkind, "enum")
	}
	o.fact(id, schema.FactComplete, c.String())
}

// RecordIntegerConstantNode emits a constant node carrying its decimal value.
func (o *Observer) RecordIntegerConstantNode(id NodeID, value int64) {
	o.nodeKind(id, schema.NodeConstant)
	o.fact(id, schema.FactText, strconv.FormatInt(value, 10))
}

// RecordNamespaceNode emits a package node for a namespace, at most once per
// distinct claimed identity per compilation.
func (o *Observer) RecordNamespaceNode(id NodeID) {
	claimed := o.ClaimedString(id)
	if o.writtenNamespaces[claimed] {
		return
	}
	o.writtenNamespaces[claimed] = true
	o.nodeKind(id, schema.NodePackage)
	o.fact(id, schema.FactSubkind, "namespace")
}

// RecordInterfaceNode emits an interface node.
func (o *Observer) RecordInterfaceNode(id NodeID) {
	o.nodeKind(id, schema.NodeInterface)
}

// RecordUserDefinedNode emits a node whose kind the front end supplies
// directly, for constructs the core vocabulary does not name.
func (o *Observer) RecordUserDefinedNode(id NodeID, kind string, c Completeness) {
	o.nodeKind(id, kind)
	o.fact(id, schema.FactComplete, c.String())
}

// RecordMacroNode emits a macro node.
func (o *Observer) RecordMacroNode(id NodeID) {
	o.nodeKind(id, schema.NodeMacro)
}

// RecordLookupNode emits a lookup node for a dependent name, keyed by the
// text being looked up.
func (o *Observer) RecordLookupNode(id NodeID, text string) {
	o.nodeKind(id, schema.NodeLookup)
	o.fact(id, schema.FactText, text)
	o.RecordMarkedSource(id, &schema.MarkedSource{
		Kind: schema.MSBox,
		Children: []*schema.MarkedSource{
			{Kind: schema.MSContext, PostChildText: "::", LookupIndex: 1},
			{Kind: schema.MSIdentifier, PreText: text},
		},
	})
}

// RecordAbsNode emits an abstraction node for a parameterized entity.
func (o *Observer) RecordAbsNode(id NodeID) {
	o.nodeKind(id, schema.NodeAbs)
}

// RecordAbsVarNode emits an abstraction variable node for a parameter of an
// abstraction.
func (o *Observer) RecordAbsVarNode(id NodeID) {
	o.nodeKind(id, schema.NodeAbsVar)
}

// RecordMarkedSource attaches a rendering template to a node.
func (o *Observer) RecordMarkedSource(id NodeID, ms *schema.MarkedSource) {
	if ms == nil {
		return
	}
	o.sink.AddMarkedSource(o.VNameFromNodeID(id), ms)
}

// RecordParamEdge connects a parameterized node to its ordinal-th parameter.
func (o *Observer) RecordParamEdge(param, parent NodeID, ordinal int) {
	o.sink.AddEdge(o.VNameFromNodeID(parent), schema.EdgeParam, o.VNameFromNodeID(param), ordinal)
}

// RecordChildOfEdge connects a node to its enclosing scope.
func (o *Observer) RecordChildOfEdge(child, parent NodeID) {
	o.edge(child, parent, schema.EdgeChildOf)
}

// RecordTypeEdge connects a node to its type.
func (o *Observer) RecordTypeEdge(node, typeID NodeID) {
	o.edge(node, typeID, schema.EdgeTyped)
}

// RecordExtendsEdge connects a derived entity to a base it inherits from.
func (o *Observer) RecordExtendsEdge(derived, base NodeID, virtual bool, access Access) {
	kind := string(schema.EdgeExtends)
	if virtual {
		kind += "/virtual"
	}
	if s := access.spelling(); s != "" {
		kind += "/" + s
	}
	o.edge(derived, base, schema.EdgeKind(kind))
}

// RecordOverridesEdge connects an override to the method it directly
// overrides.
func (o *Observer) RecordOverridesEdge(overrider, base NodeID) {
	o.edge(overrider, base, schema.EdgeOverrides)
}

// RecordOverridesRootEdge connects an override to the root of its override
// chain.
func (o *Observer) RecordOverridesRootEdge(overrider, root NodeID) {
	o.edge(overrider, root, schema.EdgeOverridesRoot)
}

// RecordSpecEdge connects a specialization to the abstraction it
// specializes.
func (o *Observer) RecordSpecEdge(spec, abs NodeID, conf Confidence) {
	kind := schema.EdgeSpecializes
	if conf == Speculative {
		kind = schema.EdgeSpecializesSpeculative
	}
	o.edge(spec, abs, kind)
}

// RecordInstEdge connects an instantiation to the abstraction it
// instantiates.
func (o *Observer) RecordInstEdge(inst, abs NodeID, conf Confidence) {
	kind := schema.EdgeInstantiates
	if conf == Speculative {
		kind = schema.EdgeInstantiatesSpeculative
	}
	o.edge(inst, abs, kind)
}

// RecordStaticVariable tags a node as having internal linkage.
func (o *Observer) RecordStaticVariable(id NodeID) {
	o.fact(id, "/kythe/tag/static", "")
}

// RecordDeprecated marks a node deprecated, with an optional advice string.
func (o *Observer) RecordDeprecated(id NodeID, advice string) {
	o.fact(id, "/kythe/tag/deprecated", advice)
}

// RecordDocumentationText attaches raw documentation text to a node. The doc
// node's identity hashes the text so identical comments collapse; bracketed
// link markers index into links by order of appearance.
func (o *Observer) RecordDocumentationText(documented NodeID, text string, links []NodeID) {
	var sig strings.Builder
	sig.WriteString("doc:")
	sig.WriteString(text)
	for _, l := range links {
		sig.WriteByte('[')
		sig.WriteString(o.ClaimedString(l))
		sig.WriteByte(']')
	}
	doc := UncompressedNodeID(documented.Token, vname.ForceCompress(sig.String()))
	claimed := o.ClaimedString(doc)
	if o.writtenDocs[claimed] {
		return
	}
	o.writtenDocs[claimed] = true
	o.nodeKind(doc, schema.NodeDoc)
	o.fact(doc, schema.FactText, text)
	for i, l := range links {
		o.RecordParamEdge(l, doc, i)
	}
	o.edge(doc, documented, schema.EdgeDocuments)
}
