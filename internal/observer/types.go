package observer

import (
	"strconv"
	"strings"

	"github.com/DeusData/semgraph/internal/schema"
)

// typeAppSignature renders a type application's identity from the claimed
// strings of its constructor and operands, so structurally equal types merge
// across compilations.
func (o *Observer) typeAppSignature(head string, operands []NodeID) string {
	var sb strings.Builder
	sb.WriteString(head)
	sb.WriteByte('(')
	for i, op := range operands {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(o.ClaimedString(op))
	}
	sb.WriteByte(')')
	return sb.String()
}

// RecordTappNode emits a type application of tycon to params, returning its
// NodeID. Each distinct application is emitted at most once per compilation.
// firstDefaultParam, when non-negative, is the index of the first parameter
// filled from a default argument.
func (o *Observer) RecordTappNode(tycon NodeID, params []NodeID, firstDefaultParam int) NodeID {
	id := o.NewNodeID(TypeToken, o.typeAppSignature(o.ClaimedString(tycon), params))
	claimed := o.ClaimedString(id)
	if o.writtenTypes[claimed] {
		return id
	}
	o.writtenTypes[claimed] = true
	o.nodeKind(id, schema.NodeTApp)
	if firstDefaultParam >= 0 {
		o.fact(id, schema.FactParamDefault, strconv.Itoa(firstDefaultParam))
	}
	o.RecordParamEdge(tycon, id, 0)
	for i, p := range params {
		o.RecordParamEdge(p, id, i+1)
	}
	return id
}

// RecordTsigmaNode emits a sigma node aggregating members, returning its
// NodeID. Used for pack-like aggregates of types.
func (o *Observer) RecordTsigmaNode(members []NodeID) NodeID {
	id := o.NewNodeID(TypeToken, o.typeAppSignature("#sigma", members))
	claimed := o.ClaimedString(id)
	if o.writtenTypes[claimed] {
		return id
	}
	o.writtenTypes[claimed] = true
	o.nodeKind(id, schema.NodeTSigma)
	for i, m := range members {
		o.RecordParamEdge(m, id, i)
	}
	return id
}

// NodeIDForTypeAliasNode names the alias node for name bound to aliased,
// without emitting it.
func (o *Observer) NodeIDForTypeAliasNode(name NodeID, aliased NodeID) NodeID {
	sig := "talias(" + o.ClaimedString(name) + "," + o.ClaimedString(aliased) + ")"
	return o.NewNodeID(TypeToken, sig)
}

// RecordTypeAliasNode emits an alias node for name bound to aliased. root is
// the type at the end of the alias chain; ms, when present, renders the
// alias. Returns the alias NodeID.
func (o *Observer) RecordTypeAliasNode(name, aliased NodeID, root *NodeID, ms *schema.MarkedSource) NodeID {
	id := o.NodeIDForTypeAliasNode(name, aliased)
	claimed := o.ClaimedString(id)
	if o.writtenTypes[claimed] {
		return id
	}
	o.writtenTypes[claimed] = true
	o.nodeKind(id, schema.NodeTAlias)
	o.edge(id, aliased, schema.EdgeAliases)
	if root != nil {
		o.edge(id, *root, schema.EdgeAliasesRoot)
	}
	o.RecordMarkedSource(id, ms)
	return id
}

// NodeIDForNominalTypeNode names the nominal type node for a name, without
// emitting it.
func (o *Observer) NodeIDForNominalTypeNode(name NodeID) NodeID {
	return UncompressedNodeID(name.Token, name.Signature+"#t")
}

// RecordNominalTypeNode emits a nominal type node for name, optionally
// placed under parent. Returns the nominal NodeID.
func (o *Observer) RecordNominalTypeNode(name NodeID, parent *NodeID, ms *schema.MarkedSource) NodeID {
	id := o.NodeIDForNominalTypeNode(name)
	claimed := o.ClaimedString(id)
	if o.writtenTypes[claimed] {
		return id
	}
	o.writtenTypes[claimed] = true
	o.nodeKind(id, schema.NodeTNominal)
	if parent != nil {
		o.edge(id, *parent, schema.EdgeChildOf)
	}
	o.RecordMarkedSource(id, ms)
	return id
}
