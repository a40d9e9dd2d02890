package observer

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/sink"
	"github.com/DeusData/semgraph/internal/source"
	"github.com/DeusData/semgraph/internal/vname"
)

// RangeKind distinguishes the three ways a fact can be located.
type RangeKind int

const (
	// RangePhysical is a real source span, post macro expansion.
	RangePhysical RangeKind = iota
	// RangeWraith is a syntactic span replayed under a different semantic
	// context, e.g. the same text reinterpreted by an instantiation.
	RangeWraith
	// RangeImplicit has no source span at all; it is anchored to a
	// semantic context instead.
	RangeImplicit
)

// Range locates a fact. Context is set for wraith and implicit ranges.
type Range struct {
	Kind     RangeKind
	Physical source.Range
	Context  NodeID
}

// PhysicalRange wraps a source span.
func PhysicalRange(r source.Range) Range {
	return Range{Kind: RangePhysical, Physical: r}
}

// WraithRange wraps a source span reinterpreted under context.
func WraithRange(r source.Range, context NodeID) Range {
	return Range{Kind: RangeWraith, Physical: r, Context: context}
}

// ImplicitRange anchors a spanless fact to context.
func ImplicitRange(context NodeID) Range {
	return Range{Kind: RangeImplicit, Context: context}
}

// spanKey is the structural identity of a physical span: both endpoints
// resolved through their expansion chains.
type spanKey struct {
	startFile source.FileID
	startOff  uint32
	endFile   source.FileID
	endOff    uint32
}

// rangeKey is the structural identity of a Range, used by anchor dedup.
type rangeKey struct {
	span    spanKey
	context NodeID
	kind    RangeKind
}

func spanKeyOf(r source.Range) spanKey {
	start := source.ExpansionLoc(r.Start)
	end := source.ExpansionLoc(r.End)
	return spanKey{
		startFile: start.File,
		startOff:  start.Offset,
		endFile:   end.File,
		endOff:    end.Offset,
	}
}

func keyForRange(r Range) rangeKey {
	return rangeKey{span: spanKeyOf(r.Physical), context: r.Context, kind: r.Kind}
}

// VNameFromRange names the anchor node for a range. Implicit ranges derive
// from their context; physical and wraith ranges resolve their endpoints
// through the expansion chain and encode corpus/root/path@begin:end, with
// the context appended for wraiths. The signature is compressed.
func (o *Observer) VNameFromRange(r Range) vname.VName {
	var out vname.VName
	if r.Kind == RangeImplicit {
		out = o.VNameFromNodeID(r.Context)
		out.Signature += "@syntactic"
	} else {
		begin := source.ExpansionLoc(r.Physical.Start)
		end := source.ExpansionLoc(r.Physical.End)
		if !end.Valid() {
			end = begin
		}
		if fileLoc, ok := source.FileLoc(begin); ok {
			if f := o.files.Lookup(fileLoc.File); f != nil {
				out = o.fileVName(f)
			}
		} else if r.Kind == RangeWraith {
			out = o.VNameFromNodeID(r.Context)
		}
		var sb strings.Builder
		sb.WriteString(out.Signature)
		sb.WriteByte('@')
		sb.WriteString(strconv.FormatUint(uint64(begin.Offset), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(end.Offset), 10))
		if r.Kind == RangeWraith {
			sb.WriteByte('@')
			sb.WriteString(o.ClaimedString(r.Context))
		}
		out.Signature = sb.String()
	}
	out.Language = o.language
	out.Signature = vname.Compress(out.Signature)
	return out
}

// recordSourceLocation emits an offset fact, resolving macro locations to
// their expansion site first.
func (o *Observer) recordSourceLocation(anchor vname.VName, loc source.Loc, factName string) {
	loc = source.ExpansionLoc(loc)
	o.sink.AddProperty(anchor, factName, []byte(strconv.FormatUint(uint64(loc.Offset), 10)))
}

// recordRange materializes the anchor node itself, at most once per
// compilation per distinct range.
func (o *Observer) recordRange(anchorVName vname.VName, r Range) {
	if o.deferringNodes {
		key := keyForRange(r)
		if o.deferredAnchors[key] {
			return
		}
		o.deferredAnchors[key] = true
	}
	o.sink.AddProperty(anchorVName, schema.FactNodeKind, []byte(schema.NodeAnchor))
	if r.Kind == RangeImplicit {
		o.sink.AddProperty(anchorVName, schema.FactSubkind, []byte("implicit"))
	} else {
		o.recordSourceLocation(anchorVName, r.Physical.Start, schema.FactLocStart)
		o.recordSourceLocation(anchorVName, r.Physical.End, schema.FactLocEnd)
	}
	if r.Kind == RangeWraith {
		o.sink.AddEdge(anchorVName, schema.EdgeChildOfContext, o.VNameFromNodeID(r.Context), sink.NoOrdinal)
	}
}

// recordAnchor connects a range to a target node. The physical claim check
// can force emission: an anchor whose range or target this worker owns is
// always safe to emit, whatever the edge's own claimability asked for.
func (o *Observer) recordAnchor(r Range, target NodeID, edgeKind schema.EdgeKind, cl Claimability) {
	o.checkFileStack("recordAnchor")
	if o.dropRedundantWraiths {
		key := rangeEdgeKey{span: spanKeyOf(r.Physical), edgeKind: edgeKind, target: target}
		if o.rangeEdges[key] {
			return
		}
		o.rangeEdges[key] = true
	}
	anchorVName := o.VNameFromRange(r)
	if o.ClaimRange(r) || o.ClaimNode(target) {
		o.recordRange(anchorVName, r)
		cl = Unclaimable
	}
	if cl != Unclaimable {
		return
	}
	o.sink.AddEdge(anchorVName, edgeKind, o.VNameFromNodeID(target), sink.NoOrdinal)
	if r.Kind == RangePhysical && edgeKind == schema.EdgeDefinesBinding {
		o.metaHookDefines(r, anchorVName, target)
	}
}

// recordAnchorToVName is recordAnchor for targets that already have a VName,
// such as included files.
func (o *Observer) recordAnchorToVName(r Range, target vname.VName, edgeKind schema.EdgeKind, cl Claimability) {
	o.checkFileStack("recordAnchor")
	anchorVName := o.VNameFromRange(r)
	if o.ClaimRange(r) {
		o.recordRange(anchorVName, r)
		cl = Unclaimable
	}
	if cl != Unclaimable {
		return
	}
	o.sink.AddEdge(anchorVName, edgeKind, target, sink.NoOrdinal)
}

// metaHookDefines applies rewrite rules registered for the definition's file
// whose offsets exactly match the anchor.
func (o *Observer) metaHookDefines(r Range, anchorVName vname.VName, target NodeID) {
	begin := source.ExpansionLoc(r.Physical.Start)
	end := source.ExpansionLoc(r.Physical.End)
	metas := o.meta[begin.File]
	if len(metas) == 0 {
		return
	}
	def := o.VNameFromNodeID(target)
	for _, meta := range metas {
		for _, rule := range meta.RulesFor(begin.Offset) {
			if rule.Begin != begin.Offset || rule.End != end.Offset || !definesEdgeIn(rule.EdgeIn) {
				continue
			}
			edgeKind, ok := schema.ParseEdgeKind(rule.EdgeOut)
			if !ok {
				// Recoverable: skip this rule, keep the fact.
				slog.Error("observer.metadata.unknown_edge", "edge", rule.EdgeOut)
				continue
			}
			if rule.Reverse {
				o.sink.AddEdge(rule.VName, edgeKind, def, sink.NoOrdinal)
			} else {
				o.sink.AddEdge(def, edgeKind, rule.VName, sink.NoOrdinal)
			}
		}
	}
}

// definesEdgeIn accepts the canonical and abbreviated spellings of the two
// edge kinds metadata rules may trigger on.
func definesEdgeIn(spelling string) bool {
	k, ok := schema.ParseEdgeKind(spelling)
	if !ok && !strings.HasPrefix(spelling, "/") {
		k, ok = schema.ParseEdgeKind("/" + spelling)
	}
	return ok && (k == schema.EdgeDefines || k == schema.EdgeDefinesBinding)
}

// RecordDeclUseLocation anchors a reference to a declaration.
func (o *Observer) RecordDeclUseLocation(r Range, decl NodeID, cl Claimability) {
	o.recordAnchor(r, decl, schema.EdgeRef, cl)
}

// RecordDeclUseLocationInDocumentation anchors a reference found inside a
// documentation comment.
func (o *Observer) RecordDeclUseLocationInDocumentation(r Range, decl NodeID) {
	o.recordAnchor(r, decl, schema.EdgeRefDoc, Claimable)
}

// RecordTypeSpellingLocation anchors the spelling of a type.
func (o *Observer) RecordTypeSpellingLocation(r Range, typeID NodeID, cl Claimability) {
	o.recordAnchor(r, typeID, schema.EdgeRef, cl)
}

// RecordFullDefinitionRange anchors the full extent of a definition.
func (o *Observer) RecordFullDefinitionRange(r Range, defn NodeID) {
	o.recordAnchor(r, defn, schema.EdgeDefines, Claimable)
}

// RecordDefinitionBindingRange anchors the name binding of a definition.
// This is the edge kind metadata rules rewrite.
func (o *Observer) RecordDefinitionBindingRange(binding Range, defn NodeID) {
	o.recordAnchor(binding, defn, schema.EdgeDefinesBinding, Claimable)
}

// RecordDefinitionRangeWithBinding anchors both the full extent and the name
// binding of a definition.
func (o *Observer) RecordDefinitionRangeWithBinding(full, binding Range, defn NodeID) {
	o.recordAnchor(full, defn, schema.EdgeDefines, Claimable)
	o.recordAnchor(binding, defn, schema.EdgeDefinesBinding, Claimable)
}

// Specificity states whether a declaration is completed by exactly one
// definition.
type Specificity int

const (
	UniquelyCompletes Specificity = iota
	Completes
)

// RecordCompletionRange anchors a definition completing a forward
// declaration. Completion edges are never dropped by claiming.
func (o *Observer) RecordCompletionRange(r Range, defn NodeID, spec Specificity) {
	kind := schema.EdgeCompletes
	if spec == UniquelyCompletes {
		kind = schema.EdgeCompletesUniquely
	}
	o.recordAnchor(r, defn, kind, Unclaimable)
}

// RecordDocumentationRange anchors a documentation comment to the node it
// documents.
func (o *Observer) RecordDocumentationRange(r Range, doc NodeID) {
	o.recordAnchor(r, doc, schema.EdgeDocuments, Claimable)
}

// RecordCallEdge anchors a call site: childof to the caller, ref/call to the
// callee. The callee edge is unclaimable so call graphs stay complete even
// for unclaimed files.
func (o *Observer) RecordCallEdge(r Range, caller, callee NodeID) {
	o.recordAnchor(r, caller, schema.EdgeChildOf, Claimable)
	o.recordAnchor(r, callee, schema.EdgeRefCall, Unclaimable)
}

// RecordExpandsRange anchors a macro expansion site.
func (o *Observer) RecordExpandsRange(r Range, macro NodeID) {
	o.recordAnchor(r, macro, schema.EdgeRefExpands, Claimable)
}

// RecordIndirectlyExpandsRange anchors a transitive macro expansion.
func (o *Observer) RecordIndirectlyExpandsRange(r Range, macro NodeID) {
	o.recordAnchor(r, macro, schema.EdgeRefExpandsTransitive, Claimable)
}

// RecordUndefinesRange anchors a macro undefinition.
func (o *Observer) RecordUndefinesRange(r Range, macro NodeID) {
	o.recordAnchor(r, macro, schema.EdgeUndefines, Claimable)
}

// RecordBoundQueryRange anchors a definedness query against a macro.
func (o *Observer) RecordBoundQueryRange(r Range, macro NodeID) {
	o.recordAnchor(r, macro, schema.EdgeRefQueries, Claimable)
}

// RecordIncludesRange anchors an include directive to the included file.
func (o *Observer) RecordIncludesRange(r Range, file source.FileID) {
	f := o.files.Lookup(file)
	if f == nil {
		slog.Warn("observer.includes.unknown_file", "file", file)
		return
	}
	o.recordAnchorToVName(r, o.fileVName(f), schema.EdgeRefIncludes, Claimable)
}

// appendRangeToString serializes a range's full location structure,
// including macro expansion history, into a stable identifier.
func (o *Observer) appendRangeToString(r Range) string {
	var sb strings.Builder
	var posted []source.FileID
	o.appendFullLocation(&sb, &posted, r.Physical.Start)
	if r.Physical.End != r.Physical.Start {
		o.appendFullLocation(&sb, &posted, r.Physical.End)
	}
	if r.Kind == RangeWraith {
		sb.WriteString(o.ClaimedString(r.Context))
	}
	return sb.String()
}

func (o *Observer) appendFullLocation(sb *strings.Builder, posted *[]source.FileID, loc source.Loc) {
	if !loc.Valid() {
		sb.WriteString("invalid")
		return
	}
	if !loc.InExpansion() {
		sb.WriteString(strconv.FormatUint(uint64(loc.Offset), 10))
		for i, seen := range *posted {
			if seen == loc.File {
				sb.WriteString("@.")
				sb.WriteString(strconv.Itoa(i))
				return
			}
		}
		*posted = append(*posted, loc.File)
		if f := o.files.Lookup(loc.File); f != nil {
			v := o.fileVName(f)
			if v.Corpus != "" {
				sb.WriteString(v.Corpus)
				sb.WriteByte('/')
			}
			if v.Root != "" {
				sb.WriteString(v.Root)
				sb.WriteByte('/')
			}
			sb.WriteString(v.Path)
		}
		return
	}
	o.appendFullLocation(sb, posted, *loc.Expansion)
	sb.WriteByte('@')
	if loc.Spelling != nil {
		o.appendFullLocation(sb, posted, *loc.Spelling)
	}
}
