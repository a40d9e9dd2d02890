package observer

import (
	"strings"
	"testing"

	"github.com/DeusData/semgraph/internal/claim"
	"github.com/DeusData/semgraph/internal/metadata"
	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/sink"
	"github.com/DeusData/semgraph/internal/source"
	"github.com/DeusData/semgraph/internal/vname"
)

func newTestObserver(t *testing.T, cfg Config) (*Observer, *sink.Memory, *source.Table) {
	t.Helper()
	if cfg.Corpus == "" {
		cfg.Corpus = "corpus"
	}
	if cfg.Language == "" {
		cfg.Language = "c++"
	}
	if cfg.Claimant == "" {
		cfg.Claimant = "worker0"
	}
	mem := sink.NewMemory()
	client := claim.NewStatic()
	client.ProcessUnknown = true
	files := source.NewTable("/work")
	return New(cfg, mem, client, files), mem, files
}

// countFacts returns how many times the named fact was recorded on v.
func countFacts(m *sink.Memory, v vname.VName, name string) int {
	n := 0
	for _, f := range m.FactsFor(v) {
		if f.Name == name {
			n++
		}
	}
	return n
}

func TestPushFileEmitsContentOnce(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("int x;"))

	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.PopFile()
	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.PopFile()

	if len(mem.Files) != 1 {
		t.Fatalf("file content emitted %d times, want 1", len(mem.Files))
	}
	fc := mem.Files[0]
	if fc.VName.Path != "a.cc" || fc.VName.Corpus != "corpus" {
		t.Fatalf("file VName = %+v", fc.VName)
	}
	if fc.Content != "int x;" {
		t.Fatalf("file content = %q", fc.Content)
	}
}

func TestVNameFromPhysicalRange(t *testing.T) {
	o, _, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("int x = 1;"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	v := o.VNameFromRange(PhysicalRange(source.NewRange(main, 4, 5)))
	if v.Signature != "@4:5" {
		t.Fatalf("signature = %q, want %q", v.Signature, "@4:5")
	}
	if v.Path != "a.cc" || v.Corpus != "corpus" || v.Language != "c++" {
		t.Fatalf("vname = %+v", v)
	}
}

func TestVNameFromImplicitRange(t *testing.T) {
	o, _, _ := newTestObserver(t, Config{})
	ctx := o.NewNodeID(DefaultToken, "instantiation")
	v := o.VNameFromRange(ImplicitRange(ctx))
	if v.Signature != "instantiation@syntactic" {
		t.Fatalf("signature = %q", v.Signature)
	}
	if v.Language != "c++" {
		t.Fatalf("language = %q", v.Language)
	}
}

func TestVNameFromExpandedRange(t *testing.T) {
	o, _, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("MACRO\n"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	site := source.Loc{File: main, Offset: 2}
	inMacro := source.Loc{Offset: 7, Expansion: &site}
	v := o.VNameFromRange(PhysicalRange(source.Range{Start: inMacro, End: inMacro}))
	if v.Signature != "@2:2" {
		t.Fatalf("signature = %q, want expansion site offsets", v.Signature)
	}
}

func TestDefinitionBindingAnchor(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("int foo = 1;"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	defn := o.NewNodeID(o.GetClaimTokenForLocation(source.Loc{File: main}), "foo")
	binding := PhysicalRange(source.NewRange(main, 4, 7))
	o.RecordDefinitionBindingRange(binding, defn)

	anchor := o.VNameFromRange(binding)
	if got, _ := mem.FactValue(anchor, schema.FactNodeKind); got != schema.NodeAnchor {
		t.Fatalf("anchor node kind = %q", got)
	}
	if got, _ := mem.FactValue(anchor, schema.FactLocStart); got != "4" {
		t.Fatalf("loc/start = %q, want 4", got)
	}
	if got, _ := mem.FactValue(anchor, schema.FactLocEnd); got != "7" {
		t.Fatalf("loc/end = %q, want 7", got)
	}
	edges := mem.EdgesWithKind(schema.EdgeDefinesBinding)
	if len(edges) != 1 {
		t.Fatalf("defines/binding edges = %d, want 1", len(edges))
	}
	if !edges[0].Source.Equal(anchor) || !edges[0].Target.Equal(o.VNameFromNodeID(defn)) {
		t.Fatalf("edge = %+v", edges[0])
	}
}

func TestAnchorFactsDeduplicated(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("int foo = 1;"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	defn := o.NewNodeID(o.GetClaimTokenForLocation(source.Loc{File: main}), "foo")
	binding := PhysicalRange(source.NewRange(main, 4, 7))
	o.RecordDefinitionBindingRange(binding, defn)
	o.RecordDefinitionBindingRange(binding, defn)

	anchor := o.VNameFromRange(binding)
	if n := countFacts(mem, anchor, schema.FactLocStart); n != 1 {
		t.Fatalf("loc/start recorded %d times, want 1", n)
	}
}

func TestMetadataRuleRewrite(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/gen.pb.cc", []byte("void Foo_Clear() {}"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	declared := vname.VName{Corpus: "corpus", Path: "foo.proto", Signature: "Foo.clear"}
	o.ApplyMetadataRules(main, metadata.NewFile([]metadata.Rule{{
		Begin:   5,
		End:     14,
		EdgeIn:  "/kythe/edge/defines/binding",
		EdgeOut: "/kythe/edge/generates",
		VName:   declared,
		Reverse: true,
	}}))

	defn := o.NewNodeID(o.GetClaimTokenForLocation(source.Loc{File: main}), "Foo_Clear")
	o.RecordDefinitionBindingRange(PhysicalRange(source.NewRange(main, 5, 14)), defn)

	gen := mem.EdgesWithKind(schema.EdgeGenerates)
	if len(gen) != 1 {
		t.Fatalf("generates edges = %d, want 1", len(gen))
	}
	if !gen[0].Source.Equal(declared) || !gen[0].Target.Equal(o.VNameFromNodeID(defn)) {
		t.Fatalf("generates edge = %+v", gen[0])
	}

	// Offsets must match exactly.
	o.RecordDefinitionBindingRange(PhysicalRange(source.NewRange(main, 5, 13)), defn)
	if n := len(mem.EdgesWithKind(schema.EdgeGenerates)); n != 1 {
		t.Fatalf("generates edges after near-miss = %d, want 1", n)
	}
}

func TestMetadataAbbreviatedEdgeIn(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/gen.cc", []byte("x"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	declared := vname.VName{Corpus: "corpus", Path: "x.proto", Signature: "X"}
	o.ApplyMetadataRules(main, metadata.NewFile([]metadata.Rule{{
		Begin:   0,
		End:     1,
		EdgeIn:  "defines/binding",
		EdgeOut: "/generates",
		VName:   declared,
	}}))
	defn := o.NewNodeID(DefaultToken, "X_impl")
	o.RecordDefinitionBindingRange(PhysicalRange(source.NewRange(main, 0, 1)), defn)

	gen := mem.EdgesWithKind(schema.EdgeGenerates)
	if len(gen) != 1 {
		t.Fatalf("generates edges = %d, want 1", len(gen))
	}
	if !gen[0].Source.Equal(o.VNameFromNodeID(defn)) || !gen[0].Target.Equal(declared) {
		t.Fatalf("forward rule emitted wrong direction: %+v", gen[0])
	}
}

func TestWraithRange(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("template code"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	ctx := o.NewNodeID(DefaultToken, "Foo<int>")
	r := WraithRange(source.NewRange(main, 5, 9), ctx)
	decl := o.NewNodeID(DefaultToken, "member")
	o.RecordDeclUseLocation(r, decl, Claimable)

	anchor := o.VNameFromRange(r)
	if !strings.HasSuffix(anchor.Signature, "@5:9@Foo<int>") {
		t.Fatalf("wraith anchor signature = %q", anchor.Signature)
	}
	ctxEdges := mem.EdgesWithKind(schema.EdgeChildOfContext)
	if len(ctxEdges) != 1 {
		t.Fatalf("childof/context edges = %d, want 1", len(ctxEdges))
	}
	if !ctxEdges[0].Source.Equal(anchor) || !ctxEdges[0].Target.Equal(o.VNameFromNodeID(ctx)) {
		t.Fatalf("childof/context edge = %+v", ctxEdges[0])
	}
	if n := len(mem.EdgesWithKind(schema.EdgeRef)); n != 1 {
		t.Fatalf("ref edges = %d, want 1", n)
	}
}

func TestDropRedundantWraiths(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{DropRedundantWraiths: true})
	main := files.AddFile("/work/a.cc", []byte("template code"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	decl := o.NewNodeID(DefaultToken, "member")
	span := source.NewRange(main, 5, 9)
	o.RecordDeclUseLocation(WraithRange(span, o.NewNodeID(DefaultToken, "Foo<int>")), decl, Claimable)
	o.RecordDeclUseLocation(WraithRange(span, o.NewNodeID(DefaultToken, "Foo<char>")), decl, Claimable)

	if n := len(mem.EdgesWithKind(schema.EdgeRef)); n != 1 {
		t.Fatalf("ref edges = %d, want 1 with wraith suppression", n)
	}
	// A different target over the same span still goes out.
	o.RecordDeclUseLocation(WraithRange(span, o.NewNodeID(DefaultToken, "Foo<int>")),
		o.NewNodeID(DefaultToken, "other"), Claimable)
	if n := len(mem.EdgesWithKind(schema.EdgeRef)); n != 2 {
		t.Fatalf("ref edges = %d, want 2 after new target", n)
	}
}

func TestPreprocessorContextIsolation(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{StartingContext: "root"})
	main := files.AddFile("/work/a.cc", []byte("#include \"h.h\"\n#include \"h.h\"\n"))
	hdr := files.AddFile("/work/h.h", []byte("int v;\n"))

	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.AddContextInformation("/work/a.cc", "root", 5, "C1")
	o.AddContextInformation("/work/a.cc", "root", 20, "C2")

	o.PushFile(source.Loc{File: main, Offset: 5}, source.Loc{File: hdr})
	first := o.Token(o.GetClaimTokenForLocation(source.Loc{File: hdr}))
	o.PopFile()

	o.PushFile(source.Loc{File: main, Offset: 20}, source.Loc{File: hdr})
	second := o.Token(o.GetClaimTokenForLocation(source.Loc{File: hdr}))
	o.PopFile()
	o.PopFile()

	if first.VName.Signature != "C1" || second.VName.Signature != "C2" {
		t.Fatalf("context signatures = %q, %q", first.VName.Signature, second.VName.Signature)
	}
	if first.VName.Equal(second.VName) {
		t.Fatal("distinct contexts produced equal claim identities")
	}
	// The header body itself still goes out once.
	if len(mem.Files) != 2 {
		t.Fatalf("file contents = %d, want 2 (main + header once)", len(mem.Files))
	}
}

func TestUnmappedContextFallsBackToEmpty(t *testing.T) {
	o, _, files := newTestObserver(t, Config{StartingContext: "root"})
	main := files.AddFile("/work/a.cc", []byte("#include \"h.h\"\n"))
	hdr := files.AddFile("/work/h.h", []byte("int v;\n"))

	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.PushFile(source.Loc{File: main, Offset: 5}, source.Loc{File: hdr})
	tok := o.Token(o.GetClaimTokenForLocation(source.Loc{File: hdr}))
	o.PopFile()
	o.PopFile()

	if tok.VName.Signature != "" {
		t.Fatalf("missing transition gave signature %q, want empty context", tok.VName.Signature)
	}
}

func TestMainSourceFileScoping(t *testing.T) {
	o, _, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("#include \"h.h\"\n"))
	hdr := files.AddFile("/work/h.h", []byte("int v;\n"))

	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.PushFile(source.Loc{File: main, Offset: 0}, source.Loc{File: hdr})

	if o.IsMainSourceFileRelatedLocation(source.Loc{File: hdr}) {
		t.Fatal("header location reported main-file related")
	}
	if !o.IsMainSourceFileRelatedLocation(source.Loc{File: main}) {
		t.Fatal("main file location not reported main-file related")
	}
	if o.MainSourceFileIdentifier() == "" {
		t.Fatal("empty main source file identifier")
	}
	if !strings.Contains(o.MainSourceFileIdentifier(), "a.cc") {
		t.Fatalf("identifier %q does not name the main file", o.MainSourceFileIdentifier())
	}

	anon := o.GetAnonymousNamespaceClaimToken(source.Loc{File: main})
	if anon != o.GetClaimTokenForLocation(source.Loc{File: main}) {
		t.Fatal("main-file anonymous namespace not scoped to the main file token")
	}
	hdrAnon := o.GetAnonymousNamespaceClaimToken(source.Loc{File: hdr})
	if o.Token(hdrAnon).VName.Path != "" {
		t.Fatalf("header anonymous namespace token kept a path: %+v", o.Token(hdrAnon).VName)
	}
	o.PopFile()
	o.PopFile()
}

func TestNamespaceClaimTokenDropsPath(t *testing.T) {
	o, _, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("namespace ns {}\n"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	h := o.GetNamespaceClaimToken(source.Loc{File: main})
	tok := o.Token(h)
	if tok.VName.Path != "" || tok.VName.Corpus != "corpus" {
		t.Fatalf("namespace token VName = %+v, want corpus only", tok.VName)
	}
	if again := o.GetNamespaceClaimToken(source.Loc{File: main}); again != h {
		t.Fatal("namespace token not cached")
	}
}

func TestTappNodeMerging(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	vec := o.NewNodeID(DefaultToken, "vector")
	arg := o.NewNodeID(DefaultToken, "elem")

	first := o.RecordTappNode(vec, []NodeID{arg}, -1)
	second := o.RecordTappNode(vec, []NodeID{arg}, -1)
	if first != second {
		t.Fatalf("same application minted distinct NodeIDs: %+v vs %+v", first, second)
	}
	if n := len(mem.NodesWithKind(schema.NodeTApp)); n != 1 {
		t.Fatalf("tapp nodes = %d, want 1", n)
	}
	params := mem.EdgesWithKind(schema.EdgeParam)
	if len(params) != 2 {
		t.Fatalf("param edges = %d, want 2", len(params))
	}
	byOrdinal := map[int]vname.VName{}
	for _, e := range params {
		byOrdinal[e.Ordinal] = e.Target
	}
	if !byOrdinal[0].Equal(o.VNameFromNodeID(vec)) || !byOrdinal[1].Equal(o.VNameFromNodeID(arg)) {
		t.Fatalf("param ordinals wrong: %+v", byOrdinal)
	}

	other := o.RecordTappNode(vec, []NodeID{o.NewNodeID(DefaultToken, "other")}, -1)
	if other == first {
		t.Fatal("different operands merged")
	}
}

func TestTappDefaultParamFact(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	id := o.RecordTappNode(o.NewNodeID(DefaultToken, "map"),
		[]NodeID{o.NewNodeID(DefaultToken, "k"), o.NewNodeID(DefaultToken, "v")}, 1)
	if got, _ := mem.FactValue(o.VNameFromNodeID(id), schema.FactParamDefault); got != "1" {
		t.Fatalf("param/default = %q, want 1", got)
	}
}

func TestTypeAliasNode(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	name := o.NewNodeID(DefaultToken, "MyInt")
	aliased := o.NodeIDForBuiltin("long double")
	root := aliased

	id := o.RecordTypeAliasNode(name, aliased, &root, nil)
	if id != o.NodeIDForTypeAliasNode(name, aliased) {
		t.Fatal("recorded alias does not match its projected NodeID")
	}
	if n := len(mem.EdgesWithKind(schema.EdgeAliases)); n != 1 {
		t.Fatalf("aliases edges = %d, want 1", n)
	}
	if n := len(mem.EdgesWithKind(schema.EdgeAliasesRoot)); n != 1 {
		t.Fatalf("aliases/root edges = %d, want 1", n)
	}
	o.RecordTypeAliasNode(name, aliased, &root, nil)
	if n := len(mem.EdgesWithKind(schema.EdgeAliases)); n != 1 {
		t.Fatalf("aliases edges after replay = %d, want 1", n)
	}
}

func TestNominalTypeNode(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	name := o.NewNodeID(DefaultToken, "Foo")
	parent := o.NewNodeID(DefaultToken, "ns")

	id := o.RecordNominalTypeNode(name, &parent, nil)
	if id.Signature != "Foo#t" {
		t.Fatalf("nominal signature = %q, want Foo#t", id.Signature)
	}
	if n := len(mem.NodesWithKind(schema.NodeTNominal)); n != 1 {
		t.Fatalf("tnominal nodes = %d, want 1", n)
	}
	childof := mem.EdgesWithKind(schema.EdgeChildOf)
	if len(childof) != 1 || !childof[0].Target.Equal(o.VNameFromNodeID(parent)) {
		t.Fatalf("childof edges = %+v", childof)
	}
}

func TestTsigmaNode(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	a := o.NewNodeID(DefaultToken, "A")
	b := o.NewNodeID(DefaultToken, "B")
	first := o.RecordTsigmaNode([]NodeID{a, b})
	if second := o.RecordTsigmaNode([]NodeID{a, b}); second != first {
		t.Fatal("same members minted distinct sigma nodes")
	}
	if n := len(mem.NodesWithKind(schema.NodeTSigma)); n != 1 {
		t.Fatalf("tsigma nodes = %d, want 1", n)
	}
}

func TestBuiltinIdentity(t *testing.T) {
	o, _, _ := newTestObserver(t, Config{})
	id := o.NodeIDForBuiltin("bool")
	if id != UncompressedNodeID(TypeToken, "bool#builtin") {
		t.Fatalf("builtin NodeID = %+v", id)
	}
	if again := o.NodeIDForBuiltin("bool"); again != id {
		t.Fatal("builtin identity unstable")
	}
}

func TestUnknownBuiltinSynthesized(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	id := o.NodeIDForBuiltin("frobnicate")
	if id.Signature != "frobnicate#builtin" {
		t.Fatalf("synthesized signature = %q", id.Signature)
	}
	if again := o.NodeIDForBuiltin("frobnicate"); again != id {
		t.Fatal("synthesized builtin identity unstable")
	}
	v := o.VNameFromNodeID(id)
	if n := countFacts(mem, v, schema.FactNodeKind); n != 1 {
		t.Fatalf("tbuiltin fact recorded %d times, want 1", n)
	}
}

func TestStrictBuiltinsPanics(t *testing.T) {
	o, _, _ := newTestObserver(t, Config{StrictBuiltins: true})
	defer func() {
		if recover() == nil {
			t.Fatal("no panic for unknown builtin in strict mode")
		}
	}()
	o.NodeIDForBuiltin("no-such-builtin-strict")
}

func TestUnclaimedFileSuppression(t *testing.T) {
	mem := sink.NewMemory()
	client := claim.NewStatic() // everything unknown is denied
	files := source.NewTable("/work")
	o := New(Config{Corpus: "corpus", Language: "c++", Claimant: "worker0"}, mem, client, files)

	main := files.AddFile("/work/a.cc", []byte("int x;"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	if len(mem.Files) != 0 {
		t.Fatal("unclaimed file content emitted")
	}
	tok := o.GetClaimTokenForLocation(source.Loc{File: main})
	decl := o.NewNodeID(tok, "x")
	use := PhysicalRange(source.NewRange(main, 4, 5))

	o.RecordDeclUseLocation(use, decl, Claimable)
	if n := len(mem.EdgesWithKind(schema.EdgeRef)); n != 0 {
		t.Fatalf("claimable edge emitted from unclaimed file: %d", n)
	}
	o.RecordDeclUseLocation(use, decl, Unclaimable)
	if n := len(mem.EdgesWithKind(schema.EdgeRef)); n != 1 {
		t.Fatalf("unclaimable edge count = %d, want 1", n)
	}
	// The anchor node itself stays unwritten; another worker owns it.
	if n := len(mem.NodesWithKind(schema.NodeAnchor)); n != 0 {
		t.Fatalf("anchor nodes from unclaimed file = %d, want 0", n)
	}
}

func TestCallEdge(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("void f() { g(); }"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	tok := o.GetClaimTokenForLocation(source.Loc{File: main})
	caller := o.NewNodeID(tok, "f")
	callee := o.NewNodeID(tok, "g")
	o.RecordCallEdge(PhysicalRange(source.NewRange(main, 11, 14)), caller, callee)

	if n := len(mem.EdgesWithKind(schema.EdgeChildOf)); n != 1 {
		t.Fatalf("childof edges = %d, want 1", n)
	}
	calls := mem.EdgesWithKind(schema.EdgeRefCall)
	if len(calls) != 1 || !calls[0].Target.Equal(o.VNameFromNodeID(callee)) {
		t.Fatalf("ref/call edges = %+v", calls)
	}
}

func TestIncludesRange(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("#include \"h.h\"\n"))
	hdr := files.AddFile("/work/h.h", []byte("int v;\n"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	o.RecordIncludesRange(PhysicalRange(source.NewRange(main, 9, 14)), hdr)
	inc := mem.EdgesWithKind(schema.EdgeRefIncludes)
	if len(inc) != 1 {
		t.Fatalf("ref/includes edges = %d, want 1", len(inc))
	}
	if inc[0].Target.Path != "h.h" {
		t.Fatalf("include target = %+v", inc[0].Target)
	}
}

func TestCompletionRange(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("struct S; struct S {};"))
	o.PushFile(source.Loc{}, source.Loc{File: main})
	defer o.PopFile()

	defn := o.NewNodeID(DefaultToken, "S")
	o.RecordCompletionRange(PhysicalRange(source.NewRange(main, 7, 8)), defn, UniquelyCompletes)
	o.RecordCompletionRange(PhysicalRange(source.NewRange(main, 17, 18)), defn, Completes)

	if n := len(mem.EdgesWithKind(schema.EdgeCompletesUniquely)); n != 1 {
		t.Fatalf("completes/uniquely edges = %d, want 1", n)
	}
	if n := len(mem.EdgesWithKind(schema.EdgeCompletes)); n != 1 {
		t.Fatalf("completes edges = %d, want 1", n)
	}
}

func TestNamespaceNodeEmittedOnce(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	ns := o.NewNodeID(DefaultToken, "ns")
	o.RecordNamespaceNode(ns)
	o.RecordNamespaceNode(ns)
	if n := len(mem.NodesWithKind(schema.NodePackage)); n != 1 {
		t.Fatalf("package nodes = %d, want 1", n)
	}
}

func TestDocumentationText(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	fn := o.NewNodeID(DefaultToken, "f")
	link := o.NewNodeID(DefaultToken, "g")

	o.RecordDocumentationText(fn, "calls [g] internally", []NodeID{link})
	o.RecordDocumentationText(fn, "calls [g] internally", []NodeID{link})

	docs := mem.NodesWithKind(schema.NodeDoc)
	if len(docs) != 1 {
		t.Fatalf("doc nodes = %d, want 1", len(docs))
	}
	if got, _ := mem.FactValue(docs[0], schema.FactText); got != "calls [g] internally" {
		t.Fatalf("doc text = %q", got)
	}
	params := mem.EdgesWithKind(schema.EdgeParam)
	if len(params) != 1 || !params[0].Target.Equal(o.VNameFromNodeID(link)) {
		t.Fatalf("doc link edges = %+v", params)
	}
	docEdges := mem.EdgesWithKind(schema.EdgeDocuments)
	if len(docEdges) != 1 || !docEdges[0].Target.Equal(o.VNameFromNodeID(fn)) {
		t.Fatalf("documents edges = %+v", docEdges)
	}
}

func TestRecordNodes(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})

	fn := o.NewNodeID(DefaultToken, "f")
	o.RecordFunctionNode(fn, Definition, FunctionConstructor)
	fnv := o.VNameFromNodeID(fn)
	if got, _ := mem.FactValue(fnv, schema.FactNodeKind); got != schema.NodeFunction {
		t.Fatalf("function kind = %q", got)
	}
	if got, _ := mem.FactValue(fnv, schema.FactComplete); got != "definition" {
		t.Fatalf("complete = %q", got)
	}
	if got, _ := mem.FactValue(fnv, schema.FactSubkind); got != "constructor" {
		t.Fatalf("subkind = %q", got)
	}

	rec := o.NewNodeID(DefaultToken, "S")
	o.RecordRecordNode(rec, RecordClass, Incomplete)
	recv := o.VNameFromNodeID(rec)
	if got, _ := mem.FactValue(recv, schema.FactSubkind); got != "class" {
		t.Fatalf("record subkind = %q", got)
	}
	if got, _ := mem.FactValue(recv, schema.FactComplete); got != "incomplete" {
		t.Fatalf("record complete = %q", got)
	}

	e := o.NewNodeID(DefaultToken, "E")
	o.RecordEnumNode(e, Definition, EnumScoped)
	if got, _ := mem.FactValue(o.VNameFromNodeID(e), schema.FactSubkind); got != "enumClass" {
		t.Fatalf("enum subkind = %q", got)
	}

	c := o.NewNodeID(DefaultToken, "E.kOne")
	o.RecordIntegerConstantNode(c, -7)
	if got, _ := mem.FactValue(o.VNameFromNodeID(c), schema.FactText); got != "-7" {
		t.Fatalf("constant text = %q", got)
	}

	v := o.NewNodeID(DefaultToken, "param0")
	o.RecordVariableNode(v, Complete, VariableLocalParameter)
	if got, _ := mem.FactValue(o.VNameFromNodeID(v), schema.FactSubkind); got != "local/parameter" {
		t.Fatalf("variable subkind = %q", got)
	}
}

func TestExtendsEdgeSpellings(t *testing.T) {
	o, mem, _ := newTestObserver(t, Config{})
	d := o.NewNodeID(DefaultToken, "Derived")
	b := o.NewNodeID(DefaultToken, "Base")

	o.RecordExtendsEdge(d, b, false, AccessDefault)
	o.RecordExtendsEdge(d, b, true, AccessPublic)

	if n := len(mem.EdgesWithKind(schema.EdgeExtends)); n != 1 {
		t.Fatalf("plain extends edges = %d, want 1", n)
	}
	if n := len(mem.EdgesWithKind("/kythe/edge/extends/virtual/public")); n != 1 {
		t.Fatalf("virtual public extends edges = %d, want 1", n)
	}
}

func TestClaimBatchThroughObserver(t *testing.T) {
	o, _, _ := newTestObserver(t, Config{})
	pairs := []claim.Pair{{Token: "tu-a"}, {Token: "tu-b"}}
	if !o.ClaimBatch(pairs) {
		t.Fatal("batch claimed nothing")
	}
	if !pairs[0].Claimed || !pairs[1].Claimed {
		t.Fatalf("pairs = %+v", pairs)
	}
}

func TestPopFileEmptyPanics(t *testing.T) {
	o, _, _ := newTestObserver(t, Config{})
	defer func() {
		if recover() == nil {
			t.Fatal("no panic on empty PopFile")
		}
	}()
	o.PopFile()
}

func TestDedupClearedAtEndOfCompilation(t *testing.T) {
	o, mem, files := newTestObserver(t, Config{})
	main := files.AddFile("/work/a.cc", []byte("int foo;"))
	defn := o.NewNodeID(DefaultToken, "foo")
	binding := PhysicalRange(source.NewRange(main, 4, 7))

	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.RecordDefinitionBindingRange(binding, defn)
	o.PopFile()

	o.PushFile(source.Loc{}, source.Loc{File: main})
	o.RecordDefinitionBindingRange(binding, defn)
	o.PopFile()

	anchor := o.VNameFromRange(binding)
	if n := countFacts(mem, anchor, schema.FactLocStart); n != 2 {
		t.Fatalf("loc/start recorded %d times across compilations, want 2", n)
	}
}
