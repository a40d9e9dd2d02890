package observer

import (
	"log/slog"
	"sync"

	"github.com/DeusData/semgraph/internal/schema"
)

// builtinEntry holds a builtin type's pre-minted identity and rendering.
// Emission is lazy: the node facts go out the first time a compilation in
// this process mentions the builtin.
type builtinEntry struct {
	id      NodeID
	ms      *schema.MarkedSource
	emitted bool
}

var (
	builtinsOnce sync.Once
	builtinsMu   sync.Mutex
	builtins     map[string]*builtinEntry
	metaEmitted  bool
)

// paramMS renders a unary type constructor: the looked-up operand followed
// by post, e.g. "T*" for ptr.
func paramMS(post string) *schema.MarkedSource {
	return &schema.MarkedSource{
		Kind: schema.MSBox,
		Children: []*schema.MarkedSource{
			{Kind: schema.MSLookupByParam, LookupIndex: 1},
			{Kind: schema.MSBox, PreText: post},
		},
	}
}

// prefixMS renders a qualifier applied to its operand, e.g. "const T".
func prefixMS(pre string) *schema.MarkedSource {
	return &schema.MarkedSource{
		Kind: schema.MSBox,
		Children: []*schema.MarkedSource{
			{Kind: schema.MSBox, PreText: pre + " "},
			{Kind: schema.MSLookupByParam, LookupIndex: 1},
		},
	}
}

// fnMS renders a function type: return type, then the remaining parameters
// parenthesized and comma-separated, with variadic giving a trailing "...".
func fnMS(variadic bool) *schema.MarkedSource {
	params := &schema.MarkedSource{
		Kind:          schema.MSParamLookupByParam,
		PreText:       "(",
		PostChildText: ", ",
		PostText:      ")",
		LookupIndex:   2,
	}
	if variadic {
		params.PostText = ", ...)"
	}
	return &schema.MarkedSource{
		Kind: schema.MSBox,
		Children: []*schema.MarkedSource{
			{Kind: schema.MSLookupByParam, LookupIndex: 1},
			{Kind: schema.MSBox, PreText: " "},
			params,
		},
	}
}

// registerBuiltins populates the process-wide builtin table. All observers
// share it; the well-known token handles make the minted NodeIDs valid in
// every observer.
func registerBuiltins() {
	builtinsOnce.Do(func() {
		builtins = make(map[string]*builtinEntry)
		add := func(spelling string, ms *schema.MarkedSource) {
			builtins[spelling] = &builtinEntry{
				id: UncompressedNodeID(TypeToken, spelling+"#builtin"),
				ms: ms,
			}
		}
		for _, s := range []string{
			"void", "bool", "char", "char16_t", "char32_t", "wchar_t",
			"signed char", "unsigned char",
			"short", "unsigned short", "int", "unsigned int",
			"long", "unsigned long", "long long", "unsigned long long",
			"float", "double", "long double",
			"nullptr_t", "auto", "knrfn",
		} {
			add(s, schema.Identifier(s))
		}
		add("ptr", paramMS("*"))
		add("lvr", paramMS("&"))
		add("rvr", paramMS("&&"))
		add("iarr", paramMS("[]"))
		add("carr", paramMS("[const]"))
		add("darr", paramMS("[dyn]"))
		add("const", prefixMS("const"))
		add("volatile", prefixMS("volatile"))
		add("restrict", prefixMS("restrict"))
		add("fn", fnMS(false))
		add("fnvararg", fnMS(true))
		add("TypeUnion", &schema.MarkedSource{
			Kind:          schema.MSParamLookupByParam,
			PostChildText: "|",
			LookupIndex:   1,
		})
	})
}

// NodeIDForBuiltin resolves a builtin type by spelling, emitting its facts
// the first time it is used in this process. An unknown spelling is a front
// end defect: strict observers panic, others synthesize a node so the graph
// stays connected.
func (o *Observer) NodeIDForBuiltin(spelling string) NodeID {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	e, ok := builtins[spelling]
	if !ok {
		if o.strictBuiltins {
			panic("observer: unknown builtin " + spelling)
		}
		slog.Error("observer.builtin.unknown", "spelling", spelling)
		e = &builtinEntry{
			id: o.NewNodeID(TypeToken, spelling+"#builtin"),
			ms: schema.Identifier(spelling),
		}
		builtins[spelling] = e
	}
	if !e.emitted {
		e.emitted = true
		o.nodeKind(e.id, schema.NodeTBuiltin)
		o.RecordMarkedSource(e.id, e.ms)
	}
	return e.id
}

// emitMetaNodes writes the nodes shared by every compilation in the
// process, once.
func (o *Observer) emitMetaNodes() {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	if metaEmitted {
		return
	}
	metaEmitted = true
	tappMeta := UncompressedNodeID(TypeToken, "tapp#meta")
	o.nodeKind(tappMeta, schema.NodeMeta)
}
