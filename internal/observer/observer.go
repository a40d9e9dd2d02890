// Package observer implements the shared graph-observer core. Language front
// ends discover facts ("this range defines that entity") and call in here;
// the observer names graph nodes stably across compilations and workers,
// negotiates file claims, deduplicates anchors, applies metadata rewrite
// rules, and forwards everything to a Sink.
//
// One Observer serves one compilation and is driven synchronously by the
// front end's tree walk; it never spawns goroutines. Parallelism lives
// across compilations, coordinated only through the claim client.
package observer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/DeusData/semgraph/internal/claim"
	"github.com/DeusData/semgraph/internal/metadata"
	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/sink"
	"github.com/DeusData/semgraph/internal/source"
	"github.com/DeusData/semgraph/internal/vname"
)

// TokenHandle indexes the observer's claim-token arena. Handles stay valid
// for the observer's lifetime, so NodeIDs minted during traversal never
// dangle.
type TokenHandle int32

// Well-known handles, seeded at construction. DefaultToken carries no file
// identity; TypeToken owns structural type nodes. Both are always claimed.
const (
	DefaultToken TokenHandle = 0
	TypeToken    TokenHandle = 1
)

// ClaimToken associates node identities with the corpus, root, and path
// VName fields of the file equivalence class they came from, plus the claim
// status decided when that file was pushed.
type ClaimToken struct {
	VName vname.VName
	// RoughClaimed means it is reasonable to assume this worker owns
	// identities minted under this token. Fixed at file-push time.
	RoughClaimed bool
	// LanguageIndependent marks tokens for nodes shared across language
	// observers, such as file nodes.
	LanguageIndependent bool
}

// NodeID is the in-process identity of a graph node: a claim-token handle
// supplying corpus/root/path context plus a signature. Equality is
// structural on the resolved VName.
type NodeID struct {
	Token     TokenHandle
	Signature string
}

// Claimability states whether an edge may be dropped when neither its range
// nor its target is owned by this worker.
type Claimability int

const (
	Claimable Claimability = iota
	Unclaimable
)

// fileState is one frame of the file stack.
type fileState struct {
	vname     vname.VName // context-amended identity
	baseVName vname.VName // identity without context
	uid       uint64
	context   string
	claimed   bool
}

// rangeEdgeKey identifies a (physical range, edge kind, target) triple
// independent of context, for redundant-wraith suppression.
type rangeEdgeKey struct {
	span     spanKey
	edgeKind schema.EdgeKind
	target   NodeID
}

// Observer is the graph-observer core.
type Observer struct {
	sink     sink.Sink
	client   claim.Client
	files    *source.Table
	language string
	claimant vname.VName

	startingContext      string
	dropRedundantWraiths bool
	deferringNodes       bool
	strictBuiltins       bool

	tokens    []ClaimToken
	fileStack []fileState

	// contexts maps file uid -> context -> directive offset -> destination
	// context. Populated lazily per file, immutable per entry once set.
	contexts map[uint64]map[string]map[uint32]string

	meta map[source.FileID][]*metadata.File

	// transitiveHeaders holds uids of files reached under any header.
	transitiveHeaders map[uint64]bool

	mainSourceFileLoc   source.Loc
	mainSourceFileToken TokenHandle // -1 until the main file is pushed

	claimCheckedFiles map[source.FileID]TokenHandle
	claimedFileTokens map[source.FileID]TokenHandle
	namespaceTokens   map[TokenHandle]TokenHandle
	recordedFiles     map[uint64]bool

	deferredAnchors map[rangeKey]bool
	rangeEdges      map[rangeEdgeKey]bool

	writtenTypes      map[string]bool
	writtenDocs       map[string]bool
	writtenNamespaces map[string]bool
}

// New constructs an Observer over the given collaborators and registers the
// builtin and meta tables (idempotent across observers).
func New(cfg Config, s sink.Sink, c claim.Client, files *source.Table) *Observer {
	o := &Observer{
		sink:     s,
		client:   c,
		files:    files,
		language: cfg.Language,
		claimant: vname.VName{
			Signature: cfg.Claimant,
			Corpus:    cfg.Corpus,
			Root:      cfg.Root,
		},
		startingContext:      cfg.StartingContext,
		dropRedundantWraiths: cfg.DropRedundantWraiths,
		deferringNodes:       true,
		strictBuiltins:       cfg.StrictBuiltins,
		tokens: []ClaimToken{
			{RoughClaimed: true}, // DefaultToken
			{RoughClaimed: true}, // TypeToken
		},
		contexts:            make(map[uint64]map[string]map[uint32]string),
		meta:                make(map[source.FileID][]*metadata.File),
		transitiveHeaders:   make(map[uint64]bool),
		mainSourceFileToken: -1,
		claimCheckedFiles:   make(map[source.FileID]TokenHandle),
		claimedFileTokens:   make(map[source.FileID]TokenHandle),
		namespaceTokens:     make(map[TokenHandle]TokenHandle),
		recordedFiles:       make(map[uint64]bool),
		deferredAnchors:     make(map[rangeKey]bool),
		rangeEdges:          make(map[rangeEdgeKey]bool),
		writtenTypes:        make(map[string]bool),
		writtenDocs:         make(map[string]bool),
		writtenNamespaces:   make(map[string]bool),
	}
	registerBuiltins()
	o.emitMetaNodes()
	return o
}

// Language returns the language this observer emits under.
func (o *Observer) Language() string { return o.language }

// Files returns the file table this observer resolves locations against.
func (o *Observer) Files() *source.Table { return o.files }

// StopDeferringNodes disables local deduplication of derived nodes.
func (o *Observer) StopDeferringNodes() { o.deferringNodes = false }

// DropRedundantWraiths suppresses anchors and edges already emitted from the
// same physical location with the same kind and target.
func (o *Observer) DropRedundantWraiths() { o.dropRedundantWraiths = true }

// newToken adds a token to the arena and returns its handle.
func (o *Observer) newToken(t ClaimToken) TokenHandle {
	o.tokens = append(o.tokens, t)
	return TokenHandle(len(o.tokens) - 1)
}

// Token returns the arena entry for a handle.
func (o *Observer) Token(h TokenHandle) ClaimToken {
	return o.tokens[h]
}

// NewNodeID mints a NodeID under a token, compressing the signature when it
// is unsafe for the wire.
func (o *Observer) NewNodeID(token TokenHandle, signature string) NodeID {
	return NodeID{Token: token, Signature: vname.Compress(signature)}
}

// UncompressedNodeID mints a NodeID whose signature is known wire-safe.
func UncompressedNodeID(token TokenHandle, signature string) NodeID {
	return NodeID{Token: token, Signature: signature}
}

// ClaimedString stamps id's signature with its token's identity. Two NodeIDs
// with equal claimed strings name the same graph node.
func (o *Observer) ClaimedString(id NodeID) string {
	return o.tokens[id.Token].VName.Stamp(id.Signature)
}

// VNameFromNodeID resolves id to its canonical VName.
func (o *Observer) VNameFromNodeID(id NodeID) vname.VName {
	tok := o.tokens[id.Token]
	v := vname.VName{
		Signature: id.Signature,
		Corpus:    tok.VName.Corpus,
		Root:      tok.VName.Root,
		Path:      tok.VName.Path,
		Language:  o.language,
	}
	if tok.LanguageIndependent {
		v.Language = ""
	}
	return v
}

// fileVName derives a file's base VName: the corpus-supplied mapping when
// present, otherwise the path relative to the working directory under the
// claimant's corpus.
func (o *Observer) fileVName(f *source.File) vname.VName {
	if !f.VName.IsZero() {
		return f.VName
	}
	return vname.VName{
		Path:   o.files.RelPath(f),
		Corpus: o.claimant.Corpus,
	}
}

// ClaimNode reports whether this worker owns the node.
func (o *Observer) ClaimNode(id NodeID) bool {
	return o.tokens[id.Token].RoughClaimed
}

// ClaimLocation resolves loc to its enclosing file's claim bit. Locations
// that resolve to no file are treated as owned so compiler-synthesized facts
// are never lost.
func (o *Observer) ClaimLocation(loc source.Loc) bool {
	if !loc.Valid() {
		return true
	}
	loc = source.ExpansionLoc(loc)
	if loc.File == 0 {
		return true
	}
	h, ok := o.claimCheckedFiles[loc.File]
	if !ok {
		return false
	}
	return o.tokens[h].RoughClaimed
}

// ClaimRange reports whether this worker owns the range. Wraith ranges claim
// through their semantic context rather than their physical location.
func (o *Observer) ClaimRange(r Range) bool {
	if r.Kind == RangeWraith && o.ClaimNode(r.Context) {
		return true
	}
	return o.ClaimLocation(r.Physical.Start)
}

// ClaimImplicitNode claims an identity with no owning file, such as a
// template instantiation shared between compilations.
func (o *Observer) ClaimImplicitNode(identifier string) bool {
	return o.client.Claim(o.claimant, vname.VName{Signature: identifier})
}

// FinishImplicitNode is reserved for two-phase claim commit.
func (o *Observer) FinishImplicitNode(identifier string) {}

// ClaimBatch forwards a batched claim request to the claim service.
func (o *Observer) ClaimBatch(pairs []claim.Pair) bool {
	return o.client.ClaimBatch(pairs)
}

// GetClaimTokenForLocation returns the claim token of the file enclosing
// loc, or the default token when the location resolves to no checked file.
func (o *Observer) GetClaimTokenForLocation(loc source.Loc) TokenHandle {
	if !loc.Valid() {
		return DefaultToken
	}
	loc = source.ExpansionLoc(loc)
	if loc.File == 0 {
		return DefaultToken
	}
	if h, ok := o.claimCheckedFiles[loc.File]; ok {
		return h
	}
	return DefaultToken
}

// GetClaimTokenForRange returns the claim token for a physical span.
func (o *Observer) GetClaimTokenForRange(r source.Range) TokenHandle {
	return o.GetClaimTokenForLocation(r.Start)
}

// GetNamespaceClaimToken returns a token with path and root dropped, scoped
// to the corpus of the file enclosing loc. Namespaces are corpus-wide.
func (o *Observer) GetNamespaceClaimToken(loc source.Loc) TokenHandle {
	fileToken := o.GetClaimTokenForLocation(loc)
	if h, ok := o.namespaceTokens[fileToken]; ok {
		return h
	}
	tok := o.tokens[fileToken]
	h := o.newToken(ClaimToken{
		VName:        vname.VName{Corpus: tok.VName.Corpus},
		RoughClaimed: tok.RoughClaimed,
	})
	o.namespaceTokens[fileToken] = h
	return h
}

// GetAnonymousNamespaceClaimToken scopes anonymous-namespace-like constructs
// to the main source file when loc was not reached through a header,
// otherwise to the regular namespace token.
func (o *Observer) GetAnonymousNamespaceClaimToken(loc source.Loc) TokenHandle {
	if o.IsMainSourceFileRelatedLocation(loc) {
		if o.mainSourceFileToken < 0 {
			panic("observer: anonymous namespace token requested before main file push")
		}
		return o.mainSourceFileToken
	}
	return o.GetNamespaceClaimToken(loc)
}

// IsMainSourceFileRelatedLocation reports whether loc was reached outside
// any header, meaning constructs there are main-file scoped.
func (o *Observer) IsMainSourceFileRelatedLocation(loc source.Loc) bool {
	if !loc.Valid() {
		return true
	}
	loc = source.ExpansionLoc(loc)
	f := o.files.Lookup(loc.File)
	if f == nil {
		return true
	}
	return !o.transitiveHeaders[f.UID]
}

// MainSourceFileIdentifier returns a stable identifier for the compilation's
// main source file, used to name translation-unit-scoped entities.
func (o *Observer) MainSourceFileIdentifier() string {
	if o.mainSourceFileToken < 0 {
		return ""
	}
	return o.appendRangeToString(Range{
		Kind:     RangePhysical,
		Physical: source.Range{Start: o.mainSourceFileLoc, End: o.mainSourceFileLoc},
	})
}

// AddContextInformation records that the directive at offset in (path,
// context) transitions into destContext. Called by the front end as it
// observes context-changing directives; entries are never revised.
func (o *Observer) AddContextInformation(path, context string, offset uint32, destContext string) {
	id, ok := o.files.ByPath(path)
	if !ok {
		slog.Warn("observer.context.unmapped_path", "path", path)
		return
	}
	f := o.files.Lookup(id)
	byContext, ok := o.contexts[f.UID]
	if !ok {
		byContext = make(map[string]map[uint32]string)
		o.contexts[f.UID] = byContext
	}
	byOffset, ok := byContext[context]
	if !ok {
		byOffset = make(map[uint32]string)
		byContext[context] = byOffset
	}
	if _, ok := byOffset[offset]; !ok {
		byOffset[offset] = destContext
	}
}

// destinationContext looks up the context transition for an include at
// offset from (uid, context). A missing entry is a warning, not an error;
// the traversal continues under the empty context.
func (o *Observer) destinationContext(uid uint64, context string, offset uint32) string {
	byContext, ok := o.contexts[uid]
	if !ok {
		slog.Warn("observer.context.missing_path", "uid", uid, "context", context, "offset", offset)
		return ""
	}
	byOffset, ok := byContext[context]
	if !ok {
		slog.Warn("observer.context.missing_context", "uid", uid, "context", context, "offset", offset)
		return ""
	}
	dest, ok := byOffset[offset]
	if !ok {
		slog.Warn("observer.context.missing_offset", "uid", uid, "context", context, "offset", offset)
		return ""
	}
	return dest
}

// PushFile enters a file: the main source file at stack depth one, or an
// included file blamed on the include directive at blameLocation. The claim
// decision made here is sticky for as long as the file is on the stack.
func (o *Observer) PushFile(blameLocation, loc source.Loc) {
	previousContext := o.startingContext
	var previousUID uint64
	hasPrevious := len(o.fileStack) > 0
	inHeader := false
	if hasPrevious {
		top := &o.fileStack[len(o.fileStack)-1]
		previousContext = top.context
		previousUID = top.uid
		inHeader = o.transitiveHeaders[previousUID]
	}
	o.fileStack = append(o.fileStack, fileState{claimed: true})
	state := &o.fileStack[len(o.fileStack)-1]
	if !loc.Valid() {
		return
	}
	loc = source.ExpansionLoc(loc)
	f := o.files.Lookup(loc.File)
	if f == nil {
		// A builtin or scratch buffer; nothing to claim.
		return
	}
	state.baseVName = o.fileVName(f)
	state.vname = state.baseVName
	state.uid = f.UID
	// Textual inclusions (.inc) don't make their contents header-scoped on
	// their own, but anything reached under a header stays header-scoped.
	if inHeader || (hasPrevious && !strings.HasSuffix(f.Path, ".inc")) {
		o.transitiveHeaders[f.UID] = true
	}
	if !hasPrevious {
		state.context = o.startingContext
	} else if previousContext != "" && blameLocation.Valid() && !blameLocation.InExpansion() {
		state.context = o.destinationContext(previousUID, previousContext, blameLocation.Offset)
	}
	state.vname.Signature = state.context + state.vname.Signature
	if o.client.Claim(o.claimant, state.vname) {
		if !o.recordedFiles[f.UID] {
			o.recordedFiles[f.UID] = true
			o.sink.AddFileContent(state.baseVName, f.Text)
		}
	} else {
		state.claimed = false
	}
	checked := o.newToken(ClaimToken{VName: state.vname, RoughClaimed: state.claimed})
	o.claimCheckedFiles[loc.File] = checked
	if state.claimed {
		o.claimedFileTokens[loc.File] = o.newToken(ClaimToken{
			VName:               state.vname,
			RoughClaimed:        true,
			LanguageIndependent: true,
		})
	}
	if !hasPrevious {
		o.mainSourceFileLoc = loc
		o.mainSourceFileToken = checked
	}
}

// PopFile leaves the current file. When the stack empties, the compilation
// is over and the per-compilation dedup state is released.
func (o *Observer) PopFile() {
	if len(o.fileStack) == 0 {
		panic("observer: PopFile with empty file stack")
	}
	o.fileStack = o.fileStack[:len(o.fileStack)-1]
	if len(o.fileStack) == 0 {
		o.deferredAnchors = make(map[rangeKey]bool)
		o.rangeEdges = make(map[rangeEdgeKey]bool)
	}
}

// ClaimedFileTokens visits the language-independent tokens of claimed files.
func (o *Observer) ClaimedFileTokens(visit func(file source.FileID, id NodeID) bool) {
	for file, h := range o.claimedFileTokens {
		if !visit(file, NodeID{Token: h}) {
			return
		}
	}
}

// ApplyMetadataRules attaches parsed rewrite rules to a file.
func (o *Observer) ApplyMetadataRules(file source.FileID, rules *metadata.File) {
	if rules == nil {
		return
	}
	o.meta[file] = append(o.meta[file], rules)
}

// ApplyMetadataFile parses content as a metadata file and attaches whatever
// rules it yields to file. Parse failures are logged and skipped.
func (o *Observer) ApplyMetadataFile(file source.FileID, filename string, content []byte) {
	o.ApplyMetadataRules(file, metadata.ParseFile(filename, content))
}

func (o *Observer) checkFileStack(op string) {
	if len(o.fileStack) == 0 {
		panic(fmt.Sprintf("observer: %s with empty file stack", op))
	}
}
