// Package schema pins down the vocabulary of the emitted graph: edge kinds,
// fact names, and node kinds. Keeping the spellings in one place guarantees
// wire compatibility between workers.
package schema

import "strings"

// EdgeKind is the spelling of an edge as it appears on the wire.
type EdgeKind string

// Edge kinds emitted by the observer.
const (
	EdgeAliases                 EdgeKind = "/kythe/edge/aliases"
	EdgeAliasesRoot             EdgeKind = "/kythe/edge/aliases/root"
	EdgeChildOf                 EdgeKind = "/kythe/edge/childof"
	EdgeChildOfContext          EdgeKind = "/kythe/edge/childof/context"
	EdgeCompletes               EdgeKind = "/kythe/edge/completes"
	EdgeCompletesUniquely       EdgeKind = "/kythe/edge/completes/uniquely"
	EdgeDefines                 EdgeKind = "/kythe/edge/defines"
	EdgeDefinesBinding          EdgeKind = "/kythe/edge/defines/binding"
	EdgeDocuments               EdgeKind = "/kythe/edge/documents"
	EdgeExtends                 EdgeKind = "/kythe/edge/extends"
	EdgeGenerates               EdgeKind = "/kythe/edge/generates"
	EdgeInstantiates            EdgeKind = "/kythe/edge/instantiates"
	EdgeInstantiatesSpeculative EdgeKind = "/kythe/edge/instantiates/speculative"
	EdgeOverrides               EdgeKind = "/kythe/edge/overrides"
	EdgeOverridesRoot           EdgeKind = "/kythe/edge/overrides/root"
	EdgeParam                   EdgeKind = "/kythe/edge/param"
	EdgeRef                     EdgeKind = "/kythe/edge/ref"
	EdgeRefCall                 EdgeKind = "/kythe/edge/ref/call"
	EdgeRefDoc                  EdgeKind = "/kythe/edge/ref/doc"
	EdgeRefExpands              EdgeKind = "/kythe/edge/ref/expands"
	EdgeRefExpandsTransitive    EdgeKind = "/kythe/edge/ref/expands/transitive"
	EdgeRefIncludes             EdgeKind = "/kythe/edge/ref/includes"
	EdgeRefQueries              EdgeKind = "/kythe/edge/ref/queries"
	EdgeSpecializes             EdgeKind = "/kythe/edge/specializes"
	EdgeSpecializesSpeculative  EdgeKind = "/kythe/edge/specializes/speculative"
	EdgeTyped                   EdgeKind = "/kythe/edge/typed"
	EdgeUndefines               EdgeKind = "/kythe/edge/undefines"
)

const edgePrefix = "/kythe/edge/"

var edgesBySpelling = func() map[string]EdgeKind {
	m := make(map[string]EdgeKind)
	for _, k := range []EdgeKind{
		EdgeAliases, EdgeAliasesRoot, EdgeChildOf, EdgeChildOfContext,
		EdgeCompletes, EdgeCompletesUniquely, EdgeDefines,
		EdgeDefinesBinding, EdgeDocuments, EdgeExtends, EdgeGenerates,
		EdgeInstantiates, EdgeInstantiatesSpeculative, EdgeOverrides,
		EdgeOverridesRoot, EdgeParam, EdgeRef, EdgeRefCall, EdgeRefDoc,
		EdgeRefExpands, EdgeRefExpandsTransitive, EdgeRefIncludes,
		EdgeRefQueries, EdgeSpecializes, EdgeSpecializesSpeculative,
		EdgeTyped, EdgeUndefines,
	} {
		m[string(k)] = k
	}
	return m
}()

// ParseEdgeKind resolves an edge spelling, accepting both the canonical form
// ("/kythe/edge/overrides") and the abbreviated form used in metadata rule
// files ("/overrides").
func ParseEdgeKind(spelling string) (EdgeKind, bool) {
	if k, ok := edgesBySpelling[spelling]; ok {
		return k, true
	}
	if short, ok := strings.CutPrefix(spelling, "/"); ok {
		if k, ok := edgesBySpelling[edgePrefix+short]; ok {
			return k, true
		}
	}
	return "", false
}

// Fact names attached to nodes.
const (
	FactNodeKind     = "/kythe/node/kind"
	FactSubkind      = "/kythe/subkind"
	FactComplete     = "/kythe/complete"
	FactText         = "/kythe/text"
	FactCode         = "/kythe/code"
	FactLocStart     = "/kythe/loc/start"
	FactLocEnd       = "/kythe/loc/end"
	FactParamDefault = "/kythe/param/default"
	FactVariance     = "/kythe/variance"
)

// Node kinds stored under FactNodeKind.
const (
	NodeAnchor    = "anchor"
	NodeAbs       = "abs"
	NodeAbsVar    = "absvar"
	NodeConstant  = "constant"
	NodeDoc       = "doc"
	NodeFile      = "file"
	NodeFunction  = "function"
	NodeInterface = "interface"
	NodeLookup    = "lookup"
	NodeMacro     = "macro"
	NodeMeta      = "meta"
	NodePackage   = "package"
	NodeRecord    = "record"
	NodeSum       = "sum"
	NodeTAlias    = "talias"
	NodeTApp      = "tapp"
	NodeTBuiltin  = "tbuiltin"
	NodeTNominal  = "tnominal"
	NodeTSigma    = "tsigma"
	NodeVariable  = "variable"
)
