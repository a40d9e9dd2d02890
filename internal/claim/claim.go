// Package claim decides which worker is responsible for emitting facts about
// a given node identity. Many workers index overlapping file sets in
// parallel; the claim service is the only shared state between them, and an
// identity that fails to claim simply isn't emitted by this worker.
package claim

import "github.com/DeusData/semgraph/internal/vname"

// Client is the claim service boundary. Claim reports whether claimant is
// responsible for vname; the decision must be sticky for the life of the
// service (re-asking with the same pair returns the same answer).
type Client interface {
	Claim(claimant, v vname.VName) bool
	ClaimBatch(pairs []Pair) bool
	Close() error
}

// Pair is one ClaimBatch element. Token is an identity string to claim;
// Claimed is filled in with the per-token decision.
type Pair struct {
	Token   string
	Claimed bool
}

// batchClaimRoot namespaces batch-claimed identity strings away from file
// VNames so the two populations can never collide.
const batchClaimRoot = "semgraph-batch"

// claimBatch claims each token as both claimant and claimable, the
// convention for identities that have no owning file. Returns true when at
// least one token was claimed.
func claimBatch(c Client, pairs []Pair) bool {
	v := vname.VName{Root: batchClaimRoot}
	any := false
	for i := range pairs {
		v.Signature = pairs[i].Token
		pairs[i].Claimed = c.Claim(v, v)
		if pairs[i].Claimed {
			any = true
		}
	}
	return any
}

// Static is a claim client backed by a fixed assignment table, for use when
// a planner has pre-partitioned the corpus.
type Static struct {
	table map[vname.VName]vname.VName
	// ProcessUnknown is the answer for identities the table doesn't cover.
	ProcessUnknown bool
}

// NewStatic returns an empty static client.
func NewStatic() *Static {
	return &Static{table: make(map[vname.VName]vname.VName)}
}

// AssignClaim records that claimable belongs to claimant.
func (s *Static) AssignClaim(claimable, claimant vname.VName) {
	s.table[claimable] = claimant
}

// Claim implements Client.
func (s *Static) Claim(claimant, v vname.VName) bool {
	owner, ok := s.table[v]
	if !ok {
		return s.ProcessUnknown
	}
	return owner.Equal(claimant)
}

// ClaimBatch implements Client.
func (s *Static) ClaimBatch(pairs []Pair) bool {
	return claimBatch(s, pairs)
}

// Close implements Client.
func (s *Static) Close() error { return nil }
