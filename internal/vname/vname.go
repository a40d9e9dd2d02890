// Package vname implements the canonical five-field node identity used
// throughout the graph: (signature, corpus, root, path, language). Two facts
// about the same semantic entity must resolve to byte-identical VNames, so
// every transformation here is deterministic.
package vname

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
)

// VName names a graph node. The zero value is the empty VName.
type VName struct {
	Signature string
	Corpus    string
	Root      string
	Path      string
	Language  string
}

// IsZero reports whether all fields are empty.
func (v VName) IsZero() bool {
	return v == VName{}
}

// Equal reports field-wise equality.
func (v VName) Equal(o VName) bool {
	return v == o
}

// Stamp amends an identity string with this VName's corpus, root and path so
// that identical signatures minted under different files stay distinct.
func (v VName) Stamp(identity string) string {
	var sb strings.Builder
	sb.WriteString(identity)
	if v.Corpus != "" {
		sb.WriteByte('#')
		sb.WriteString(v.Corpus)
	}
	if v.Root != "" {
		sb.WriteByte('#')
		sb.WriteString(v.Root)
	}
	if v.Path != "" {
		sb.WriteByte('#')
		sb.WriteString(v.Path)
	}
	return sb.String()
}

// maxSignatureLen bounds signatures before they are replaced by a digest.
// Unbounded signatures show up for deeply nested type expressions.
const maxSignatureLen = 192

// compressed caches digests for hot signatures. Type expressions repeat
// heavily within one compilation, so this hits often.
var compressed, _ = lru.New[string, string](4096)

// Compress returns sig unchanged when it is short and safe for the sink's
// encoding, and a fixed-width digest of it otherwise.
func Compress(sig string) string {
	if len(sig) <= maxSignatureLen && safeForWire(sig) {
		return sig
	}
	return ForceCompress(sig)
}

// ForceCompress always replaces sig with its digest. Used for signatures
// that are known to carry arbitrary text, such as documentation bodies.
func ForceCompress(sig string) string {
	if hashed, ok := compressed.Get(sig); ok {
		return hashed
	}
	h := xxh3.HashString128(sig)
	hashed := digestString(h)
	compressed.Add(sig, hashed)
	return hashed
}

func safeForWire(sig string) bool {
	for i := 0; i < len(sig); i++ {
		if c := sig[i]; c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

const hexDigits = "0123456789abcdef"

func digestString(h xxh3.Uint128) string {
	var buf [32]byte
	put64 := func(dst []byte, x uint64) {
		for i := 15; i >= 0; i-- {
			dst[i] = hexDigits[x&0xf]
			x >>= 4
		}
	}
	put64(buf[:16], h.Hi)
	put64(buf[16:], h.Lo)
	return string(buf[:])
}
