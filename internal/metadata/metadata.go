// Package metadata carries rewrite rules for generated code. A rule says:
// when a defines edge is discovered at exactly [Begin,End) of the file this
// rule set is attached to, also link the defined entity to a declared VName,
// typically the original declaration the generated code came from.
package metadata

import "github.com/DeusData/semgraph/internal/vname"

// Rule is one rewrite directive.
type Rule struct {
	Begin   uint32
	End     uint32
	EdgeIn  string      // edge kind that triggers the rule
	EdgeOut string      // edge kind to add
	VName   vname.VName // declared endpoint
	Reverse bool        // add VName -> target instead of target -> VName
}

// File is the set of rules attached to one source file, indexed by the
// begin offset they trigger on.
type File struct {
	rules map[uint32][]Rule
}

// NewFile builds a File from parsed rules.
func NewFile(rules []Rule) *File {
	f := &File{rules: make(map[uint32][]Rule, len(rules))}
	for _, r := range rules {
		f.rules[r.Begin] = append(f.rules[r.Begin], r)
	}
	return f
}

// RulesFor returns the rules triggering at the given begin offset.
func (f *File) RulesFor(begin uint32) []Rule {
	return f.rules[begin]
}

// Len returns the number of rules.
func (f *File) Len() int {
	n := 0
	for _, rs := range f.rules {
		n += len(rs)
	}
	return n
}
