package schema

import "encoding/json"

// MarkedSource kinds. The tree mirrors the display-signature format consumed
// by cross-reference renderers.
const (
	MSBox                     = "BOX"
	MSContext                 = "CONTEXT"
	MSIdentifier              = "IDENTIFIER"
	MSLookupByParam           = "LOOKUP_BY_PARAM"
	MSParamLookupByParam      = "PARAMETER_LOOKUP_BY_PARAM"
	MSParamLookupWithDefaults = "PARAMETER_LOOKUP_BY_PARAM_WITH_DEFAULTS"
)

// MarkedSource is a structured display signature. Nodes render as
// PreText, the children joined by PostChildText, then PostText; lookup
// kinds substitute a parameter of the annotated node.
type MarkedSource struct {
	Kind          string          `json:"kind,omitempty"`
	PreText       string          `json:"pre_text,omitempty"`
	PostChildText string          `json:"post_child_text,omitempty"`
	PostText      string          `json:"post_text,omitempty"`
	LookupIndex   int             `json:"lookup_index,omitempty"`
	Children      []*MarkedSource `json:"child,omitempty"`
}

// Identifier returns a leaf rendering as the given token.
func Identifier(token string) *MarkedSource {
	return &MarkedSource{Kind: MSIdentifier, PreText: token}
}

// Marshal returns the storage form of the tree.
func (m *MarkedSource) Marshal() []byte {
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
