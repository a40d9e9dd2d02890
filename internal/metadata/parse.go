package metadata

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DeusData/semgraph/internal/vname"
)

// The wire format is a JSON envelope:
//
//	{"type": "kythe0", "meta": [
//	  {"type": "anchor_defines", "begin": 10, "end": 13,
//	   "edge": "%/kythe/edge/generates",
//	   "vname": {"corpus": "c", "path": "p", "signature": "s"}}]}
//
// A leading "%" on the edge reverses its direction. Rules of type "nop" are
// ignored. Metadata delivered inside a header file arrives base64-encoded in
// a leading comment; ParseFile unwraps that form first.

type jsonVName struct {
	Signature string `json:"signature"`
	Corpus    string `json:"corpus"`
	Root      string `json:"root"`
	Path      string `json:"path"`
	Language  string `json:"language"`
}

type jsonRule struct {
	Type  string     `json:"type"`
	Begin *uint32    `json:"begin"`
	End   *uint32    `json:"end"`
	Edge  string     `json:"edge"`
	VName *jsonVName `json:"vname"`
}

type jsonFile struct {
	Type string     `json:"type"`
	Meta []jsonRule `json:"meta"`
}

// ParseJSON decodes a kythe0 metadata envelope.
func ParseJSON(data []byte) (*File, error) {
	var doc jsonFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if doc.Type != "kythe0" {
		return nil, fmt.Errorf("unexpected metadata type %q", doc.Type)
	}
	var rules []Rule
	for i, jr := range doc.Meta {
		switch jr.Type {
		case "nop":
			continue
		case "anchor_defines":
		default:
			return nil, fmt.Errorf("meta[%d]: unknown rule type %q", i, jr.Type)
		}
		if jr.Begin == nil || jr.End == nil || jr.Edge == "" || jr.VName == nil {
			return nil, fmt.Errorf("meta[%d]: missing field", i)
		}
		v := vname.VName{
			Signature: jr.VName.Signature,
			Corpus:    jr.VName.Corpus,
			Root:      jr.VName.Root,
			Path:      jr.VName.Path,
			Language:  jr.VName.Language,
		}
		if v.IsZero() {
			return nil, fmt.Errorf("meta[%d]: empty vname", i)
		}
		edge := jr.Edge
		reverse := false
		if rest, ok := strings.CutPrefix(edge, "%"); ok {
			edge = rest
			reverse = true
		}
		rules = append(rules, Rule{
			Begin:   *jr.Begin,
			End:     *jr.End,
			EdgeIn:  "/kythe/edge/defines/binding",
			EdgeOut: edge,
			VName:   v,
			Reverse: reverse,
		})
	}
	return NewFile(rules), nil
}

// ParseFile decodes a metadata file, unwrapping the header-comment form for
// files that look like headers. A parse failure is logged and reported as a
// nil File; it never aborts the caller.
func ParseFile(filename string, data []byte) *File {
	if strings.HasSuffix(filename, ".h") {
		if decoded := unwrapHeaderComment(data); decoded != nil {
			data = decoded
		} else {
			slog.Warn("metadata.header.unwrap", "file", filename)
		}
	}
	f, err := ParseJSON(data)
	if err != nil {
		slog.Warn("metadata.parse", "file", filename, "err", err)
		return nil
	}
	return f
}

// unwrapHeaderComment extracts base64 metadata from a leading // or /* */
// comment block, tolerating line breaks inside the payload.
func unwrapHeaderComment(data []byte) []byte {
	buf := string(data)
	if len(buf) < 2 || buf[0] != '/' {
		return nil
	}
	singleLine := buf[1] == '/'
	var raw strings.Builder
	end := len(buf)
	if !singleLine {
		if term := strings.Index(buf, "*/"); term >= 0 {
			end = term
		}
	}
	for pos := 2; pos < end; {
		nl := strings.IndexByte(buf[pos:end], '\n')
		if nl < 0 {
			raw.WriteString(buf[pos:end])
			break
		}
		raw.WriteString(buf[pos : pos+nl])
		pos += nl + 1
		if singleLine {
			break
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw.String()))
	if err != nil {
		return nil
	}
	return decoded
}
