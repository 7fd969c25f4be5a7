package triggers

import (
	"fmt"
	"strings"

	"uitforum/internal/docstore"
)

// Pattern 文档路径模式，例如 "Community/{communityID}/Post/{postID}"
type Pattern struct {
	raw      string
	segments []string
}

func ParsePattern(raw string) (Pattern, error) {
	clean := docstore.Clean(raw)
	if !docstore.IsDocumentPath(clean) {
		return Pattern{}, fmt.Errorf("pattern %q must point at a document", raw)
	}
	segments := strings.Split(clean, "/")
	for _, s := range segments {
		if s == "" || (strings.HasPrefix(s, "{") != strings.HasSuffix(s, "}")) {
			return Pattern{}, fmt.Errorf("pattern %q has malformed segment %q", raw, s)
		}
	}
	return Pattern{raw: clean, segments: segments}, nil
}

func MustPattern(raw string) Pattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	return p.raw
}

// Match returns the wildcard values when path has exactly the pattern's shape.
func (p Pattern) Match(path string) (map[string]string, bool) {
	parts := strings.Split(docstore.Clean(path), "/")
	if len(parts) != len(p.segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range p.segments {
		if strings.HasPrefix(seg, "{") {
			params[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}
