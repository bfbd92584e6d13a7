package config

import (
	"fmt"
	"strings"
)

// Matcher tests a request URL (absolute or origin-relative).
type Matcher interface {
	Match(rawURL string) bool
}

type containsMatcher struct{ Sub string }

func (m containsMatcher) Match(rawURL string) bool { return strings.Contains(rawURL, m.Sub) }

type pathPrefixMatcher struct{ Prefix string }

func (m pathPrefixMatcher) Match(rawURL string) bool {
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		j := strings.IndexByte(rest, '/')
		if j < 0 {
			return false
		}
		path = rest[j:]
	}
	return strings.HasPrefix(path, m.Prefix)
}

// ParseMatch parses "Contains(x) | PathPrefix(/y)" expressions.
func ParseMatch(expr string) ([]Matcher, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty match")
	}

	parts := strings.Split(expr, "|")
	out := make([]Matcher, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		open := strings.IndexByte(p, '(')
		if open < 0 || !strings.HasSuffix(p, ")") {
			return nil, fmt.Errorf("expected Func(arg), got %q", p)
		}
		fn := strings.TrimSpace(p[:open])
		arg := strings.TrimSpace(p[open+1 : len(p)-1])
		if arg == "" {
			return nil, fmt.Errorf("empty argument in %q", p)
		}
		switch fn {
		case "Contains":
			out = append(out, containsMatcher{Sub: arg})
		case "PathPrefix":
			if !strings.HasPrefix(arg, "/") {
				return nil, fmt.Errorf("invalid prefix %q", arg)
			}
			out = append(out, pathPrefixMatcher{Prefix: arg})
		default:
			return nil, fmt.Errorf("only Contains(...) and PathPrefix(...) supported, got %q", p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no valid matchers")
	}
	return out, nil
}
