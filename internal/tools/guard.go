package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// Rejection is returned when an argument set is refused before any backend
// call is attempted.
type Rejection struct {
	Param string
	Hint  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", r.Param, r.Hint)
}

// Placeholder patterns for entity-reference values. A generic noun with a
// numeric suffix ("servo-01", "device2") or an example/demo prefix is almost
// always an LLM guess rather than a name the user actually gave. This is a
// heuristic: a real device that happens to be named "axis7" will be rejected,
// and the operator should rename it or relax the pattern here.
var (
	placeholderNoun   = regexp.MustCompile(`^(device|servo|motor|axis|drive|controller|robot|stage)[-_]?\d+$`)
	placeholderPrefix = regexp.MustCompile(`^(example|demo|test|sample|placeholder|dummy)([-_./]|$)`)
)

// Validate checks a call's arguments against the tool's declared contract.
// It verifies that every required parameter is present, then tests
// entity-reference values for placeholder patterns. Validate is purely local
// and performs no I/O.
func Validate(desc Descriptor, args map[string]interface{}) *Rejection {
	for _, p := range desc.Params {
		if !p.Required {
			continue
		}
		v, ok := args[p.Name]
		if !ok || v == nil {
			return &Rejection{
				Param: p.Name,
				Hint:  fmt.Sprintf("parameter %q is required; ask the user for it", p.Name),
			}
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return &Rejection{
				Param: p.Name,
				Hint:  fmt.Sprintf("parameter %q is required; ask the user for it", p.Name),
			}
		}
	}

	for _, p := range desc.Params {
		if !p.EntityRef {
			continue
		}
		v, ok := args[p.Name]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			continue
		}
		if looksLikePlaceholder(s) {
			return &Rejection{
				Param: p.Name,
				Hint: fmt.Sprintf("%q looks like a placeholder, not a real device name; "+
					"ask the user which device they mean instead of guessing another value", s),
			}
		}
	}
	return nil
}

func looksLikePlaceholder(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return placeholderNoun.MatchString(s) || placeholderPrefix.MatchString(s)
}
