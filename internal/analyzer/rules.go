package analyzer

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/urlscan/internal/config"
)

// Kind is the signal a rule inspects.
type Kind int

const (
	// KindHeader rules inspect response headers.
	KindHeader Kind = iota
	// KindMeta rules inspect the <meta name="generator"> content.
	KindMeta
	// KindScript rules inspect <script src> references.
	KindScript
	// KindBody rules inspect the lowercased body text.
	KindBody
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindMeta:
		return "meta"
	case KindScript:
		return "script"
	case KindBody:
		return "body"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Signals is what rules match against.
type Signals struct {
	Header    http.Header
	Generator string
	Scripts   []string

	// LowerBody is the decoded body, lowercased.
	LowerBody string
}

// Rule contributes component labels for a page. Match returns the labels
// to add, or nil.
type Rule struct {
	// Label names the rule. Rules that compute their label from the page,
	// like header rules, return that label from Match instead.
	Label string
	Kind  Kind
	Match func(s *Signals) []string
}

// Registry is an ordered list of rules. Rules run in registration order
// and the first spelling of a label wins.
type Registry struct {
	rules []Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make([]Rule, 0)}
}

// DefaultRegistry returns the built-in rules: server headers, the meta
// generator and body markers for common frameworks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, key := range defaultHeaderKeys {
		r.Register(HeaderValueRule(key))
	}
	r.Register(GeneratorRule())
	for _, m := range defaultBodyMarkers {
		r.Register(BodyRule(m.label, m.contains...))
	}
	return r
}

// Register appends rule.
func (r *Registry) Register(rule Rule) {
	if rule.Match == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// Rules returns a copy of the registered rules.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Evaluate runs every rule and returns the de-duplicated labels in
// first-seen order. Labels are compared with Unicode case folding. The
// result is never nil.
func (r *Registry) Evaluate(s *Signals) []string {
	labels := make([]string, 0)
	seen := make(map[string]struct{})
	fold := cases.Fold()

	for _, rule := range r.rules {
		for _, label := range rule.Match(s) {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			key := fold.String(label)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			labels = append(labels, label)
		}
	}
	return labels
}

var defaultHeaderKeys = []string{
	"Server",
	"X-Powered-By",
	"Via",
	"X-AspNet-Version",
	"X-AspNetMvc-Version",
}

var defaultBodyMarkers = []struct {
	label    string
	contains []string
}{
	{label: "WordPress", contains: []string{"wp-content", "wordpress"}},
	{label: "Drupal", contains: []string{"drupal-settings-json", "drupal"}},
	{label: "Joomla", contains: []string{`content="joomla`, "joomla!"}},
	{label: "Next.js", contains: []string{"__next", "next.js"}},
	{label: "Nuxt", contains: []string{"__nuxt", "nuxt"}},
	{label: "React", contains: []string{"reactroot", "data-reactroot", "react-dom"}},
	{label: "Vue", contains: []string{"data-v-", "vue.js", "vue.runtime"}},
	{label: "ASP.NET", contains: []string{"__viewstate", "asp.net"}},
	{label: "PHP", contains: []string{".php", "<?php", "php/"}},
	{label: "Java", contains: []string{"jsessionid", "java servlet", "jsp"}},
}

// HeaderValueRule reports "key: value" when the header is present.
func HeaderValueRule(key string) Rule {
	canonical := http.CanonicalHeaderKey(key)
	return Rule{
		Label: key,
		Kind:  KindHeader,
		Match: func(s *Signals) []string {
			value := strings.TrimSpace(s.Header.Get(canonical))
			if value == "" {
				return nil
			}
			return []string{key + ": " + value}
		},
	}
}

// HeaderRule reports label when header is present and, if contains is not
// empty, its value contains that substring case-insensitively.
func HeaderRule(label, header, contains string) Rule {
	contains = strings.ToLower(contains)
	return Rule{
		Label: label,
		Kind:  KindHeader,
		Match: func(s *Signals) []string {
			values := s.Header.Values(header)
			for _, v := range values {
				if contains == "" || strings.Contains(strings.ToLower(v), contains) {
					return []string{label}
				}
			}
			return nil
		},
	}
}

// GeneratorRule reports "Meta Generator: <content>".
func GeneratorRule() Rule {
	return Rule{
		Label: "Meta Generator",
		Kind:  KindMeta,
		Match: func(s *Signals) []string {
			if s.Generator == "" {
				return nil
			}
			return []string{"Meta Generator: " + s.Generator}
		},
	}
}

// BodyRule reports label when the lowercased body contains any of the
// substrings.
func BodyRule(label string, substrings ...string) Rule {
	lower := lowerAll(substrings)
	return Rule{
		Label: label,
		Kind:  KindBody,
		Match: func(s *Signals) []string {
			for _, sub := range lower {
				if strings.Contains(s.LowerBody, sub) {
					return []string{label}
				}
			}
			return nil
		},
	}
}

// ScriptRule reports label when any <script src> contains one of the
// substrings, ignoring case.
func ScriptRule(label string, substrings ...string) Rule {
	lower := lowerAll(substrings)
	return Rule{
		Label: label,
		Kind:  KindScript,
		Match: func(s *Signals) []string {
			for _, src := range s.Scripts {
				src = strings.ToLower(src)
				for _, sub := range lower {
					if strings.Contains(src, sub) {
						return []string{label}
					}
				}
			}
			return nil
		},
	}
}

// RuleFromConfig converts a config file rule. The rule is assumed to have
// passed config.File.Validate.
func RuleFromConfig(rc config.RuleConfig) Rule {
	switch {
	case rc.Header != "":
		return HeaderRule(rc.Label, rc.Header, rc.HeaderContains)
	case len(rc.Script) > 0:
		return ScriptRule(rc.Label, rc.Script...)
	default:
		return BodyRule(rc.Label, rc.Body...)
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		out = append(out, strings.ToLower(s))
	}
	return out
}
