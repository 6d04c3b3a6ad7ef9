// Package normalize masks volatile content in captured output so that it can
// be compared with stored snapshots.
//
// Rules are data: a name, a regular expression, a replacement template, and
// optional platform and stream scopes. They are applied in declaration
// order, each as a global non-overlapping left-to-right replacement. The
// sequence repeats until the text stops changing, so a replacement that
// splices captured text back in cannot leave work for a second Apply.
package normalize

import (
	_ "embed"
	"fmt"
	"regexp"

	"github.com/roach88/vvharness/internal/capture"
)

//go:embed rules.yaml
var defaultRules []byte

// Stream selects which captured stream a rule applies to.
type Stream string

const (
	StreamBoth   Stream = ""
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// PlatformFamilyUnix matches every platform except windows.
const PlatformFamilyUnix = "unix"

// Rule is one mask rule as written in a rules file.
type Rule struct {
	Name        string   `yaml:"name"`
	Pattern     string   `yaml:"pattern"`
	Replacement string   `yaml:"replacement"`
	Platforms   []string `yaml:"platforms,omitempty"`
	Stream      Stream   `yaml:"stream,omitempty"`
}

// Literal returns a rule replacing every occurrence of text verbatim.
func Literal(name, text, replacement string) Rule {
	return Rule{Name: name, Pattern: regexp.QuoteMeta(text), Replacement: replacement}
}

// AppliesTo reports whether the rule is scoped to platform.
func (r Rule) AppliesTo(platform string) bool {
	if len(r.Platforms) == 0 {
		return true
	}
	for _, p := range r.Platforms {
		if p == platform || (p == PlatformFamilyUnix && platform != "windows") {
			return true
		}
	}
	return false
}

// covers reports whether r runs on stream s.
func (r Rule) covers(s Stream) bool {
	return r.Stream == StreamBoth || r.Stream == s
}

// compiled is a Rule with its pattern compiled.
type compiled struct {
	Rule
	re *regexp.Regexp
}

// RuleSet is an ordered, compiled list of rules. It is safe for concurrent
// use.
type RuleSet struct {
	rules []compiled
}

// Compile validates and compiles rules. A bad pattern, a duplicate name, an
// unknown stream, or a replacement that some rule in the set would match
// again is an error.
func Compile(rules []Rule) (*RuleSet, error) {
	set := &RuleSet{rules: make([]compiled, 0, len(rules))}
	seen := make(map[string]bool, len(rules))

	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("normalize: rule with pattern %q has no name", r.Pattern)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("normalize: duplicate rule %q", r.Name)
		}
		seen[r.Name] = true

		switch r.Stream {
		case StreamBoth, StreamStdout, StreamStderr:
		default:
			return nil, fmt.Errorf("normalize: rule %q: invalid stream %q", r.Name, r.Stream)
		}

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("normalize: rule %q: %w", r.Name, err)
		}
		// Splicing a group in twice grows the text on every pass.
		if group, ok := repeatedGroup(r.Replacement); ok {
			return nil, fmt.Errorf("normalize: rule %q: replacement references group %s more than once", r.Name, group)
		}
		set.rules = append(set.rules, compiled{Rule: r, re: re})
	}

	// A placeholder that some rule matches would be rewritten on a second
	// pass.
	for _, r := range set.rules {
		token := placeholder(r.re, r.Replacement)
		if token == "" {
			continue
		}
		for _, other := range set.rules {
			if other.re.MatchString(token) {
				return nil, fmt.Errorf("normalize: rule %q: replacement %q is matched by rule %q",
					r.Name, token, other.Name)
			}
		}
	}
	return set, nil
}

// placeholder returns the literal part of a replacement template with group
// references expanded to nothing.
func placeholder(re *regexp.Regexp, tmpl string) string {
	return string(re.ExpandString(nil, tmpl, "", nil))
}

var groupRef = regexp.MustCompile(`\$\$|\$\{([A-Za-z0-9_]+)\}|\$([A-Za-z0-9_]+)`)

// repeatedGroup reports the first group referenced twice in tmpl.
func repeatedGroup(tmpl string) (string, bool) {
	seen := make(map[string]bool)
	for _, m := range groupRef.FindAllStringSubmatch(tmpl, -1) {
		name := m[1] + m[2]
		if name == "" { // "$$"
			continue
		}
		if seen[name] {
			return name, true
		}
		seen[name] = true
	}
	return "", false
}

// Default compiles the embedded rule set.
func Default() (*RuleSet, error) {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		return nil, err
	}
	return Compile(rules)
}

// Rules returns the rule definitions in application order.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Rule
	}
	return out
}

// With returns a new set with extra appended after the existing rules.
func (s *RuleSet) With(extra ...Rule) (*RuleSet, error) {
	return Compile(append(s.Rules(), extra...))
}

// Apply masks text captured from stream on platform. Passes over the rules
// repeat until one leaves the text unchanged, at most once per rule plus
// one.
func (s *RuleSet) Apply(text string, stream Stream, platform string) string {
	for pass := 0; pass <= len(s.rules); pass++ {
		next := s.pass(text, stream, platform)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// pass applies every matching rule once, in order.
func (s *RuleSet) pass(text string, stream Stream, platform string) string {
	for _, r := range s.rules {
		if !r.covers(stream) || !r.AppliesTo(platform) {
			continue
		}
		text = r.re.ReplaceAllString(text, r.Replacement)
	}
	return text
}

// Normalize returns a copy of out with both streams masked. The exit code is
// never altered.
func (s *RuleSet) Normalize(out capture.Output, platform string) capture.Output {
	return out.
		WithStdout(s.Apply(out.Stdout, StreamStdout, platform)).
		WithStderr(s.Apply(out.Stderr, StreamStderr, platform))
}

// Names lists the rule names in order.
func (s *RuleSet) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}
