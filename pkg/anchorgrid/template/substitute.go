package template

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// Substitution replaces placeholder tokens in template text.
type Substitution struct {
	// Marker is replaced by the tag string of the group named in the scope.
	Marker string
	// Pattern finds the raw group value (first submatch) in the scope.
	Pattern *regexp.Regexp
	// Tags maps raw group values to their tag strings.
	Tags map[string]string
	// Identifiers maps literal tokens to replacement values.
	Identifiers map[string]string
}

// NewSubstitution builds the substitution for one document.
func NewSubstitution(p config.PlaceholderConfig, pattern *regexp.Regexp, mapping *models.TemplateMapping) *Substitution {
	s := &Substitution{
		Marker:      p.Marker,
		Pattern:     pattern,
		Tags:        make(map[string]string, len(mapping.Groups)),
		Identifiers: make(map[string]string, len(p.Identifiers)),
	}
	for _, g := range mapping.Groups {
		s.Tags[g.Group] = g.Tags
	}
	for token, field := range p.Identifiers {
		if v, ok := mapping.Texts[field]; ok {
			s.Identifiers[token] = v
		}
	}
	return s
}

// Apply returns text with identifier tokens and, when scope names a known
// group, the marker replaced. It reports whether anything changed.
func (s *Substitution) Apply(scope, text string) (string, bool) {
	out := text

	// longest tokens first so that a token never clobbers a longer one
	tokens := make([]string, 0, len(s.Identifiers))
	for t := range s.Identifiers {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	for _, t := range tokens {
		out = strings.ReplaceAll(out, t, s.Identifiers[t])
	}

	if s.Marker != "" && s.Pattern != nil && strings.Contains(out, s.Marker) {
		if m := s.Pattern.FindStringSubmatch(scope); len(m) > 1 {
			if tags, ok := s.Tags[m[1]]; ok {
				out = strings.ReplaceAll(out, s.Marker, tags)
			}
		}
	}
	return out, out != text
}

// candidate is a cheap pre-check for Apply.
func (s *Substitution) candidate(text string) bool {
	if s.Marker != "" && strings.Contains(text, s.Marker) {
		return true
	}
	for t := range s.Identifiers {
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}
