// Package naming builds and sanitizes output file names.
package naming

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

const hostile = `\/:*?"<>|`

var parens = strings.NewReplacer("(", "", ")", "")

// MaxAnnotation is the maximum annotation length in characters.
const MaxAnnotation = 30

// Sanitize removes characters that are invalid in file names on common
// platforms and replaces spaces with underscores.
func Sanitize(s string) string {
	return strings.ReplaceAll(StripHostile(s), " ", "_")
}

// StripHostile removes path-hostile characters, keeping spaces.
func StripHostile(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || strings.ContainsRune(hostile, r) {
			return -1
		}
		return r
	}, s)
}

// CleanAnnotation trims, truncates to MaxAnnotation characters and replaces
// '/' and '\' with '-'.
func CleanAnnotation(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxAnnotation {
		s = string(r[:MaxAnnotation])
	}
	return strings.NewReplacer("/", "-", `\`, "-").Replace(s)
}

// ImageFileName returns "{groupId}_{subId}[_({annotation})].{ext}". The
// annotation segment keeps its spaces so tags survive round trips; characters
// that cannot appear in a file name are dropped, and so are parentheses, which
// delimit the segment.
func ImageFileName(key models.GroupKey, annotation, ext string) string {
	base := Sanitize(key.GroupID) + "_" + Sanitize(key.SubID)
	if a := strings.TrimSpace(parens.Replace(StripHostile(annotation))); a != "" {
		base += "_(" + a + ")"
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}

// Parse checks that text is a valid name template.
func Parse(name, text string) error {
	_, err := parse(name, text)
	return err
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(sprig.FuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("unable to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Format expands a text/template string with sprig functions available.
func Format(name, text string, data any) (string, error) {
	tmpl, err := parse(name, text)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("unable to expand template %s: %w", name, err)
	}
	return buf.String(), nil
}
