// Package correlate finds the image associated with a phrase in a sheet.
package correlate

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/naming"
)

// ErrNotFound reports that a phrase or an image could not be found.
var ErrNotFound = errors.New("not found")

// Match is the cell matched by Locate.
type Match struct {
	Coord models.Coord
	Value string
	// Annotation is the cleaned text after the first ':', "" if there is none.
	Annotation string
}

// Locate scans rows in ascending order, and columns in ascending order within
// a row, returning the first cell whose value contains phrase regardless of
// case.
func Locate(g *grid.GridIndex, phrase string) (Match, error) {
	folder := cases.Fold()
	needle := folder.String(phrase)

	for _, row := range g.Rows() {
		for _, cell := range row.Cells {
			if !strings.Contains(folder.String(cell.Value), needle) {
				continue
			}
			return Match{
				Coord:      cell.Coord,
				Value:      cell.Value,
				Annotation: Annotation(cell.Value),
			}, nil
		}
	}
	return Match{}, ErrNotFound
}

// Annotation returns the cleaned text following the first ':' in value.
func Annotation(value string) string {
	_, after, ok := strings.Cut(value, ":")
	if !ok {
		return ""
	}
	return naming.CleanAnnotation(after)
}
