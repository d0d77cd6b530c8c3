package correlate

import (
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// DefaultOffset is the number of rows above a matched cell that are searched.
const DefaultOffset = 12

// ResolveWindow computes the search window for a matched coordinate. Rows are
// [max(1, row-offset), row-1], strictly above the match and independent of any
// merged row span. Columns are the containing merged range's columns, or the
// matched column alone.
func ResolveWindow(merged *grid.MergedRangeIndex, target models.Coord, offset int) models.SearchWindow {
	cols := models.Span{Lo: target.Col, Hi: target.Col}
	if m, ok := merged.Containing(target); ok {
		cols = models.Span{Lo: m.MinCol, Hi: m.MaxCol}
	}

	return models.SearchWindow{
		Rows: models.Span{Lo: max(1, target.Row-offset), Hi: target.Row - 1},
		Cols: cols,
	}
}

// ExpandedWindow returns the block covered by target (its merged range or the
// cell itself) widened by one row above and one column to the left. It is
// used for image fields that name the cell the picture sits on.
func ExpandedWindow(merged *grid.MergedRangeIndex, target models.Coord) models.SearchWindow {
	block := models.MergedRange{MinRow: target.Row, MaxRow: target.Row, MinCol: target.Col, MaxCol: target.Col}
	if m, ok := merged.Containing(target); ok {
		block = m
	}

	return models.SearchWindow{
		Rows: models.Span{Lo: max(1, block.MinRow-1), Hi: block.MaxRow},
		Cols: models.Span{Lo: max(1, block.MinCol-1), Hi: block.MaxCol},
	}
}
