package grid

import (
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/xuri/excelize/v2"
)

// MergedRangeIndex answers which merged range, if any, contains a coordinate.
// Ranges are bucketed by row so a lookup only visits ranges spanning that row.
type MergedRangeIndex struct {
	ranges []models.MergedRange
	byRow  map[int][]int
}

// ExtractMergedRanges builds a MergedRangeIndex for a sheet.
func ExtractMergedRanges(f *excelize.File, sheetName string) (*MergedRangeIndex, error) {
	mergeCells, err := f.GetMergeCells(sheetName)
	if err != nil {
		return nil, err
	}

	ranges := make([]models.MergedRange, 0, len(mergeCells))
	for _, mc := range mergeCells {
		r, err := ParseRange(mc.GetStartAxis() + ":" + mc.GetEndAxis())
		if err != nil {
			continue
		}
		ranges = append(ranges, models.MergedRange{MinRow: r.R1, MaxRow: r.R2, MinCol: r.C1, MaxCol: r.C2})
	}
	return NewMergedRangeIndex(ranges...), nil
}

// NewMergedRangeIndex builds an index over the given ranges. Document order is
// preserved: when ranges overlap (which well-formed sheets never do) the
// earliest one wins.
func NewMergedRangeIndex(ranges ...models.MergedRange) *MergedRangeIndex {
	m := &MergedRangeIndex{
		ranges: ranges,
		byRow:  make(map[int][]int),
	}
	for i, r := range ranges {
		for row := r.MinRow; row <= r.MaxRow; row++ {
			m.byRow[row] = append(m.byRow[row], i)
		}
	}
	return m
}

// Containing returns the merged range containing c.
func (m *MergedRangeIndex) Containing(c models.Coord) (models.MergedRange, bool) {
	if m == nil {
		return models.MergedRange{}, false
	}
	for _, i := range m.byRow[c.Row] {
		if m.ranges[i].Contains(c) {
			return m.ranges[i], true
		}
	}
	return models.MergedRange{}, false
}

// Len returns the number of merged ranges.
func (m *MergedRangeIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ranges)
}
