package grid

import (
	"fmt"
	"strings"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/xuri/excelize/v2"
)

// ParseRange parses a range reference such as "B2:H30", "$A$1:$D$10" or
// "'Sheet 1'!$A$1:$D$10" (the sheet qualifier is ignored). A single cell
// reference yields a one-cell range. Reversed corners are normalized.
func ParseRange(ref string) (models.Range, error) {
	_, rangeStr := splitSheetRef(ref)

	// Remove $ signs
	rangeStr = strings.ReplaceAll(rangeStr, "$", "")

	parts := strings.Split(rangeStr, ":")
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}
	if len(parts) != 2 {
		return models.Range{}, fmt.Errorf("invalid range reference %q", ref)
	}

	startCol, startRow, err := excelize.CellNameToCoordinates(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.Range{}, fmt.Errorf("invalid range reference %q: %w", ref, err)
	}

	endCol, endRow, err := excelize.CellNameToCoordinates(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Range{}, fmt.Errorf("invalid range reference %q: %w", ref, err)
	}

	return models.Range{
		R1: min(startRow, endRow),
		C1: min(startCol, endCol),
		R2: max(startRow, endRow),
		C2: max(startCol, endCol),
	}, nil
}

// ParseCell parses a single cell reference such as "H8" or "$H$8".
func ParseCell(ref string) (models.Coord, error) {
	_, cell := splitSheetRef(ref)
	cell = strings.TrimSpace(strings.ReplaceAll(cell, "$", ""))
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil {
		return models.Coord{}, fmt.Errorf("invalid cell reference %q: %w", ref, err)
	}
	return models.Coord{Row: row, Col: col}, nil
}

// CellName converts a coordinate back to A1 notation.
func CellName(c models.Coord) string {
	name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
	if err != nil {
		return c.String()
	}
	return name
}

// splitSheetRef splits 'SheetName'!$A$1:$D$10 or SheetName!A1 into its sheet
// and range parts.
func splitSheetRef(ref string) (string, string) {
	ref = strings.TrimSpace(ref)
	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		return strings.Trim(ref[:idx], "'"), ref[idx+1:]
	}
	return "", ref
}
