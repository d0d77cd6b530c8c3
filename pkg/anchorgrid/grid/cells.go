package grid

import (
	"sort"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/xuri/excelize/v2"
)

// GridIndex holds the non-empty cells of one sheet. It supports sparse lookup
// by coordinate and ascending row-ordered iteration.
type GridIndex struct {
	rows  []models.CellRow
	cells map[models.Coord]string
}

// ExtractCells builds a GridIndex for a sheet.
func ExtractCells(f *excelize.File, sheetName string) (*GridIndex, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	return NewGridIndex(rows), nil
}

// NewGridIndex builds a GridIndex from a dense [row][col] value matrix where
// index 0 is row/column 1. Empty strings are treated as empty cells.
func NewGridIndex(rows [][]string) *GridIndex {
	g := &GridIndex{cells: make(map[models.Coord]string)}

	for rowIdx, row := range rows {
		rowNum := rowIdx + 1 // 1-based row index
		var cells []models.Cell

		for colIdx, cellValue := range row {
			if cellValue == "" {
				continue
			}
			c := models.Cell{Coord: models.Coord{Row: rowNum, Col: colIdx + 1}, Value: cellValue}
			cells = append(cells, c)
			g.cells[c.Coord] = cellValue
		}

		if len(cells) > 0 {
			g.rows = append(g.rows, models.CellRow{R: rowNum, Cells: cells})
		}
	}

	return g
}

// NewGridIndexFromCells builds a GridIndex from sparse cells in any order.
func NewGridIndexFromCells(cells ...models.Cell) *GridIndex {
	g := &GridIndex{cells: make(map[models.Coord]string, len(cells))}
	for _, c := range cells {
		if c.Value == "" {
			continue
		}
		g.cells[c.Coord] = c.Value
	}

	coords := make([]models.Coord, 0, len(g.cells))
	for c := range g.cells {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Row != coords[j].Row {
			return coords[i].Row < coords[j].Row
		}
		return coords[i].Col < coords[j].Col
	})

	for _, c := range coords {
		cell := models.Cell{Coord: c, Value: g.cells[c]}
		if n := len(g.rows); n > 0 && g.rows[n-1].R == c.Row {
			g.rows[n-1].Cells = append(g.rows[n-1].Cells, cell)
			continue
		}
		g.rows = append(g.rows, models.CellRow{R: c.Row, Cells: []models.Cell{cell}})
	}
	return g
}

// Value returns the value at (row, col) and whether the cell is non-empty.
func (g *GridIndex) Value(row, col int) (string, bool) {
	if g == nil {
		return "", false
	}
	v, ok := g.cells[models.Coord{Row: row, Col: col}]
	return v, ok
}

// ValueAt returns the value at an A1-style reference such as "H8".
func (g *GridIndex) ValueAt(ref string) (string, bool, error) {
	c, err := ParseCell(ref)
	if err != nil {
		return "", false, err
	}
	v, ok := g.Value(c.Row, c.Col)
	return v, ok, nil
}

// Rows returns non-empty rows in ascending order, each with its cells in
// ascending column order. The slice must not be modified.
func (g *GridIndex) Rows() []models.CellRow {
	if g == nil {
		return nil
	}
	return g.rows
}

// Len returns the number of non-empty cells.
func (g *GridIndex) Len() int {
	if g == nil {
		return 0
	}
	return len(g.cells)
}
