// Package models defines data structures shared by the grid correlation engine.
package models

import "fmt"

// Coord is a 1-based (row, column) cell coordinate.
type Coord struct {
	// Row is the row index (1-based).
	Row int `json:"row"`
	// Col is the column index (1-based).
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("R%dC%d", c.Row, c.Col)
}

// Cell is a single non-empty grid cell.
type Cell struct {
	Coord
	// Value is the cell text as presented by the workbook.
	Value string `json:"value"`
}

// CellRow represents a single row of non-empty cells.
type CellRow struct {
	// R is the row index (1-based).
	R int `json:"r"`
	// Cells holds the row's non-empty cells in ascending column order.
	Cells []Cell `json:"cells"`
}
