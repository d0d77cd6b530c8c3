package models

// MergedRange is a rectangular block of cells presented as one logical cell.
type MergedRange struct {
	MinRow int `json:"min_row"`
	MaxRow int `json:"max_row"`
	MinCol int `json:"min_col"`
	MaxCol int `json:"max_col"`
}

// Contains reports whether the coordinate lies inside the range.
func (m MergedRange) Contains(c Coord) bool {
	return m.MinRow <= c.Row && c.Row <= m.MaxRow && m.MinCol <= c.Col && c.Col <= m.MaxCol
}

// Span is an inclusive [Lo, Hi] interval. It is empty when Lo > Hi.
type Span struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Empty reports whether the span holds no index.
func (s Span) Empty() bool {
	return s.Lo > s.Hi
}

// SearchWindow is the bounded region scanned for a correlated image.
type SearchWindow struct {
	Rows Span `json:"rows"`
	Cols Span `json:"cols"`
}

// Empty reports whether the window contains no coordinate.
func (w SearchWindow) Empty() bool {
	return w.Rows.Empty() || w.Cols.Empty()
}

// AnchoredImage is a raster image embedded in a sheet, keyed by the top-left
// cell it is anchored to.
type AnchoredImage struct {
	Anchor Coord `json:"anchor"`
	// Extension is the extension recorded by the workbook (e.g. ".png").
	Extension string `json:"extension,omitempty"`
	// Data holds the raw image bytes.
	Data []byte `json:"-"`
}
