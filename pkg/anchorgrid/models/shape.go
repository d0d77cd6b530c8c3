package models

// TextBox is a drawing shape carrying text, as found in a sheet's drawing part.
type TextBox struct {
	// ID is the shape id from the drawing (cNvPr id).
	ID string `json:"id"`
	// Name is the shape name.
	Name string `json:"name,omitempty"`
	// Text is the visible text content of the shape.
	Text string `json:"text"`
}
