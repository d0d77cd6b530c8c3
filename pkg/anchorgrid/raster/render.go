package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// GridRenderer draws the values of a range as a plain table. It needs no
// external process and ignores styling.
type GridRenderer struct {
	// CellWidth and CellHeight are the size of one cell in pixels.
	CellWidth  int
	CellHeight int
	// MaxCells bounds the rendered area.
	MaxCells int
}

// NewGridRenderer returns a GridRenderer sized for the 7x13 basic font.
func NewGridRenderer() *GridRenderer {
	return &GridRenderer{CellWidth: 72, CellHeight: 20, MaxCells: 10000}
}

var (
	gridLine = color.NRGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}
	face     = basicfont.Face7x13
)

// Render implements Rasterizer.
func (g *GridRenderer) Render(ctx context.Context, sheet *grid.Sheet, rng models.Range) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rng.R1 < 1 || rng.C1 < 1 || rng.Rows() < 1 || rng.Cols() < 1 {
		return nil, fmt.Errorf("invalid range %+v", rng)
	}
	if g.MaxCells > 0 && rng.Rows()*rng.Cols() > g.MaxCells {
		return nil, fmt.Errorf("range %s:%s exceeds %d cells",
			grid.CellName(models.Coord{Row: rng.R1, Col: rng.C1}),
			grid.CellName(models.Coord{Row: rng.R2, Col: rng.C2}), g.MaxCells)
	}

	w, h := rng.Cols()*g.CellWidth+1, rng.Rows()*g.CellHeight+1
	img := imaging.New(w, h, color.White)

	for i := 0; i <= rng.Rows(); i++ {
		draw.Draw(img, image.Rect(0, i*g.CellHeight, w, i*g.CellHeight+1), image.NewUniform(gridLine), image.Point{}, draw.Src)
	}
	for j := 0; j <= rng.Cols(); j++ {
		draw.Draw(img, image.Rect(j*g.CellWidth, 0, j*g.CellWidth+1, h), image.NewUniform(gridLine), image.Point{}, draw.Src)
	}

	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	baseline := (g.CellHeight + face.Ascent - face.Descent) / 2
	for row := rng.R1; row <= rng.R2; row++ {
		for col := rng.C1; col <= rng.C2; col++ {
			v, ok := sheet.Grid.Value(row, col)
			if !ok {
				continue
			}
			x := (col-rng.C1)*g.CellWidth + 3
			y := (row-rng.R1)*g.CellHeight + baseline
			d.Dot = fixed.P(x, y)
			d.DrawString(fit(v, g.CellWidth-6))
		}
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("unable to encode range image: %w", err)
	}
	return buf.Bytes(), nil
}

// fit truncates s so that it is at most width pixels wide.
func fit(s string, width int) string {
	adv := face.Advance
	if width <= 0 || adv <= 0 {
		return ""
	}
	r := []rune(s)
	if n := width / adv; len(r) > n {
		r = r[:n]
	}
	return string(r)
}
