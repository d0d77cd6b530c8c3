// Package fixture builds small workbooks and images for tests.
package fixture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// PNG returns an encoded w x h PNG filled with c.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Workbook is a declarative description of a test workbook.
type Workbook struct {
	// Sheets lists sheet names in order; the first one renames the default sheet.
	Sheets []string
	// Values maps sheet -> cell -> value.
	Values map[string]map[string]any
	// Merges maps sheet -> list of "A1:B2" ranges.
	Merges map[string][]string
	// Pictures maps sheet -> anchor cell -> PNG bytes.
	Pictures map[string]map[string][]byte
}

// Save writes the workbook into dir/name and returns the path.
func (w Workbook) Save(t testing.TB, dir, name string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheets := w.Sheets
	if len(sheets) == 0 {
		sheets = []string{"Sheet1"}
	}
	if err := f.SetSheetName("Sheet1", sheets[0]); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for _, s := range sheets[1:] {
		if _, err := f.NewSheet(s); err != nil {
			t.Fatalf("new sheet %q: %v", s, err)
		}
	}

	for sheet, cells := range w.Values {
		for cell, v := range cells {
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set %s!%s: %v", sheet, cell, err)
			}
		}
	}
	for sheet, ranges := range w.Merges {
		for _, r := range ranges {
			from, to, _ := strings.Cut(r, ":")
			if err := f.MergeCell(sheet, from, to); err != nil {
				t.Fatalf("merge %s!%s: %v", sheet, r, err)
			}
		}
	}
	for sheet, pics := range w.Pictures {
		for cell, data := range pics {
			pic := &excelize.Picture{Extension: ".png", File: data, Format: &excelize.GraphicOptions{}}
			if err := f.AddPictureFromBytes(sheet, cell, pic); err != nil {
				t.Fatalf("add picture %s!%s: %v", sheet, cell, err)
			}
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
	return path
}
