package grid

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound indicates that a sheet index does not exist in a workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// Sheet bundles the read-only indices built for one worksheet.
type Sheet struct {
	Name   string
	Index  int
	Grid   *GridIndex
	Merged *MergedRangeIndex
	Images *ImageAnchorIndex
}

// Document is an opened grid document. Sheet indices are built lazily, once
// per sheet, and live as long as the Document.
type Document struct {
	Path string

	f      *excelize.File
	sheets map[int]*Sheet
}

// Open opens the workbook at path.
func Open(path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &Document{Path: path, f: f, sheets: make(map[int]*Sheet)}, nil
}

// SheetCount returns the number of sheets in the workbook.
func (d *Document) SheetCount() int {
	return len(d.f.GetSheetList())
}

// SheetAt returns the indexed sheet at a 0-based position.
func (d *Document) SheetAt(index int) (*Sheet, error) {
	if s, ok := d.sheets[index]; ok {
		return s, nil
	}

	list := d.f.GetSheetList()
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: index %d (workbook has %d sheets)", ErrSheetNotFound, index, len(list))
	}
	name := list[index]

	s, err := buildSheet(d.f, name, index)
	if err != nil {
		return nil, err
	}
	d.sheets[index] = s
	return s, nil
}

func buildSheet(f *excelize.File, name string, index int) (*Sheet, error) {
	g, err := ExtractCells(f, name)
	if err != nil {
		return nil, fmt.Errorf("cells of sheet %q: %w", name, err)
	}
	merged, err := ExtractMergedRanges(f, name)
	if err != nil {
		return nil, fmt.Errorf("merged ranges of sheet %q: %w", name, err)
	}
	images, err := ExtractImages(f, name)
	if err != nil {
		return nil, fmt.Errorf("images of sheet %q: %w", name, err)
	}
	return &Sheet{Name: name, Index: index, Grid: g, Merged: merged, Images: images}, nil
}

// Close releases the workbook. Built sheets are discarded.
func (d *Document) Close() error {
	d.sheets = nil
	return d.f.Close()
}
