// Package template fills output workbooks from a template.
package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/imgcheck"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// Result summarizes one template fill.
type Result struct {
	Path string `json:"path"`
	// Skipped lists fields that could not be placed.
	Skipped []string `json:"skipped,omitempty"`
	// Images is the number of pictures inserted.
	Images int `json:"images"`
	// Cells and Shapes count placeholder substitutions.
	Cells  int `json:"cells"`
	Shapes int `json:"shapes"`
}

// Writer places extracted values into a copy of the template workbook.
type Writer struct {
	Config *config.Config
	Log    *zap.Logger
}

// NewWriter returns a Writer for cfg.
func NewWriter(cfg *config.Config, log *zap.Logger) *Writer {
	return &Writer{Config: cfg, Log: log}
}

// Write fills templatePath with mapping and saves the result at outPath.
// Fields whose destination cannot be resolved are skipped with a warning.
func (w *Writer) Write(ctx context.Context, mapping *models.TemplateMapping, templatePath, outPath string) (res *Result, err error) {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open template %s: %w", templatePath, err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	res = &Result{Path: outPath}
	skip := func(field string, err error) {
		w.Log.Warn("Template field skipped", zap.String("field", field), zap.Error(err))
		res.Skipped = append(res.Skipped, field)
	}

	for _, fd := range w.Config.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch fd.Kind {
		case config.KindText:
			value, ok := mapping.Texts[fd.Name]
			if !ok {
				continue
			}
			if err := w.writeText(f, fd.Destination, value); err != nil {
				skip(fd.Name, config.Unavailable(fd.Name, err))
			}
		case config.KindImage, config.KindRange:
			file, ok := mapping.Images[fd.Name]
			if !ok {
				continue
			}
			n, err := w.placeImage(f, fd.Destination.Sheet, fd.Destination.Cells, file, fd.Destination.WidthCM, fd.Destination.HeightCM)
			res.Images += n
			if err != nil {
				skip(fd.Name, config.Unavailable(fd.Name, err))
			}
		}
	}

	dest := w.Config.Correlation.Destination
	for _, g := range mapping.Groups {
		cells := dest.Cells[g.Group]
		for i, sub := range g.Subs {
			if sub.ImagePath == "" {
				continue
			}
			name := g.GroupID + "/" + sub.SubID
			if i >= len(cells) {
				skip(name, config.Unavailable(name, fmt.Errorf("no destination cell for sub-group %d", i+1)))
				continue
			}
			n, err := w.placeImage(f, dest.Sheet, cells[i:i+1], sub.ImagePath, dest.WidthCM, dest.HeightCM)
			res.Images += n
			if err != nil {
				skip(name, config.Unavailable(name, err))
			}
		}
	}

	sub := NewSubstitution(w.Config.Placeholders, w.Config.GroupPattern(), mapping)
	if res.Cells, err = substituteCells(f, sub); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("unable to create output folder: %w", err)
	}
	if err := f.SaveAs(outPath); err != nil {
		return nil, fmt.Errorf("unable to save %s: %w", outPath, err)
	}

	if res.Shapes, err = RewriteTextBoxes(outPath, sub); err != nil {
		return nil, fmt.Errorf("unable to rewrite text boxes: %w", err)
	}

	w.Log.Debug("Template written",
		zap.String("path", outPath),
		zap.Int("images", res.Images),
		zap.Int("cells", res.Cells),
		zap.Int("shapes", res.Shapes),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// sheetName resolves a logical template sheet to the workbook sheet name.
func (w *Writer) sheetName(f *excelize.File, logical string) (string, error) {
	idx, err := w.Config.SheetIndex(config.DocTemplate, logical)
	if err != nil {
		return "", err
	}
	name := f.GetSheetName(idx)
	if name == "" {
		return "", &config.FieldUnavailableError{DocType: config.DocTemplate, Sheet: logical, Err: grid.ErrSheetNotFound}
	}
	return name, nil
}

func (w *Writer) writeText(f *excelize.File, dest config.Destination, value string) error {
	sheet, err := w.sheetName(f, dest.Sheet)
	if err != nil {
		return err
	}
	for _, cell := range dest.Cells {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return &config.FieldUnavailableError{DocType: config.DocTemplate, Sheet: dest.Sheet, Ref: cell, Err: err}
		}
	}
	return nil
}

// placeImage inserts the picture at file into every cell, scaled to the
// requested size in centimetres. A single given dimension keeps the aspect
// ratio. It returns the number of pictures inserted.
func (w *Writer) placeImage(f *excelize.File, logical string, cells []string, file string, widthCM, heightCM float64) (int, error) {
	sheet, err := w.sheetName(f, logical)
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	info, err := imgcheck.Validate(data)
	if err != nil {
		return 0, err
	}
	scaleX, scaleY := Scale(info.Width, info.Height, widthCM, heightCM)

	n := 0
	for _, cell := range cells {
		pic := &excelize.Picture{
			Extension: "." + info.Ext,
			File:      data,
			Format: &excelize.GraphicOptions{
				ScaleX:      scaleX,
				ScaleY:      scaleY,
				Positioning: "oneCell",
			},
		}
		if err := f.AddPictureFromBytes(sheet, cell, pic); err != nil {
			return n, &config.FieldUnavailableError{DocType: config.DocTemplate, Sheet: logical, Ref: cell, Err: err}
		}
		n++
	}
	return n, nil
}

// Scale returns the picture scale factors that fit a width x height pixel
// image to the given centimetre size. Zero dimensions follow the other one;
// both zero keep the natural size.
func Scale(width, height int, widthCM, heightCM float64) (float64, float64) {
	if width <= 0 || height <= 0 {
		return 1, 1
	}
	sx, sy := 1.0, 1.0
	if widthCM > 0 {
		sx = grid.CMToPixels(widthCM) / float64(width)
	}
	if heightCM > 0 {
		sy = grid.CMToPixels(heightCM) / float64(height)
	}
	switch {
	case widthCM > 0 && heightCM <= 0:
		sy = sx
	case heightCM > 0 && widthCM <= 0:
		sx = sy
	}
	return sx, sy
}

// substituteCells applies sub to every cell of every sheet, using the cell
// text as scope.
func substituteCells(f *excelize.File, sub *Substitution) (int, error) {
	n := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return n, fmt.Errorf("unable to read template sheet %q: %w", sheet, err)
		}
		for r, row := range rows {
			for c, value := range row {
				if value == "" || !sub.candidate(value) {
					continue
				}
				out, ok := sub.Apply(value, value)
				if !ok {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return n, err
				}
				if err := f.SetCellValue(sheet, cell, out); err != nil {
					return n, fmt.Errorf("unable to write %s!%s: %w", sheet, cell, err)
				}
				n++
			}
		}
	}
	return n, nil
}
