package correlate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/imgcheck"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/naming"
)

var (
	// ErrPhraseNotFound reports that no cell contains the searched phrase.
	ErrPhraseNotFound = fmt.Errorf("phrase %w", ErrNotFound)
	// ErrImageNotFound reports that no usable image is anchored in the window.
	ErrImageNotFound = fmt.Errorf("image %w", ErrNotFound)
)

// Correlate returns the first image anchored inside window, scanning rows in
// ascending order and columns in ascending order within each row.
func Correlate(window models.SearchWindow, images *grid.ImageAnchorIndex) (models.AnchoredImage, error) {
	if window.Empty() {
		return models.AnchoredImage{}, ErrImageNotFound
	}
	for row := window.Rows.Lo; row <= window.Rows.Hi; row++ {
		for col := window.Cols.Lo; col <= window.Cols.Hi; col++ {
			if img, ok := images.Lookup(row, col); ok {
				return img, nil
			}
		}
	}
	return models.AnchoredImage{}, ErrImageNotFound
}

// Correlator locates phrases, resolves windows and persists correlated images.
type Correlator struct {
	// Offset is the number of rows searched above a match.
	Offset int
	// Ext is the output image extension; images in other formats are converted.
	Ext string
	Log *zap.Logger
}

// NewCorrelator returns a Correlator with the reference offset and PNG output.
func NewCorrelator(log *zap.Logger) *Correlator {
	return &Correlator{Offset: DefaultOffset, Ext: "png", Log: log}
}

// Run searches sheet for phrase and writes the correlated image into folder as
// {groupId}_{subId}[_({annotation})].{ext}. The returned result is filled as
// far as processing got, including on error.
func (c *Correlator) Run(sheet *grid.Sheet, key models.GroupKey, phrase, folder string) (models.CorrelationResult, error) {
	res := models.CorrelationResult{Key: key, Phrase: phrase}

	m, err := Locate(sheet.Grid, phrase)
	if err != nil {
		return res, ErrPhraseNotFound
	}
	src := m.Coord
	res.Source = &src
	res.Annotation = m.Annotation
	if !strings.Contains(m.Value, ":") {
		c.Log.Debug("Matched cell carries no annotation", zap.String("cell", grid.CellName(src)))
	}

	res.Window = ResolveWindow(sheet.Merged, m.Coord, c.Offset)
	c.Log.Debug("Searching window",
		zap.String("phrase", phrase),
		zap.String("cell", grid.CellName(src)),
		zap.Int("row_from", res.Window.Rows.Lo), zap.Int("row_to", res.Window.Rows.Hi),
		zap.Int("col_from", res.Window.Cols.Lo), zap.Int("col_to", res.Window.Cols.Hi))

	img, data, err := c.find(res.Window, sheet.Images)
	if err != nil {
		return res, err
	}
	res.Image = &img

	path := filepath.Join(folder, naming.ImageFileName(key, m.Annotation, c.Ext))
	if err := persist(path, data); err != nil {
		return res, err
	}
	res.Path = path
	c.Log.Info("Image saved", zap.String("phrase", phrase), zap.Stringer("anchor", img.Anchor), zap.String("path", path))
	return res, nil
}

// RunCell correlates the image sitting on cell (see ExpandedWindow) and writes
// it into folder as {name}.{ext}.
func (c *Correlator) RunCell(sheet *grid.Sheet, cell models.Coord, name, folder string) (string, error) {
	window := ExpandedWindow(sheet.Merged, cell)
	c.Log.Debug("Searching image field",
		zap.String("field", name),
		zap.String("cell", grid.CellName(cell)),
		zap.Int("row_from", window.Rows.Lo), zap.Int("row_to", window.Rows.Hi),
		zap.Int("col_from", window.Cols.Lo), zap.Int("col_to", window.Cols.Hi))

	img, data, err := c.find(window, sheet.Images)
	if err != nil {
		return "", err
	}

	path := filepath.Join(folder, naming.Sanitize(name)+"."+strings.TrimPrefix(c.Ext, "."))
	if err := persist(path, data); err != nil {
		return "", err
	}
	c.Log.Info("Image field saved", zap.String("field", name), zap.Stringer("anchor", img.Anchor), zap.String("path", path))
	return path, nil
}

// find correlates and validates. A candidate that does not decode ends the
// search for this window.
func (c *Correlator) find(window models.SearchWindow, images *grid.ImageAnchorIndex) (models.AnchoredImage, []byte, error) {
	img, err := Correlate(window, images)
	if err != nil {
		return img, nil, err
	}

	data, _, err := imgcheck.Normalize(img.Data, c.Ext)
	if err != nil {
		c.Log.Warn("Anchored image is not usable", zap.Stringer("anchor", img.Anchor), zap.Error(err))
		if errors.Is(err, imgcheck.ErrDecode) {
			return img, nil, fmt.Errorf("%w: %w", ErrImageNotFound, err)
		}
		return img, nil, err
	}
	return img, data, nil
}

func persist(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create image folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write image: %w", err)
	}
	return nil
}
