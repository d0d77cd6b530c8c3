package grid

import (
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
	"github.com/xuri/excelize/v2"
)

// ImageAnchorIndex maps anchor coordinates to embedded images. It is built in
// a single pass over a sheet's pictures and is read-only afterwards.
type ImageAnchorIndex struct {
	images map[models.Coord]models.AnchoredImage
}

// ExtractImages builds an ImageAnchorIndex for a sheet. When several pictures
// share an anchor cell only the first one reported by the workbook is kept.
func ExtractImages(f *excelize.File, sheetName string) (*ImageAnchorIndex, error) {
	cells, err := f.GetPictureCells(sheetName)
	if err != nil {
		return nil, err
	}

	var images []models.AnchoredImage
	for _, cell := range cells {
		col, row, err := excelize.CellNameToCoordinates(cell)
		if err != nil {
			continue
		}
		pics, err := f.GetPictures(sheetName, cell)
		if err != nil || len(pics) == 0 {
			continue
		}
		images = append(images, models.AnchoredImage{
			Anchor:    models.Coord{Row: row, Col: col},
			Extension: pics[0].Extension,
			Data:      pics[0].File,
		})
	}

	return NewImageAnchorIndex(images...), nil
}

// NewImageAnchorIndex builds an index from images; the first image for a given
// anchor wins.
func NewImageAnchorIndex(images ...models.AnchoredImage) *ImageAnchorIndex {
	idx := &ImageAnchorIndex{images: make(map[models.Coord]models.AnchoredImage, len(images))}
	for _, img := range images {
		if _, dup := idx.images[img.Anchor]; dup {
			continue
		}
		idx.images[img.Anchor] = img
	}
	return idx
}

// Lookup returns the image anchored at (row, col).
func (i *ImageAnchorIndex) Lookup(row, col int) (models.AnchoredImage, bool) {
	if i == nil {
		return models.AnchoredImage{}, false
	}
	img, ok := i.images[models.Coord{Row: row, Col: col}]
	return img, ok
}

// Len returns the number of indexed anchors.
func (i *ImageAnchorIndex) Len() int {
	if i == nil {
		return 0
	}
	return len(i.images)
}
