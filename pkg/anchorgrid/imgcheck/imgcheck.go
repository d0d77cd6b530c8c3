// Package imgcheck validates and normalizes raster image bytes.
package imgcheck

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode indicates the bytes are not a well-formed raster image.
var ErrDecode = errors.New("image decode failed")

// Info describes a validated image.
type Info struct {
	// Ext is the detected extension without a dot (e.g. "png").
	Ext    string
	Width  int
	Height int
}

// Validate fully decodes data and reports its format and dimensions.
func Validate(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("%w: empty data", ErrDecode)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Info{}, fmt.Errorf("%w: zero-sized image", ErrDecode)
	}
	return Info{Ext: Detect(data), Width: b.Dx(), Height: b.Dy()}, nil
}

// Detect sniffs the image extension from magic bytes, "" when unknown.
func Detect(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return normalizeExt(kind.Extension)
}

// Normalize validates data and re-encodes it when its format differs from
// ext. Data already in the requested format is returned unchanged.
func Normalize(data []byte, ext string) ([]byte, Info, error) {
	info, err := Validate(data)
	if err != nil {
		return nil, Info{}, err
	}

	want := normalizeExt(ext)
	if want == "" || want == info.Ext {
		return data, info, nil
	}

	if err := CheckFormat(want); err != nil {
		return nil, Info{}, err
	}
	format, _ := imaging.FormatFromExtension(want)

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, format); err != nil {
		return nil, Info{}, fmt.Errorf("unable to encode %s: %w", want, err)
	}
	info.Ext = want
	return buf.Bytes(), info, nil
}

// CheckFormat reports whether images can be encoded as ext.
func CheckFormat(ext string) error {
	if _, err := imaging.FormatFromExtension(normalizeExt(ext)); err != nil {
		return fmt.Errorf("unsupported output format %q: %w", ext, err)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpeg":
		return "jpg"
	case "tiff":
		return "tif"
	}
	return ext
}
