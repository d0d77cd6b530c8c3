// Package grid indexes the cells, merged ranges and anchored images of
// workbook sheets.
package grid

// EMUPerPixel is the number of EMUs (English Metric Units) per pixel at 96 DPI.
// 1 inch = 914400 EMU, 1 inch = 96 pixels at 96 DPI
// Therefore: 914400 / 96 = 9525 EMU per pixel
const EMUPerPixel = 9525

// EMUPerCM is the number of EMUs per centimetre.
const EMUPerCM = 360000

// CMToPixels converts centimetres to pixels at 96 DPI.
func CMToPixels(cm float64) float64 {
	return cm * EMUPerCM / EMUPerPixel
}
