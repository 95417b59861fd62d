package pass

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// render draws the code with an explicit quiet zone of style.Margin modules.
// go-qrcode only offers its fixed four module border, so the border is
// disabled and the bitmap is scaled onto a canvas here.
func render(content string, style Style) ([]byte, error) {
	q, err := qrcode.New(content, style.Level)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	modules := len(bitmap)
	total := modules + 2*style.Margin
	scale := style.Size / total
	if scale < 1 {
		scale = 1
	}
	size := style.Size
	if size < total*scale {
		size = total * scale
	}
	offset := (size - modules*scale) / 2

	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{style.Light, style.Dark})
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0, y0 := offset+x*scale, offset+y*scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(x0+dx, y0+dy, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
