// Package transcode normalizes uploaded images into the PNG renditions the
// store serves.
package transcode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"

	"shop-backoffice/internal/apperrors"
)

type Mode int

const (
	// Contain scales the image to fit inside the box and pads the rest with
	// transparent pixels.
	Contain Mode = iota
	// Cover scales the image to fill the box, crops the overflow around the
	// center and flattens it onto white.
	Cover
)

type Policy struct {
	Width  int
	Height int
	Mode   Mode
}

var (
	ProductPolicy   = Policy{Width: 542, Height: 658, Mode: Contain}
	ThumbnailPolicy = Policy{Width: 200, Height: 200, Mode: Cover}
)

const ContentType = "image/png"

var ErrUnsupportedImageFormat = apperrors.New(apperrors.UnsupportedImageFormat, "unsupported image format")

// Transcode decodes raw and re-encodes it as a PNG sized by policy.
func Transcode(raw []byte, policy Policy) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrUnsupportedImageFormat
	}

	var out *image.NRGBA
	switch policy.Mode {
	case Cover:
		filled := imaging.Fill(src, policy.Width, policy.Height, imaging.Center, imaging.Lanczos)
		out = imaging.OverlayCenter(imaging.New(policy.Width, policy.Height, color.White), filled, 1)
	default:
		out = contain(src, policy.Width, policy.Height)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, paletted(out), imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func contain(src image.Image, width, height int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	// scale = min(width/w, height/h), kept in integer math
	nw, nh := width, h*width/w
	if nh > height {
		nw, nh = w*height/h, height
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	resized := imaging.Resize(src, nw, nh, imaging.Lanczos)
	return imaging.PasteCenter(imaging.New(width, height, color.NRGBA{}), resized)
}

// paletted returns img as an 8-bit paletted image when it uses at most 256
// distinct colors, and img unchanged otherwise. Visible pixels keep their
// exact color; fully transparent pixels collapse to one entry.
func paletted(img *image.NRGBA) image.Image {
	index := make(map[color.NRGBA]uint8)
	pal := make(color.Palette, 0, 256)
	b := img.Bounds()
	out := image.NewPaletted(b, nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			c := color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
			if c.A == 0 {
				c = color.NRGBA{}
			}
			i, ok := index[c]
			if !ok {
				if len(pal) == 256 {
					return img
				}
				i = uint8(len(pal))
				index[c] = i
				pal = append(pal, c)
			}
			out.Pix[(y-b.Min.Y)*out.Stride+x] = i
		}
	}
	out.Palette = pal
	return out
}
