package transcode

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-backoffice/internal/apperrors"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodePNG(t *testing.T, raw []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestTranscodeContainPadsTransparent(t *testing.T) {
	// wide red image: scaled to 542 wide, padded top and bottom
	raw := encodeJPEG(t, solid(1084, 200, color.RGBA{R: 255, A: 255}))

	out, err := Transcode(raw, ProductPolicy)
	require.NoError(t, err)

	img := decodePNG(t, out)
	assert.Equal(t, 542, img.Bounds().Dx())
	assert.Equal(t, 658, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a, "padding must be transparent")

	r, _, _, a := img.At(271, 329).RGBA()
	assert.NotZero(t, a)
	assert.Greater(t, r, uint32(0xf000))
}

func TestTranscodeCoverIsOpaque(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(300, 600, color.NRGBA{B: 255, A: 128})))

	out, err := Transcode(buf.Bytes(), ThumbnailPolicy)
	require.NoError(t, err)

	img := decodePNG(t, out)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestTranscodeRejectsNonImages(t *testing.T) {
	_, err := Transcode([]byte("definitely not an image"), ProductPolicy)

	require.ErrorIs(t, err, ErrUnsupportedImageFormat)
	assert.Equal(t, apperrors.UnsupportedImageFormat, apperrors.KindOf(err))
}

func TestTranscodeFewColorsIsPaletted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(100, 50, color.RGBA{G: 255, A: 255})))

	out, err := Transcode(buf.Bytes(), ProductPolicy)
	require.NoError(t, err)

	img := decodePNG(t, out)
	p, ok := img.(*image.Paletted)
	require.True(t, ok, "expected a paletted PNG, got %T", img)
	assert.LessOrEqual(t, len(p.Palette), 256)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
	_, g, _, a := img.At(271, 329).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, uint32(0xffff), g)
}

func TestTranscodeManyColorsStaysTrueColor(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x / 2), G: uint8(y / 2), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := Transcode(buf.Bytes(), ThumbnailPolicy)
	require.NoError(t, err)

	_, isPaletted := decodePNG(t, out).(*image.Paletted)
	assert.False(t, isPaletted)
}

func TestPalettedIsExact(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	img.SetNRGBA(2, 0, color.NRGBA{R: 99, A: 0})

	p, ok := paletted(img).(*image.Paletted)
	require.True(t, ok)
	assert.Len(t, p.Palette, 3)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, p.At(0, 0))
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 128}, p.At(1, 0))
	assert.Equal(t, color.NRGBA{}, p.At(2, 0))
}
