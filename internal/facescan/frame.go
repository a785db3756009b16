package facescan

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Preprocessing parameters.
const (
	TargetSize  = 224
	JPEGQuality = 85
	Gamma       = 1 / 1.1
)

// ErrEmptyFrame is returned for an image with no pixels.
var ErrEmptyFrame = errors.New("empty frame")

func luma(c interface{ RGBA() (r, g, b, a uint32) }) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// SharpnessScore is the variance of luma over the centre 50%×50% of img.
// Blurry frames have flatter luma and score lower.
func SharpnessScore(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	// window starts at floor(w/4) and spans floor(w/2), at least one pixel
	rw, rh := max(w/2, 1), max(h/2, 1)
	x0, y0 := b.Min.X+w/4, b.Min.Y+h/4

	vals := make([]float64, 0, rw*rh)
	var sum float64
	for y := y0; y < y0+rh; y++ {
		for x := x0; x < x0+rw; x++ {
			l := luma(img.At(x, y))
			vals = append(vals, l)
			sum += l
		}
	}
	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return ss / float64(len(vals))
}

// BestIndex returns the index of the strictly greatest score; the first
// one wins ties. It returns -1 for no scores.
func BestIndex(scores []float64) int {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}

// BestFrame picks the sharpest of frames and its score.
func BestFrame(frames []image.Image) (int, float64) {
	scores := make([]float64, len(frames))
	for i, f := range frames {
		scores[i] = SharpnessScore(f)
	}
	i := BestIndex(scores)
	if i < 0 {
		return -1, 0
	}
	return i, scores[i]
}

var gammaLUT = func() [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(255 * math.Pow(float64(i)/255, Gamma)))
	}
	return lut
}()

// Preprocess centre-crops img to a square, scales it to TargetSize, applies
// the gamma LUT per channel and returns the JPEG as base64.
func Preprocess(img image.Image) (string, error) {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side == 0 {
		return "", ErrEmptyFrame
	}
	crop := image.Rect(0, 0, side, side).Add(image.Pt(b.Min.X+(b.Dx()-side)/2, b.Min.Y+(b.Dy()-side)/2))

	dst := image.NewRGBA(image.Rect(0, 0, TargetSize, TargetSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = gammaLUT[dst.Pix[i]]
		dst.Pix[i+1] = gammaLUT[dst.Pix[i+1]]
		dst.Pix[i+2] = gammaLUT[dst.Pix[i+2]]
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
