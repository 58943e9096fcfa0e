package imaging

import (
	"image"
	"image/color"
	"strings"
)

// Quality thresholds on the grayscale intensity scale [0, 255].
const (
	blurThreshold          = 100 // Laplacian variance below this is blurry
	severeBlurThreshold    = 50
	underexposedThreshold  = 50
	overexposedThreshold   = 200
	extremeDarkThreshold   = 20
	extremeBrightThreshold = 240
)

// Quality summarizes sharpness and exposure of an uploaded photo.
type Quality struct {
	IsBlurry          bool    `json:"is_blurry"`
	IsUnderexposed    bool    `json:"is_underexposed"`
	IsOverexposed     bool    `json:"is_overexposed"`
	Notes             string  `json:"notes"`
	LaplacianVariance float64 `json:"laplacian_variance"`
	MeanBrightness    float64 `json:"mean_brightness"`
}

// Unusable reports whether the image is too degraded to analyze at all:
// severely blurred, or exposed to an extreme in either direction.
func (q Quality) Unusable() bool {
	return (q.IsBlurry && q.LaplacianVariance < severeBlurThreshold) ||
		q.MeanBrightness < extremeDarkThreshold ||
		q.MeanBrightness > extremeBrightThreshold
}

// Assess scores an image: blur via the variance of a 3x3 Laplacian over the
// grayscale plane, exposure via mean brightness.
func Assess(img image.Image) Quality {
	gray := grayscale(img)
	variance := laplacianVariance(gray)
	brightness := meanBrightness(gray)

	q := Quality{
		IsBlurry:          variance < blurThreshold,
		IsUnderexposed:    brightness < underexposedThreshold,
		IsOverexposed:     brightness > overexposedThreshold,
		LaplacianVariance: variance,
		MeanBrightness:    brightness,
	}

	var notes []string
	if q.IsBlurry {
		notes = append(notes, "Image appears blurry")
	}
	if q.IsUnderexposed {
		notes = append(notes, "Image appears underexposed")
	}
	if q.IsOverexposed {
		notes = append(notes, "Image appears overexposed")
	}
	if len(notes) == 0 {
		notes = append(notes, "Image quality acceptable")
	}
	q.Notes = strings.Join(notes, "; ")

	return q
}

// grayscale converts to a luminance plane using the BT.601 weights.
func grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.SetGray(x, y, color.Gray{Y: uint8(lum + 0.5)})
		}
	}
	return gray
}

// laplacianVariance convolves the interior with the 3x3 Laplacian kernel
//
//	0  1  0
//	1 -4  1
//	0  1  0
//
// and returns the variance of the response. Low variance means few edges,
// which for field photos means blur. Images smaller than 3x3 score 0.
func laplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	responses := make([]float64, 0, (w-2)*(h-2))
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			up := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y-1).Y)
			down := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y+1).Y)
			left := float64(gray.GrayAt(bounds.Min.X+x-1, bounds.Min.Y+y).Y)
			right := float64(gray.GrayAt(bounds.Min.X+x+1, bounds.Min.Y+y).Y)

			v := up + down + left + right - 4*center
			responses = append(responses, v)
			sum += v
		}
	}

	mean := sum / float64(len(responses))
	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(responses))
}

// meanBrightness returns the average grayscale intensity.
func meanBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	return sum / float64(w*h)
}
