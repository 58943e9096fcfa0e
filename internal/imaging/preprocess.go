// Package imaging decodes uploaded crop photos, prepares classifier input
// tensors and scores image quality.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/cropsight/cropsight/internal/tensor"
)

// InputSize is the spatial resolution every classifier family expects.
const InputSize = 224

// ImageNet channel statistics used to normalize classifier input.
var (
	normMean = [3]float32{0.485, 0.456, 0.406}
	normStd  = [3]float32{0.229, 0.224, 0.225}
)

// Decode parses JPEG or PNG bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// Preprocess converts an image into a normalized [1, 3, 224, 224] tensor:
// bilinear resize, scale to [0,1], then per-channel ImageNet normalization
// in channel-first layout.
func Preprocess(img image.Image) *tensor.Tensor {
	resized := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	xdraw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	out := tensor.New(tensor.Shape{1, 3, InputSize, InputSize})
	data := out.Data()
	plane := InputSize * InputSize

	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			i := resized.PixOffset(x, y)
			r := float32(resized.Pix[i]) / 255
			g := float32(resized.Pix[i+1]) / 255
			b := float32(resized.Pix[i+2]) / 255

			p := y*InputSize + x
			data[p] = (r - normMean[0]) / normStd[0]
			data[plane+p] = (g - normMean[1]) / normStd[1]
			data[2*plane+p] = (b - normMean[2]) / normStd[2]
		}
	}
	return out
}

// DecodeAndPreprocess decodes raw upload bytes and builds the input tensor.
func DecodeAndPreprocess(data []byte) (*tensor.Tensor, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Preprocess(img), nil
}
