package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Preprocess decodes a JPEG, PNG or WebP image, resizes it to width x height
// and returns it as an NHWC float32 tensor with each 8-bit channel value
// mapped linearly from [0,255] onto [lo,hi].
func Preprocess(data []byte, height, width int, lo, hi float32) ([]float32, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if b := src.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	scale := (hi - lo) / 255
	tensor := make([]float32, 0, width*height*3)
	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			tensor = append(tensor,
				lo+float32(px[0])*scale,
				lo+float32(px[1])*scale,
				lo+float32(px[2])*scale,
			)
		}
	}
	return tensor, nil
}
