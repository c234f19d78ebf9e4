// Package classifier turns an uploaded leaf photo into one of the known
// plant/condition labels.
package classifier

import "context"

// Model is a loaded image classifier. Infer takes an NHWC float32 tensor of
// InputShape and returns OutputSize scores, one per class.
type Model interface {
	InputShape() (height, width int)
	OutputSize() int
	Infer(ctx context.Context, tensor []float32) ([]float32, error)
	Close() error
}
