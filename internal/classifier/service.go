package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"agrodoc/internal/labels"
)

// Result is the arg-max class of one classification.
type Result struct {
	Label      string
	Index      int
	Confidence float64
}

// Service pairs a Model with the label table that names its outputs.
type Service struct {
	model  Model
	labels labels.Table
	min    float32
	max    float32
}

// NewService checks that table lines up with the model's output vector and
// refuses to build a service otherwise.
func NewService(model Model, table labels.Table, inputMin, inputMax float32) (*Service, error) {
	if model == nil {
		return nil, fmt.Errorf("classifier model is nil")
	}
	if err := table.Validate(model.OutputSize()); err != nil {
		return nil, fmt.Errorf("label table does not match model: %w", err)
	}
	if inputMin >= inputMax {
		return nil, fmt.Errorf("invalid input range [%v, %v]", inputMin, inputMax)
	}
	return &Service{model: model, labels: table, min: inputMin, max: inputMax}, nil
}

// Labels returns the service's label table.
func (s *Service) Labels() labels.Table { return s.labels }

// Classify preprocesses image and returns the highest scoring label.
func (s *Service) Classify(ctx context.Context, image []byte) (Result, error) {
	h, w := s.model.InputShape()
	tensor, err := Preprocess(image, h, w, s.min, s.max)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	scores, err := s.model.Infer(ctx, tensor)
	if err != nil {
		return Result{}, err
	}
	if len(scores) != len(s.labels) {
		return Result{}, fmt.Errorf("model returned %d scores, want %d", len(scores), len(s.labels))
	}

	best := ArgMax(scores)
	if best < 0 {
		return Result{}, fmt.Errorf("model returned no finite scores")
	}
	return Result{
		Label:      s.labels[best],
		Index:      best,
		Confidence: float64(scores[best]),
	}, nil
}

// ErrDecode marks inputs that are not decodable images.
var ErrDecode = errors.New("invalid image")

// ArgMax returns the index of the largest finite score; the first wins ties.
// It returns -1 when there is none.
func ArgMax(scores []float32) int {
	best := -1
	for i, v := range scores {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	return best
}

func (s *Service) Close() error {
	return s.model.Close()
}
