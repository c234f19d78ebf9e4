package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/tphakala/go-tflite"
)

// TFLite runs a TensorFlow Lite model. The interpreter is not safe for
// concurrent use so Infer serialises calls.
type TFLite struct {
	mu          sync.Mutex
	model       *tflite.Model
	interpreter *tflite.Interpreter
	height      int
	width       int
	outputSize  int
}

// LoadTFLite loads the model at path and allocates its tensors. threads <= 0
// uses every CPU.
func LoadTFLite(path string, threads int, log *slog.Logger) (*TFLite, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from path: %s", path)
	}

	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		if log != nil {
			log.Error("tflite error", "message", msg)
		}
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	m := &TFLite{model: model, interpreter: interpreter}
	if err := m.readShapes(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *TFLite) readShapes() error {
	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("cannot get input tensor")
	}
	if input.Type() != tflite.Float32 {
		return fmt.Errorf("input tensor type %v, want float32", input.Type())
	}
	if input.NumDims() != 4 || input.Dim(3) != 3 {
		return fmt.Errorf("input tensor must be NHWC with 3 channels, has %d dims", input.NumDims())
	}
	m.height = input.Dim(1)
	m.width = input.Dim(2)

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return fmt.Errorf("cannot get output tensor")
	}
	m.outputSize = output.Dim(output.NumDims() - 1)
	return nil
}

func (m *TFLite) InputShape() (height, width int) { return m.height, m.width }

func (m *TFLite) OutputSize() int { return m.outputSize }

// Infer copies tensor into the input, invokes the interpreter and returns a
// copy of the output scores.
func (m *TFLite) Infer(ctx context.Context, tensor []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return nil, fmt.Errorf("model is closed")
	}
	input := m.interpreter.GetInputTensor(0)
	if want := len(input.Float32s()); len(tensor) != want {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(tensor), want)
	}
	copy(input.Float32s(), tensor)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed")
	}

	output := m.interpreter.GetOutputTensor(0)
	scores := make([]float32, m.outputSize)
	copy(scores, output.Float32s())
	return scores, nil
}

func (m *TFLite) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}
