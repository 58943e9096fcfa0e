package model

import (
	"fmt"
	"sort"

	"github.com/cropsight/cropsight/internal/loader"
	"github.com/cropsight/cropsight/internal/tensor"
)

// ClassProbability pairs a class name with its softmax probability.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Prediction is the outcome of one classifier run on one image.
type Prediction struct {
	Model          string             `json:"model"`
	PredictedClass string             `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	// Top lists all classes by descending probability.
	Top []ClassProbability `json:"top_predictions"`
}

// Predict runs a loaded model on a preprocessed input batch of one image and
// maps the logits to named class probabilities.
func Predict(m *loader.LoadedModel, input *tensor.Tensor) (*Prediction, error) {
	logits := m.Module.Forward(input)
	shape := logits.Shape()
	if len(shape) != 2 || shape[0] != 1 {
		return nil, fmt.Errorf("model %s: unexpected output shape %v", m.Name, shape)
	}
	if shape[1] != len(m.Descriptor.ClassNames) {
		return nil, fmt.Errorf("model %s: %d outputs for %d class names",
			m.Name, shape[1], len(m.Descriptor.ClassNames))
	}

	probs := tensor.Softmax(logits).Data()
	best := tensor.Argmax(probs)

	p := &Prediction{
		Model:          m.Name,
		PredictedClass: m.Descriptor.ClassNames[best],
		Confidence:     float64(probs[best]),
		Probabilities:  make(map[string]float64, len(probs)),
		Top:            make([]ClassProbability, len(probs)),
	}
	for i, name := range m.Descriptor.ClassNames {
		p.Probabilities[name] = float64(probs[i])
		p.Top[i] = ClassProbability{Class: name, Probability: float64(probs[i])}
	}
	sort.SliceStable(p.Top, func(i, j int) bool {
		return p.Top[i].Probability > p.Top[j].Probability
	})

	return p, nil
}
