package model

import (
	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/loader"
	"github.com/cropsight/cropsight/internal/nn"
)

// Architecture family names. These double as the symbolic names artifact
// discovery matches filenames against.
const (
	NameCustomCNN1         = "CustomCNN1"
	NameCustomCNN2         = "CustomCNN2"
	NameCustomCNN3         = "CustomCNN3"
	NameBinaryCNNLight     = "BinaryCNN_Light"
	NameBinaryCNNDeep      = "BinaryCNN_Deep"
	NameBinaryCNNEfficient = "BinaryCNN_Efficient"

	// Transfer-learning names known to discovery but without a native
	// builder. Their artifacts are matched and described, and loading
	// them reports an unknown architecture.
	NameShuffleNet   = "ShuffleNet"
	NameMobileNetV3  = "MobileNetV3"
	NameEfficientNet = "EfficientNet"
)

// RegisterAll registers every natively built architecture family.
func RegisterAll(r *loader.Registry) {
	r.Register(NameCustomCNN1, loader.Entry{
		New: func(numClasses int, _ string) nn.Module { return NewCustomCNN1(numClasses) },
	})
	r.Register(NameCustomCNN2, loader.Entry{
		New: func(numClasses int, _ string) nn.Module { return NewCustomCNN2(numClasses) },
	})
	r.Register(NameCustomCNN3, loader.Entry{
		New: func(numClasses int, _ string) nn.Module { return NewCustomCNN3(numClasses) },
	})
	r.Register(NameBinaryCNNLight, loader.Entry{
		New: func(numClasses int, _ string) nn.Module { return NewBinaryCNNLight(numClasses) },
	})
	r.Register(NameBinaryCNNDeep, loader.Entry{
		New: func(numClasses int, variant string) nn.Module {
			return NewBinaryCNNDeep(numClasses, variant)
		},
		SelectVariant: selectDeepVariant,
	})
	r.Register(NameBinaryCNNEfficient, loader.Entry{
		New: func(numClasses int, _ string) nn.Module { return NewBinaryCNNEfficient(numClasses) },
	})
}

// selectDeepVariant distinguishes the two BinaryCNN_Deep head layouts by the
// shape of the classifier's final linear layer. In the shallow head
// "classifier.4.weight" is the output layer with shape
// [numClasses, 128]; in the default head the same key is the mid layer with
// shape [128, 256].
func selectDeepVariant(params checkpoint.TensorMap, numClasses int) string {
	w, ok := params["classifier.4.weight"]
	if !ok {
		return loader.VariantDefault
	}
	shape := w.Shape()
	if len(shape) == 2 && shape[0] == numClasses && shape[1] == 128 {
		return VariantSimple
	}
	return loader.VariantDefault
}
