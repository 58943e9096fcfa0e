package model

import "github.com/cropsight/cropsight/internal/loader"

// Class-name conventions by count. Five classes is the disease taxonomy the
// multi-class families were trained on, two classes is the binary screen.
var (
	multiClassNames  = []string{"Cerscospora", "Healthy", "Leaf rust", "Miner", "Phoma"}
	binaryClassNames = []string{"Healthy", "Not Healthy"}
)

// DefaultConfigs returns the symbolic-name defaults for every known model,
// including the transfer-learning names that discovery should recognize even
// though no native builder exists for them. The table also carries the
// by-count class-name conventions used when a checkpoint's detected class
// count disagrees with the defaults.
func DefaultConfigs() *loader.ConfigTable {
	t := loader.NewConfigTable()

	multi := loader.Config{NumClasses: 5, ClassNames: multiClassNames}
	binary := loader.Config{NumClasses: 2, ClassNames: binaryClassNames}

	t.Add(NameShuffleNet, multi)
	t.Add(NameMobileNetV3, multi)
	t.Add(NameEfficientNet, multi)
	t.Add(NameCustomCNN1, multi)
	t.Add(NameCustomCNN2, multi)
	t.Add(NameCustomCNN3, multi)
	t.Add(NameBinaryCNNLight, binary)
	t.Add(NameBinaryCNNDeep, binary)
	t.Add(NameBinaryCNNEfficient, binary)

	t.SetClassNames(5, multiClassNames)
	t.SetClassNames(2, binaryClassNames)

	return t
}
