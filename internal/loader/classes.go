package loader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cropsight/cropsight/internal/checkpoint"
)

// Output widths a final classification layer is assumed to fall within.
// Internal hidden layers are wider (128, 256, 512, ...), which is what
// distinguishes them from the true output layer when several candidates
// share classifier-style names.
const (
	minClassCount = 2
	maxClassCount = 100
)

// classifierTokens mark a parameter key as belonging to a classification
// head rather than the feature extractor.
var classifierTokens = []string{"classifier", "fc", "head"}

var layerIndexPattern = regexp.MustCompile(`\.(\d+)\.`)

// ClassifierCandidate is a 2D weight entry that might be the network's
// output layer.
type ClassifierCandidate struct {
	Key        string
	OutputDim  int
	InputDim   int
	LayerIndex int
}

// ClassCount is the result of inferring the output-class count from a
// parameter map.
type ClassCount struct {
	Count int
	Key   string // the parameter key the count was read from
	// Confident is false when no candidate's output width fell inside
	// [minClassCount, maxClassCount] and the highest-index layer was
	// used as a best effort.
	Confident bool
}

// ClassifierCandidates extracts the candidate output layers from a
// parameter map: 2D "weight" entries whose key names a classifier, fully
// connected or head layer. The layer index is the first embedded ".<n>."
// token, defaulting to 0. Candidates are returned in sorted key order so
// downstream tie-breaking is deterministic.
func ClassifierCandidates(params checkpoint.TensorMap) []ClassifierCandidate {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var candidates []ClassifierCandidate
	for _, key := range keys {
		if !strings.Contains(key, "weight") {
			continue
		}
		shape := params[key].Shape()
		if len(shape) != 2 {
			continue
		}
		lower := strings.ToLower(key)
		matched := false
		for _, token := range classifierTokens {
			if strings.Contains(lower, token) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		candidates = append(candidates, ClassifierCandidate{
			Key:        key,
			OutputDim:  shape[0],
			InputDim:   shape[1],
			LayerIndex: extractLayerIndex(key),
		})
	}
	return candidates
}

// InferClassCount determines the most likely number of output classes from
// the parameter map.
//
// Candidates are ordered by layer index descending (later layers carry
// higher indices in their keys) and the first whose output width falls in
// [2, 100] wins. When none qualifies, the highest-index candidate's width is
// returned with Confident=false. Returns ok=false when the map has no
// classifier-style 2D weights at all.
func InferClassCount(params checkpoint.TensorMap) (ClassCount, bool) {
	candidates := ClassifierCandidates(params)
	if len(candidates) == 0 {
		return ClassCount{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LayerIndex > candidates[j].LayerIndex
	})

	for _, c := range candidates {
		if c.OutputDim >= minClassCount && c.OutputDim <= maxClassCount {
			return ClassCount{Count: c.OutputDim, Key: c.Key, Confident: true}, true
		}
	}

	// Best effort: trust the highest-index layer regardless of width.
	final := candidates[0]
	return ClassCount{Count: final.OutputDim, Key: final.Key, Confident: false}, true
}

func extractLayerIndex(key string) int {
	match := layerIndexPattern.FindStringSubmatch(key)
	if match == nil {
		return 0
	}
	index, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return index
}
