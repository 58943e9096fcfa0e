package model

import "fmt"

// Health assessment labels on the analysis schema.
const (
	HealthHealthy        = "healthy"
	HealthMildlyStressed = "mildly_stressed"
	HealthDiseased       = "diseased"
	HealthPestDamage     = "pest_damage"
	HealthUnknown        = "unknown"
)

// classToHealthLabel maps predicted classes to schema health labels.
var classToHealthLabel = map[string]string{
	"Healthy":     HealthHealthy,
	"Not Healthy": HealthMildlyStressed,
	"Cerscospora": HealthDiseased,
	"Leaf rust":   HealthDiseased,
	"Miner":       HealthPestDamage,
	"Phoma":       HealthDiseased,
}

// findingThreshold is the minimum class probability that counts as a
// detailed finding, independent of which class won.
const findingThreshold = 0.2

// stressConfidenceThreshold is the binary-model confidence above which a
// "Not Healthy" verdict is reported as a stress sign.
const stressConfidenceThreshold = 0.7

var (
	diseaseClasses = map[string]bool{"Cerscospora": true, "Leaf rust": true, "Phoma": true}
	pestClasses    = map[string]bool{"Miner": true}
)

// HealthAssessment is the top-level verdict for one analyzed image.
type HealthAssessment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DetailedFindings lists everything that crossed the finding threshold, not
// just the winning class.
type DetailedFindings struct {
	DiseasesDetected             []string `json:"diseases_detected"`
	PestsDetected                []string `json:"pests_detected"`
	NutrientDeficienciesDetected []string `json:"nutrient_deficiencies_detected"`
	StressSigns                  []string `json:"stress_signs"`
}

// Assessment maps a raw prediction onto the analysis schema.
type Assessment struct {
	HealthAssessment HealthAssessment `json:"health_assessment"`
	DetailedFindings DetailedFindings `json:"detailed_findings"`
}

// Assess converts a classifier prediction into a schema assessment.
//
// The health label follows the predicted class. Detailed findings sweep every
// class probability above the finding threshold, so a diseased leaf with two
// plausible diseases reports both. An optional crop type qualifies disease
// and pest names.
func Assess(p *Prediction, cropType string) Assessment {
	label, ok := classToHealthLabel[p.PredictedClass]
	if !ok {
		label = HealthUnknown
	}

	findings := DetailedFindings{
		DiseasesDetected:             []string{},
		PestsDetected:                []string{},
		NutrientDeficienciesDetected: []string{},
		StressSigns:                  []string{},
	}

	for _, cp := range p.Top {
		if cp.Probability < findingThreshold {
			continue
		}
		name := cp.Class
		if cropType != "" && (diseaseClasses[name] || pestClasses[name]) {
			name = fmt.Sprintf("%s (%s)", name, cropType)
		}
		switch {
		case diseaseClasses[cp.Class]:
			findings.DiseasesDetected = append(findings.DiseasesDetected, name)
		case pestClasses[cp.Class]:
			findings.PestsDetected = append(findings.PestsDetected, name)
		case cp.Class == "Not Healthy":
			findings.StressSigns = append(findings.StressSigns, "General plant stress detected")
		}
	}

	if p.PredictedClass == "Not Healthy" && p.Confidence >= stressConfidenceThreshold {
		findings.StressSigns = append(findings.StressSigns, "Plant health issues detected")
	}

	return Assessment{
		HealthAssessment: HealthAssessment{Label: label, Confidence: p.Confidence},
		DetailedFindings: findings,
	}
}
