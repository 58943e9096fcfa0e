package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Analysis statuses.
const (
	StatusOK            = "ok"
	StatusUnusableImage = "unusable_image"
)

// Analysis is the persisted outcome of analyzing one spot's photo.
type Analysis struct {
	ID           int64  `json:"-"`
	SpotID       int64  `json:"-"`
	ModelVersion string `json:"model_version"`
	Status       string `json:"status"`

	HealthLabel string  `json:"health_label"`
	Confidence  float64 `json:"confidence"`

	DiseasesDetected             []string `json:"diseases_detected"`
	PestsDetected                []string `json:"pests_detected"`
	NutrientDeficienciesDetected []string `json:"nutrient_deficiencies_detected"`
	StressSigns                  []string `json:"stress_signs"`

	IsBlurry       bool `json:"is_blurry"`
	IsUnderexposed bool `json:"is_underexposed"`
	IsOverexposed  bool `json:"is_overexposed"`

	ProcessingTimeMs int       `json:"processing_time_ms"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// SaveAnalysis upserts the analysis for a spot. A spot has at most one
// analysis; re-analyzing replaces the previous result.
func (s *Store) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now().UTC()
	}

	diseases, err := encodeList(a.DiseasesDetected)
	if err != nil {
		return err
	}
	pests, err := encodeList(a.PestsDetected)
	if err != nil {
		return err
	}
	deficiencies, err := encodeList(a.NutrientDeficienciesDetected)
	if err != nil {
		return err
	}
	stress, err := encodeList(a.StressSigns)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO analysis_results(
  spot_id, model_version, status, health_label, confidence,
  diseases_detected, pests_detected, nutrient_deficiencies_detected, stress_signs,
  image_quality_is_blurry, image_quality_is_underexposed, image_quality_is_overexposed,
  processing_time_ms, analyzed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(spot_id) DO UPDATE SET
  model_version=excluded.model_version,
  status=excluded.status,
  health_label=excluded.health_label,
  confidence=excluded.confidence,
  diseases_detected=excluded.diseases_detected,
  pests_detected=excluded.pests_detected,
  nutrient_deficiencies_detected=excluded.nutrient_deficiencies_detected,
  stress_signs=excluded.stress_signs,
  image_quality_is_blurry=excluded.image_quality_is_blurry,
  image_quality_is_underexposed=excluded.image_quality_is_underexposed,
  image_quality_is_overexposed=excluded.image_quality_is_overexposed,
  processing_time_ms=excluded.processing_time_ms,
  analyzed_at=excluded.analyzed_at;
`, a.SpotID, a.ModelVersion, a.Status, a.HealthLabel, a.Confidence,
		diseases, pests, deficiencies, stress,
		boolToInt(a.IsBlurry), boolToInt(a.IsUnderexposed), boolToInt(a.IsOverexposed),
		a.ProcessingTimeMs, a.AnalyzedAt)
	return err
}

// GetAnalysisBySpot returns the analysis for a spot, or ErrNotFound.
func (s *Store) GetAnalysisBySpot(ctx context.Context, spotID int64) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, spot_id, model_version, status, health_label, confidence,
       diseases_detected, pests_detected, nutrient_deficiencies_detected, stress_signs,
       image_quality_is_blurry, image_quality_is_underexposed, image_quality_is_overexposed,
       processing_time_ms, analyzed_at
FROM analysis_results WHERE spot_id = ?;
`, spotID)

	var a Analysis
	var diseases, pests, deficiencies, stress string
	var blurry, under, over int
	err := row.Scan(&a.ID, &a.SpotID, &a.ModelVersion, &a.Status, &a.HealthLabel, &a.Confidence,
		&diseases, &pests, &deficiencies, &stress,
		&blurry, &under, &over, &a.ProcessingTimeMs, &a.AnalyzedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if a.DiseasesDetected, err = decodeList(diseases); err != nil {
		return nil, err
	}
	if a.PestsDetected, err = decodeList(pests); err != nil {
		return nil, err
	}
	if a.NutrientDeficienciesDetected, err = decodeList(deficiencies); err != nil {
		return nil, err
	}
	if a.StressSigns, err = decodeList(stress); err != nil {
		return nil, err
	}
	a.IsBlurry = blurry != 0
	a.IsUnderexposed = under != 0
	a.IsOverexposed = over != 0
	return &a, nil
}

// HealthCounts returns the health-label distribution across a field's
// analyzed spots.
func (s *Store) HealthCounts(ctx context.Context, fieldID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.health_label, COUNT(*)
FROM analysis_results a
JOIN spots sp ON sp.id = a.spot_id
WHERE sp.field_id = ? AND a.status = ?
GROUP BY a.health_label;
`, fieldID, StatusOK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decoding list: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
