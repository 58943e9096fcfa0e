package store

import (
	"context"
	"database/sql"
	"time"
)

// Spot is a GPS-tagged photo location inside a field.
type Spot struct {
	ID            int64     `json:"id"`
	FieldID       int64     `json:"field_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	ImagePath     string    `json:"-"`
	ImageFilename string    `json:"image_filename"`
	Timestamp     time.Time `json:"timestamp"`
	Device        string    `json:"device,omitempty"`
	Notes         string    `json:"notes,omitempty"`

	Analysis *Analysis `json:"analysis,omitempty"`
}

// CreateSpot inserts a spot and returns it with its assigned ID.
func (s *Store) CreateSpot(ctx context.Context, spot *Spot) (*Spot, error) {
	if spot.Timestamp.IsZero() {
		spot.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO spots(field_id, latitude, longitude, image_path, image_filename, timestamp, device, notes)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, spot.FieldID, spot.Latitude, spot.Longitude, spot.ImagePath, spot.ImageFilename,
		spot.Timestamp, spot.Device, spot.Notes)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	spot.ID = id
	return spot, nil
}

// GetSpot returns one spot with its analysis attached when present.
func (s *Store) GetSpot(ctx context.Context, id int64) (*Spot, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, field_id, latitude, longitude, image_path, image_filename, timestamp, device, notes
FROM spots WHERE id = ?;
`, id)

	var spot Spot
	err := row.Scan(&spot.ID, &spot.FieldID, &spot.Latitude, &spot.Longitude,
		&spot.ImagePath, &spot.ImageFilename, &spot.Timestamp, &spot.Device, &spot.Notes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	analysis, err := s.GetAnalysisBySpot(ctx, spot.ID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	spot.Analysis = analysis
	return &spot, nil
}

// ListSpots returns all spots of a field, newest first, with analyses.
func (s *Store) ListSpots(ctx context.Context, fieldID int64) ([]*Spot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, field_id, latitude, longitude, image_path, image_filename, timestamp, device, notes
FROM spots WHERE field_id = ? ORDER BY timestamp DESC, id DESC;
`, fieldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Spot
	for rows.Next() {
		var spot Spot
		if err := rows.Scan(&spot.ID, &spot.FieldID, &spot.Latitude, &spot.Longitude,
			&spot.ImagePath, &spot.ImageFilename, &spot.Timestamp, &spot.Device, &spot.Notes); err != nil {
			return nil, err
		}
		out = append(out, &spot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, spot := range out {
		analysis, err := s.GetAnalysisBySpot(ctx, spot.ID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		spot.Analysis = analysis
	}
	return out, nil
}

// DeleteSpot removes a spot. Its analysis cascades.
func (s *Store) DeleteSpot(ctx context.Context, id int64) error {
	return s.execRowsAffected(ctx, "DELETE FROM spots WHERE id = ?;", id)
}
