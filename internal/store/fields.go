package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cropsight/cropsight/internal/geometry"
)

// Field is a named crop area bounded by a polygon.
type Field struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	CropType  string           `json:"crop_type"`
	Polygon   geometry.Polygon `json:"polygon_coordinates"`
	SpotCount int              `json:"spot_count"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CreateField inserts a field and returns it with its assigned ID.
func (s *Store) CreateField(ctx context.Context, name, cropType string, polygon geometry.Polygon) (*Field, error) {
	coords, err := json.Marshal(polygon)
	if err != nil {
		return nil, fmt.Errorf("encoding polygon: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO fields(name, crop_type, polygon_coordinates, created_at, updated_at)
VALUES(?, ?, ?, ?, ?);
`, name, cropType, string(coords), now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Field{
		ID:        id,
		Name:      name,
		CropType:  cropType,
		Polygon:   polygon,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetField returns one field with its spot count, or ErrNotFound.
func (s *Store) GetField(ctx context.Context, id int64) (*Field, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT f.id, f.name, f.crop_type, f.polygon_coordinates, f.created_at, f.updated_at,
       (SELECT COUNT(*) FROM spots WHERE field_id = f.id)
FROM fields f WHERE f.id = ?;
`, id)
	return scanField(row)
}

// ListFields returns all fields ordered by creation time.
func (s *Store) ListFields(ctx context.Context) ([]*Field, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT f.id, f.name, f.crop_type, f.polygon_coordinates, f.created_at, f.updated_at,
       (SELECT COUNT(*) FROM spots WHERE field_id = f.id)
FROM fields f ORDER BY f.created_at ASC, f.id ASC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateField replaces a field's name, crop type and polygon.
func (s *Store) UpdateField(ctx context.Context, id int64, name, cropType string, polygon geometry.Polygon) error {
	coords, err := json.Marshal(polygon)
	if err != nil {
		return fmt.Errorf("encoding polygon: %w", err)
	}
	return s.execRowsAffected(ctx, `
UPDATE fields SET name = ?, crop_type = ?, polygon_coordinates = ?, updated_at = ? WHERE id = ?;
`, name, cropType, string(coords), time.Now().UTC(), id)
}

// DeleteField removes a field. Its spots and their analyses cascade.
func (s *Store) DeleteField(ctx context.Context, id int64) error {
	return s.execRowsAffected(ctx, "DELETE FROM fields WHERE id = ?;", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanField(row rowScanner) (*Field, error) {
	var f Field
	var coords string
	err := row.Scan(&f.ID, &f.Name, &f.CropType, &coords, &f.CreatedAt, &f.UpdatedAt, &f.SpotCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(coords), &f.Polygon); err != nil {
		return nil, fmt.Errorf("decoding polygon for field %d: %w", f.ID, err)
	}
	return &f, nil
}
