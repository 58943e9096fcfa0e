package geometry

import (
	"encoding/json"
	"fmt"
)

// Polygons travel as arrays of [lat, lng] pairs on the wire and in storage.

// MarshalJSON encodes the polygon as [[lat, lng], ...].
func (p Polygon) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(p))
	for i, v := range p {
		pairs[i] = [2]float64{v.Lat, v.Lng}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes [[lat, lng], ...] into the polygon.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(Polygon, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return fmt.Errorf("coordinate %d: expected [lat, lng], got %d values", i, len(pair))
		}
		out[i] = Point{Lat: pair[0], Lng: pair[1]}
	}
	*p = out
	return nil
}
