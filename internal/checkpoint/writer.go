package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/cropsight/cropsight/internal/tensor"
)

const producedBy = "cropsight"

// Write serializes the given sections to a .ckpt file at path.
//
// Tensor names within a section are written in sorted order so output is
// deterministic. A single Section with an empty Name produces a bare
// parameter map; anything else produces a wrapped container.
func Write(path string, sections ...Section) error {
	header := Header{
		FormatVersion: FormatVersion,
		ProducedBy:    producedBy,
		CreatedAt:     time.Now().UTC(),
	}

	// Lay out tensor data and build section metadata.
	type pending struct {
		data []float32
	}
	var order []pending
	var offset int64

	for _, sec := range sections {
		names := make([]string, 0, len(sec.Params))
		for name := range sec.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		meta := SectionMeta{Name: sec.Name}
		for _, name := range names {
			t := sec.Params[name]
			size := int64(t.NumElements()) * 4
			meta.Tensors = append(meta.Tensors, TensorMeta{
				Name:   name,
				DType:  DTypeFloat32,
				Shape:  []int(t.Shape()),
				Offset: offset,
				Size:   size,
			})
			order = append(order, pending{data: t.Data()})
			offset += size
		}
		header.Sections = append(header.Sections, meta)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	//nolint:gosec // G304: path comes from the caller, expected for model tooling
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(0)); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Pad to the data alignment boundary.
	currentPos := int64(4+4+4+8) + int64(len(headerJSON))
	if padding := (DataAlignment - (currentPos % DataAlignment)) % DataAlignment; padding > 0 {
		if _, err := file.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for _, p := range order {
		if err := writeFloat32s(file, p.data); err != nil {
			return fmt.Errorf("failed to write tensor data: %w", err)
		}
	}

	return nil
}

// WriteStateDict writes a parameter map under the given wrapper key.
// An empty wrapper writes the map as a bare (unwrapped) section.
func WriteStateDict(path, wrapper string, params map[string]*tensor.Tensor) error {
	return Write(path, Section{Name: wrapper, Params: params})
}

func writeFloat32s(file *os.File, data []float32) error {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := file.Write(buf)
	return err
}
