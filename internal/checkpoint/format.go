// Package checkpoint reads and writes the on-disk artifact container format
// for serialized network parameters.
//
// A .ckpt file is:
//
//	magic "CKPT" | version uint32 | flags uint32 | header size uint64 |
//	header JSON | padding to 64-byte alignment | raw tensor data
//
// The header groups tensors into named sections. A single section with an
// empty name is a bare parameter map; named sections reproduce the wrapping
// conventions different producers use ("model_state_dict", "state_dict",
// "model", or anything else). Readers return the deserialized object without
// interpreting section names; unwrapping is the loader's job.
package checkpoint

import (
	"time"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "CKPT"
	FormatVersion = 1
	DataAlignment = 64 // tensor data is aligned for mmap-friendly access
	maxHeaderSize = 100 * 1024 * 1024
)

// DTypeFloat32 is the only element type the format currently carries.
const DTypeFloat32 = "float32"

// Header is the JSON header of a .ckpt file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ProducedBy    string            `json:"produced_by,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Sections      []SectionMeta     `json:"sections"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SectionMeta describes one named group of tensors.
type SectionMeta struct {
	Name    string       `json:"name"` // "" for a bare parameter map
	Tensors []TensorMeta `json:"tensors"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// TensorMap is a flat parameter map: key -> tensor.
type TensorMap = map[string]*tensor.Tensor

// Container is a deserialized artifact whose tensors are wrapped under
// top-level keys. Values are TensorMaps.
type Container = map[string]any

// Section pairs a section name with its parameters, for writing.
type Section struct {
	Name   string
	Params TensorMap
}
