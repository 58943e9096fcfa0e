package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cropsight/cropsight/internal/tensor"
)

// Read deserializes the artifact at path.
//
// The result is either a bare TensorMap (the file holds a single unnamed
// section) or a Container mapping each section name to its TensorMap. Any
// failure (unreadable file, bad magic, malformed header, tensor data out of
// bounds) is returned as a *ReadError.
func Read(path string) (any, error) {
	obj, err := read(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return obj, nil
}

func read(path string) (any, error) {
	//nolint:gosec // G304: path comes from the discovery table, expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header, dataOffset, err := parseHeader(file)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	dataSize := info.Size() - dataOffset

	sections := make(map[string]TensorMap, len(header.Sections))
	for _, sec := range header.Sections {
		params := make(TensorMap, len(sec.Tensors))
		for _, meta := range sec.Tensors {
			t, err := readTensor(file, meta, dataOffset, dataSize)
			if err != nil {
				return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
			}
			params[meta.Name] = t
		}
		sections[sec.Name] = params
	}

	// A single unnamed section is a bare parameter map.
	if len(header.Sections) == 1 && header.Sections[0].Name == "" {
		return sections[""], nil
	}

	container := make(Container, len(sections))
	for name, params := range sections {
		container[name] = params
	}
	return container, nil
}

func parseHeader(file *os.File) (*Header, int64, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(file, magic); err != nil {
		return nil, 0, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, 0, ErrInvalidMagic
	}

	var version, flags uint32
	if err := binary.Read(file, binary.LittleEndian, &version); err != nil {
		return nil, 0, fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return nil, 0, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	if err := binary.Read(file, binary.LittleEndian, &flags); err != nil {
		return nil, 0, fmt.Errorf("failed to read flags: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, 0, ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	currentPos := int64(4+4+4+8) + int64(headerSize)
	padding := (DataAlignment - (currentPos % DataAlignment)) % DataAlignment
	return &header, currentPos + padding, nil
}

func readTensor(file *os.File, meta TensorMeta, dataOffset, dataSize int64) (*tensor.Tensor, error) {
	if meta.DType != DTypeFloat32 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, meta.DType)
	}
	if meta.Offset < 0 || meta.Size < 0 {
		return nil, fmt.Errorf("negative offset or size")
	}
	if meta.Offset+meta.Size > dataSize {
		return nil, fmt.Errorf("tensor extends beyond data section")
	}

	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if int64(shape.NumElements())*4 != meta.Size {
		return nil, fmt.Errorf("size %d does not match shape %v", meta.Size, shape)
	}

	raw := make([]byte, meta.Size)
	if _, err := file.ReadAt(raw, dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	data := make([]float32, shape.NumElements())
	for i := range data {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		data[i] = math.Float32frombits(bits)
	}
	return tensor.FromSlice(shape, data), nil
}
