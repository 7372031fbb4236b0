package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/uid"
)

// SafetensorsName is the registry name of the safetensors backend.
const SafetensorsName = "safetensors"

// maxHeaderSize bounds the JSON header of a safetensors file.
const maxHeaderSize = 100 << 20

var safetensorsDTypes = map[string]uid.DType{
	"F64":  uid.Float64,
	"F32":  uid.Float32,
	"F16":  uid.Float16,
	"BF16": uid.BFloat16,
	"I64":  uid.Int64,
	"I32":  uid.Int32,
	"I16":  uid.Int16,
	"I8":   uid.Int8,
	"U8":   uid.Uint8,
	"BOOL": uid.Bool,
}

// SafetensorsBackend reads .safetensors checkpoints. It registers and
// verifies models but cannot sample from them.
type SafetensorsBackend struct{}

func (SafetensorsBackend) Name() string { return SafetensorsName }

func (SafetensorsBackend) LoadWeights(ctx context.Context, checkpointPath string) (uid.WeightMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	w, _, err := ReadSafetensors(f)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", checkpointPath, err)
	}
	return w, nil
}

func (SafetensorsBackend) Generate(context.Context, *Model, GenerateParams) ([]audio.Buffer, error) {
	return nil, ErrGenerationUnsupported
}

type tensorHeader struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// ReadSafetensors parses a safetensors stream: an 8-byte little-endian
// header length, a JSON header, then the tensor byte region.
func ReadSafetensors(r io.Reader) (uid.WeightMap, map[string]string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("header length: %w", err)
	}
	if n == 0 || n > maxHeaderSize {
		return nil, nil, fmt.Errorf("header length %d out of range", n)
	}
	header := make([]byte, n)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, fmt.Errorf("header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, nil, fmt.Errorf("header: %w", err)
	}
	var meta map[string]string
	if m, ok := raw["__metadata__"]; ok {
		if err := json.Unmarshal(m, &meta); err != nil {
			return nil, nil, fmt.Errorf("metadata: %w", err)
		}
		delete(raw, "__metadata__")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("tensor data: %w", err)
	}

	weights := make(uid.WeightMap, len(raw))
	for name, msg := range raw {
		var h tensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		dt, ok := safetensorsDTypes[h.DType]
		if !ok {
			return nil, nil, fmt.Errorf("tensor %q: unsupported dtype %q", name, h.DType)
		}
		start, end := h.DataOffsets[0], h.DataOffsets[1]
		if start < 0 || end < start || end > len(data) {
			return nil, nil, fmt.Errorf("tensor %q: offsets [%d, %d) outside data of %d bytes", name, start, end, len(data))
		}
		t := &uid.Tensor{DType: dt, Shape: h.Shape, Data: data[start:end], Device: "cpu"}
		if want := t.NumElements() * dt.Size(); want != end-start {
			return nil, nil, fmt.Errorf("tensor %q: %d bytes for shape %v of %s, want %d", name, end-start, h.Shape, h.DType, want)
		}
		weights[name] = t
	}
	return weights, meta, nil
}

// WriteSafetensors encodes w in the safetensors layout. Tensors are written
// contiguously in name order.
func WriteSafetensors(out io.Writer, w uid.WeightMap, meta map[string]string) error {
	header := make(map[string]any, len(w)+1)
	if len(meta) > 0 {
		header["__metadata__"] = meta
	}

	var body bytes.Buffer
	for _, name := range w.Names() {
		t := w[name]
		code, err := safetensorsCode(t.DType)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		start := body.Len()
		if err := t.WriteContiguous(&body); err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[name] = tensorHeader{DType: code, Shape: shape, DataOffsets: [2]int{start, body.Len()}}
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return err
	}
	// Pad the header to an 8-byte boundary as the reference writer does.
	for len(hdr)%8 != 0 {
		hdr = append(hdr, ' ')
	}
	if err := binary.Write(out, binary.LittleEndian, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := out.Write(hdr); err != nil {
		return err
	}
	_, err = out.Write(body.Bytes())
	return err
}

func safetensorsCode(dt uid.DType) (string, error) {
	for code, d := range safetensorsDTypes {
		if d == dt {
			return code, nil
		}
	}
	return "", fmt.Errorf("unsupported dtype %q", dt)
}
