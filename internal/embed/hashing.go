package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashingDimensions = 256

// Hashing is an offline embedder that hashes word and character trigram
// features into a fixed-size vector. It needs no network and is
// deterministic, which makes it the development and test default. Quality
// is far below a hosted model.
type Hashing struct {
	dims int
}

func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *Hashing) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			out[i] = h.vector(t)
		}
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	v := make([]float32, h.dims)
	lower := strings.ToLower(strings.ReplaceAll(text, "İ", "i"))
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })

	for _, w := range words {
		h.add(v, "w:"+w, 1)
		runes := []rune("^" + w + "$")
		for i := 0; i+3 <= len(runes); i++ {
			h.add(v, "t:"+string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (h *Hashing) add(v []float32, feature string, weight float32) {
	f := fnv.New32a()
	f.Write([]byte(feature))
	sum := f.Sum32()
	idx := int(sum % uint32(h.dims))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
