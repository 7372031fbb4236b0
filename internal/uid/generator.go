package uid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Algorithm type tags stored in uid_type.
const (
	TypeXXH3_64 = "XXH3_64"
	TypeXXH64   = "XXH64"
	TypeSHA256  = "SHA256"
)

// DomainWeights separates weight-map digests from other SHA-256 uses.
// Format: SHA256(domain + 0x00 + data)
const DomainWeights = "stemma/weights/v1"

// Identity is the stored identity triple of an artifact.
type Identity struct {
	UID     string `json:"uid"`
	Type    string `json:"uid_type"`
	Version string `json:"uid_version"`
}

// Generator produces content-addressed UIDs.
type Generator interface {
	Type() string
	Version() string
	FromString(s string) string
	FromBytes(b []byte) string
	FromReader(r io.Reader) (string, error)
	FromTensor(t *Tensor) (string, error)
	FromWeights(w WeightMap) (string, error)
}

// New returns the generator registered under name. Matching is case-insensitive;
// an empty name selects the default XXH3_64 generator.
func New(name string) (Generator, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", TypeXXH3_64, "XXH3":
		return NewXXH3(), nil
	case TypeXXH64, "XXHASH":
		return NewXXH64(), nil
	case TypeSHA256:
		return NewSHA256(), nil
	default:
		return nil, fmt.Errorf("unknown uid algorithm %q", name)
	}
}

type streamHasher struct {
	typ     string
	version string
	newHash func() hash.Hash
	digest  func(hash.Hash) string
}

// NewXXH3 returns the default XXH3_64 generator.
func NewXXH3() Generator {
	return &streamHasher{
		typ:     TypeXXH3_64,
		version: moduleVersion("github.com/zeebo/xxh3", "v1"),
		newHash: func() hash.Hash { return xxh3.New() },
		digest:  sum64Hex,
	}
}

// NewXXH64 returns an XXH64 generator.
func NewXXH64() Generator {
	return &streamHasher{
		typ:     TypeXXH64,
		version: moduleVersion("github.com/cespare/xxhash/v2", "v2"),
		newHash: func() hash.Hash { return xxhash.New() },
		digest:  sum64Hex,
	}
}

// NewSHA256 returns a domain-separated SHA-256 generator.
func NewSHA256() Generator {
	return &streamHasher{
		typ:     TypeSHA256,
		version: DomainWeights,
		newHash: func() hash.Hash {
			h := sha256.New()
			h.Write([]byte(DomainWeights))
			h.Write([]byte{0x00})
			return h
		},
		digest: func(h hash.Hash) string { return hex.EncodeToString(h.Sum(nil)) },
	}
}

func sum64Hex(h hash.Hash) string {
	return fmt.Sprintf("%016x", h.(hash.Hash64).Sum64())
}

func (g *streamHasher) Type() string    { return g.typ }
func (g *streamHasher) Version() string { return g.version }

func (g *streamHasher) FromString(s string) string {
	return g.FromBytes([]byte(s))
}

func (g *streamHasher) FromBytes(b []byte) string {
	h := g.newHash()
	h.Write(b)
	return g.digest(h)
}

func (g *streamHasher) FromReader(r io.Reader) (string, error) {
	h := g.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("uid: read: %w", err)
	}
	return g.digest(h), nil
}

func (g *streamHasher) FromTensor(t *Tensor) (string, error) {
	h := g.newHash()
	if err := t.WriteContiguous(h); err != nil {
		return "", fmt.Errorf("uid: tensor: %w", err)
	}
	return g.digest(h), nil
}

// FromWeights hashes every tensor of w into one accumulator, iterating names
// in sorted order.
func (g *streamHasher) FromWeights(w WeightMap) (string, error) {
	h := g.newHash()
	for _, name := range w.Names() {
		t := w[name]
		if t == nil {
			return "", fmt.Errorf("uid: weight %q is nil", name)
		}
		if err := t.WriteContiguous(h); err != nil {
			return "", fmt.Errorf("uid: weight %q: %w", name, err)
		}
	}
	return g.digest(h), nil
}

// Identify computes the identity triple of w.
func Identify(g Generator, w WeightMap) (Identity, error) {
	sum, err := g.FromWeights(w)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: sum, Type: g.Type(), Version: g.Version()}, nil
}

// WeightMap maps parameter names to tensors.
type WeightMap map[string]*Tensor

// Names returns the parameter names in lexicographic order.
func (w WeightMap) Names() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// moduleVersion reports the linked version of a dependency, falling back when
// build info is unavailable (tests, stripped binaries).
func moduleVersion(path, fallback string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fallback
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return fallback
}
