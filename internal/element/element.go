package element

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind tags the variant of an element.
type Kind string

const (
	KindModel    Kind = "model"
	KindAudio    Kind = "audio"
	KindExternal Kind = "external"
	KindSet      Kind = "set"
	KindBatch    Kind = "batch"
)

// Kinds lists every valid kind.
var Kinds = []Kind{KindModel, KindAudio, KindExternal, KindSet, KindBatch}

// ParseKind validates a type tag.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown element type %q", s)}
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Element is implemented by the five artifact kinds only.
type Element interface {
	Kind() Kind
	CreatedAt() int64
	Attributes() map[string]any
	Validate() error

	base() *Base
}

// Base is shared by every element. Created is set once at construction.
type Base struct {
	Type    Kind           `json:"type"`
	Created int64          `json:"created"`
	Extra   map[string]any `json:"-"`
}

// NewBase stamps a base with kind and creation time. A zero created uses the
// current wall clock.
func NewBase(kind Kind, created int64) Base {
	if created == 0 {
		created = time.Now().Unix()
	}
	return Base{Type: kind, Created: created}
}

func (b *Base) Kind() Kind       { return b.Type }
func (b *Base) CreatedAt() int64 { return b.Created }
func (b *Base) base() *Base      { return b }

func (b *Base) attrs() map[string]any {
	m := make(map[string]any, len(b.Extra)+2)
	for k, v := range b.Extra {
		m[k] = v
	}
	m["type"] = string(b.Type)
	m["created"] = b.Created
	return m
}

// Artifact holds the content-identified fields shared by models and audio.
type Artifact struct {
	UID        string   `json:"uid,omitempty"`
	UIDType    string   `json:"uid_type,omitempty"`
	UIDVersion string   `json:"uid_version,omitempty"`
	Name       string   `json:"name,omitempty"`
	Alias      string   `json:"alias,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Path       string   `json:"path,omitempty"`
}

func (a *Artifact) putAttrs(m map[string]any) {
	putString(m, "uid", a.UID)
	putString(m, "uid_type", a.UIDType)
	putString(m, "uid_version", a.UIDVersion)
	putString(m, "name", a.Name)
	putString(m, "alias", a.Alias)
	putString(m, "path", a.Path)
	if len(a.Tags) > 0 {
		m["tags"] = append([]string(nil), a.Tags...)
	}
}

func putString(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

// Model is a registered generative model checkpoint.
type Model struct {
	Base
	Artifact
	Engine     string `json:"engine,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
}

func (m *Model) Attributes() map[string]any {
	out := m.Base.attrs()
	m.Artifact.putAttrs(out)
	putString(out, "engine", m.Engine)
	putString(out, "config_path", m.ConfigPath)
	return out
}

func (m *Model) Validate() error {
	switch {
	case m.Name == "":
		return &ValidationError{Field: "name", Message: "model name is required"}
	case m.UID == "":
		return &ValidationError{Field: "uid", Message: "model uid is required"}
	case m.UIDType == "":
		return &ValidationError{Field: "uid_type", Message: "model uid_type is required"}
	case m.Engine == "":
		return &ValidationError{Field: "engine", Message: "model engine is required"}
	case m.Path == "":
		return &ValidationError{Field: "path", Message: "model path is required"}
	}
	return nil
}

// Audio is a single audio file, generated (Parent set) or found (no Parent).
type Audio struct {
	Base
	Artifact
	Parent     string    `json:"parent,omitempty"`
	BatchIndex int       `json:"batch_index,omitempty"`
	TSNE       []float64 `json:"tsne,omitempty"`
}

func (a *Audio) Attributes() map[string]any {
	out := a.Base.attrs()
	a.Artifact.putAttrs(out)
	putString(out, "parent", a.Parent)
	if a.BatchIndex != 0 {
		out["batch_index"] = a.BatchIndex
	}
	if a.TSNE != nil {
		out["tsne"] = append([]float64(nil), a.TSNE...)
	}
	return out
}

func (a *Audio) Validate() error {
	if a.Path == "" {
		return &ValidationError{Field: "path", Message: "audio path is required"}
	}
	if a.BatchIndex < 0 {
		return &ValidationError{Field: "batch_index", Message: "batch_index must be positive"}
	}
	return nil
}

// ExternalSource is a scanned external directory.
type ExternalSource struct {
	Base
	Path        string `json:"path,omitempty"`
	Alias       string `json:"alias,omitempty"`
	LastScanned int64  `json:"last_scanned,omitempty"`
}

func (s *ExternalSource) Attributes() map[string]any {
	out := s.Base.attrs()
	putString(out, "path", s.Path)
	putString(out, "alias", s.Alias)
	if s.LastScanned != 0 {
		out["last_scanned"] = s.LastScanned
	}
	return out
}

func (s *ExternalSource) Validate() error {
	if s.Path == "" {
		return &ValidationError{Field: "path", Message: "external source path is required"}
	}
	return nil
}

// Set is a named logical grouping.
type Set struct {
	Base
	Alias string `json:"alias,omitempty"`
}

func (s *Set) Attributes() map[string]any {
	out := s.Base.attrs()
	putString(out, "alias", s.Alias)
	return out
}

func (s *Set) Validate() error {
	if s.Alias == "" {
		return &ValidationError{Field: "alias", Message: "set alias is required"}
	}
	return nil
}

// Batch groups the outputs of one generation or variation call.
type Batch struct {
	Base
	Alias string `json:"alias,omitempty"`
}

func (b *Batch) Attributes() map[string]any {
	out := b.Base.attrs()
	putString(out, "alias", b.Alias)
	return out
}

func (b *Batch) Validate() error {
	if b.Alias == "" {
		return &ValidationError{Field: "alias", Message: "batch alias is required"}
	}
	return nil
}

var (
	baseKeys     = []string{"type", "created"}
	artifactKeys = []string{"uid", "uid_type", "uid_version", "name", "alias", "tags", "path"}
	knownKeys    = map[Kind][]string{
		KindModel:    join(baseKeys, artifactKeys, []string{"engine", "config_path"}),
		KindAudio:    join(baseKeys, artifactKeys, []string{"parent", "batch_index", "tsne"}),
		KindExternal: join(baseKeys, []string{"path", "alias", "last_scanned"}),
		KindSet:      join(baseKeys, []string{"alias"}),
		KindBatch:    join(baseKeys, []string{"alias"}),
	}
)

func join(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newOfKind(k Kind) Element {
	switch k {
	case KindModel:
		return &Model{}
	case KindAudio:
		return &Audio{}
	case KindExternal:
		return &ExternalSource{}
	case KindSet:
		return &Set{}
	default:
		return &Batch{}
	}
}

// Decode builds the typed element described by attrs. The "type" key selects
// the variant; keys outside the variant's field set are kept in Extra.
func Decode(attrs map[string]any) (Element, error) {
	typ, ok := attrs["type"].(string)
	if !ok {
		return nil, &ValidationError{Field: "type", Message: "missing element type"}
	}
	kind, err := ParseKind(typ)
	if err != nil {
		return nil, err
	}

	clean := make(map[string]any, len(attrs))
	for k, v := range attrs {
		clean[k] = v
	}
	if raw, ok := clean["tags"]; ok {
		tags, err := NormalizeTags(raw)
		if err != nil {
			return nil, err
		}
		clean["tags"] = tags
	}
	if alias, ok := clean["alias"].(string); ok {
		clean["alias"] = norm.NFC.String(alias)
	}

	el := newOfKind(kind)
	known := make(map[string]bool)
	typed := make(map[string]any)
	for _, k := range knownKeys[kind] {
		known[k] = true
		if v, ok := clean[k]; ok && v != nil {
			typed[k] = v
		}
	}

	raw, err := json.Marshal(typed)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("encode attributes: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(el); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &ValidationError{Field: te.Field, Message: fmt.Sprintf("expected %s, got %s", te.Type, te.Value)}
		}
		return nil, &ValidationError{Message: err.Error()}
	}

	b := el.base()
	b.Type = kind
	for k, v := range clean {
		if known[k] {
			continue
		}
		if b.Extra == nil {
			b.Extra = make(map[string]any)
		}
		b.Extra[k] = v
	}

	if err := el.Validate(); err != nil {
		return nil, err
	}
	return el, nil
}

// Merge returns a new element with attrs merged over e's attributes. A nil
// value deletes the key. The type tag and creation time are immutable.
func Merge(e Element, attrs map[string]any) (Element, error) {
	m := e.Attributes()
	for k, v := range attrs {
		switch k {
		case "type":
			if s, ok := v.(string); !ok || Kind(s) != e.Kind() {
				return nil, &ValidationError{Field: "type", Message: "element type is immutable"}
			}
			continue
		case "created":
			if n, ok := asInt64(v); !ok || n != e.CreatedAt() {
				return nil, &ValidationError{Field: "created", Message: "creation time is immutable"}
			}
			continue
		}
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	return Decode(m)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), float64(int64(n)) == n
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// PathOf returns the filesystem path carried by e, or "" when it has none.
func PathOf(e Element) string {
	switch v := e.(type) {
	case *Model:
		return v.Path
	case *Audio:
		return v.Path
	case *ExternalSource:
		return v.Path
	default:
		return ""
	}
}

// IsArtifact reports whether e is content-identified (model or audio).
func IsArtifact(e Element) bool {
	k := e.Kind()
	return k == KindModel || k == KindAudio
}

// ArtifactOf returns the artifact fields of a model or audio element.
func ArtifactOf(e Element) *Artifact {
	switch v := e.(type) {
	case *Model:
		return &v.Artifact
	case *Audio:
		return &v.Artifact
	default:
		return nil
	}
}
