package engine

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed config.cue
var configSchema string

// ModelConfig is the parsed model configuration file.
type ModelConfig struct {
	SampleRate int    `json:"sample_rate"`
	SampleSize int    `json:"sample_size"`
	ModelType  string `json:"model_type"`

	// Raw keeps every key of the file, including backend specific ones.
	Raw map[string]any `json:"-"`
}

// LoadConfig reads a JSON model config and validates it against the schema.
func LoadConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	return ParseConfig(path, data)
}

// ParseConfig validates data (JSON, or any CUE the schema accepts). name is
// used in error positions.
func ParseConfig(name string, data []byte) (*ModelConfig, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse model config %s: %s", name, errors.Details(err, nil))
	}
	unified := schema.LookupPath(cue.ParsePath("#ModelConfig")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid model config %s: %s", name, errors.Details(err, nil))
	}

	var cfg ModelConfig
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode model config %s: %w", name, err)
	}
	if err := unified.Decode(&cfg.Raw); err != nil {
		return nil, fmt.Errorf("decode model config %s: %w", name, err)
	}
	return &cfg, nil
}
