package inference

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/stemma/internal/engine"
)

var validate = validator.New()

// Request describes one generation or variation call.
type Request struct {
	Mode       string  `validate:"required,oneof=generation variation"`
	Model      string  `validate:"required"`
	SampleRate int     `validate:"gt=0"`
	ChunkSize  int     `validate:"gte=0"`
	BatchSize  int     `validate:"gte=0"`
	Seed       int64
	Steps      int     `validate:"gte=0"`
	Sampler    string
	Scheduler  string
	Source     string  `validate:"required_if=Mode variation"`
	NoiseLevel float64 `validate:"gte=0,lte=1"`
}

// Normalize lowercases the mode.
func (r *Request) Normalize() {
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))
}

// Validate checks the request fields.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check", strings.ToLower(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

// Params converts the request into backend sampling parameters.
func (r *Request) Params() engine.GenerateParams {
	return engine.GenerateParams{
		Mode:       engine.Mode(r.Mode),
		ChunkSize:  r.ChunkSize,
		BatchSize:  r.BatchSize,
		Seed:       r.Seed,
		Steps:      r.Steps,
		Sampler:    r.Sampler,
		Scheduler:  r.Scheduler,
		NoiseLevel: r.NoiseLevel,
	}
}
