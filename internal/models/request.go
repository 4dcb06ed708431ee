package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/bobarin/montage/internal/captions"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRequest = errors.New("invalid render request")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("rgbhex", func(fl validator.FieldLevel) bool {
			_, err := captions.ParseHexColor(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks field constraints, then the cross-field rules the tags
// cannot express.
func (r RenderRequest) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Captions != nil {
		if len(r.Timings) == 0 {
			return fmt.Errorf("%w: captions requested without timings", ErrInvalidRequest)
		}
		if err := r.Captions.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	for i, t := range r.Timings {
		if t.End < t.Start {
			return fmt.Errorf("%w: timings[%d] ends before it starts", ErrInvalidRequest, i)
		}
	}
	return nil
}

// LoadRequest reads a YAML or JSON manifest.
func LoadRequest(path string) (RenderRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RenderRequest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseRequest(data, filepath.Ext(path))
}

// ParseRequest decodes a manifest body; ext selects JSON when it is ".json".
func ParseRequest(data []byte, ext string) (RenderRequest, error) {
	var req RenderRequest
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &req)
	} else {
		err = yaml.Unmarshal(data, &req)
	}
	if err != nil {
		return RenderRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return RenderRequest{}, err
	}
	return req, nil
}
