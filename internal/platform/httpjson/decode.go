package httpjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrValidation marks a request body that is not JSON or does not match its schema.
var ErrValidation = errors.New("invalid request")

const maxBodyBytes = 1 << 20

// Schema validates request bodies of type T against a JSON Schema reflected from T.
// Fields whose json tag lacks omitempty are required.
type Schema[T any] struct {
	raw      []byte
	compiled *jschema.Schema
}

// NewSchema reflects and compiles the schema for T.
func NewSchema[T any]() (*Schema[T], error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		Mapper:                    mapType,
	}
	raw, err := json.Marshal(r.Reflect(new(T)))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := jschema.NewCompiler()
	if err := c.AddResource("request.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("request.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema[T]{raw: raw, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level request types; it panics on a malformed type.
func MustSchema[T any]() *Schema[T] {
	s, err := NewSchema[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// Decode reads the request body, validates it and decodes it into a T.
// Every failure wraps ErrValidation.
func (s *Schema[T]) Decode(r *http.Request) (*T, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrValidation, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body too large", ErrValidation)
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed JSON body", ErrValidation)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, summarize(err))
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &out, nil
}

// Raw returns the generated JSON Schema document.
func (s *Schema[T]) Raw() []byte {
	return s.raw
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func mapType(t reflect.Type) *jsonschema.Schema {
	if t == decimalType {
		return &jsonschema.Schema{Type: "number"}
	}
	return nil
}

// summarize keeps the most specific line of a validation error.
func summarize(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	return strings.TrimPrefix(last, "- ")
}
