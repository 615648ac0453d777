package bili

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "bili-status.json"

// Schema returns the JSON schema every upstream body must satisfy.
func Schema() ([]byte, error) {
	r := &invopop.Reflector{
		// Upstream adds fields over time; only the ones we read are pinned.
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		DoNotReference:            true,
		Anonymous:                 true,
	}

	s := r.Reflect(&statusResponse{})
	s.Title = "bilibili live status response"
	s.Description = "get_status_info_by_uids envelope with per-user room records."

	return json.MarshalIndent(s, "", "  ")
}

// Validator checks raw response bodies against Schema().
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the generated schema.
func NewValidator() (*Validator, error) {
	raw, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Validate decodes body generically and validates it.
func (v *Validator) Validate(body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var messages []string
			collectErrors(validationErr, &messages)
			return fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("%s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
