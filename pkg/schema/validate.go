package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateBytes checks a raw JSON document against an inline JSON schema and
// returns human-readable violations. A nil, empty result means the document
// is valid.
func ValidateBytes(schemaJSON string, doc []byte) ([]string, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewBytesLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
