// Package monitor checks encoded request payloads against JSON schemas before
// they are sent, so malformed input fails before any network call.
package monitor

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Names of the embedded schemas.
const (
	ConfirmPaymentSourceSchema = "confirm_payment_source.json"
	VaultCardSchema            = "vault_card.json"
)

// ContractMonitor validates documents against one compiled JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor compiles a schema from disk. schemaPath must be absolute.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	loader := gojsonschema.NewReferenceLoader("file://" + schemaPath)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", schemaPath, err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// NewEmbeddedContractMonitor compiles one of the schemas shipped with the package.
func NewEmbeddedContractMonitor(name string) (*ContractMonitor, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("unknown embedded schema %s: %w", name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("error compiling schema %s: %w", name, err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// MustEmbedded is NewEmbeddedContractMonitor for package-level initialization.
func MustEmbedded(name string) *ContractMonitor {
	cm, err := NewEmbeddedContractMonitor(name)
	if err != nil {
		panic(err)
	}
	return cm
}

// Validate reports whether document satisfies the contract. The error return
// is reserved for documents that cannot be parsed at all.
func (cm *ContractMonitor) Validate(document []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return false, nil, fmt.Errorf("error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return false, violations, nil
}

// Check is Validate folded into a single error.
func (cm *ContractMonitor) Check(document []byte) error {
	valid, validationErrs, err := cm.Validate(document)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("%s", FormatErrors(validationErrs))
	}
	return nil
}

// FormatErrors joins contract violations into one message.
func FormatErrors(violations []string) string {
	if len(violations) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(violations, "; ")
}
