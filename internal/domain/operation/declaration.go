package operation

import (
	"fmt"

	"github.com/langkit/opcore/internal/domain"
)

// FieldType enumerates the input field types an operation may declare.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
)

// IsValid reports whether the field type is one of the declared constants.
func (f FieldType) IsValid() bool {
	switch f {
	case FieldString, FieldNumber, FieldBoolean, FieldObject, FieldArray:
		return true
	}
	return false
}

// InputField declares a single named input an operation accepts.
type InputField struct {
	Name     string
	Type     FieldType
	Required bool
}

// InputSchema is the ordered set of input fields an operation declares.
type InputSchema []InputField

// Validate checks the supplied input map against the schema: required
// fields must be present, and present fields must match their declared
// type. Unknown keys are accepted so callers can carry extra metadata.
func (s InputSchema) Validate(input map[string]any) error {
	fields := make(map[string]string)

	for _, f := range s {
		v, ok := input[f.Name]
		if !ok {
			if f.Required {
				fields[f.Name] = domain.MsgRequired
			}
			continue
		}
		if !matchesType(v, f.Type) {
			fields[f.Name] = fmt.Sprintf("must be %s, got %T", f.Type, v)
		}
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// matchesType checks a decoded JSON value against a declared field type.
// Numbers arrive as float64 from encoding/json; integers are also accepted
// so that in-process callers can pass native ints.
func matchesType(v any, t FieldType) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldObject:
		_, ok := v.(map[string]any)
		return ok
	case FieldArray:
		_, ok := v.([]any)
		return ok
	}
	return false
}

// Declaration is the immutable metadata an operation is registered with.
// Created once at registration time and never mutated afterwards.
type Declaration struct {
	Language    LanguageID
	Operation   ID
	Description string
	Mode        Mode
	TargetTypes []string
	InputSchema InputSchema
}

// Validate checks business rules for the declaration.
func (d *Declaration) Validate() error {
	fields := make(map[string]string)

	if err := d.Language.Validate(); err != nil {
		fields["languageId"] = fmt.Sprintf("invalid: %q", d.Language)
	}
	if err := d.Operation.Validate(); err != nil {
		fields["operationId"] = fmt.Sprintf("invalid: %q", d.Operation)
	}
	if !d.Mode.IsValid() {
		fields["mode"] = fmt.Sprintf("invalid: %q", d.Mode)
	}
	for _, f := range d.InputSchema {
		if f.Name == "" {
			fields["inputSchema"] = "field names must not be empty"
		} else if !f.Type.IsValid() {
			fields["inputSchema"] = fmt.Sprintf("field %q has invalid type %q", f.Name, f.Type)
		}
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
