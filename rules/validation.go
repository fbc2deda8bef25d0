package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxSchemaObjects = 100
	maxObjectFields  = 200
	maxIdentifierLen = 100

	// MaxRuleWeight bounds the absolute weight of a single rule.
	MaxRuleWeight = 100
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateSchema validates a schema definition.
// Returns an error if validation fails, nil if schema is valid
func ValidateSchema(schema Schema) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema cannot be empty, must contain at least one object definition")
	}

	if len(schema) > maxSchemaObjects {
		return fmt.Errorf("schema contains %d objects, maximum allowed is %d", len(schema), maxSchemaObjects)
	}

	for objectName, fields := range schema {
		if err := validateIdentifier(objectName); err != nil {
			return fmt.Errorf("invalid object name %q: %w", objectName, err)
		}

		if len(fields) == 0 {
			return fmt.Errorf("object %q must contain at least one field", objectName)
		}

		if len(fields) > maxObjectFields {
			return fmt.Errorf("object %q contains %d fields, maximum allowed is %d", objectName, len(fields), maxObjectFields)
		}

		for fieldName, typeName := range fields {
			if err := validateIdentifier(fieldName); err != nil {
				return fmt.Errorf("invalid field name %q in object %q: %w", fieldName, objectName, err)
			}

			if typeName == "" {
				return fmt.Errorf("field %q in object %q has empty type name", fieldName, objectName)
			}

			if strings.TrimSpace(typeName) != typeName {
				return fmt.Errorf("field %q in object %q has type with leading/trailing whitespace: %q", fieldName, objectName, typeName)
			}

			if !isValidCELType(typeName) {
				return fmt.Errorf("field %q in object %q has invalid type %q (must be one of: int, int64, float64, string, bool, bytes, timestamp, duration)", fieldName, objectName, typeName)
			}
		}
	}

	return nil
}

// ValidateRule checks the metadata of a rule before it is compiled.
// Expression syntax is checked by the engine at compile time.
func ValidateRule(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is nil", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if err := validateIdentifier(rule.Name); err != nil {
		return fmt.Errorf("%w: name %q: %v", ErrInvalidRule, rule.Name, err)
	}
	if strings.TrimSpace(rule.Expression) == "" {
		return fmt.Errorf("%w: expression is required", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidRule)
	}
	if rule.Weight < -MaxRuleWeight || rule.Weight > MaxRuleWeight {
		return fmt.Errorf("%w: weight %d outside [-%d, %d]", ErrInvalidRule, rule.Weight, MaxRuleWeight, MaxRuleWeight)
	}
	if rule.Position < 0 {
		return fmt.Errorf("%w: position must be >= 0, got %d", ErrInvalidRule, rule.Position)
	}
	return nil
}

// validateIdentifier validates an object, field or rule name.
// Must match ^[a-zA-Z_][a-zA-Z0-9_]*$, be 1-100 characters and not be a reserved keyword.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLen)
	}

	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}

	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}

	return nil
}

// isValidCELType checks if a type name is a valid CEL type.
// Type names are case-sensitive.
func isValidCELType(typeName string) bool {
	switch typeName {
	case "int", "int64", "float64", "string", "bool", "bytes", "timestamp", "duration":
		return true
	}
	return false
}

var reservedKeywords = map[string]bool{
	"true": true, "false": true, "null": true,
	"if": true, "else": true, "for": true, "while": true, "break": true, "continue": true, "return": true,
	"var": true, "let": true, "const": true, "function": true,
	"in": true, "as": true, "import": true, "package": true, "namespace": true, "loop": true, "void": true,
}

func isReservedKeyword(name string) bool {
	return reservedKeywords[name]
}
