package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
)

// Schema describes the fact objects a rule table can reference.
// Maps object names to field definitions (field name -> CEL type name).
type Schema map[string]map[string]string

// NewEnvFromSchema creates a CEL environment with one variable per schema object.
// Objects are declared as string-keyed maps so rules can use field selection
// (Appointment.lead_time_days) while values keep their runtime types.
func NewEnvFromSchema(schema Schema) (*cel.Env, error) {
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(schema))
	for objectName := range schema {
		names = append(names, objectName)
	}
	sort.Strings(names)

	opts := make([]cel.EnvOption, 0, len(names))
	for _, objectName := range names {
		opts = append(opts, cel.Variable(objectName, cel.MapType(cel.StringType, cel.DynType)))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return env, nil
}

// Has reports whether object.field is declared.
func (s Schema) Has(object, field string) bool {
	fields, ok := s[object]
	if !ok {
		return false
	}
	_, ok = fields[field]
	return ok
}

// CheckReferences rejects field accesses on schema objects that the schema
// does not declare. Objects are map-typed, so the CEL checker alone accepts
// any field name.
func (s Schema) CheckReferences(ast *cel.Ast) error {
	var unknown []string
	seen := map[string]bool{}

	celast.PostOrderVisit(ast.NativeRep().Expr(), celast.NewExprVisitor(func(e celast.Expr) {
		object, field, ok := fieldReference(e)
		if !ok {
			return
		}
		if _, declared := s[object]; !declared || s.Has(object, field) {
			return
		}
		ref := object + "." + field
		if !seen[ref] {
			seen[ref] = true
			unknown = append(unknown, ref)
		}
	}))

	if len(unknown) > 0 {
		return fmt.Errorf("undeclared field %s", strings.Join(unknown, ", "))
	}
	return nil
}

// fieldReference matches Object.field and Object["field"].
func fieldReference(e celast.Expr) (object, field string, ok bool) {
	switch e.Kind() {
	case celast.SelectKind:
		sel := e.AsSelect()
		if sel.Operand().Kind() != celast.IdentKind {
			return "", "", false
		}
		return sel.Operand().AsIdent(), sel.FieldName(), true

	case celast.CallKind:
		call := e.AsCall()
		if call.FunctionName() != operators.Index || len(call.Args()) != 2 {
			return "", "", false
		}
		target, key := call.Args()[0], call.Args()[1]
		if target.Kind() != celast.IdentKind || key.Kind() != celast.LiteralKind {
			return "", "", false
		}
		name, isString := key.AsLiteral().(types.String)
		if !isString {
			return "", "", false
		}
		return target.AsIdent(), string(name), true
	}
	return "", "", false
}
