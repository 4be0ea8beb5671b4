// Package decorators provides forwarding wrappers around the field
// capability interface. A decorator redefines a single capability and
// passes everything else through to the wrapped field, so callers that
// only depend on the interface never observe the substitution.
package decorators

import "github.com/moacode/craft-fab-permissions/internal/entities"

// StaticFieldDecorator downgrades a field's interactive input to its
// read-only presentation. All other methods forward to the wrapped field
// through the embedded interface, so the decorated field keeps its
// identity (ID, handle) for any host logic that inspects it.
// Decorators may be nested; Underlying walks to the innermost field.
type StaticFieldDecorator struct {
	entities.Field
}

// NewStaticField wraps field so that rendering its input yields the
// static presentation of the same value.
func NewStaticField(field entities.Field) *StaticFieldDecorator {
	return &StaticFieldDecorator{Field: field}
}

// RenderInput redirects to the wrapped field's static rendering.
func (d *StaticFieldDecorator) RenderInput(value string) string {
	return d.Field.RenderStatic(value)
}

// Unwrap returns the directly wrapped field.
func (d *StaticFieldDecorator) Unwrap() entities.Field {
	return d.Field
}

// unwrapper is satisfied by any decorator in this package.
type unwrapper interface {
	Unwrap() entities.Field
}

// Underlying walks a decorator chain to the innermost non-decorator
// field. Chains are cycle-free by construction: a decorator is only
// ever built around an already-constructed field.
func Underlying(field entities.Field) entities.Field {
	for {
		d, ok := field.(unwrapper)
		if !ok {
			return field
		}
		field = d.Unwrap()
	}
}

// IsStatic reports whether field is (or wraps) a StaticFieldDecorator,
// i.e. whether its interactive input has been downgraded.
func IsStatic(field entities.Field) bool {
	for {
		if _, ok := field.(*StaticFieldDecorator); ok {
			return true
		}
		d, ok := field.(unwrapper)
		if !ok {
			return false
		}
		field = d.Unwrap()
	}
}
