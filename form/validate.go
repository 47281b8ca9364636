package form

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/buildboard/signup"
)

// Values holds raw field input keyed by field name.
type Values map[string]string

// Trimmed returns the value of name without surrounding whitespace.
func (v Values) Trimmed(name string) string { return strings.TrimSpace(v[name]) }

// Optional returns nil for a blank value so the field is omitted from the
// payload.
func (v Values) Optional(name string) *string {
	s := v.Trimmed(name)
	if s == "" {
		return nil
	}
	return &s
}

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, s := range v {
		out[k] = s
	}
	return out
}

// ErrorKind classifies a field error.
type ErrorKind int

const (
	ErrRequired ErrorKind = iota + 1
	ErrTooShort
	ErrBadEmail
	ErrNotAllowed
	ErrPattern
)

// FieldError is the inline message of one field.
type FieldError struct {
	Kind    ErrorKind
	Message string
}

// Errors maps field name to its error.
type Errors map[string]FieldError

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Validate evaluates every rule of schema against values. Honeypot fields
// are never validated.
func Validate(schema Schema, values Values) Errors {
	errs := Errors{}
	for _, f := range schema.Fields {
		if fe, bad := checkField(f, values[f.Name]); bad {
			errs[f.Name] = fe
		}
	}
	return errs
}

func checkField(f Field, raw string) (FieldError, bool) {
	if f.Honeypot {
		return FieldError{}, false
	}
	v := strings.TrimSpace(raw)
	label := f.Label
	if label == "" {
		label = f.Name
	}
	if v == "" {
		if f.Required {
			return FieldError{ErrRequired, label + " is required"}, true
		}
		return FieldError{}, false
	}
	if f.MinLength > 0 && utf8.RuneCountInString(v) < f.MinLength {
		return FieldError{ErrTooShort, fmt.Sprintf("%s must be at least %d characters", label, f.MinLength)}, true
	}
	switch f.Kind {
	case Email:
		if !signup.IsEmail(v) {
			return FieldError{ErrBadEmail, "Enter a valid email address"}, true
		}
	case Choice:
		ok := false
		for _, o := range f.OneOf {
			if v == o {
				ok = true
				break
			}
		}
		if !ok {
			return FieldError{ErrNotAllowed, fmt.Sprintf("Choose one of: %s", strings.Join(f.OneOf, ", "))}, true
		}
	}
	if f.Pattern != nil && !f.Pattern.MatchString(v) {
		return FieldError{ErrPattern, label + " has an invalid format"}, true
	}
	return FieldError{}, false
}

// firstInvalid returns the highest-priority field in errs: FocusOrder first,
// then schema order for anything FocusOrder does not list.
func firstInvalid(schema Schema, errs Errors) string {
	for _, name := range schema.FocusOrder {
		if _, ok := errs[name]; ok {
			return name
		}
	}
	for _, f := range schema.Fields {
		if _, ok := errs[f.Name]; ok {
			return f.Name
		}
	}
	return ""
}

// honeypotFilled reports whether any honeypot carries non-whitespace content.
func honeypotFilled(schema Schema, values Values) bool {
	for _, f := range schema.Fields {
		if f.Honeypot && strings.TrimSpace(values[f.Name]) != "" {
			return true
		}
	}
	return false
}
