package form

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/buildboard/signup"
)

// Kind selects the built-in rule of a field.
type Kind int

const (
	Text Kind = iota
	Email
	Choice
)

// Field describes one input.
type Field struct {
	Name      string
	Label     string
	Kind      Kind
	Required  bool
	MinLength int
	Pattern   *regexp.Regexp
	OneOf     []string
	Honeypot  bool
	Default   string
}

// Schema describes a form: its fields, the order in which focus lands on
// the first invalid field, where it posts, and how its payload is built.
type Schema struct {
	Name           string
	Endpoint       string
	Fields         []Field
	FocusOrder     []string
	ResetOnSuccess bool
	Build          func(Values) map[string]any
}

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns the initial values of every field.
func (s Schema) Defaults() Values {
	v := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		v[f.Name] = f.Default
	}
	return v
}

// Field names of the predefined forms.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldRole     = "role"
	FieldCompany  = "company"
	FieldWebsite  = "website"
	FieldReferrer = "referrer_name"
	FieldRefEmail = "referrer_email"
	FieldRefType  = "referral_type"
	FieldRefName  = "referral_name"
	FieldContact  = "referral_contact"
	FieldNotes    = "notes"
)

// Waitlist is the primary signup form.
func Waitlist() Schema {
	return Schema{
		Name:     "waitlist",
		Endpoint: signup.PathWaitlist,
		Fields: []Field{
			{Name: FieldName, Label: "Name", Required: true, MinLength: 2},
			{Name: FieldEmail, Label: "Email", Kind: Email, Required: true},
			{Name: FieldRole, Label: "I am a", Kind: Choice, Required: true, OneOf: signup.Roles},
			{Name: FieldCompany, Honeypot: true},
		},
		FocusOrder:     []string{FieldName, FieldEmail, FieldRole},
		ResetOnSuccess: true,
		Build: func(v Values) map[string]any {
			return map[string]any{
				"name":  v.Trimmed(FieldName),
				"email": v.Trimmed(FieldEmail),
				"role":  v.Trimmed(FieldRole),
			}
		},
	}
}

// Referral is the "refer a shop or builder" form.
func Referral() Schema {
	return Schema{
		Name:     "referral",
		Endpoint: signup.PathReferrals,
		Fields: []Field{
			{Name: FieldReferrer, Label: "Your name", Required: true, MinLength: 2},
			{Name: FieldRefEmail, Label: "Your email", Kind: Email, Required: true},
			{Name: FieldRefType, Label: "Referral type", Kind: Choice, Required: true, OneOf: signup.ReferralTypes},
			{Name: FieldRefName, Label: "Shop or builder name", Required: true, MinLength: 2},
			{Name: FieldContact, Label: "Instagram or website"},
			{Name: FieldNotes, Label: "Notes"},
			{Name: FieldWebsite, Honeypot: true},
		},
		FocusOrder:     []string{FieldReferrer, FieldRefEmail, FieldRefType, FieldRefName},
		ResetOnSuccess: true,
		Build: func(v Values) map[string]any {
			return map[string]any{
				"referrer_name":    v.Trimmed(FieldReferrer),
				"referrer_email":   v.Trimmed(FieldRefEmail),
				"referral_type":    v.Trimmed(FieldRefType),
				"referral_name":    v.Trimmed(FieldRefName),
				"referral_contact": v.Optional(FieldContact),
				"notes":            v.Optional(FieldNotes),
			}
		},
	}
}

// FooterEmail is the footer micro-form. It joins the waitlist as a
// Subscriber and keeps the email after success so it can be corrected and
// sent again.
func FooterEmail() Schema {
	return Schema{
		Name:     "footer",
		Endpoint: signup.PathWaitlist,
		Fields: []Field{
			{Name: FieldEmail, Label: "Email", Kind: Email, Required: true},
			{Name: FieldCompany, Honeypot: true},
		},
		FocusOrder:     []string{FieldEmail},
		ResetOnSuccess: false,
		Build: func(v Values) map[string]any {
			email := v.Trimmed(FieldEmail)
			return map[string]any{
				"name":  nameFromEmail(email),
				"email": email,
				"role":  signup.RoleSubscriber,
			}
		},
	}
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Subscriber"
	}
	return local
}

// WithDefault returns a copy of s whose field name starts at value. Unknown
// names leave s unchanged.
func (s Schema) WithDefault(name, value string) Schema {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Default = value
		}
	}
	s.Fields = fields
	return s
}
