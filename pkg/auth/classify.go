package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind names the shape of a backend failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindGeneric
	KindFieldErrors
	KindNonField
	KindDetail
	KindEmailUnverified
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindGeneric:
		return "generic"
	case KindFieldErrors:
		return "field_errors"
	case KindNonField:
		return "non_field"
	case KindDetail:
		return "detail"
	case KindEmailUnverified:
		return "email_unverified"
	default:
		return "unknown"
	}
}

// GenericFormMessage is shown for a structured failure with nothing readable in it.
const GenericFormMessage = "Please check the form data and try again."

// FieldError holds the messages the backend attached to one form field.
type FieldError struct {
	Field    string
	Messages []string
}

// AuthError is a classified backend failure.
type AuthError struct {
	Kind   Kind
	Status int

	Detail   string
	NonField []string
	Fields   []FieldError

	// Email is set for KindEmailUnverified.
	Email string

	// Transport is the message of a failure that carried no payload.
	Transport string

	Err error
}

func (e *AuthError) Error() string {
	return e.Message("authentication request failed")
}

func (e *AuthError) Unwrap() error { return e.Err }

// Classify sorts err into one of the AuthError kinds. Payload shapes are
// resolved here so that Message never looks at raw JSON.
func Classify(err error) *AuthError {
	if err == nil {
		return &AuthError{Kind: KindUnknown}
	}

	ae := &AuthError{Kind: KindUnknown, Err: err}
	if status, ok := StatusCode(err); ok {
		ae.Status = status
	}

	var pc PayloadCarrier
	if errors.As(err, &pc) && ae.parsePayload(pc.Payload()) {
		return ae
	}

	ae.Transport = err.Error()
	var ne *NetworkError
	if errors.As(err, &ne) {
		ae.Kind = KindNetwork
	}
	return ae
}

func (e *AuthError) parsePayload(raw []byte) bool {
	members, err := decodeObject(raw)
	if err != nil || len(members) == 0 {
		return false
	}

	for _, m := range members {
		switch m.key {
		case "detail":
			var s string
			if json.Unmarshal(m.value, &s) == nil && s != "" {
				e.Detail = s
			}
		case "non_field_errors":
			e.NonField = append(e.NonField, fieldMessages(m.value)...)
		default:
			if msgs := fieldMessages(m.value); len(msgs) > 0 {
				e.Fields = append(e.Fields, FieldError{Field: m.key, Messages: msgs})
			}
		}
	}

	switch {
	case e.Detail != "":
		e.Kind = KindDetail
	case len(e.NonField) > 0:
		e.Kind = KindNonField
	case len(e.Fields) > 0:
		e.Kind = KindFieldErrors
	default:
		e.Kind = KindGeneric
	}
	return true
}

// Message renders the failure for display. def is used when nothing in
// the failure is readable.
func (e *AuthError) Message(def string) string {
	if e == nil {
		return def
	}
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.NonField) > 0:
		return strings.Join(e.NonField, ", ")
	case len(e.Fields) > 0:
		return e.fieldMessage()
	case e.Kind == KindGeneric:
		return GenericFormMessage
	case e.Transport != "":
		return e.Transport
	}
	return def
}

func (e *AuthError) fieldMessage() string {
	var parts []string
	for _, f := range e.Fields {
		label := FieldLabel(f.Field)
		for _, msg := range f.Messages {
			if strings.Contains(strings.ToLower(msg), "this field is required") {
				parts = append(parts, label+" is required.")
				continue
			}
			parts = append(parts, label+": "+msg)
		}
	}
	return strings.Join(parts, " ")
}

// MentionsUnverifiedEmail reports whether any single backend message talks
// about both an email address and its verification.
func (e *AuthError) MentionsUnverifiedEmail() bool {
	if e == nil {
		return false
	}
	if mentionsUnverified(e.Detail) {
		return true
	}
	for _, msg := range e.NonField {
		if mentionsUnverified(msg) {
			return true
		}
	}
	for _, f := range e.Fields {
		for _, msg := range f.Messages {
			if mentionsUnverified(msg) {
				return true
			}
		}
	}
	return false
}

// AsEmailUnverified returns a copy of e reclassified as KindEmailUnverified
// for the given address. The readable parts are kept for Message.
func (e *AuthError) AsEmailUnverified(email string) *AuthError {
	cp := *e
	cp.Kind = KindEmailUnverified
	cp.Email = email
	return &cp
}

var (
	emailTokens  = []string{"email", "e-mail"}
	verifyTokens = []string{"verif", "confirm"}
)

func mentionsUnverified(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	return containsAny(lower, emailTokens) && containsAny(lower, verifyTokens)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

var fieldLabels = map[string]string{
	"email":         "Email",
	"password":      "Password",
	"password1":     "Password",
	"password2":     "Password Confirmation",
	"new_password1": "New Password",
	"new_password2": "New Password Confirmation",
}

// FieldLabel returns the display label for a backend form field.
// Unknown fields are title-cased with underscores turned into spaces.
func FieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	var b strings.Builder
	atWordStart := true
	for _, r := range strings.ReplaceAll(field, "_", " ") {
		if atWordStart && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
		}
		atWordStart = !(unicode.IsLetter(r) || unicode.IsDigit(r))
		b.WriteRune(r)
	}
	return b.String()
}

type member struct {
	key   string
	value json.RawMessage
}

// decodeObject reads a JSON object keeping member order, which the field
// rendering depends on.
func decodeObject(raw []byte) ([]member, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errNotObject
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	return members, nil
}

var errNotObject = errors.New("auth: payload is not a JSON object")

func fieldMessages(value json.RawMessage) []string {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return nil
	}
	switch value[0] {
	case '"':
		var s string
		if json.Unmarshal(value, &s) == nil && s != "" {
			return []string{s}
		}
		return nil
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(value, &items) != nil {
			return nil
		}
		var out []string
		for _, item := range items {
			var s string
			if json.Unmarshal(item, &s) == nil {
				if s != "" {
					out = append(out, s)
				}
				continue
			}
			out = append(out, compactText(item))
		}
		return out
	default:
		return []string{compactText(value)}
	}
}

func compactText(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil || !utf8.Valid(buf.Bytes()) {
		return string(raw)
	}
	return buf.String()
}
