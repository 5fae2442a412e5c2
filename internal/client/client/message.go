package client

import (
	"strings"

	"github.com/tidwall/gjson"
)

// messageKeys are tried in order before falling back to field errors.
var messageKeys = []string{"error", "message", "detail"}

// ExtractMessage pulls the most specific message out of an error body:
// "error", then "message", then "detail", then the first field-keyed
// validation message ("field: text"). It returns "" when nothing usable is
// found. Non-JSON bodies yield "".
func ExtractMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)

	if root.Type == gjson.String || root.IsArray() {
		return textOf(root)
	}
	if !root.IsObject() {
		return ""
	}

	for _, k := range messageKeys {
		if s := textOf(root.Get(k)); s != "" {
			return s
		}
	}

	var out string
	root.ForEach(func(key, value gjson.Result) bool {
		s := textOf(value)
		if s == "" {
			return true
		}
		if k := key.String(); k != "non_field_errors" {
			s = k + ": " + s
		}
		out = s
		return false
	})
	return out
}

func textOf(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.Type == gjson.String:
		return strings.TrimSpace(v.String())
	case v.IsArray():
		for _, item := range v.Array() {
			if s := textOf(item); s != "" {
				return s
			}
		}
	case v.IsObject():
		for _, k := range messageKeys {
			if s := textOf(v.Get(k)); s != "" {
				return s
			}
		}
	}
	return ""
}

// FieldError is one field-keyed validation message. Field is "" for
// non_field_errors.
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors returns the field-keyed messages of a validation body in
// document order. A body carrying a general "error", "message" or "detail"
// has none: that message takes precedence.
func FieldErrors(body []byte) []FieldError {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil
	}
	for _, k := range messageKeys {
		if textOf(root.Get(k)) != "" {
			return nil
		}
	}

	var out []FieldError
	root.ForEach(func(key, value gjson.Result) bool {
		msgs := allTextOf(value)
		if len(msgs) == 0 {
			return true
		}
		field := key.String()
		if field == "non_field_errors" {
			field = ""
		}
		out = append(out, FieldError{Field: field, Message: strings.Join(msgs, ", ")})
		return true
	})
	return out
}

func allTextOf(v gjson.Result) []string {
	if !v.IsArray() {
		if s := textOf(v); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if s := textOf(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
