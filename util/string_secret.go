package util

import "flag"

var PrintSecrets = flag.Bool(
	"print-secrets", false, "Disables redacting config secrets")

const Redacted = "REDACTED"

// StringSecret holds a configuration value that is redacted whenever it is
// printed or serialized, unless -print-secrets is set.
type StringSecret struct {
	Value string
}

func (s StringSecret) String() string {
	if *PrintSecrets {
		return s.Value
	}
	if s.Value == "" {
		return ""
	}
	return Redacted
}

func (s StringSecret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s StringSecret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

func (s *StringSecret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	return unmarshal(&s.Value)
}

func (s *StringSecret) Decode(value string) error {
	s.Value = value
	return nil
}
