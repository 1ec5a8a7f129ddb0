package util

import (
	"fmt"
	"unicode/utf8"
)

// Rune is a single character read from configuration, such as a field
// delimiter.
type Rune rune

func (r *Rune) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var runeString string
	err := unmarshal(&runeString)
	if err != nil {
		return err
	}
	return r.Decode(runeString)
}

func (r *Rune) Decode(value string) error {
	nativeRune, size := utf8.DecodeRuneInString(value)
	if nativeRune == utf8.RuneError || size != len(value) {
		return fmt.Errorf("expected a single character, got %q", value)
	}
	*r = Rune(nativeRune)
	return nil
}

func (r Rune) MarshalText() ([]byte, error) {
	return []byte(string(rune(r))), nil
}
