package util

import (
	"encoding/json"
	"net/url"
)

// Url is a parsed URL that can be read from YAML, mapstructure maps and
// environment variables. Listen addresses use it, e.g. udp://:8125.
type Url struct {
	Value *url.URL
}

func (u Url) String() string {
	if u.Value == nil {
		return ""
	}
	return u.Value.String()
}

func (u Url) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u Url) MarshalYAML() (interface{}, error) {
	return u.String(), nil
}

func (u *Url) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	err := unmarshal(&s)
	if err != nil {
		return err
	}
	return u.Decode(s)
}

func (u *Url) Decode(s string) error {
	var err error
	u.Value, err = url.Parse(s)
	return err
}
