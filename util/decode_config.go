package util

import (
	"fmt"
	"reflect"

	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/mapstructure"
)

type stringUnmarshaler interface {
	Decode(value string) error
}

var stringUnmarshalerType = reflect.TypeOf((*stringUnmarshaler)(nil)).Elem()

// DecodeConfig wraps the mapstructure decoder to unpack a map into a struct
// and the envconfig decoder to read environment variables prefixed with
// name.
//
// Fields whose type implements Decode(string) error, such as Url,
// StringSecret and Rune, are decoded from their string form. Sinks use this
// to unpack their own section of the configuration file.
func DecodeConfig(name string, input interface{}, output interface{}) error {
	configDecoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringUnmarshalerDecode,
		),
		ErrorUnused: true,
		Result:      output,
		TagName:     "yaml",
	})
	if err != nil {
		return err
	}
	err = configDecoder.Decode(input)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	return envconfig.Process(name, output)
}

func stringUnmarshalerDecode(
	inputType reflect.Type, outputType reflect.Type, data interface{},
) (interface{}, error) {
	if !reflect.PtrTo(outputType).Implements(stringUnmarshalerType) {
		return data, nil
	}
	value, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("invalid type %v for %v", inputType, outputType)
	}
	parsedValue := reflect.New(outputType)
	err := parsedValue.Interface().(stringUnmarshaler).Decode(value)
	if err != nil {
		return nil, err
	}
	return parsedValue.Elem().Interface(), nil
}
