// Package config loads templated YAML configuration files and serves the
// loaded configuration over HTTP.
package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"text/template"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ReadConfig reads the file at path, expands it as a text/template with
// templateData, strictly decodes the result as YAML and then applies any
// environment variables prefixed with envBase.
func ReadConfig[Config interface{}](
	path string, templateData interface{}, envBase string,
) (*Config, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return ParseConfig[Config](fileData, templateData, envBase)
}

// ParseConfig is ReadConfig for configuration that is already in memory.
func ParseConfig[Config interface{}](
	data []byte, templateData interface{}, envBase string,
) (*Config, error) {
	configTemplate, err := template.New("config").Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config template")
	}

	var expanded bytes.Buffer
	err = configTemplate.Execute(&expanded, templateData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand config template")
	}

	config := new(Config)
	if expanded.Len() > 0 {
		decoder := yaml.NewDecoder(&expanded)
		decoder.SetStrict(true)
		err = decoder.Decode(config)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal config file")
		}
	}

	err = envconfig.Process(envBase, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to process environment variables")
	}

	return config, nil
}

func HandleConfigJson(config interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		encodedConfig, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		w.Header().Add("Content-Type", "application/json")
		w.Write(encodedConfig)
	}
}

func HandleConfigYaml(config interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		encodedConfig, err := yaml.Marshal(config)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		w.Header().Add("Content-Type", "application/x-yaml")
		w.Write(encodedConfig)
	}
}
