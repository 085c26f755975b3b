package config

import (
	"bytes"
	"fmt"
	"io"

	goyaml "github.com/go-yaml/yaml"
	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/datacounter"
)

var _ io.WriterTo = (*Config)(nil)
var _ yaml.BytesMarshaler = (*Config)(nil)

func (cfg Config) WriteTo(
	w io.Writer,
) (int64, error) {
	b, err := cfg.MarshalYAML()
	if err != nil {
		return 0, err
	}

	counter := datacounter.NewWriterCounter(w)
	_, err = io.Copy(counter, bytes.NewReader(b))
	return int64(counter.Count()), err
}

func (cfg Config) MarshalYAML() ([]byte, error) {
	b, err := yaml.Marshal((config)(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to serialize the config: %w", err)
	}

	// goccy's encoder maps the structures (and the secrets) correctly,
	// go-yaml gives a stable indentation; so passing through both.
	m := yaml.MapSlice{}
	err = yaml.Unmarshal(b, &m)
	if err != nil {
		return nil, fmt.Errorf("unable to unserialize the config: %w", err)
	}

	ordered := goyaml.MapSlice{}
	for _, item := range m {
		ordered = append(ordered, goyaml.MapItem{Key: item.Key, Value: item.Value})
	}

	b, err = goyaml.Marshal(ordered)
	if err != nil {
		return nil, fmt.Errorf("unable to re-serialize the config: %w", err)
	}

	return b, nil
}
