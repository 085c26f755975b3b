package secret

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/secret"
)

// Any keeps a value hidden from fmt/log output while still allowing
// it to be stored in the settings file.
type Any[T any] struct {
	secret.Any[T]
}

func New[T any](in T) Any[T] {
	return Any[T]{Any: secret.New(in)}
}

// IsZero makes `omitempty` work for unset secrets.
func (s Any[T]) IsZero() bool {
	var zeroValue T
	return any(s.Get()) == any(zeroValue)
}

func (s Any[T]) MarshalYAML() (_ret any, _err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	return s.Get(), nil
}

func (s *Any[T]) UnmarshalYAML(b []byte) (_err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("got a panic: %v", r)
		}
	}()

	var v T
	if err := yaml.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unable to yaml.Unmarshal: %w", err)
	}
	s.Set(v)
	return nil
}
