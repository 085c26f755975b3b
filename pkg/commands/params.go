package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params are the named string arguments of a command invocation.
type Params map[string]string

type ErrMissingParam struct {
	Name string
}

func (e ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter '%s'", e.Name)
}

type ErrInvalidParam struct {
	Name  string
	Value string
	Err   error
}

func (e ErrInvalidParam) Error() string {
	return fmt.Sprintf("invalid value '%s' of parameter '%s': %v", e.Value, e.Name, e.Err)
}

func (e ErrInvalidParam) Unwrap() error {
	return e.Err
}

// ParseKeyValues parses "key=value" arguments; a repeated key overrides
// the previous value.
func ParseKeyValues(args []string) (Params, error) {
	result := Params{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected 'key=value', got '%s'", arg)
		}
		result[k] = v
	}
	return result, nil
}

// Args are the Params of an invocation after the defaults were applied.
type Args struct {
	values Params
}

func (r Args) String(name string) string {
	return r.values[name]
}

func (r Args) Required(name string) (string, error) {
	v := r.values[name]
	if v == "" {
		return "", ErrMissingParam{Name: name}
	}
	return v, nil
}

func (r Args) Int(name string) (int, error) {
	s, err := r.Required(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidParam{Name: name, Value: s, Err: err}
	}
	return v, nil
}

// StringList accepts either a JSON array (`["Yes","No"]`) or a
// comma-separated list (`Yes,No`).
func (r Args) StringList(name string) ([]string, error) {
	s, err := r.Required(name)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		var result []string
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil, ErrInvalidParam{Name: name, Value: s, Err: err}
		}
		return result, nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}
