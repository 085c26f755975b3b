// Package observability contains the logging hooks of the application.
package observability

import (
	"fmt"
	"strings"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
	loggertypes "github.com/facebookincubator/go-belt/tool/logger/types"
)

const hiddenValue = "<HIDDEN>"

type SecretsProvider interface {
	SecretWords() []string
}

// SecretValuesFilter replaces the known secret values (tokens, the client
// secret) in the log arguments with "<HIDDEN>".
//
// Only strings, byte slices, errors and fmt.Stringer-s are inspected,
// other values are passed as is.
type SecretValuesFilter struct {
	SecretsProvider SecretsProvider
}

func NewSecretValuesFilter(sp SecretsProvider) *SecretValuesFilter {
	return &SecretValuesFilter{
		SecretsProvider: sp,
	}
}

var _ logger.PreHook = (*SecretValuesFilter)(nil)

func (sf *SecretValuesFilter) ProcessInput(
	_ belt.TraceIDs,
	_ logger.Level,
	args ...any,
) loggertypes.PreHookResult {
	sf.filterArgs(args)
	return loggertypes.PreHookResult{}
}

func (sf *SecretValuesFilter) ProcessInputf(
	_ belt.TraceIDs,
	_ logger.Level,
	format string,
	args ...any,
) loggertypes.PreHookResult {
	sf.filterArgs(args)
	return loggertypes.PreHookResult{}
}

func (sf *SecretValuesFilter) ProcessInputFields(
	_ belt.TraceIDs,
	_ logger.Level,
	message string,
	fields field.AbstractFields,
) loggertypes.PreHookResult {
	words := sf.secretWords()
	if len(words) == 0 {
		return loggertypes.PreHookResult{}
	}
	fields.ForEachField(func(f *field.Field) bool {
		f.Value = filterValue(words, f.Value)
		return true
	})
	return loggertypes.PreHookResult{}
}

func (sf *SecretValuesFilter) secretWords() []string {
	if sf.SecretsProvider == nil {
		return nil
	}
	return sf.SecretsProvider.SecretWords()
}

func (sf *SecretValuesFilter) filterArgs(args []any) {
	words := sf.secretWords()
	if len(words) == 0 {
		return
	}
	for idx, arg := range args {
		args[idx] = filterValue(words, arg)
	}
}

func filterValue(words []string, v any) any {
	switch v := v.(type) {
	case string:
		return filterString(words, v)
	case []byte:
		censored := filterString(words, string(v))
		if censored == string(v) {
			return v
		}
		return []byte(censored)
	case error:
		msg := v.Error()
		if censored := filterString(words, msg); censored != msg {
			return censoredError(censored)
		}
		return v
	case fmt.Stringer:
		s := v.String()
		if censored := filterString(words, s); censored != s {
			return censored
		}
		return v
	default:
		return v
	}
}

func filterString(words []string, s string) string {
	for _, word := range words {
		if word == "" {
			continue
		}
		s = strings.ReplaceAll(s, word, hiddenValue)
	}
	return s
}

type censoredError string

func (e censoredError) Error() string {
	return string(e)
}
