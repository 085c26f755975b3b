package secret

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringYAML(t *testing.T) {
	s := NewString("my-token")
	assert.Equal(t, "my-token", s.Get())

	b, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "my-token\n", string(b))

	var s2 String
	require.NoError(t, yaml.Unmarshal([]byte("new-token"), &s2))
	assert.Equal(t, "new-token", s2.Get())
}

func TestStringIsZero(t *testing.T) {
	var s String
	require.True(t, s.IsZero())
	s.Set("x")
	require.False(t, s.IsZero())
}

func TestStringInStruct(t *testing.T) {
	type holder struct {
		Token String `yaml:"token,omitempty"`
		Name  string `yaml:"name"`
	}

	b, err := yaml.Marshal(holder{Name: "a"})
	require.NoError(t, err)
	require.NotContains(t, string(b), "token")

	var h holder
	require.NoError(t, yaml.Unmarshal([]byte("token: abc\nname: b\n"), &h))
	require.Equal(t, "abc", h.Token.Get())
	require.Equal(t, "b", h.Name)
}
