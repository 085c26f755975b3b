package observability

// SecretsProviderFunc adapts a function to SecretsProvider.
type SecretsProviderFunc func() []string

var _ SecretsProvider = (SecretsProviderFunc)(nil)

func (fn SecretsProviderFunc) SecretWords() []string {
	return fn()
}
