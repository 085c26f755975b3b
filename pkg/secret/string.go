package secret

// String is a credential (client secret, access or refresh token)
// that must never end up in logs.
type String = Any[string]

func NewString(s string) String {
	return New(s)
}
