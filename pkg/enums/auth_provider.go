package enums

// AuthProvider records how an identity proves who it is.
type AuthProvider string

const (
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderPassword AuthProvider = "password"
)

func (p AuthProvider) IsValid() bool {
	return p == AuthProviderGoogle || p == AuthProviderPassword
}
