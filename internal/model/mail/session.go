package mail

// SessionState tracks the session guard's probe lifecycle. A fresh state is
// created on every compose-screen entry; results are never reused across
// entries.
type SessionState string

const (
	SessionUnknown         SessionState = "unknown"
	SessionAuthenticated   SessionState = "authenticated"
	SessionUnauthenticated SessionState = "unauthenticated"
)
