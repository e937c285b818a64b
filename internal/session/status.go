package session

// Status is the session lifecycle phase. Startup is modeled as an explicit
// two-phase flow: a session restored from the credential store begins in
// StatusHydrating and settles into StatusAuthenticated or StatusAnonymous
// once revalidation against the identity API completes.
type Status int

const (
	StatusAnonymous Status = iota
	StatusHydrating
	StatusOTPPending
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusHydrating:
		return "hydrating"
	case StatusOTPPending:
		return "otp_pending"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
