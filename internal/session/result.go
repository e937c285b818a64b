package session

import "github.com/exonvc/invest/internal/identity"

// Failure messages surfaced when the backend gives nothing more specific.
// Kept verbatim from the platform's stock localized strings.
const (
	msgOTPSent        = "کد تایید ارسال شد"
	msgLoginFailed    = "خطا در ورود"
	msgRegisterFailed = "خطا در ثبت‌نام"
	msgUpdateFailed   = "خطا در بروزرسانی پروفایل"
	msgNoToken        = "no auth token"
)

// Result is the discriminated outcome of a session operation. Operations
// never panic and never return a Go error to callers: every failure mode,
// transport or logical, lands in Err as a human-readable message.
type Result struct {
	OK      bool
	Message string // informational message on success, e.g. the OTP send ack
	Err     string // non-empty exactly when !OK
}

func success(message string) Result {
	return Result{OK: true, Message: message}
}

func failure(err string) Result {
	return Result{Err: err}
}

// LoginResult carries the authenticated user on success.
type LoginResult struct {
	Result
	User identity.User
}

// Snapshot is a synchronous read of the current session state.
type Snapshot struct {
	Status Status
	Token  string
	User   identity.User
}

// Registration is the input to Register; the phone/OTP pair must already
// have been requested via RequestOTP.
type Registration struct {
	Phone      string
	OTP        string
	FirstName  string
	LastName   string
	Email      string
	NationalID string
}
