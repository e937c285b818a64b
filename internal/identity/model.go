package identity

// User represents a platform account as returned by the identity API.
type User struct {
	ID                int64   `json:"id"`
	Phone             string  `json:"phone"`
	FullName          string  `json:"full_name"`
	Email             string  `json:"email"`
	NationalCode      string  `json:"national_code"`
	Address           string  `json:"address,omitempty"`
	ProfileImage      string  `json:"profile_image,omitempty"`
	WalletBalance     float64 `json:"wallet_balance"`
	IsVerified        bool    `json:"is_verified"`
	IsActive          bool    `json:"is_active"`
	CreditScore       int     `json:"credit_score,omitempty"`
	RiskLevel         string  `json:"risk_level,omitempty"`
	InvestmentPattern string  `json:"investment_pattern,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
	UpdatedAt         string  `json:"updated_at,omitempty"`
	LastLogin         string  `json:"last_login,omitempty"`
}

// Empty reports whether the record carries no account at all.
func (u User) Empty() bool {
	return u.ID == 0 && u.Phone == ""
}

// ProfilePatch is a sparse profile update; zero-valued fields are omitted
// from the request body so the backend only touches what was provided.
type ProfilePatch struct {
	FullName     string `json:"full_name,omitempty"`
	Email        string `json:"email,omitempty"`
	NationalCode string `json:"national_code,omitempty"`
	Address      string `json:"address,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p ProfilePatch) Empty() bool {
	return p == ProfilePatch{}
}

// Merge overlays the patch onto a user record, returning the merged copy.
func (p ProfilePatch) Merge(u User) User {
	if p.FullName != "" {
		u.FullName = p.FullName
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.NationalCode != "" {
		u.NationalCode = p.NationalCode
	}
	if p.Address != "" {
		u.Address = p.Address
	}
	if p.ProfileImage != "" {
		u.ProfileImage = p.ProfileImage
	}
	return u
}

// Ack is the response to an OTP send request.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Grant is the response to a successful OTP verification.
type Grant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}
