package invest

// Project is a public listing of an investment project.
type Project struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	ShortDescription string  `json:"short_description"`
	Category         string  `json:"category"`
	Status           string  `json:"status"`
	TargetAmount     float64 `json:"target_amount"`
	RaisedAmount     float64 `json:"raised_amount"`
	MinInvestment    float64 `json:"min_investment"`
	MaxInvestment    float64 `json:"max_investment,omitempty"`
	ExpectedReturn   float64 `json:"expected_return,omitempty"`
	IsFeatured       bool    `json:"is_featured"`
}

// Investment is a user's stake in a project.
type Investment struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"project_id"`
	UserID    int64   `json:"user_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at,omitempty"`
}
