package integration_tests

// Mirrors of the API request and response bodies. The suites decode into
// these instead of the controller types so response shape regressions
// fail loudly.

type ExpectedCreateUserRequestBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ExpectedCreateUserResponseBody struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ExpectedAuthRequestBody struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

type ExpectedAuthResponseBody struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

type ExpectedCreateInvestmentRequestBody struct {
	ProjectID int64  `json:"project_id"`
	Amount    int64  `json:"amount"`
	Provider  string `json:"provider"`
}

type ExpectedInvestment struct {
	ID               int64  `json:"id"`
	ProjectID        int64  `json:"project_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	FlaggedForReview bool   `json:"flagged_for_review"`
}

type ExpectedCreateInvestmentResponseBody struct {
	Investment ExpectedInvestment `json:"investment"`
	PaymentID  int64              `json:"payment_id"`
	Provider   string             `json:"provider"`
	SessionID  string             `json:"session_id"`
}

type ExpectedReceivedResponse struct {
	Received bool `json:"received"`
}

type ExpectedFundingProgressResponse struct {
	ProjectID      int64  `json:"project_id"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	TargetFunding  int64  `json:"target_funding"`
	CurrentFunding int64  `json:"current_funding"`
	PercentFunded  int64  `json:"percent_funded"`
	Investors      int    `json:"investors"`
	EscrowBalance  int64  `json:"escrow_balance"`
}

type ExpectedRefundResponseBody struct {
	RefundID         int64  `json:"refund_id"`
	PaymentID        int64  `json:"payment_id"`
	InvestmentID     int64  `json:"investment_id"`
	Amount           int64  `json:"amount"`
	Reason           string `json:"reason"`
	Status           string `json:"status"`
	ProviderRefundID string `json:"provider_refund_id"`
}

type ExpectedRefundOutcome struct {
	InvestmentID int64  `json:"investment_id"`
	PaymentID    int64  `json:"payment_id"`
	Amount       int64  `json:"amount"`
	Success      bool   `json:"success"`
	Error        string `json:"error"`
}

type ExpectedBulkRefundResult struct {
	ProjectID int64                   `json:"project_id"`
	Requested int                     `json:"requested"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Outcomes  []ExpectedRefundOutcome `json:"outcomes"`
}

type ExpectedMockWebhookPayload struct {
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type ExpectedOpenPayTransaction struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ExpectedOpenPayWebhookPayload struct {
	Type        string                     `json:"type"`
	Transaction ExpectedOpenPayTransaction `json:"transaction"`
}
