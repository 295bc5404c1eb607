package dto

import (
	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/usecase"
)

// AccountResponse represents an account in API responses. Amounts are
// rendered with four fractional digits.
type AccountResponse struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a domain.Account) AccountResponse {
	return AccountResponse{
		Client:    uint16(a.Client),
		Available: a.Available.StringFixed(domain.AmountScale),
		Held:      a.Held.StringFixed(domain.AmountScale),
		Total:     a.Total.StringFixed(domain.AmountScale),
		Locked:    a.Locked,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []domain.Account) []AccountResponse {
	result := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// IngestErrorResponse reports an ingest that stopped early. Stats counts
// the records handled before it stopped; those were applied.
type IngestErrorResponse struct {
	ErrorResponse
	Stats usecase.RunStats `json:"stats"`
}
