package dto

type CreditRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

type ListEntriesRequest struct {
	Kind  string `form:"kind"`
	Limit int    `form:"limit"`
}

type EntryDTO struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Reference   string `json:"reference,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type ListEntriesResponse struct {
	Entries []EntryDTO `json:"entries"`
}
