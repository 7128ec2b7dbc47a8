package dto

// PaginationResponse represents common pagination metadata
type PaginationResponse struct {
	Count     int    `json:"count"`
	NextToken string `json:"next_token,omitempty"`
}

// EmptyRequest is the body type of endpoints that only read path or query params.
type EmptyRequest struct{}
