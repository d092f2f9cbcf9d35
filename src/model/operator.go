package model

// Operator is the back-office user behind an admin request.
type Operator struct {
	Name string `json:"name"`
}
