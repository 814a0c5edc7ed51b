package models

// Requests for the pairs HTTP endpoints. Defined in domain for consistency and reuse.

type PairRequest struct {
	Pair string `param:"pair" validate:"required,max=64"`
}

type SignalsRequest struct {
	Pair   string `param:"pair" validate:"required,max=64"`
	From   string `query:"from"`
	To     string `query:"to"`
	Signal string `query:"signal" validate:"omitempty,oneof=enter_long enter_short exit"`
	Limit  int    `query:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type TickRequest struct {
	Pair string   `param:"pair" json:"-" validate:"required,max=64"`
	T    string   `json:"t"`
	A    *float64 `json:"a" validate:"omitempty,gt=0"`
	B    *float64 `json:"b" validate:"omitempty,gt=0"`
}
