package request

type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=basic growth premium"`
}

type ChangePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=basic growth premium"`
}
