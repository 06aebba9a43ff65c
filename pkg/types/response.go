package types

// SuccessEnvelope is the body of every successful API response except gateway
// callbacks, which answer in the gateway's own shape.
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Page *PageMeta `json:"page,omitempty"`
}

// PageMeta echoes the window a listing was read with.
type PageMeta struct {
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
	Count  int  `json:"count"`
	More   bool `json:"has_more"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
