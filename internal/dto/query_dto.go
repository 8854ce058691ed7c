package dto

type AskRequest struct {
	Question string `json:"question" validate:"required,min=2,max=512"`
}

type AskResponse struct {
	Matched  bool    `json:"matched"`
	Question string  `json:"question,omitempty"`
	Answer   string  `json:"answer,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Method   string  `json:"method,omitempty"`
	Message  string  `json:"message,omitempty"`
}
