package dto

// ErrorResponseDTO 는 공통 에러 응답 형식이다.
type ErrorResponseDTO struct {
	Error string `json:"error" example:"chat_not_found"`
}

type HealthResponseDTO struct {
	Status  string `json:"status" example:"ok"`
	Storage string `json:"storage" example:"sqlite"`
	Error   string `json:"error,omitempty"`
}
