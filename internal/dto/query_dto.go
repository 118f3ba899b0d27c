package dto

type QueryRequest struct {
	Query           string `json:"query" query:"query" validate:"required,min=1,max=2000"`
	QueryTypes      string `json:"query_types" query:"query_types" validate:"omitempty,oneof=text image table all"`
	Year            string `json:"year" query:"year" validate:"omitempty,oneof=SARJANA MAGISTER DOKTOR GENERAL"`
	TopK            int    `json:"top_k" query:"top_k" validate:"omitempty,min=1,max=50"`
	ExpansionWindow int    `json:"context_expansion_window" query:"context_expansion_window" validate:"omitempty,min=1,max=21"`
}

type ResetConversationResponse struct {
	SessionId string `json:"session_id"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}
