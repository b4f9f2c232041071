package llm

// RoleUser / RoleModel 은 대화 턴의 역할 태그다.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn: 대화 히스토리 항목입니다.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage: 토큰 사용량 정보를 담습니다.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// IsZero: 사용량 메타데이터가 비어 있는지 반환합니다.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// ChatResult: LLM 응답과 사용량을 담습니다.
type ChatResult struct {
	Text     string
	Usage    Usage
	HasUsage bool
}
