// Package dto 提供 HTTP 层数据传输对象
package dto

// CompletionRequest 文本补全请求
type CompletionRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	System   string `json:"system,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// CompletionResponse 文本补全响应
type CompletionResponse struct {
	Text      string `json:"text"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// SkillRequest 计费技能请求
type SkillRequest struct {
	Input    string `json:"input" binding:"required"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// SkillResponse 计费技能响应
type SkillResponse struct {
	Text       string `json:"text"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	Cost       string `json:"cost"`
	NewBalance string `json:"new_balance"`
	Degraded   bool   `json:"degraded,omitempty"`
}
