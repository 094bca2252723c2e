// Package dto 提供 HTTP 层数据传输对象
package dto

// BalanceResponse 余额响应
type BalanceResponse struct {
	Balance    string `json:"balance"`
	LowBalance bool   `json:"low_balance"`
}

// UsageEventResponse 用量记录响应
type UsageEventResponse struct {
	ID        string `json:"id"`
	Route     string `json:"route"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Cost      string `json:"cost"`
	RequestID string `json:"request_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TopUpRequest 充值请求，内部端点使用
type TopUpRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Amount    string `json:"amount" binding:"required"`
	RequestID string `json:"request_id,omitempty"`
}

// TopUpResponse 充值响应
type TopUpResponse struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}
