// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	gatewayHandler *handler.GatewayHandler,
	billingHandler *handler.BillingHandler,
	jobHandler *handler.JobHandler,
) {
	// 非计费补全
	v1.POST("/completions", gatewayHandler.Complete)

	// 计费技能
	v1.POST("/skills/:skill", gatewayHandler.RunSkill)

	// 异步任务
	jobs := v1.Group("/jobs")
	{
		jobs.POST("", jobHandler.Enqueue)
		jobs.GET("/:jid", jobHandler.GetJob)
		jobs.GET("/:jid/result", jobHandler.DownloadResult)
	}

	// 计费查询
	billing := v1.Group("/billing")
	{
		billing.GET("/balance", billingHandler.GetBalance)
		billing.GET("/usage", billingHandler.ListUsage)
	}
}

// RegisterInternalRoutes 注册内部路由，由工作令牌守卫
func RegisterInternalRoutes(
	internal *gin.RouterGroup,
	billingHandler *handler.BillingHandler,
	jobHandler *handler.JobHandler,
) {
	internal.POST("/jobs/process-one", jobHandler.ProcessOne)
	internal.POST("/billing/topup", billingHandler.TopUp)
}
