package routes

import (
	"net/http"
	"time"

	"cabinetkey/app"
	"cabinetkey/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the HTTP API and returns the controller hub.
func RegisterRoutes(r *gin.Engine, a *app.App) *controllers.Srv {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	kc := controllers.NewKeyController(s)
	lc := controllers.NewLoanController(s)
	uc := controllers.NewUserController(s)
	fc := controllers.NewFavoriteController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.Accounts, s.AppSess, a.Config.JWTSecret)
	adminMW := app.AdminOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, a.Log, 5*time.Minute)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", authMW, seenMW)
	{
		api.GET("/me", uc.Me)
		api.POST("/session", uc.CreateSession)
		api.POST("/logout", uc.Logout)

		// ------------------------------
		// 钥匙：浏览/借/还/记录
		// ------------------------------
		api.GET("/keys", kc.ListKeys)
		api.GET("/keys/:id", kc.GetKey)
		api.GET("/keys/:id/loans", kc.KeyLoans)
		api.POST("/keys/:id/borrow", kc.Borrow)
		api.POST("/keys/:id/return", kc.Return)

		api.GET("/loans/active", lc.OpenLoans)
		api.GET("/loans/overdue", lc.OverdueLoans)

		api.GET("/favorites", fc.List)
		api.PUT("/favorites/:keyId", fc.Add)
		api.DELETE("/favorites/:keyId", fc.Remove)

		// 本人或管理员
		api.GET("/users/:id", uc.GetUser)
		api.PATCH("/users/:id", uc.UpdateUser)
		api.GET("/users/:id/loans", lc.UserLoans)
	}

	// ------------------------------
	// 管理（仅管理员）
	// ------------------------------
	admin := api.Group("", adminMW)
	{
		admin.POST("/keys", kc.CreateKey)
		admin.PATCH("/keys/:id", kc.UpdateKey)
		admin.DELETE("/keys/:id", kc.DeleteKey)
		admin.POST("/keys/:id/force-return", kc.ForceReturn)

		admin.GET("/users", uc.ListUsers)
		admin.POST("/users", uc.CreateUser)
	}
	return s
}
