package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsOrigins splits WEB_ORIGIN, which may list several origins separated by commas.
func corsOrigins(webOrigin string) []string {
	var out []string
	for _, o := range strings.Split(webOrigin, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// 前端带 app_session cookie 跨域访问，需要 AllowCredentials
func useCORS(r *gin.Engine, webOrigin string) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(webOrigin),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
