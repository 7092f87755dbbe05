package controllers

import (
	"net/http"
	"strconv"
	"time"

	"cabinetkey/app"
	"cabinetkey/lending"
	"cabinetkey/models"

	"github.com/gin-gonic/gin"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// GET /api/me
func (uc *UserController) Me(c *gin.Context) {
	u, err := uc.Accounts.Get(c.Request.Context(), identity(c), identity(c).UserID)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := uc.Accounts.List(c.Request.Context(), identity(c), c.Query("q"), page, size)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := uc.idParam(c, "id")
	if !ok {
		return
	}
	u, err := uc.Accounts.Get(c.Request.Context(), identity(c), id)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

func (uc *UserController) CreateUser(c *gin.Context) {
	var in struct {
		Email       string      `json:"email" binding:"required"`
		DisplayName string      `json:"displayName" binding:"required"`
		Role        models.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		uc.badRequest(c, err.Error())
		return
	}
	u, err := uc.Accounts.Create(c.Request.Context(), identity(c), in.Email, in.DisplayName, in.Role)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

// PATCH /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	id, ok := uc.idParam(c, "id")
	if !ok {
		return
	}
	var p lending.UserPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		uc.badRequest(c, err.Error())
		return
	}
	u, err := uc.Accounts.Update(c.Request.Context(), identity(c), id, p)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// POST /api/session：用 Bearer token 换取会话 Cookie
func (uc *UserController) CreateSession(c *gin.Context) {
	if err := uc.issueSession(c.Request.Context(), c.Writer, identity(c).UserID); err != nil {
		uc.fail(c, models.NewFault("create session", err))
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// 登出：删 Redis，会话 Cookie 置空
func (uc *UserController) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = uc.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	uc.setAppCookie(c.Writer, "", -time.Second)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
