package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cabinetkey/app"
	"cabinetkey/db"
	"cabinetkey/models"

	"github.com/gin-gonic/gin"
)

type KeyController struct{ *Srv }

func NewKeyController(s *Srv) *KeyController { return &KeyController{Srv: s} }

// GET /api/keys?filter=all|available|borrowed|overdue|favorites&q=&page=&size=
func (kc *KeyController) ListKeys(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := kc.Inventory.List(c.Request.Context(), identity(c), db.KeysQuery{
		Q:      c.Query("q"),
		Filter: db.KeyFilter(c.Query("filter")),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (kc *KeyController) GetKey(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	row, err := kc.Inventory.Get(c.Request.Context(), identity(c), id)
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// 管理员登记钥匙
func (kc *KeyController) CreateKey(c *gin.Context) {
	var in struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		kc.badRequest(c, err.Error())
		return
	}
	k, err := kc.Inventory.Create(c.Request.Context(), identity(c), in.Name, in.Description)
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, k)
}

func (kc *KeyController) UpdateKey(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		kc.badRequest(c, err.Error())
		return
	}
	k, err := kc.Inventory.Update(c.Request.Context(), identity(c), id, in.Name, in.Description)
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

// DELETE /api/keys/:id?cascade=true
func (kc *KeyController) DeleteKey(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	cascade, _ := strconv.ParseBool(c.DefaultQuery("cascade", "false"))
	if err := kc.Inventory.Delete(c.Request.Context(), identity(c), id, cascade); err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// 借出；hours 为空时按默认时长
func (kc *KeyController) Borrow(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		Hours int `json:"hours"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			kc.badRequest(c, err.Error())
			return
		}
	}
	if in.Hours < 0 {
		kc.badRequest(c, "hours must be positive")
		return
	}
	// 先比较小时数，避免乘法溢出
	if maxHours := int64(kc.Cfg.LoanLimits.Max / time.Hour); int64(in.Hours) > maxHours {
		kc.badRequest(c, "hours must be at most "+strconv.FormatInt(maxHours, 10))
		return
	}

	loan, err := kc.Coord.Borrow(c.Request.Context(), identity(c), id, time.Duration(in.Hours)*time.Hour)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			c.JSON(http.StatusConflict, app.H{"error": "this key was just taken", "code": "conflict"})
			return
		}
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func (kc *KeyController) Return(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	loan, err := kc.Coord.Return(c.Request.Context(), identity(c), id)
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// 管理员强制归还（遗失、纠错）
func (kc *KeyController) ForceReturn(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			kc.badRequest(c, err.Error())
			return
		}
	}
	loan, err := kc.Coord.ForceReturn(c.Request.Context(), identity(c), id, in.Reason)
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (kc *KeyController) KeyLoans(c *gin.Context) {
	id, ok := kc.idParam(c, "id")
	if !ok {
		return
	}
	loans, err := kc.History.ByKey(c.Request.Context(), id)
	if err != nil {
		kc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}
