package controllers

import (
	"net/http"

	"cabinetkey/app"

	"github.com/gin-gonic/gin"
)

type FavoriteController struct{ *Srv }

func NewFavoriteController(s *Srv) *FavoriteController { return &FavoriteController{Srv: s} }

func (fc *FavoriteController) List(c *gin.Context) {
	keys, err := fc.Favorites.List(c.Request.Context(), identity(c))
	if err != nil {
		fc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"keys": keys})
}

func (fc *FavoriteController) Add(c *gin.Context) {
	keyID, ok := fc.idParam(c, "keyId")
	if !ok {
		return
	}
	if err := fc.Favorites.Add(c.Request.Context(), identity(c), keyID); err != nil {
		fc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func (fc *FavoriteController) Remove(c *gin.Context) {
	keyID, ok := fc.idParam(c, "keyId")
	if !ok {
		return
	}
	if err := fc.Favorites.Remove(c.Request.Context(), identity(c), keyID); err != nil {
		fc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
