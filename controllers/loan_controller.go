package controllers

import (
	"net/http"

	"cabinetkey/app"
	"cabinetkey/models"

	"github.com/gin-gonic/gin"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

func (lc *LoanController) writeLoans(c *gin.Context, loans []models.Loan, err error) {
	if err != nil {
		lc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}

// GET /api/loans/active：当前未归还（含逾期）
func (lc *LoanController) OpenLoans(c *gin.Context) {
	loans, err := lc.History.Open(c.Request.Context())
	lc.writeLoans(c, loans, err)
}

func (lc *LoanController) OverdueLoans(c *gin.Context) {
	loans, err := lc.History.Overdue(c.Request.Context())
	lc.writeLoans(c, loans, err)
}

// GET /api/users/:id/loans?since=today|week|month
func (lc *LoanController) UserLoans(c *gin.Context) {
	id, ok := lc.idParam(c, "id")
	if !ok {
		return
	}
	loans, err := lc.History.ByUser(c.Request.Context(), identity(c), id, c.Query("since"))
	lc.writeLoans(c, loans, err)
}
