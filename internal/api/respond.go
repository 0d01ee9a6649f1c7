package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/errs"
)

// fail writes the taxonomy error envelope spec.md §7 describes, status
// derived from the error's own code via errs.StatusOf.
func fail(c *gin.Context, err error) {
	code := "INTERNAL_ERROR"
	if e, ok := err.(*errs.Error); ok {
		code = string(e.Code)
	}
	c.JSON(errs.StatusOf(err), gin.H{
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}

func badRequest(c *gin.Context, message string) {
	fail(c, errs.InvalidInput(message))
}
