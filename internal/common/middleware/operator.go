package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"spectra-bot-backend/internal/common/errors"
)

// RequireOperator gates license administration behind the configured
// operator ids. The caller identifies itself with the X-Operator-ID header;
// the surrounding deployment is expected to terminate real authentication.
func RequireOperator(operatorIDs []int64) gin.HandlerFunc {
	allowed := make(map[int64]bool, len(operatorIDs))
	for _, id := range operatorIDs {
		allowed[id] = true
	}

	return func(c *gin.Context) {
		raw := c.GetHeader("X-Operator-ID")
		if raw == "" {
			SendError(c, errors.NewUnauthorizedError("operator id required"))
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || !allowed[id] {
			SendError(c, errors.NewUnauthorizedError("not an operator"))
			return
		}

		c.Next()
	}
}
