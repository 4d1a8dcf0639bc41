package api

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
)

// rateLimit returns middleware that counts each request against scope for
// the client's IP and rejects it with 429 once the budget is spent.
func (a *API) rateLimit(scope RateScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.rateLimiter == nil {
			c.Next()
			return
		}
		ok, retry := a.rateLimiter.Allow(scope, c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			common.WriteError(c, errors.ErrRateLimited.WithDetail("scope", string(scope)))
			return
		}
		c.Next()
	}
}
