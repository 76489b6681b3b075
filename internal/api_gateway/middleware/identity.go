package middleware

import "github.com/gin-gonic/gin"

// DashboardUserHeader carries the dashboard user identity. Authenticating
// that identity belongs to the excluded auth layer; this API trusts the
// header as-is.
const DashboardUserHeader = "X-User-ID"

// GetDashboardUserID returns the dashboard user id from the request, or
// empty when the header is absent
func GetDashboardUserID(c *gin.Context) string {
	return c.GetHeader(DashboardUserHeader)
}
