package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/stripe-payment-service/common/auth"
	"github.com/yashrajoria/stripe-payment-service/common/logger"
	"go.uber.org/zap"
)

const (
	SessionKey       = "sessionID"
	UserKey          = "userID"
	CustomerEmailKey = "customerEmail"

	SessionHeader = "X-Session-ID"
)

// CheckoutSession requires the storefront session id. A valid bearer token
// adds the customer identity; an invalid one is ignored so anonymous
// checkout keeps working.
func CheckoutSession(parser *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing " + SessionHeader + " header"})
			return
		}
		c.Set(SessionKey, sessionID)

		if token, ok := bearerToken(c.GetHeader("Authorization")); ok && parser != nil {
			customer, err := parser.ParseCustomer(token)
			if err != nil {
				logger.Warn(c, "Ignoring invalid access token", zap.Error(err))
			} else {
				c.Set(UserKey, customer.UserID)
				c.Set(CustomerEmailKey, customer.Email)
			}
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserKey)
}

func GetCustomerEmail(c *gin.Context) string {
	return c.GetString(CustomerEmailKey)
}
