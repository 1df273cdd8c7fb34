package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invigilo/proctor-backend/internal/response"
	"github.com/invigilo/proctor-backend/internal/service"
)

// HeaderDeviceFingerprint carries the caller's device fingerprint on every
// authenticated student request.
const HeaderDeviceFingerprint = "X-Device-Fingerprint"

// VerifyStudentDevice re-validates the device binding and the single active
// login on every call, not just at login. The presented fingerprint must
// equal the one embedded in the token, and the token's JTI must still be
// the student's active login in Redis. A fingerprint mismatch is queued for
// the security audit trail before the request is rejected.
func VerifyStudentDevice(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.TokenType != service.TokenTypeStudent {
			c.Next()
			return
		}

		presented := c.GetHeader(HeaderDeviceFingerprint)
		if presented == "" || presented != claims.DeviceFingerprint {
			authService.ReportDeviceMismatch(c.Request.Context(), claims, presented,
				"request fingerprint differs from token binding")
			response.AbortFail(c, http.StatusForbidden, response.ErrDeviceBinding)
			return
		}

		if err := authService.ValidateStudentLogin(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
