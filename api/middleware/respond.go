// Package middleware holds the gin middleware guarding the extract route.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/specgrab/models"
)

// IdentityKey is the gin context key holding the caller identity used for
// rate limiting: "key:<fingerprint>" for authenticated callers.
const IdentityKey = "specgrab.identity"

// abort ends the request with the same body shape the extract handler
// uses for failures, so clients parse one response type.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ExtractResponse{
		ExtractionResult: &models.ExtractionResult{
			Success:        false,
			Specifications: models.SpecificationMap{},
			Error:          &models.ErrorDetail{Code: code, Message: msg},
		},
	})
}
