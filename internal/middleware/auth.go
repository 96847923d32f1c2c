// Package middleware provides HTTP middleware for the server.
//
// Go Pattern: Middleware in Go is a function that wraps an HTTP handler.
// In Gin, middleware is a gin.HandlerFunc that calls c.Next() to continue
// the chain, or c.Abort() to stop processing. This is similar to Express.js
// middleware, but with explicit control flow.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// AdminKeyHeader is the header alternative to the admin_key body field.
const AdminKeyHeader = "X-Admin-Key"

// adminKeyBody picks only the key out of an admin request body.
type adminKeyBody struct {
	AdminKey string `json:"admin_key"`
}

// AdminAuth returns middleware that checks the admin key.
//
// How it works:
// 1. Read the X-Admin-Key header, or else the admin_key JSON field
// 2. Hash both the given and the configured key
// 3. Compare the hashes in constant time
// 4. If they differ, return 403 Forbidden
//
// An empty configured key disables the admin routes entirely.
func AdminAuth(adminKey string) gin.HandlerFunc {
	want := HashAdminKey(adminKey)
	return func(c *gin.Context) {
		if adminKey == "" {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "admin_disabled",
				Message: "Admin access is not configured",
				Code:    http.StatusForbidden,
			})
			c.Abort()
			return
		}

		given := c.GetHeader(AdminKeyHeader)
		if given == "" && c.Request.Method == http.MethodPost {
			// ShouldBindBodyWith caches the body so the handler can bind it again.
			var body adminKeyBody
			if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil {
				given = body.AdminKey
			}
		}

		if given == "" || !AdminKeyMatches(HashAdminKey(given), want) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "forbidden",
				Message: "Invalid admin key",
				Code:    http.StatusForbidden,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// HashAdminKey creates a SHA-256 hash of a key. Comparing fixed-length
// hashes keeps the comparison time independent of the key length.
func HashAdminKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}

// AdminKeyMatches compares two hashes in constant time.
func AdminKeyMatches(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
