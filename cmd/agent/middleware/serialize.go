package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// Serialize runs one request at a time, each to completion, in arrival
// order of lock acquisition.
func Serialize() gin.HandlerFunc {
	var mu sync.Mutex
	return func(c *gin.Context) {
		mu.Lock()
		defer mu.Unlock()
		c.Next()
	}
}
