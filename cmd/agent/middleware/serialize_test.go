package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSerialize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Serialize())

	var inFlight, maxInFlight atomic.Int32
	router.GET("/slow", func(c *gin.Context) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/slow", nil)
			router.ServeHTTP(w, req)
		}()
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Errorf("Expected one request at a time, saw %d", maxInFlight.Load())
	}
}

func TestObserveKeepsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Observe())
	router.GET("/fail", func(c *gin.Context) {
		c.String(http.StatusServiceUnavailable, "nope")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/fail", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "nope" {
		t.Errorf("unexpected response %d %q", w.Code, w.Body.String())
	}
}
