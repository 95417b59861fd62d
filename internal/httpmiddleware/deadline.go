package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type serverWriterKey struct{}

// ExposeServerWriter keeps the server's own ResponseWriter on the request
// context. gin wraps the writer without Unwrap, so handlers that need an
// http.ResponseController reach it through here.
func ExposeServerWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), serverWriterKey{}, w)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClearWriteDeadline lifts the server's write timeout for the current
// request. It is a no-op when the router is not behind ExposeServerWriter.
func ClearWriteDeadline(c *gin.Context) error {
	w, ok := c.Request.Context().Value(serverWriterKey{}).(http.ResponseWriter)
	if !ok {
		return nil
	}
	return http.NewResponseController(w).SetWriteDeadline(time.Time{})
}
