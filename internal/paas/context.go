package paas

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const clientCtxKey ctxKey = 1

func WithClient(ctx context.Context, c *Client) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clientCtxKey, c)
}

func ClientFromContext(ctx context.Context) *Client {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(clientCtxKey).(*Client)
	return c
}

// InjectClientMiddleware makes p available to handlers through the request
// context.
func InjectClientMiddleware(p *Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil && c.Request != nil {
			c.Request = c.Request.WithContext(WithClient(c.Request.Context(), p))
		}
		c.Next()
	}
}

// LogBestEffort writes a gateway log entry if ctx carries a client. Errors
// are dropped.
func LogBestEffort(ctx context.Context, action, level string, details map[string]any) {
	p := ClientFromContext(ctx)
	if p == nil {
		return
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = p.CreateLog(lctx, CreateLogRequest{
		Action:  action,
		Level:   level,
		Details: details,
	})
}
