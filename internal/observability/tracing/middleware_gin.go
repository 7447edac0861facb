package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/egsbridge/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrUnit        = attribute.Key("egs.unit")
	AttrRequestID   = attribute.Key("egs.request_id")
	AttrEnvironment = attribute.Key("deployment.environment")
)

// MiddlewareConfig controls which requests get a server span.
type MiddlewareConfig struct {
	Environment string
	// SkipRoutes are matched against the gin route template.
	SkipRoutes []string
}

// DefaultSkipRoutes are health and scrape endpoints.
var DefaultSkipRoutes = []string{"/health", "/metrics"}

// GinMiddleware opens one server span per API request. The span is tagged
// with the EGS unit the handler bound to the request context.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := otel.Tracer("egsbridge/http")
	skip := make(map[string]struct{}, len(cfg.SkipRoutes))
	for _, route := range cfg.SkipRoutes {
		skip[strings.TrimSpace(route)] = struct{}{}
	}
	environment := strings.TrimSpace(cfg.Environment)

	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}

		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		reqCtx := c.Request.Context()

		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			AttrEnvironment.String(environment),
			AttrRequestID.String(obscontext.RequestIDFromContext(reqCtx)),
			AttrUnit.String(obscontext.UnitFromContext(reqCtx)),
		)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		span.End()
	}
}
