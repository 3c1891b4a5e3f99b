package middleware

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const xrayCtxKey = "xray-ctx"

// XRayMiddleware wraps Fiber requests with an AWS X-Ray segment named after the service
func XRayMiddleware(serviceName string, logger logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip tracing for health checks to reduce noise
		if c.Path() == "/health" {
			return c.Next()
		}

		ctx, seg := xray.BeginSegment(c.UserContext(), serviceName)
		defer seg.Close(nil)

		if seg.GetHTTP() != nil {
			seg.GetHTTP().GetRequest().Method = c.Method()
			seg.GetHTTP().GetRequest().URL = c.OriginalURL()
			seg.GetHTTP().GetRequest().ClientIP = c.IP()
			seg.GetHTTP().GetRequest().UserAgent = c.Get(fiber.HeaderUserAgent)
		}
		seg.AddAnnotation("route", c.Route().Path)
		seg.AddAnnotation("method", c.Method())

		c.Locals(xrayCtxKey, ctx)

		err := c.Next()

		if seg.GetHTTP() != nil {
			seg.GetHTTP().GetResponse().Status = c.Response().StatusCode()
		}
		if err != nil {
			logger.WithError(err).WithField("path", c.Path()).Warn("request error")
			seg.AddError(err)
			if seg.GetHTTP() != nil {
				seg.GetHTTP().GetResponse().Status = fiber.StatusInternalServerError
			}
		}
		return err
	}
}

// RequestContext returns the traced request context when the X-Ray middleware ran,
// the request's user context otherwise
func RequestContext(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(xrayCtxKey).(context.Context); ok {
		return ctx
	}
	return c.UserContext()
}
