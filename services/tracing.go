package services

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// capture records fn as an X-Ray subsegment when ctx carries a segment
func capture(ctx context.Context, name string, fn func(ctx context.Context) error, metadata map[string]interface{}) error {
	if xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	return xray.Capture(ctx, name, func(ctx1 context.Context) error {
		err := fn(ctx1)
		if seg := xray.GetSegment(ctx1); seg != nil {
			for k, v := range metadata {
				seg.AddMetadata(k, v)
			}
		}
		return err
	})
}
