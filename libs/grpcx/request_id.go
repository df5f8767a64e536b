package grpcx

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"google.golang.org/grpc/metadata"
)

// RequestIDMetadataKey carries the request id in gRPC metadata. It is the
// lowercase form of httpx.RequestIDHeader.
const RequestIDMetadataKey = "x-request-id"

// incomingRequestID returns the caller's id from metadata, or a fresh one.
func incomingRequestID(ctx context.Context) string {
	var raw string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
			raw = vals[0]
		}
	}
	return httpx.NormalizeRequestID(raw)
}
