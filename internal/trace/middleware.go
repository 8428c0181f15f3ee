package trace

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Carrier header names, duplicated from the propagation package to keep the
// import direction propagation -> trace.
const (
	traceparentHeader = "traceparent"
	baggageHeader     = "baggage"
)

// HeaderExtractor parses inbound wire headers into a span context. The
// propagation package provides the W3C implementation; the indirection keeps
// this package free of a dependency cycle.
type HeaderExtractor func(h http.Header) (SpanContext, bool)

// HeaderInjector writes a span context into outbound wire headers.
type HeaderInjector func(sc SpanContext, h http.Header)

// BaggageCodec decodes and encodes the baggage header.
type BaggageCodec interface {
	Decode(value string) Baggage
	Encode(b Baggage) string
}

// Middleware returns Gin middleware that continues or starts a trace for
// every request.
//
// A valid inbound traceparent makes the server span a child of the caller's
// span, inheriting trace ID and sampled flag. A missing or malformed header
// makes this hop a trace root. The trace ID is echoed on the response so
// browser clients can correlate.
func Middleware(tracer *Tracer, extract HeaderExtractor, baggage BaggageCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var opts []StartOption
		if remote, ok := extract(c.Request.Header); ok {
			opts = append(opts, WithRemoteParent(remote))
		}
		opts = append(opts, WithKind(KindServer))

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, name, opts...)
		span.SetAttributes(
			String("http.method", c.Request.Method),
			String("http.target", c.Request.URL.Path),
			String("http.host", c.Request.Host),
		)

		if baggage != nil {
			if b := baggage.Decode(c.Request.Header.Get(baggageHeader)); b != nil {
				ctx = ContextWithBaggage(ctx, b)
			}
		}

		c.Request = c.Request.WithContext(ctx)

		// Echo identifiers so fetch-based clients can correlate.
		sc := span.Context()
		c.Header("X-Trace-ID", sc.TraceID.String())
		c.Header("X-Span-ID", sc.SpanID.String())

		// Sealing runs in a defer so a panicking handler cannot unwind past
		// the span: recovery middleware registered outside this one turns
		// the panic into a 500, and the span must still be exported.
		defer func() {
			if r := recover(); r != nil {
				span.AddEvent("panic", String("panic.value", panicMessage(r)))
				span.SetStatus(StatusError, panicMessage(r))
				span.End()
				panic(r)
			}
			status := c.Writer.Status()
			span.SetAttributes(Int("http.status_code", status))
			if len(c.Errors) > 0 {
				span.RecordError(c.Errors.Last())
			} else if status >= http.StatusInternalServerError {
				span.SetStatus(StatusError, strconv.Itoa(status))
			} else {
				span.SetStatus(StatusOK, "")
			}
			span.End()
		}()

		c.Next()
	}
}

// metadataHeader adapts gRPC metadata to the http.Header shape the
// extractor and injector expect.
func metadataHeader(md metadata.MD) http.Header {
	h := make(http.Header, len(md))
	for k, vals := range md {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	return h
}

// UnaryServerInterceptor continues or starts a trace from incoming gRPC
// metadata, mirroring the HTTP middleware.
func UnaryServerInterceptor(tracer *Tracer, extract HeaderExtractor) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		var opts []StartOption
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if remote, found := extract(metadataHeader(md)); found {
				opts = append(opts, WithRemoteParent(remote))
			}
		}
		opts = append(opts, WithKind(KindServer))

		ctx, span := tracer.Start(ctx, info.FullMethod, opts...)
		span.SetAttributes(
			String("rpc.system", "grpc"),
			String("rpc.method", info.FullMethod),
		)
		defer func() {
			if r := recover(); r != nil {
				span.AddEvent("panic", String("panic.value", panicMessage(r)))
				span.SetStatus(StatusError, panicMessage(r))
				span.End()
				panic(r)
			}
		}()

		resp, err := handler(ctx, req)

		if err != nil {
			span.RecordError(err)
		} else {
			span.SetStatus(StatusOK, "")
		}
		span.End()

		return resp, err
	}
}

// UnaryClientInterceptor injects the current trace context into outgoing
// gRPC metadata and records a client span around the call.
func UnaryClientInterceptor(tracer *Tracer, inject HeaderInjector) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, span := tracer.Start(ctx, method, WithKind(KindClient))
		span.SetAttributes(
			String("rpc.system", "grpc"),
			String("rpc.method", method),
		)
		defer func() {
			if r := recover(); r != nil {
				span.AddEvent("panic", String("panic.value", panicMessage(r)))
				span.SetStatus(StatusError, panicMessage(r))
				span.End()
				panic(r)
			}
		}()

		h := make(http.Header)
		inject(span.Context(), h)
		pairs := make([]string, 0, 2)
		if v := h.Get(traceparentHeader); v != "" {
			pairs = append(pairs, traceparentHeader, v)
		}
		if len(pairs) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		}

		err := invoker(ctx, method, req, reply, cc, opts...)

		if err != nil {
			span.RecordError(err)
		} else {
			span.SetStatus(StatusOK, "")
		}
		span.End()

		return err
	}
}
