// Package header provides header filtering for the unistream relay.
//
// The relay sits between a client and an upstream provider like so:
//
//	Client <--> Relay <--> Upstream Provider
//
// and headers are handled accordingly as each leg negotiates compression,
// hops, encoding, etc. independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// DialectHeader is the optional header used to override the configured
// stream dialect for a single request.
const DialectHeader = "X-Unistream-Dialect"

// skipRequest is the set of request headers (client --> relay --> upstream)
// that are not forwarded to the upstream provider.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is rewritten by Go's http.Transport to match the
	// upstream URL. Forwarding the client's Host would confuse virtual-hosted
	// upstreams.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the upstream
	// response.
	"Accept-Encoding": {},

	// Internal dialect override header.
	DialectHeader: {},
}

// skipResponse is the set of upstream response headers (client <-- relay <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The relay always reads a decompressed body (Go's http.Transport strips
	// Content-Encoding after auto-decompression), and the normalized SSE it
	// emits is not the upstream payload anyway. Forwarding a stale
	// Content-Encoding would claim an encoding the body no longer has.
	"Content-Encoding": {},

	// The upstream Content-Length reflects the upstream body, not the
	// normalized stream the relay writes. The relay streams with chunked
	// transfer encoding and never knows the final length up front.
	"Content-Length": {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the relay should not
// forward to the upstream API.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies response headers from the upstream API
// http.Response to the Fiber context, filtering headers that the relay should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}
