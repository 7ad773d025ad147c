package sse

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/empathlabs/aingest/internal/core/domain"
)

// Classify maps a transport failure onto the category whose message a
// user can act on. Status codes win over error inspection; the string checks
// at the end catch transport errors the net package wraps opaquely.
func Classify(statusCode int, err error) *domain.StreamError {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewStreamError(domain.TransportAuth, statusCode, err)
	case http.StatusTooManyRequests:
		return domain.NewStreamError(domain.TransportRateLimited, statusCode, err)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return domain.NewStreamError(domain.TransportUpstreamUnavailable, statusCode, err)
	case http.StatusGatewayTimeout:
		return domain.NewStreamError(domain.TransportUpstreamTimeout, statusCode, err)
	}

	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return domain.NewStreamError(domain.TransportConnectivity, statusCode, err)
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NewStreamError(domain.TransportTimeout, statusCode, err)
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return domain.NewStreamError(domain.TransportTimeout, statusCode, err)
		}

		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return domain.NewStreamError(domain.TransportConnectivity, statusCode, err)
		}

		if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
			return domain.NewStreamError(domain.TransportConnectivity, statusCode, err)
		}

		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "connection refused"),
			strings.Contains(errStr, "no such host"),
			strings.Contains(errStr, "connection reset"):
			return domain.NewStreamError(domain.TransportConnectivity, statusCode, err)
		case strings.Contains(errStr, "timeout"):
			return domain.NewStreamError(domain.TransportTimeout, statusCode, err)
		}
	}

	return domain.NewStreamError(domain.TransportGeneric, statusCode, err)
}
