// Package ipchecker resolves the client address of a request and guards the
// internal endpoints with a trusted subnet.
package ipchecker

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
)

// IPChecker lets through only the clients inside the trusted subnet. Without
// a subnet every client is rejected.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New parses trustedSubnet in CIDR notation (e.g. "192.168.1.0/24"). An
// empty string yields a checker that trusts nobody.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}

	return &IPChecker{trustedSubnet: allowedNet}, nil
}

func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

func (checker *IPChecker) IsTrustedSubnetEmpty() bool {
	return checker.trustedSubnet == nil
}

// ClientIP extracts the client address checking, in order, the X-Real-IP
// header, the first X-Forwarded-For entry and RemoteAddr.
func ClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP"))); ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/ClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/ClientIP(): unparsable remote address %q", request.RemoteAddr)
	}

	return ip, nil
}

// TrustedOnly answers 403 to every client outside the trusted subnet.
func (checker *IPChecker) TrustedOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		clientIP, err := ClientIP(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `ClientIP()`: ", zap.Error(err))
		}
		if err != nil || !checker.Check(clientIP) {
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(response).Encode(models.MessageResponse{Message: "Unauthorized access"})
			return
		}

		h.ServeHTTP(response, request)
	})
}
