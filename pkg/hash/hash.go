package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// IdentityLen is the number of hex characters kept from the identity digest
// (128 bits). Shorter tokens raise the odds of two real clients sharing a quota.
const IdentityLen = 32

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// Prefix returns the first n characters of SHA256(input).
func Prefix(input string, n int) string {
	full := SHA256Hex(input)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}

// ClientIP picks the address a request is attributed to. The first entry of a
// forwarded-for header wins when present (an upstream proxy is trusted);
// otherwise the connection address is used with any port stripped.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}

// ClientIdentity derives the anonymous quota identity from connection metadata.
// It is deterministic and one-way but not keyed.
func ClientIdentity(forwardedFor, remoteAddr, userAgent string) string {
	return Prefix(ClientIP(forwardedFor, remoteAddr)+":"+userAgent, IdentityLen)
}
