package httpclient

import (
	"fmt"
	"net"
	"strings"
)

func splitHostPort(addr string) (string, string, error) {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://")
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid address %s: %w", addr, err)
	}
	return host, port, nil
}
