package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint is a network location of one supervised HTTP server.
type Endpoint struct {
	Host  string
	Port  int
	Route string // default route used by URL when none is given
}

// ParsePort coerces a port value to an integer in the valid TCP range.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidPort, port)
	}
	return port, nil
}

// NewEndpoint builds an endpoint from a textual port, which is how ports
// arrive from flags and environment.
func NewEndpoint(host, port, route string) (Endpoint, error) {
	p, err := ParsePort(port)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Host: host, Port: p, Route: route}, nil
}

func (e Endpoint) Validate() error {
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("%w: %d out of range", ErrInvalidPort, e.Port)
	}
	return nil
}

// Address returns host:port suitable for net.Dial
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL formats http://host:port/route, the default route is used for an empty one.
func (e Endpoint) URL(route string) string {
	if route == "" {
		route = e.Route
	}
	return fmt.Sprintf("http://%s:%d/%s", e.Host, e.Port, route)
}
