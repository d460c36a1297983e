package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// Proxy is a parsed ip:port[:user:pass] proxy specification.
type Proxy struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Address returns host:port.
func (p Proxy) Address() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// URL returns the proxy as an http URL suitable for a browser --proxy-server flag.
// Credentials are not included; browsers take them through an auth challenge.
func (p Proxy) URL() string {
	return "http://" + p.Address()
}

// ValidateProxy parses raw as ip:port or ip:port:user:pass. An empty string is
// valid and yields a nil Proxy because a proxy is optional.
func ValidateProxy(raw string) (*Proxy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return nil, &Error{Input: raw, Reason: InvalidProxy, Detail: "expected ip:port or ip:port:user:pass"}
	}

	if err := checkIPv4(parts[0]); err != nil {
		return nil, &Error{Input: raw, Reason: InvalidProxy, Detail: err.Error()}
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return nil, &Error{Input: raw, Reason: InvalidProxy, Detail: "port must be 1-65535"}
	}

	p := &Proxy{Host: parts[0], Port: port}
	if len(parts) == 4 {
		if parts[2] == "" || parts[3] == "" {
			return nil, &Error{Input: raw, Reason: InvalidProxy, Detail: "empty credentials"}
		}
		p.Username = parts[2]
		p.Password = parts[3]
	}
	return p, nil
}

func checkIPv4(host string) error {
	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return fmt.Errorf("ip address must have 4 octets")
	}
	for _, o := range octets {
		if o == "" || len(o) > 3 {
			return fmt.Errorf("malformed ip address")
		}
		n, err := strconv.Atoi(o)
		if err != nil {
			return fmt.Errorf("malformed ip address")
		}
		if n < 0 || n > 255 {
			return fmt.Errorf("ip address out of range")
		}
	}
	return nil
}
