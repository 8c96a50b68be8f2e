// Package capabilities implements the capability-based security filter:
// per-family allow/deny target sets, with deny always taking precedence over
// allow. Families are functions, outbound network addresses, RPC methods,
// HTTP routes, and experimental features.
package capabilities

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/coredb/rpccore/internal/rpc"
)

// Matcher is implemented by the target kinds that have their own matching
// rule (ExperimentalTarget does not). Targets[T] is not constrained by it; it
// takes the matching rule as a function argument instead.
type Matcher[T any] interface {
	Matches(elem T) bool
}

// FuncTarget names a function or an entire function family
// ("http::get" or "http::*").
type FuncTarget struct {
	Family string
	Name   string // empty means the whole family (wildcard)
}

func (t FuncTarget) String() string {
	if t.Name == "" {
		return t.Family + "::*"
	}
	return t.Family + "::" + t.Name
}

// Matches reports whether t (as configured in a Targets set) matches elem
// (the thing being checked).
func (t FuncTarget) Matches(elem FuncTarget) bool {
	if t.Name == "" {
		return t.Family == elem.Family
	}
	return t.Family == elem.Family && t.Name == elem.Name
}

// ParseFuncTarget parses "family::name" or the wildcard "family::*".
func ParseFuncTarget(s string) (FuncTarget, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FuncTarget{}, fmt.Errorf("invalid function target name")
	}
	if family, ok := strings.CutSuffix(s, "::*"); ok {
		if strings.Contains(family, "::") || !isAlnum(family) {
			return FuncTarget{}, fmt.Errorf("invalid function target wildcard family %q", family)
		}
		return FuncTarget{Family: family}, nil
	}
	if family, name, ok := strings.Cut(s, "::"); ok {
		return FuncTarget{Family: family, Name: name}, nil
	}
	return FuncTarget{Family: s}, nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// ExperimentalTarget names a feature flag gated by capability.
type ExperimentalTarget string

const (
	ExperimentalRecordReferences ExperimentalTarget = "record_references"
	ExperimentalGraphQL          ExperimentalTarget = "graphql"
	// ExperimentalSurrealism gates the mod::/silo:: package-function
	// families reachable through run.
	ExperimentalSurrealism ExperimentalTarget = "surrealism"
)

func ParseExperimentalTarget(s string) (ExperimentalTarget, error) {
	switch strings.ToLower(s) {
	case string(ExperimentalRecordReferences):
		return ExperimentalRecordReferences, nil
	case string(ExperimentalGraphQL):
		return ExperimentalGraphQL, nil
	case string(ExperimentalSurrealism):
		return ExperimentalSurrealism, nil
	default:
		return "", fmt.Errorf("invalid experimental target %q", s)
	}
}

// NetTarget is either a host[:port] pair or a CIDR block, matched per the
// rules below: a host target matches only the same host (and port, if one
// was specified); a CIDR target matches any IP literal or CIDR it contains.
type NetTarget struct {
	Host string // empty when this is a CIDR target
	Port string // empty means "any port"; only meaningful with Host set
	Net  *net.IPNet
}

func (t NetTarget) String() string {
	if t.Net != nil {
		return t.Net.String()
	}
	if t.Port != "" {
		return t.Host + ":" + t.Port
	}
	return t.Host
}

// ParseNetTarget accepts a bare IP, a CIDR block, or a "host" / "host:port"
// string.
func ParseNetTarget(s string) (NetTarget, error) {
	s = strings.TrimSpace(s)
	if _, ipnet, err := net.ParseCIDR(s); err == nil {
		return NetTarget{Net: ipnet}, nil
	}
	if ip := net.ParseIP(s); ip != nil {
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		return NetTarget{Net: &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}}, nil
	}
	if host, port, err := net.SplitHostPort(s); err == nil {
		if _, perr := strconv.ParseUint(port, 10, 16); perr == nil {
			return NetTarget{Host: host, Port: port}, nil
		}
	}
	return NetTarget{Host: s}, nil
}

// Matches implements the asymmetric rule: a Host-with-port target matches
// only the same host and port; a Host-without-port target matches any port
// on that host; a CIDR target matches a contained CIDR or a bare IP literal
// elem.
func (t NetTarget) Matches(elem NetTarget) bool {
	switch {
	case t.Net != nil && elem.Net != nil:
		return t.Net.Contains(elem.Net.IP) && subnetWithin(elem.Net, t.Net)
	case t.Net != nil && elem.Host != "":
		ip := net.ParseIP(elem.Host)
		return ip != nil && t.Net.Contains(ip)
	case t.Host != "" && t.Port != "":
		return elem.Host == t.Host && elem.Port == t.Port
	case t.Host != "":
		return elem.Host == t.Host
	default:
		return false
	}
}

func subnetWithin(inner, outer *net.IPNet) bool {
	ones, _ := inner.Mask.Size()
	outerOnes, _ := outer.Mask.Size()
	return ones >= outerOnes
}

// MethodTarget names a single RPC method.
type MethodTarget struct{ Method rpc.Method }

func (t MethodTarget) String() string { return t.Method.String() }
func (t MethodTarget) Matches(elem MethodTarget) bool { return t.Method == elem.Method }

func ParseMethodTarget(s string) (MethodTarget, error) {
	m := rpc.ParseMethod(s)
	if m == rpc.MethodUnknown {
		return MethodTarget{}, fmt.Errorf("invalid method target %q", s)
	}
	return MethodTarget{Method: m}, nil
}

// RouteTarget names an HTTP route family served alongside the RPC endpoint.
type RouteTarget string

const (
	RouteHealth  RouteTarget = "health"
	RouteExport  RouteTarget = "export"
	RouteImport  RouteTarget = "import"
	RouteRPC     RouteTarget = "rpc"
	RouteVersion RouteTarget = "version"
	RouteSignin  RouteTarget = "signin"
	RouteSignup  RouteTarget = "signup"
	RouteGraphQL RouteTarget = "graphql"
)

func ParseRouteTarget(s string) (RouteTarget, error) {
	switch RouteTarget(s) {
	case RouteHealth, RouteExport, RouteImport, RouteRPC, RouteVersion, RouteSignin, RouteSignup, RouteGraphQL:
		return RouteTarget(s), nil
	default:
		return "", fmt.Errorf("invalid route target %q", s)
	}
}

func (t RouteTarget) Matches(elem RouteTarget) bool { return t == elem }
