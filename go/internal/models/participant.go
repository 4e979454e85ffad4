package models

import (
	"net/netip"
	"sort"
	"time"
)

// Endpoint is the transport address ("ip:port") a participant sends from.
// It is the only key participants are joined on.
type Endpoint string

// EndpointFromAddrPort builds an Endpoint, unmapping IPv4-in-IPv6 addresses so
// one host always has one spelling.
func EndpointFromAddrPort(ap netip.AddrPort) Endpoint {
	return Endpoint(netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()).String())
}

// AddrPort parses the endpoint back into a socket address
func (e Endpoint) AddrPort() (netip.AddrPort, error) {
	return netip.ParseAddrPort(string(e))
}

func (e Endpoint) String() string {
	return string(e)
}

// Participant is a registered client as seen by the coordinator
type Participant struct {
	Endpoint     Endpoint  `json:"endpoint"`
	Name         string    `json:"name"`
	Hardware     string    `json:"hardware"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
	Active       bool      `json:"active"`
}

// SortEndpoints sorts in place and returns the slice for chaining.
func SortEndpoints(eps []Endpoint) []Endpoint {
	sort.Slice(eps, func(i, j int) bool { return eps[i] < eps[j] })
	return eps
}

// EndpointSet is a membership set of endpoints
type EndpointSet map[Endpoint]struct{}

// NewEndpointSet builds a set from the given endpoints
func NewEndpointSet(eps ...Endpoint) EndpointSet {
	set := make(EndpointSet, len(eps))
	for _, ep := range eps {
		set[ep] = struct{}{}
	}
	return set
}

// Has reports membership
func (s EndpointSet) Has(ep Endpoint) bool {
	_, ok := s[ep]
	return ok
}

// Sorted returns the members in a stable order
func (s EndpointSet) Sorted() []Endpoint {
	out := make([]Endpoint, 0, len(s))
	for ep := range s {
		out = append(out, ep)
	}
	return SortEndpoints(out)
}
