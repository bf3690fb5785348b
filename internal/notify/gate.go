package notify

import (
	"net"
	"os"
	"strings"
	"sync"

	logx "notebell/pkg/logx"
)

// Identity is the local process's network identity: hostname plus every
// non-loopback IPv4 address.
type Identity struct {
	Hostname string
	IPv4s    []string
}

// LocalIdentity resolves the running host's identity.
func LocalIdentity() (Identity, error) {
	host, err := os.Hostname()
	if err != nil {
		return Identity{}, err
	}

	id := Identity{Hostname: host}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return id, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			id.IPv4s = append(id.IPv4s, v4.String())
		}
	}
	return id, nil
}

// GateRules is the configured allow-list. Empty rules on both sides
// grant authorization unconditionally: by default every instance sends.
type GateRules struct {
	Hostnames []string
	// Addresses entries are exact IPv4s, CIDRs ("10.0.0.0/24"), or
	// literal dotted prefixes ("10.0.").
	Addresses []string
}

func (r GateRules) empty() bool {
	return len(r.Hostnames) == 0 && len(r.Addresses) == 0
}

// Matches reports whether the identity satisfies the rules: hostname
// exact match (case-insensitive) OR any local address matching any
// address rule.
func (r GateRules) Matches(id Identity) bool {
	if r.empty() {
		return true
	}

	for _, h := range r.Hostnames {
		if strings.EqualFold(strings.TrimSpace(h), id.Hostname) {
			return true
		}
	}

	for _, rule := range r.Addresses {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		for _, addr := range id.IPv4s {
			if addressMatches(rule, addr) {
				return true
			}
		}
	}
	return false
}

func addressMatches(rule, addr string) bool {
	if strings.Contains(rule, "/") {
		_, ipnet, err := net.ParseCIDR(rule)
		if err != nil {
			return false
		}
		ip := net.ParseIP(addr)
		return ip != nil && ipnet.Contains(ip)
	}
	if ip := net.ParseIP(rule); ip != nil {
		return rule == addr
	}
	// Literal dotted-prefix match, e.g. "10.0." against "10.0.3.7".
	return strings.HasPrefix(addr, rule)
}

// Gate holds the process-wide "may I send?" decision. It is computed
// once at startup and recomputed on settings change; flips are reported
// through the onChange callback so the controller can cancel or rebuild
// timers.
type Gate struct {
	log      logx.Logger
	identity func() (Identity, error)

	mu         sync.Mutex
	authorized bool
	onChange   func(authorized bool)
}

func NewGate(rules GateRules, log logx.Logger) *Gate {
	return newGate(rules, LocalIdentity, log)
}

func newGate(rules GateRules, identity func() (Identity, error), log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	g := &Gate{log: log, identity: identity}
	g.authorized = g.compute(rules)
	return g
}

// OnChange installs the flip callback. It is invoked from Recompute's
// caller goroutine, only on actual transitions.
func (g *Gate) OnChange(fn func(authorized bool)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

func (g *Gate) Authorized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authorized
}

// Recompute re-evaluates the rules against the current local identity.
func (g *Gate) Recompute(rules GateRules) {
	next := g.compute(rules)

	g.mu.Lock()
	changed := next != g.authorized
	g.authorized = next
	fn := g.onChange
	g.mu.Unlock()

	if changed {
		g.log.Info("sender authorization changed", logx.Bool("authorized", next))
		if fn != nil {
			fn(next)
		}
	}
}

func (g *Gate) compute(rules GateRules) bool {
	if rules.empty() {
		return true
	}
	id, err := g.identity()
	if err != nil {
		// Unknown identity with restrictive rules: stay silent rather
		// than risk duplicate sends from several instances.
		g.log.Warn("local identity lookup failed, not authorized to send", logx.Err(err))
		return false
	}
	return rules.Matches(id)
}
