// Package environment models the deployment tiers the login flow knows about
// and the navigation route configured for each of them.
package environment

import (
	"sort"
	"strings"
)

// Identifiers recognised in the ENVIRONMENT setting. Matching is exact.
const (
	DevIdentifier  = "DEV"
	TestIdentifier = "TST"
)

// Environment is a closed set of deployment tiers.
type Environment int

const (
	// Unknown is any identifier that matches no recognised tier
	Unknown Environment = iota
	Development
	Test
)

// Known lists every recognised tier in declaration order.
var Known = []Environment{Development, Test}

// Parse maps an identifier to its tier using exact string equality.
// Anything else, including "", yields Unknown.
func Parse(identifier string) Environment {
	switch identifier {
	case DevIdentifier:
		return Development
	case TestIdentifier:
		return Test
	default:
		return Unknown
	}
}

// FromSlug maps a lower-case configuration key (dev, tst) back to its tier.
func FromSlug(slug string) Environment {
	for _, env := range Known {
		if env.Slug() == strings.ToLower(slug) {
			return env
		}
	}
	return Unknown
}

// Identifier returns the ENVIRONMENT value that selects this tier.
func (e Environment) Identifier() string {
	switch e {
	case Development:
		return DevIdentifier
	case Test:
		return TestIdentifier
	default:
		return ""
	}
}

// Slug is the lower-case key used in config tables and Vault paths.
func (e Environment) Slug() string {
	return strings.ToLower(e.Identifier())
}

// IsKnown reports whether e is a recognised tier.
func (e Environment) IsKnown() bool {
	return e == Development || e == Test
}

func (e Environment) String() string {
	switch e {
	case Development:
		return "development"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// Route is the pair of URLs the login sequence visits.
type Route struct {
	InitialURL string
	TargetURL  string
}

// Table maps tiers to routes.
type Table map[Environment]Route

// Lookup returns the route for env. Unknown never has a route.
func (t Table) Lookup(env Environment) (Route, bool) {
	if !env.IsKnown() {
		return Route{}, false
	}
	route, ok := t[env]
	return route, ok
}

// Merge returns a copy of t with every entry of other applied over it.
func (t Table) Merge(other Table) Table {
	merged := make(Table, len(t)+len(other))
	for env, route := range t {
		merged[env] = route
	}
	for env, route := range other {
		merged[env] = route
	}
	return merged
}

// Environments returns the tiers present in the table, sorted.
func (t Table) Environments() []Environment {
	envs := make([]Environment, 0, len(t))
	for env := range t {
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i] < envs[j] })
	return envs
}
