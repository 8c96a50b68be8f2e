package capabilities

// setKind discriminates the three states a Targets set can be in.
type setKind uint8

const (
	setNone setKind = iota
	setSome
	setAll
)

// Targets is a set of targets of one family: none of them, all of them, or
// an explicit comparable list. T is only constrained to comparable; the
// target's own matching rule (wildcard family, CIDR containment, exact
// method, ...) is supplied to Matches as a function argument.
type Targets[T comparable] struct {
	kind  setKind
	items map[T]struct{}
}

func NoTargets[T comparable]() Targets[T] { return Targets[T]{kind: setNone} }
func AllTargets[T comparable]() Targets[T] { return Targets[T]{kind: setAll} }

func SomeTargets[T comparable](items ...T) Targets[T] {
	m := make(map[T]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return Targets[T]{kind: setSome, items: m}
}

// Matches reports whether any target in the set matches elem, via the
// target's own Matches(elem) rule. matchFn is passed explicitly because Go
// generics can't express "T implements Matcher[T]" as a method-set
// constraint while also keeping T comparable for map storage; callers pass
// the method value (e.g. FuncTarget.Matches) bound per item below.
func (t Targets[T]) Matches(elem T, matchFn func(target, elem T) bool) bool {
	switch t.kind {
	case setAll:
		return true
	case setSome:
		for target := range t.items {
			if matchFn(target, elem) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Capabilities bundles the allow/deny Targets sets for every resource
// family, plus the three standalone feature flags (scripting, guest
// access, live query notifications).
type Capabilities struct {
	Scripting              bool
	GuestAccess            bool
	LiveQueryNotifications bool

	AllowFuncs Targets[FuncTarget]
	DenyFuncs  Targets[FuncTarget]

	AllowNet Targets[NetTarget]
	DenyNet  Targets[NetTarget]

	AllowRPC Targets[MethodTarget]
	DenyRPC  Targets[MethodTarget]

	AllowRoutes Targets[RouteTarget]
	DenyRoutes  Targets[RouteTarget]

	AllowExperimental Targets[ExperimentalTarget]
	DenyExperimental  Targets[ExperimentalTarget]
}

// Default returns a conservative Capabilities: scripting, guest access, and
// networking closed; routing, RPC methods, and live query notifications
// open (matching a locally-embedded server's default posture).
func Default() Capabilities {
	return Capabilities{
		Scripting:              false,
		GuestAccess:            false,
		LiveQueryNotifications: true,
		AllowFuncs:             AllTargets[FuncTarget](),
		DenyFuncs:              NoTargets[FuncTarget](),
		AllowNet:               NoTargets[NetTarget](),
		DenyNet:                NoTargets[NetTarget](),
		AllowRPC:               AllTargets[MethodTarget](),
		DenyRPC:                NoTargets[MethodTarget](),
		AllowRoutes:            AllTargets[RouteTarget](),
		DenyRoutes:             NoTargets[RouteTarget](),
		AllowExperimental:      NoTargets[ExperimentalTarget](),
		DenyExperimental:       NoTargets[ExperimentalTarget](),
	}
}

// AllowsFunc implements allows_X = allow.matches(target) && !deny.matches(target).
func (c Capabilities) AllowsFunc(t FuncTarget) bool {
	return c.AllowFuncs.Matches(t, FuncTarget.Matches) && !c.DenyFuncs.Matches(t, FuncTarget.Matches)
}

func (c Capabilities) AllowsNet(t NetTarget) bool {
	return c.AllowNet.Matches(t, NetTarget.Matches) && !c.DenyNet.Matches(t, NetTarget.Matches)
}

func (c Capabilities) AllowsMethod(t MethodTarget) bool {
	return c.AllowRPC.Matches(t, MethodTarget.Matches) && !c.DenyRPC.Matches(t, MethodTarget.Matches)
}

func (c Capabilities) AllowsRoute(t RouteTarget) bool {
	return c.AllowRoutes.Matches(t, RouteTarget.Matches) && !c.DenyRoutes.Matches(t, RouteTarget.Matches)
}

func (c Capabilities) AllowsExperimental(t ExperimentalTarget) bool {
	matchFn := func(target, elem ExperimentalTarget) bool { return target == elem }
	return c.AllowExperimental.Matches(t, matchFn) && !c.DenyExperimental.Matches(t, matchFn)
}
