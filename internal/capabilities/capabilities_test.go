package capabilities

import (
	"testing"

	"github.com/coredb/rpccore/internal/rpc"
)

func TestFuncTargetWildcard(t *testing.T) {
	wildcard, err := ParseFuncTarget("http::*")
	if err != nil {
		t.Fatalf("ParseFuncTarget: %v", err)
	}
	if !wildcard.Matches(FuncTarget{Family: "http", Name: "get"}) {
		t.Error("wildcard should match any name in the family")
	}
	if wildcard.Matches(FuncTarget{Family: "crypto", Name: "md5"}) {
		t.Error("wildcard should not match a different family")
	}
}

func TestFuncTargetExact(t *testing.T) {
	exact, err := ParseFuncTarget("http::get")
	if err != nil {
		t.Fatalf("ParseFuncTarget: %v", err)
	}
	if !exact.Matches(FuncTarget{Family: "http", Name: "get"}) {
		t.Error("exact target should match the same name")
	}
	if exact.Matches(FuncTarget{Family: "http", Name: "post"}) {
		t.Error("exact target should not match a different name")
	}
}

func TestParseFuncTargetInvalidWildcardFamily(t *testing.T) {
	if _, err := ParseFuncTarget("http::get::*"); err == nil {
		t.Fatal("expected an error for a nested wildcard family")
	}
}

func TestDenyOverridesAllow(t *testing.T) {
	caps := Default()
	caps.AllowFuncs = AllTargets[FuncTarget]()
	deny, _ := ParseFuncTarget("http::*")
	caps.DenyFuncs = SomeTargets(deny)

	if caps.AllowsFunc(FuncTarget{Family: "http", Name: "get"}) {
		t.Error("deny should override a blanket allow")
	}
	if !caps.AllowsFunc(FuncTarget{Family: "crypto", Name: "md5"}) {
		t.Error("a function outside the deny family should still be allowed")
	}
}

func TestNetTargetCIDRContainment(t *testing.T) {
	block, err := ParseNetTarget("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParseNetTarget: %v", err)
	}
	elem, err := ParseNetTarget("10.1.2.3")
	if err != nil {
		t.Fatalf("ParseNetTarget: %v", err)
	}
	if !block.Matches(elem) {
		t.Error("CIDR block should contain an address within it")
	}
	outside, _ := ParseNetTarget("192.168.1.1")
	if block.Matches(outside) {
		t.Error("CIDR block should not contain an address outside it")
	}
}

func TestNetTargetHostPort(t *testing.T) {
	withPort, err := ParseNetTarget("example.com:443")
	if err != nil {
		t.Fatalf("ParseNetTarget: %v", err)
	}
	same, _ := ParseNetTarget("example.com:443")
	if !withPort.Matches(same) {
		t.Error("host:port target should match the identical host:port")
	}
	diffPort, _ := ParseNetTarget("example.com:80")
	if withPort.Matches(diffPort) {
		t.Error("host:port target should not match a different port")
	}
}

func TestMethodTarget(t *testing.T) {
	selectTarget, err := ParseMethodTarget("select")
	if err != nil {
		t.Fatalf("ParseMethodTarget: %v", err)
	}
	if !selectTarget.Matches(MethodTarget{Method: rpc.MethodSelect}) {
		t.Error("method target should match the same method")
	}
	if selectTarget.Matches(MethodTarget{Method: rpc.MethodDelete}) {
		t.Error("method target should not match a different method")
	}
}

func TestAllowsNetDefaultClosed(t *testing.T) {
	caps := Default()
	target, _ := ParseNetTarget("example.com")
	if caps.AllowsNet(target) {
		t.Error("default capabilities should deny outbound network access")
	}
}

func TestAllowsExperimental(t *testing.T) {
	caps := Default()
	caps.AllowExperimental = SomeTargets(ExperimentalGraphQL)
	if !caps.AllowsExperimental(ExperimentalGraphQL) {
		t.Error("graphql should be allowed once added to the allow set")
	}
	if caps.AllowsExperimental(ExperimentalRecordReferences) {
		t.Error("record_references should remain denied")
	}
}
