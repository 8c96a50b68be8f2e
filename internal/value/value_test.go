package value

import (
	"testing"

	"github.com/google/uuid"
)

func TestSingular(t *testing.T) {
	if !Singular(Object(map[string]Value{"a": Int(1)})) {
		t.Error("object should be singular")
	}
	if !Singular(Record("person", String("tobie"))) {
		t.Error("plain record id should be singular")
	}
	begin := Int(1)
	rangeVal := RangeKey(Range{Begin: &begin, BeginInclusive: true})
	if Singular(rangeVal) {
		t.Error("a range-keyed record id should not be singular")
	}
	if Singular(Array([]Value{Int(1)})) {
		t.Error("array should not be singular")
	}
	if Singular(String("x")) {
		t.Error("string should not be singular")
	}
}

func TestIsNullish(t *testing.T) {
	if !None().IsNullish() {
		t.Error("None should be nullish")
	}
	if !Null().IsNullish() {
		t.Error("Null should be nullish")
	}
	if Int(0).IsNullish() {
		t.Error("Int(0) should not be nullish")
	}
}

func TestEqual(t *testing.T) {
	id := uuid.New()
	a := Object(map[string]Value{
		"id":   UUID(id),
		"tags": Array([]Value{Int(1), String("x")}),
	})
	b := Object(map[string]Value{
		"id":   UUID(id),
		"tags": Array([]Value{Int(1), String("x")}),
	})
	if !Equal(a, b) {
		t.Error("structurally identical objects should be equal")
	}
	c := Object(map[string]Value{"id": UUID(uuid.New())})
	if Equal(a, c) {
		t.Error("objects with different uuids should not be equal")
	}
}

func TestRecordIDRangeAccessors(t *testing.T) {
	rid := Record("person", String("tobie"))
	if rid.IsRange() {
		t.Error("plain record id should not report as a range")
	}
	got, ok := rid.RecordIDValue()
	if !ok || got.Table != "person" {
		t.Fatalf("unexpected record id: %#v", got)
	}

	begin := Int(1)
	rangeVal := RangeKey(Range{Begin: &begin, BeginInclusive: true, EndInclusive: false})
	if !rangeVal.IsRange() {
		t.Error("range value should report as a range")
	}
	if _, ok := rangeVal.RecordIDValue(); ok {
		t.Error("a range value should not also resolve as a plain record id")
	}
}

func TestStringCoversAllTextualKinds(t *testing.T) {
	for _, v := range []Value{String("s"), Regex("^a"), Table("person"), File("/a/b")} {
		if _, ok := v.String(); !ok {
			t.Errorf("expected String() to succeed for kind %s", v.Kind())
		}
	}
	if _, ok := Int(1).String(); ok {
		t.Error("String() should fail for a non-textual kind")
	}
}
