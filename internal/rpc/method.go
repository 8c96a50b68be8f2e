package rpc

// Method is the closed enum of RPC method names the dispatcher recognizes.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodPing
	MethodInfo
	MethodUse
	MethodSignup
	MethodSignin
	MethodAuthenticate
	MethodRefresh
	MethodInvalidate
	MethodRevoke
	MethodReset
	MethodKill
	MethodLive
	MethodSet
	MethodUnset
	MethodSelect
	MethodInsert
	MethodInsertRelation
	MethodCreate
	MethodUpsert
	MethodUpdate
	MethodMerge
	MethodPatch
	MethodDelete
	MethodRelate
	MethodQuery
	MethodRun
	MethodVersion
	MethodBegin
	MethodCommit
	MethodCancel
	MethodSessions
	MethodAttach
	MethodDetach
	MethodGraphQL
)

var methodNames = map[string]Method{
	"ping":             MethodPing,
	"info":             MethodInfo,
	"use":              MethodUse,
	"signup":           MethodSignup,
	"signin":           MethodSignin,
	"authenticate":     MethodAuthenticate,
	"refresh":          MethodRefresh,
	"invalidate":       MethodInvalidate,
	"revoke":           MethodRevoke,
	"reset":            MethodReset,
	"kill":             MethodKill,
	"live":             MethodLive,
	"set":              MethodSet,
	"unset":            MethodUnset,
	"select":           MethodSelect,
	"insert":           MethodInsert,
	"insert_relation":  MethodInsertRelation,
	"create":           MethodCreate,
	"upsert":           MethodUpsert,
	"update":           MethodUpdate,
	"merge":            MethodMerge,
	"patch":            MethodPatch,
	"delete":           MethodDelete,
	"relate":           MethodRelate,
	"query":            MethodQuery,
	"run":              MethodRun,
	"version":          MethodVersion,
	"begin":            MethodBegin,
	"commit":           MethodCommit,
	"cancel":           MethodCancel,
	"sessions":         MethodSessions,
	"attach":           MethodAttach,
	"detach":           MethodDetach,
	"graphql":          MethodGraphQL,
}

var methodStrings = func() map[Method]string {
	m := make(map[Method]string, len(methodNames))
	for name, meth := range methodNames {
		m[meth] = name
	}
	return m
}()

// ParseMethod resolves a method name case-sensitively. Unlike most enum
// parsers, this one never fails: an unrecognized name resolves to
// MethodUnknown, so parsing a request never fails on the method field alone.
// The dispatcher turns MethodUnknown into a MethodNotFound error at dispatch
// time, not at parse time.
func ParseMethod(name string) Method {
	if m, ok := methodNames[name]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	if s, ok := methodStrings[m]; ok {
		return s
	}
	return "unknown"
}
