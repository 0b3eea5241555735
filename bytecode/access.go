package bytecode

import "strings"

// Access is the access flag set of a routine.
type Access uint16

const (
	AccPublic       Access = 0x0001
	AccPrivate      Access = 0x0002
	AccProtected    Access = 0x0004
	AccStatic       Access = 0x0008
	AccFinal        Access = 0x0010
	AccSynchronized Access = 0x0020
	AccBridge       Access = 0x0040
	AccVarargs      Access = 0x0080
	AccNative       Access = 0x0100
	AccAbstract     Access = 0x0400
	AccStrict       Access = 0x0800
	AccSynthetic    Access = 0x1000
)

var accessNames = []struct {
	flag Access
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccBridge, "bridge"},
	{AccVarargs, "varargs"},
	{AccNative, "native"},
	{AccAbstract, "abstract"},
	{AccStrict, "strict"},
	{AccSynthetic, "synthetic"},
}

// Has reports whether all bits of flag are set.
func (a Access) Has(flag Access) bool {
	return a&flag == flag
}

// String returns the flag names in declaration order, space separated.
func (a Access) String() string {
	var names []string
	for _, n := range accessNames {
		if a.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, " ")
}
