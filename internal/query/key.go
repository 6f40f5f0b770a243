package query

import "strings"

// Key identifies a cached read. Keys sharing a Name form one invalidation group.
type Key struct {
	Name string
	Arg  string
}

func NewKey(name string, args ...string) Key {
	return Key{Name: name, Arg: strings.Join(args, "/")}
}

func (k Key) String() string {
	if k.Arg == "" {
		return k.Name
	}
	return k.Name + "/" + k.Arg
}
