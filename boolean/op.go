// Package boolean defines the solid boolean operations shared by the
// engines.
package boolean

import (
	"fmt"
	"strings"
)

// Op is a boolean operation between solids.
type Op int

const (
	Union Op = iota
	// Subtract removes every following operand from the first one.
	Subtract
	Intersect
)

func (op Op) String() string {
	switch op {
	case Union:
		return "union"
	case Subtract:
		return "subtract"
	case Intersect:
		return "intersect"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Valid reports whether op is one of the defined operations.
func (op Op) Valid() bool { return op >= Union && op <= Intersect }

// Parse returns the operation named s, case insensitive. "difference"
// and "intersection" are accepted as aliases.
func Parse(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "union", "add":
		return Union, nil
	case "subtract", "difference", "sub":
		return Subtract, nil
	case "intersect", "intersection":
		return Intersect, nil
	}
	return 0, fmt.Errorf("unknown boolean operation %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler so operations can be
// read from configuration files.
func (op *Op) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*op = v
	return nil
}
