package interp

import (
	"fmt"
)

type (
	Func1 func(a int32) int32
	Func2 func(a, b int32) int32
	Func3 func(a, b, c int32) int32
)

// Native is one registered host function.
type Native struct {
	Name  string
	Arity int
	f1    Func1
	f2    Func2
	f3    Func3
}

func (n *Native) call(args []int32) int32 {
	switch n.Arity {
	case 1:
		return n.f1(args[0])
	case 2:
		return n.f2(args[0], args[1])
	default:
		return n.f3(args[0], args[1], args[2])
	}
}

// Registry is the append-only list of natives. Lookup walks it in
// registration order and the first entry whose name plus '(' prefixes the
// input wins. Duplicate names are rejected at registration.
type Registry struct {
	natives []*Native
}

func (r *Registry) add(n *Native) error {
	if err := validName(n.Name); err != nil {
		return err
	}
	for _, existing := range r.natives {
		if existing.Name == n.Name {
			return fmt.Errorf("native %q already registered", n.Name)
		}
	}
	r.natives = append(r.natives, n)
	return nil
}

// Natives returns the registered entries in registration order.
func (r *Registry) Natives() []Native {
	out := make([]Native, len(r.natives))
	for i, n := range r.natives {
		out[i] = *n
	}
	return out
}

// lookup returns the first native whose name followed by '(' starts at s.
func (r *Registry) lookup(src []byte, s, e int) *Native {
	for _, n := range r.natives {
		if hasPrefix(src, s, e, n.Name) && peek(src, s+len(n.Name), e) == '(' {
			return n
		}
	}
	return nil
}

var keywords = []string{"if", "else", "while", "for", "break", "continue"}

// validName rejects names the evaluator could never reach: single letters
// resolve as variables, keywords and constants are matched first.
func validName(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("native name %q must be at least two characters", name)
	}
	if !isLetter(name[0]) && name[0] != '_' {
		return fmt.Errorf("native name %q must start with a letter", name)
	}
	for i := 0; i < len(name); i++ {
		if !isIdentChar(name[i]) {
			return fmt.Errorf("native name %q contains %q", name, name[i])
		}
	}
	for _, kw := range keywords {
		if name == kw {
			return fmt.Errorf("native name %q is a keyword", name)
		}
	}
	for _, c := range constants {
		if name == c.Name {
			return fmt.Errorf("native name %q is a constant", name)
		}
	}
	return nil
}
