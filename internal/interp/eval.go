package interp

// boundary reports whether the operator starting at src[i] ends an operand.
type boundary func(src []byte, i, e int) bool

func unaryBoundary(src []byte, i, e int) bool {
	switch src[i] {
	case '+', '-', '>', '<', '=':
		return true
	case '!':
		return peek(src, i+1, e) == '='
	}
	return false
}

func assignBoundary(src []byte, i, e int) bool {
	return src[i] == '=' && peek(src, i+1, e) == '='
}

func mulBoundary(src []byte, i, e int) bool {
	switch src[i] {
	case '*', '/', '%':
		return true
	}
	return addBoundary(src, i, e)
}

func addBoundary(src []byte, i, e int) bool {
	switch src[i] {
	case '+', '-':
		return true
	}
	return relBoundary(src, i, e)
}

func relBoundary(src []byte, i, e int) bool {
	switch src[i] {
	case '>', '<':
		return true
	case '=', '!':
		return peek(src, i+1, e) == '='
	}
	return bitBoundary(src, i, e)
}

func bitBoundary(src []byte, i, e int) bool {
	switch src[i] {
	case '&', '|', '^':
		return true
	}
	return false
}

func logicBoundary(src []byte, i, e int) bool {
	c := src[i]
	return (c == '&' || c == '|') && peek(src, i+1, e) == c
}

// scanOperand advances from s to the first operator matching stop outside
// parentheses. An operator directly after another operator, or at the start,
// is a sign and never a boundary.
func (m *machine) scanOperand(s, e int, stop boundary) (int, error) {
	src := m.src
	start := s
	nest := 0
	operand := false
	for ; s < e; s++ {
		c := src[s]
		switch {
		case c == '(':
			nest++
			operand = false
		case c == ')':
			if nest == 0 {
				return s, m.errorf(KindSyntax, s, "unbalanced ')'")
			}
			nest--
			operand = true
		case isSpace(c):
		case nest == 0 && operand && stop(src, s, e):
			return s, nil
		default:
			operand = isIdentChar(c)
		}
	}
	if nest > 0 {
		return s, m.errorf(KindSyntax, start, "unbalanced '('")
	}
	return s, nil
}

// matchParen returns the index of the ')' closing the '(' at open.
func (m *machine) matchParen(open, e int) (int, error) {
	nest := 0
	for i := open; i < e; i++ {
		switch m.src[i] {
		case '(':
			nest++
		case ')':
			nest--
			if nest == 0 {
				return i, nil
			}
		}
	}
	return e, m.errorf(KindSyntax, open, "unbalanced '('")
}

// eval resolves src[s:e] to a value. An empty window is 1.
func (m *machine) eval(s, e int) (int32, error) {
	if err := m.enter(s); err != nil {
		return 0, err
	}
	defer m.leave()

	src := m.src
	s = skipSpace(src, s, e)
	if s >= e {
		return 1, nil
	}

	var (
		v   int32
		idx = -1
		err error
	)
	c := src[s]
	switch {
	case c == '(':
		open := s
		s = skipSpace(src, s+1, e)
		if s >= e || src[s] == ')' {
			return 0, m.errorf(KindSyntax, open, "empty parentheses")
		}
		closing, err := m.matchParen(open, e)
		if err != nil {
			return 0, err
		}
		if v, err = m.eval(s, closing); err != nil {
			return 0, err
		}
		s = closing + 1

	case (c == '!' && peek(src, s+1, e) != '=') || c == '~' || c == '-' || c == '+':
		at := s
		s = skipSpace(src, s+1, e)
		if s >= e {
			return 0, m.errorf(KindSyntax, at, "missing operand after %q", c)
		}
		p := s
		if s, err = m.scanOperand(s, e, unaryBoundary); err != nil {
			return 0, err
		}
		x, err := m.eval(p, s)
		if err != nil {
			return 0, err
		}
		switch c {
		case '!':
			v = boolInt(x == 0)
		case '~':
			v = ^x
		case '-':
			v = -x
		default:
			v = x
		}

	case isDigit(c):
		at := s
		if v, s = number(src, s, e); s < 0 {
			return 0, m.errorf(KindSyntax, at, "no digits after %q", src[at:at+2])
		}

	case isLetter(c) && !isIdentChar(peek(src, s+1, e)):
		idx = int(c|0x20) - 'a'
		v = m.ip.vars[idx]
		s++

	default:
		if v, s, err = m.named(s, e); err != nil {
			return 0, err
		}
	}

	return m.operators(v, idx, s, e)
}

// number scans a decimal, 0x hex or 0b binary literal. Overflow wraps. The
// returned index is -1 when a 0x or 0b prefix has no digits.
func number(src []byte, s, e int) (int32, int) {
	var u uint32
	next := peek(src, s+1, e)
	switch {
	case src[s] == '0' && (next == 'x' || next == 'X'):
		digits := s + 2
	hex:
		for s = digits; s < e; s++ {
			c := src[s]
			switch {
			case c >= '0' && c <= '9':
				u = u*16 + uint32(c-'0')
			case c >= 'a' && c <= 'f':
				u = u*16 + uint32(c-'a'+10)
			case c >= 'A' && c <= 'F':
				u = u*16 + uint32(c-'A'+10)
			default:
				break hex
			}
		}
		if s == digits {
			return 0, -1
		}
	case src[s] == '0' && (next == 'b' || next == 'B'):
		digits := s + 2
		for s = digits; s < e && (src[s] == '0' || src[s] == '1'); s++ {
			u = u*2 + uint32(src[s]-'0')
		}
		if s == digits {
			return 0, -1
		}
	default:
		for ; s < e && isDigit(src[s]); s++ {
			u = u*10 + uint32(src[s]-'0')
		}
	}
	return int32(u), s
}

// named resolves a constant or a native call at s.
func (m *machine) named(s, e int) (int32, int, error) {
	src := m.src
	if c, ok := lookupConstant(src, s, e); ok {
		return c.Value, s + len(c.Name), nil
	}
	if n := m.ip.registry.lookup(src, s, e); n != nil {
		return m.call(n, s, e)
	}
	end := s
	for end < e && isIdentChar(src[end]) {
		end++
	}
	if end == s {
		return 0, s, m.errorf(KindSyntax, s, "unexpected %q", src[s])
	}
	return 0, s, m.errorf(KindSyntax, s, "unknown identifier %q", src[s:end])
}

// call evaluates the arguments of n, which starts at s, and invokes it once.
func (m *machine) call(n *Native, s, e int) (int32, int, error) {
	src := m.src
	at := s
	s += len(n.Name) + 1

	var args [3]int32
	for i := 0; i < n.Arity; i++ {
		p := s
		nest := 0
	scan:
		for ; s < e; s++ {
			switch src[s] {
			case '(':
				nest++
			case ')':
				if nest == 0 {
					break scan
				}
				nest--
			case ',':
				if nest == 0 {
					break scan
				}
			}
		}
		if s >= e {
			return 0, s, m.errorf(KindSyntax, at, "missing ')' in call to %s", n.Name)
		}
		last := i == n.Arity-1
		if last && src[s] == ',' {
			return 0, s, m.errorf(KindSyntax, s, "too many arguments to %s (takes %d)", n.Name, n.Arity)
		}
		if !last && src[s] == ')' {
			return 0, s, m.errorf(KindSyntax, s, "too few arguments to %s (takes %d)", n.Name, n.Arity)
		}
		v, err := m.eval(p, s)
		if err != nil {
			return 0, s, err
		}
		args[i] = v
		s++
	}
	log.Tracef("call %s%v", n.Name, args[:n.Arity])
	return n.call(args[:n.Arity]), s, nil
}

// operand skips the operator of width w at s and scans its right operand.
func (m *machine) operand(s, w, e int, stop boundary) (int, int, error) {
	at := s
	s = skipSpace(m.src, s+w, e)
	if s >= e {
		return s, s, m.errorf(KindSyntax, at, "missing operand after %q", m.src[at:at+w])
	}
	p := s
	s, err := m.scanOperand(s, e, stop)
	return p, s, err
}

// operators applies the trailing operator tiers to the primary value v.
// idx is the slot v was read from, or -1.
func (m *machine) operators(v int32, idx, s, e int) (int32, error) {
	src := m.src
	s = skipSpace(src, s, e)
	if s >= e {
		return v, nil
	}

	if src[s] == '=' && peek(src, s+1, e) != '=' {
		if idx < 0 {
			return 0, m.errorf(KindInternal, s, "assignment without a variable on the left")
		}
		p, end, err := m.operand(s, 1, e, assignBoundary)
		if err != nil {
			return 0, err
		}
		rhs, err := m.eval(p, end)
		if err != nil {
			return 0, err
		}
		m.ip.vars[idx] = rhs
		v = rhs
		if s = end; s >= e {
			return v, nil
		}
	}

	for s < e && (src[s] == '*' || src[s] == '/' || src[s] == '%') {
		op, at := src[s], s
		p, end, err := m.operand(s, 1, e, mulBoundary)
		if err != nil {
			return 0, err
		}
		rhs, err := m.eval(p, end)
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			v *= rhs
		case '/':
			if rhs == 0 {
				return 0, m.errorf(KindDivideByZero, at, "division by zero")
			}
			v /= rhs
		case '%':
			if rhs == 0 {
				return 0, m.errorf(KindDivideByZero, at, "modulo by zero")
			}
			v %= rhs
		}
		s = end
	}
	if s >= e {
		return v, nil
	}

	if c := src[s]; c == '+' || c == '-' {
		p, end, err := m.operand(s, 1, e, relBoundary)
		if err != nil {
			return 0, err
		}
		rhs, err := m.eval(p, end)
		if err != nil {
			return 0, err
		}
		if c == '+' {
			v += rhs
		} else {
			v -= rhs
		}
		if s = end; s >= e {
			return v, nil
		}
	}

	c, next := src[s], peek(src, s+1, e)
	if c == '>' || c == '<' || (c == '=' && next == '=') || (c == '!' && next == '=') {
		w := 1
		if next == '=' || ((c == '>' || c == '<') && next == c) {
			w = 2
		} else {
			next = 0
		}
		p, end, err := m.operand(s, w, e, bitBoundary)
		if err != nil {
			return 0, err
		}
		rhs, err := m.eval(p, end)
		if err != nil {
			return 0, err
		}
		switch {
		case c == '>' && next == '=':
			v = boolInt(v >= rhs)
		case c == '>' && next == '>':
			v >>= uint32(rhs)
		case c == '>':
			v = boolInt(v > rhs)
		case c == '<' && next == '=':
			v = boolInt(v <= rhs)
		case c == '<' && next == '<':
			v <<= uint32(rhs)
		case c == '<':
			v = boolInt(v < rhs)
		case c == '=':
			v = boolInt(v == rhs)
		default:
			v = boolInt(v != rhs)
		}
		if s = end; s >= e {
			return v, nil
		}
	}

	c, next = src[s], peek(src, s+1, e)
	if (c == '&' || c == '|' || c == '^') && next != c {
		p, end, err := m.operand(s, 1, e, logicBoundary)
		if err != nil {
			return 0, err
		}
		rhs, err := m.eval(p, end)
		if err != nil {
			return 0, err
		}
		switch c {
		case '&':
			v &= rhs
		case '|':
			v |= rhs
		default:
			v ^= rhs
		}
		if s = end; s >= e {
			return v, nil
		}
	}

	c, next = src[s], peek(src, s+1, e)
	if (c == '&' || c == '|') && next == c {
		at := s
		s = skipSpace(src, s+2, e)
		if s >= e {
			return 0, m.errorf(KindSyntax, at, "missing operand after %q", src[at:at+2])
		}
		if c == '&' && v == 0 {
			return 0, nil
		}
		if c == '|' && v != 0 {
			return 1, nil
		}
		rhs, err := m.eval(s, e)
		if err != nil {
			return 0, err
		}
		return boolInt(rhs != 0), nil
	}

	return 0, m.errorf(KindSyntax, s, "unexpected %q", src[s])
}
