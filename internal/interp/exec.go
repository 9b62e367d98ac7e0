package interp

// exec runs src[s:e] as a statement sequence. Break and Continue are handed
// to the caller as signals; errors abort immediately.
func (m *machine) exec(s, e int) (Signal, error) {
	if err := m.enter(s); err != nil {
		return Completed, err
	}
	defer m.leave()

	src := m.src
	for {
		s = skipSpace(src, s, e)
		if s >= e {
			return Completed, nil
		}
		if err := m.alive(s); err != nil {
			return Completed, err
		}

		var (
			sig = Completed
			err error
		)
		switch {
		case hasWord(src, s, e, "break"):
			s, err = m.terminator(s, len("break"), e)
			sig = Break
		case hasWord(src, s, e, "continue"):
			s, err = m.terminator(s, len("continue"), e)
			sig = Continue
		case hasWord(src, s, e, "if"):
			sig, s, err = m.execIf(s, e)
		case hasWord(src, s, e, "while"):
			sig, s, err = m.execWhile(s, e)
		case hasWord(src, s, e, "for"):
			sig, s, err = m.execFor(s, e)
		case src[s] == '{' || src[s] == '}':
			s++
		default:
			s, err = m.execExpr(s, e)
		}
		if err != nil {
			return Completed, err
		}
		if sig != Completed {
			return sig, nil
		}
	}
}

// terminator expects ';' after the keyword of width w at s.
func (m *machine) terminator(s, w, e int) (int, error) {
	at := s
	s = skipSpace(m.src, s+w, e)
	if s >= e || m.src[s] != ';' {
		return s, m.errorf(KindSyntax, at, "expected ';' after %s", m.src[at:at+w])
	}
	return s + 1, nil
}

// condition expects a parenthesized group at or after s and returns its
// interior and the index after the closing ')'.
func (m *machine) condition(s, e int, kw string) (int, int, int, error) {
	s = skipSpace(m.src, s, e)
	if s >= e || m.src[s] != '(' {
		return 0, 0, s, m.errorf(KindSyntax, s, "expected '(' after %s", kw)
	}
	closing, err := m.matchParen(s, e)
	if err != nil {
		return 0, 0, s, err
	}
	return s + 1, closing, closing + 1, nil
}

// matchBrace returns the index of the '}' closing the '{' at open.
func (m *machine) matchBrace(open, e int) (int, error) {
	nest := 0
	for i := open; i < e; i++ {
		switch m.src[i] {
		case '{':
			nest++
		case '}':
			nest--
			if nest == 0 {
				return i, nil
			}
		}
	}
	return e, m.errorf(KindSyntax, open, "unbalanced '{'")
}

// stmtEnd returns the index just past the single statement starting at s:
// a block, a whole if/else, while or for, or a simple statement up to ';'.
func (m *machine) stmtEnd(s, e int) (int, error) {
	if err := m.enter(s); err != nil {
		return s, err
	}
	defer m.leave()

	src := m.src
	s = skipSpace(src, s, e)
	if s >= e {
		return s, m.errorf(KindSyntax, s, "missing statement")
	}

	switch {
	case src[s] == '{':
		closing, err := m.matchBrace(s, e)
		return closing + 1, err
	case hasWord(src, s, e, "if"):
		_, _, next, err := m.condition(s+2, e, "if")
		if err != nil {
			return s, err
		}
		end, err := m.stmtEnd(next, e)
		if err != nil {
			return s, err
		}
		if after := skipSpace(src, end, e); hasWord(src, after, e, "else") {
			return m.stmtEnd(after+4, e)
		}
		return end, nil
	case hasWord(src, s, e, "while"), hasWord(src, s, e, "for"):
		w := 3
		if src[s] == 'w' {
			w = 5
		}
		_, _, next, err := m.condition(s+w, e, string(src[s:s+w]))
		if err != nil {
			return s, err
		}
		return m.stmtEnd(next, e)
	}

	nest := 0
	for i := s; i < e; i++ {
		switch src[i] {
		case '(':
			nest++
		case ')':
			nest--
		case ';':
			if nest == 0 {
				return i + 1, nil
			}
		case '{', '}':
			if nest == 0 {
				return i, m.errorf(KindSyntax, s, "missing ';'")
			}
		}
	}
	return e, m.errorf(KindSyntax, s, "missing ';'")
}

// body locates the statement that follows a condition.
func (m *machine) body(next, e int) (int, int, error) {
	bs := skipSpace(m.src, next, e)
	be, err := m.stmtEnd(bs, e)
	return bs, be, err
}

func (m *machine) execIf(s, e int) (Signal, int, error) {
	src := m.src
	cs, ce, next, err := m.condition(s+2, e, "if")
	if err != nil {
		return Completed, s, err
	}
	bs, be, err := m.body(next, e)
	if err != nil {
		return Completed, s, err
	}
	end, es, ee := be, -1, -1
	if after := skipSpace(src, be, e); hasWord(src, after, e, "else") {
		if es, ee, err = m.body(after+4, e); err != nil {
			return Completed, s, err
		}
		end = ee
	}

	trace := m.tracing()
	if trace {
		m.tracef("if (%s)", m.text(cs, ce))
	}
	v, err := m.eval(cs, ce)
	if err != nil {
		if trace {
			m.tracef("\n")
		}
		return Completed, s, err
	}
	if trace {
		m.tracef(": %s\n", truth(v))
	}

	sig := Completed
	if v != 0 {
		sig, err = m.exec(bs, be)
	} else if es >= 0 {
		sig, err = m.exec(es, ee)
	}
	return sig, end, err
}

func (m *machine) execWhile(s, e int) (Signal, int, error) {
	cs, ce, next, err := m.condition(s+5, e, "while")
	if err != nil {
		return Completed, s, err
	}
	bs, be, err := m.body(next, e)
	if err != nil {
		return Completed, s, err
	}

	trace := m.tracing()
	if trace {
		m.tracef("while (%s)\n", m.text(cs, ce))
	}
	if err := m.step(StepLoop, s, be); err != nil {
		return Completed, s, err
	}
	for {
		if err := m.alive(cs); err != nil {
			return Completed, s, err
		}
		v, err := m.eval(cs, ce)
		if err != nil {
			return Completed, s, err
		}
		if trace {
			m.tracef("%s: %s\n", m.text(cs, ce), truth(v))
		}
		if v == 0 {
			break
		}
		if err := m.step(StepIteration, bs, be); err != nil {
			return Completed, s, err
		}
		sig, err := m.exec(bs, be)
		if err != nil {
			return Completed, s, err
		}
		if sig == Break {
			break
		}
	}
	return Completed, be, nil
}

func (m *machine) execFor(s, e int) (Signal, int, error) {
	src := m.src
	gs, ge, next, err := m.condition(s+3, e, "for")
	if err != nil {
		return Completed, s, err
	}

	// split the header at ';' outside parentheses
	var semis []int
	nest := 0
	for i := gs; i < ge; i++ {
		switch src[i] {
		case '(':
			nest++
		case ')':
			nest--
		case ';':
			if nest == 0 {
				semis = append(semis, i)
			}
		}
	}
	if len(semis) != 2 {
		return Completed, s, m.errorf(KindSyntax, s, "for needs three clauses, found %d", len(semis)+1)
	}
	is, ie := gs, semis[0]
	cs, ce := semis[0]+1, semis[1]
	ns, ne := semis[1]+1, ge

	bs, be, err := m.body(next, e)
	if err != nil {
		return Completed, s, err
	}

	trace := m.tracing()
	if trace {
		m.tracef("for (%s; %s; %s)\n", m.text(is, ie), m.text(cs, ce), m.text(ns, ne))
	}
	if err := m.step(StepLoop, s, be); err != nil {
		return Completed, s, err
	}
	if trace {
		m.tracef("%s\n", m.text(is, ie))
	}
	if _, err := m.eval(is, ie); err != nil {
		return Completed, s, err
	}
	for {
		if err := m.alive(cs); err != nil {
			return Completed, s, err
		}
		v, err := m.eval(cs, ce)
		if err != nil {
			return Completed, s, err
		}
		if trace {
			m.tracef("%s: %s\n", m.text(cs, ce), truth(v))
		}
		if v == 0 {
			break
		}
		sig, err := m.exec(bs, be)
		if err != nil {
			return Completed, s, err
		}
		if sig == Break {
			break
		}
		if trace {
			m.tracef("%s\n", m.text(ns, ne))
		}
		if _, err := m.eval(ns, ne); err != nil {
			return Completed, s, err
		}
		if err := m.step(StepIteration, bs, be); err != nil {
			return Completed, s, err
		}
	}
	return Completed, be, nil
}

// execExpr evaluates one expression statement and returns the index after
// its ';'. The last statement of a window or a block may omit the ';'.
func (m *machine) execExpr(s, e int) (int, error) {
	src := m.src
	p := s
	nest := 0
	for ; s < e; s++ {
		c := src[s]
		if c == '(' {
			nest++
		} else if c == ')' {
			if nest--; nest < 0 {
				return s, m.errorf(KindSyntax, s, "unbalanced ')'")
			}
		} else if (c == ';' || c == '}') && nest == 0 {
			break
		}
	}
	if nest > 0 {
		return s, m.errorf(KindSyntax, p, "unbalanced '('")
	}
	if s > p {
		if m.tracing() {
			m.tracef("%s\n", m.text(p, s))
		}
		if _, err := m.eval(p, s); err != nil {
			return s, err
		}
		if err := m.step(StepStatement, p, s); err != nil {
			return s, err
		}
	}
	if s < e && src[s] == ';' {
		s++
	}
	return s, nil
}

func truth(v int32) string {
	if v != 0 {
		return "true"
	}
	return "false"
}
