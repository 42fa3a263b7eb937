package query

import (
	"strings"

	"github.com/emberql/emberql/pkg/errs"
)

// parser walks a token stream produced by lex, building a matchQuery.
// It keeps a cursor rather than consuming the slice so error messages can
// reference position if that's ever useful, though today they don't.
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) next() token  { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEOF() bool  { return p.toks[p.pos].kind == tokEOF }
func (p *parser) expect(text string) error {
	t := p.next()
	if t.text != text {
		return errs.New(errs.CodeInvalidQuerySyntax, "expected %q, got %q", text, t.text)
	}
	return nil
}

// parseMatch parses a full MATCH statement: pattern, optional WHERE,
// optional RETURN. The leading "MATCH" keyword has already been consumed
// by the caller.
func parseMatch(toks []token) (*matchQuery, error) {
	p := &parser{toks: toks}
	q := &matchQuery{}

	start, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	q.Start = start

	if p.peek().text == "-" {
		p.next()
		rel, err := p.parseRelPattern()
		if err != nil {
			return nil, err
		}
		q.Rel = rel
		if err := p.expect("->"); err != nil {
			return nil, err
		}
		end, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		q.End = &end
	}

	if p.peek().kind == tokIdent && strings.EqualFold(p.peek().text, "WHERE") {
		p.next()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	if p.peek().kind == tokIdent && strings.EqualFold(p.peek().text, "RETURN") {
		p.next()
		for !p.atEOF() {
			t := p.next()
			if t.kind == tokIdent {
				q.Returns = append(q.Returns, t.text)
			}
			if p.peek().text == "," {
				p.next()
				continue
			}
			break
		}
	}

	return q, nil
}

// parseNodePattern parses "(v)" or "(v {k: val, ...})".
func (p *parser) parseNodePattern() (nodePattern, error) {
	var np nodePattern
	if err := p.expect("("); err != nil {
		return np, err
	}
	v := p.next()
	if v.kind != tokIdent && v.kind != tokNumber {
		return np, errs.New(errs.CodeInvalidQuerySyntax, "expected variable name, got %q", v.text)
	}
	np.Var = v.text

	if p.peek().text == "{" {
		props, err := p.parseProps()
		if err != nil {
			return np, err
		}
		np.Props = props
	}

	if err := p.expect(")"); err != nil {
		return np, err
	}
	return np, nil
}

// parseRelPattern parses the "[r]" or "[r:LABEL {props}]" segment; the
// caller has already consumed the leading "-".
func (p *parser) parseRelPattern() (*relPattern, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	rp := &relPattern{}
	if p.peek().text != "]" {
		v := p.next()
		if v.kind == tokIdent {
			rp.Var = v.text
		}
		if p.peek().text == ":" {
			p.next()
			lbl := p.next()
			rp.Label = lbl.text
		}
		if p.peek().text == "{" {
			props, err := p.parseProps()
			if err != nil {
				return nil, err
			}
			rp.Props = props
		}
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return rp, nil
}

// parseProps parses a "{k: v, k2: v2}" literal map.
func (p *parser) parseProps() (map[string]any, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	props := map[string]any{}
	for p.peek().text != "}" {
		k := p.next()
		if k.kind != tokIdent {
			return nil, errs.New(errs.CodeInvalidQuerySyntax, "expected property key, got %q", k.text)
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v := p.next()
		props[k.text] = parseLiteral(v)
		if p.peek().text == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return props, nil
}

// parseWhere parses a disjunction of conjunctions: AND groups comparisons
// tightly, OR separates groups (see whereClause doc).
func (p *parser) parseWhere() (*whereClause, error) {
	w := &whereClause{}
	group, err := p.parseAndGroup()
	if err != nil {
		return nil, err
	}
	w.Groups = append(w.Groups, group)

	for p.peek().kind == tokIdent && strings.EqualFold(p.peek().text, "OR") {
		p.next()
		group, err := p.parseAndGroup()
		if err != nil {
			return nil, err
		}
		w.Groups = append(w.Groups, group)
	}
	return w, nil
}

func (p *parser) parseAndGroup() ([]comparison, error) {
	var group []comparison
	c, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	group = append(group, c)

	for p.peek().kind == tokIdent && strings.EqualFold(p.peek().text, "AND") {
		p.next()
		c, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		group = append(group, c)
	}
	return group, nil
}

// parseComparison parses "v.k <op> value".
func (p *parser) parseComparison() (comparison, error) {
	var c comparison
	lhs := p.next()
	if lhs.kind != tokIdent || !strings.Contains(lhs.text, ".") {
		return c, errs.New(errs.CodeInvalidQuerySyntax, "expected <var>.<key>, got %q", lhs.text)
	}
	parts := strings.SplitN(lhs.text, ".", 2)
	c.Variable, c.Key = parts[0], parts[1]

	op := p.next()
	switch op.text {
	case "=", "!=", ">", "<", ">=", "<=":
		c.Op = comparisonOp(op.text)
	default:
		return c, errs.New(errs.CodeInvalidQuerySyntax, "unknown comparison operator %q", op.text)
	}

	c.Value = parseLiteral(p.next())
	return c, nil
}
