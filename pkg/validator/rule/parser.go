package rule

import (
	"fmt"
	"strconv"
	"strings"

	"fields-valid/pkg/validator/core"
)

const annotationName = "valid"

// ParseAnnotation 解析一个完整注解 valid(...)
func ParseAnnotation(src string) (*Meta, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	head := p.next()
	if head.kind != tokIdent || head.text != annotationName || p.peek().kind != tokLParen {
		return nil, p.structural("", head, "annotation must be a parenthesized rule list valid(...)")
	}
	p.next()

	meta, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	if tok := p.next(); tok.kind != tokRParen {
		return nil, p.structural("", tok, "expected ')' to close valid(...), got %s", tok.kind)
	}
	if tok := p.next(); tok.kind != tokEOF {
		return nil, p.structural("", tok, "unexpected %s after valid(...)", tok.kind)
	}
	meta.Source = src
	return meta, nil
}

// ParseTag 解析结构体 tag，多个规则组以 ';' 分隔
func ParseTag(tag string) ([]*Meta, error) {
	groups, err := SplitTag(tag)
	if err != nil {
		return nil, err
	}
	metas := make([]*Meta, 0, len(groups))
	for _, g := range groups {
		meta, err := ParseAnnotation(g)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// SplitTag 按顶层 ';' 切分 tag，并将每个规则组包装为 valid(...)
// 空规则组被忽略
func SplitTag(tag string) ([]string, error) {
	toks, err := lex(tag)
	if err != nil {
		return nil, err
	}

	var groups []string
	depth, start := 0, 0
	for _, tok := range toks {
		switch tok.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth < 0 {
				return nil, core.NewSchemaError("", tok.pos, fmt.Errorf("%w: unbalanced parentheses", core.ErrStructural))
			}
		case tokSemicolon, tokEOF:
			if depth != 0 {
				if tok.kind == tokSemicolon {
					continue
				}
				return nil, core.NewSchemaError("", tok.pos, fmt.Errorf("%w: unbalanced parentheses", core.ErrStructural))
			}
			if body := strings.TrimSpace(tag[start:tok.pos]); body != "" {
				groups = append(groups, Wrap(body))
			}
			start = tok.end
		}
	}
	return groups, nil
}

// Wrap 将规则组主体包装为 valid(...)，已是完整注解的原样返回
func Wrap(body string) string {
	s := strings.TrimSpace(body)
	if rest, ok := strings.CutPrefix(s, annotationName); ok {
		if strings.HasPrefix(strings.TrimSpace(rest), "(") {
			return s
		}
	}
	return annotationName + "(" + s + ")"
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) structural(rule string, tok token, format string, args ...any) error {
	return core.NewSchemaError(rule, tok.pos, fmt.Errorf("%w: %s", core.ErrStructural, fmt.Sprintf(format, args...)))
}

// parseGroup 解析 valid( 与 ) 之间的内容，不消费右括号
func (p *parser) parseGroup() (*Meta, error) {
	meta := &Meta{}
	message, hasMessage := "", false
	open := p.toks[p.i-1]

	for p.peek().kind != tokRParen {
		tok := p.next()
		switch tok.kind {
		case tokString:
			message, hasMessage = tok.text, true
		case tokIdent:
			r, err := p.parseRule(tok)
			if err != nil {
				return nil, err
			}
			meta.Rules = append(meta.Rules, r)
		case tokInt, tokFloat:
			return nil, p.structural("", tok, "unexpected literal %s, only a message string may appear outside a rule", tok.text)
		case tokEOF:
			return nil, p.structural("", tok, "unbalanced parentheses")
		default:
			return nil, p.structural("", tok, "unexpected %s", tok.kind)
		}

		switch sep := p.peek(); sep.kind {
		case tokComma:
			p.next()
		case tokRParen:
		default:
			return nil, p.structural("", sep, "expected ',' or ')', got %s", sep.kind)
		}
	}

	if len(meta.Rules) == 0 {
		return nil, p.structural("", open, "no rules in annotation")
	}
	if hasMessage {
		meta.Message = message
	} else {
		meta.Message = core.DefaultMessage
	}
	return meta, nil
}

func (p *parser) parseRule(name token) (Rule, error) {
	switch name.text {
	case KeywordEmail:
		if p.peek().kind == tokLParen {
			return nil, p.structural(name.text, p.peek(), "email takes no arguments")
		}
		return Email{}, nil
	case KeywordLen, KeywordRange, KeywordRegex, KeywordEq:
	default:
		return nil, core.NewSchemaError(name.text, name.pos, fmt.Errorf("%w: %s", core.ErrUnknownRule, name.text))
	}

	args, err := p.parseArgs(name)
	if err != nil {
		return nil, err
	}

	switch name.text {
	case KeywordLen:
		return parseLen(name, args)
	case KeywordRange:
		return parseRange(name, args)
	case KeywordRegex:
		s, err := stringArg(name, args)
		if err != nil {
			return nil, err
		}
		return Regex{Pattern: s}, nil
	default:
		s, err := stringArg(name, args)
		if err != nil {
			return nil, err
		}
		if len(s) > 0 && s[0] == FieldRefPrefix {
			return Eq{Target: s[1:], IsField: true}, nil
		}
		return Eq{Target: s}, nil
	}
}

// parseArgs 解析 (arg, arg, ...)，参数只能是字面量或标识符
func (p *parser) parseArgs(name token) ([]token, error) {
	if open := p.peek(); open.kind != tokLParen {
		return nil, p.structural(name.text, open, "%s requires an argument list", name.text)
	}
	p.next()

	var args []token
	for {
		tok := p.next()
		switch tok.kind {
		case tokRParen:
			if len(args) == 0 {
				return nil, p.structural(name.text, tok, "%s requires at least one argument", name.text)
			}
			return args, nil
		case tokInt, tokFloat, tokString, tokIdent:
			args = append(args, tok)
		case tokEOF:
			return nil, p.structural(name.text, tok, "unbalanced parentheses")
		default:
			return nil, p.structural(name.text, tok, "unexpected %s in %s arguments", tok.kind, name.text)
		}

		switch sep := p.next(); sep.kind {
		case tokComma:
		case tokRParen:
			return args, nil
		default:
			return nil, p.structural(name.text, sep, "expected ',' or ')', got %s", sep.kind)
		}
	}
}

func invalidLiteral(name, arg token, want string) error {
	return core.NewSchemaError(name.text, arg.pos,
		fmt.Errorf("%w: %s expects %s, got %s %q", core.ErrInvalidLiteral, name.text, want, arg.kind, arg.text))
}

func boundsArity(name token, args []token) error {
	if len(args) > 2 {
		return core.NewSchemaError(name.text, args[2].pos,
			fmt.Errorf("%w: %s takes one or two bounds, got %d", core.ErrStructural, name.text, len(args)))
	}
	return nil
}

func parseLen(name token, args []token) (Rule, error) {
	if err := boundsArity(name, args); err != nil {
		return nil, err
	}
	bounds := make([]int, 0, 2)
	for _, arg := range args {
		if arg.kind != tokInt {
			return nil, invalidLiteral(name, arg, "a non-negative integer")
		}
		n, err := strconv.ParseUint(arg.text, 10, 31)
		if err != nil {
			return nil, invalidLiteral(name, arg, "a non-negative integer")
		}
		bounds = append(bounds, int(n))
	}
	// len(a) 等价于 len(a, a)
	a, b := bounds[0], bounds[len(bounds)-1]
	return Len{Min: min(a, b), Max: max(a, b)}, nil
}

func parseRange(name token, args []token) (Rule, error) {
	if err := boundsArity(name, args); err != nil {
		return nil, err
	}
	bounds := make([]float64, 0, 2)
	for _, arg := range args {
		if arg.kind != tokInt && arg.kind != tokFloat {
			return nil, invalidLiteral(name, arg, "a number")
		}
		f, err := strconv.ParseFloat(arg.text, 64)
		if err != nil {
			return nil, invalidLiteral(name, arg, "a number")
		}
		bounds = append(bounds, f)
	}
	a, b := bounds[0], bounds[len(bounds)-1]
	return Range{Min: min(a, b), Max: max(a, b)}, nil
}

func stringArg(name token, args []token) (string, error) {
	if args[0].kind != tokString {
		return "", invalidLiteral(name, args[0], "a string literal")
	}
	if len(args) > 1 {
		return "", core.NewSchemaError(name.text, args[1].pos,
			fmt.Errorf("%w: %s takes exactly one argument", core.ErrStructural, name.text))
	}
	return args[0].text, nil
}
