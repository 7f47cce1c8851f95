package rule

import (
	"fmt"
	"strconv"
	"strings"

	"fields-valid/pkg/validator/core"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokLParen
	tokRParen
	tokComma
	tokSemicolon
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of annotation"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer"
	case tokFloat:
		return "float"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	default:
		return "';'"
	}
}

type token struct {
	kind tokenKind
	// text 原始文本；字符串 token 为去引号后的值
	text string
	pos  int
	end  int
}

// lex 将注解源码切分为 token，末尾追加 tokEOF
//
// 字符串支持两种写法：
//   - "..." Go 风格转义
//   - '...' 原样保留，只有 \' 表示单引号，便于在结构体 tag 中书写正则
func lex(src string) ([]token, error) {
	toks := make([]token, 0, 16)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i, end: i + 1})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i, end: i + 1})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i, end: i + 1})
			i++
		case c == ';':
			toks = append(toks, token{kind: tokSemicolon, text: ";", pos: i, end: i + 1})
			i++
		case c == '"':
			tok, err := lexQuoted(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = tok.end
		case c == '\'':
			tok, err := lexRaw(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = tok.end
		case c == '-' || c == '.' || isDigit(c):
			tok := lexNumber(src, i)
			if tok.end == i || (tok.end == i+1 && !isDigit(c)) {
				return nil, core.NewSchemaError("", i, fmt.Errorf("%w: unexpected %q", core.ErrStructural, c))
			}
			toks = append(toks, tok)
			i = tok.end
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], pos: i, end: j})
			i = j
		default:
			return nil, core.NewSchemaError("", i, fmt.Errorf("%w: unexpected %q", core.ErrStructural, c))
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src), end: len(src)})
	return toks, nil
}

func lexQuoted(src string, start int) (token, error) {
	j := start + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case '"':
			value, err := strconv.Unquote(src[start : j+1])
			if err != nil {
				return token{}, core.NewSchemaError("", start, fmt.Errorf("%w: bad string %s: %v", core.ErrStructural, src[start:j+1], err))
			}
			return token{kind: tokString, text: value, pos: start, end: j + 1}, nil
		}
		j++
	}
	return token{}, core.NewSchemaError("", start, fmt.Errorf("%w: unterminated string", core.ErrStructural))
}

func lexRaw(src string, start int) (token, error) {
	var b strings.Builder
	j := start + 1
	for j < len(src) {
		c := src[j]
		if c == '\\' && j+1 < len(src) && src[j+1] == '\'' {
			b.WriteByte('\'')
			j += 2
			continue
		}
		if c == '\'' {
			return token{kind: tokString, text: b.String(), pos: start, end: j + 1}, nil
		}
		b.WriteByte(c)
		j++
	}
	return token{}, core.NewSchemaError("", start, fmt.Errorf("%w: unterminated string", core.ErrStructural))
}

// lexNumber -?digits(.digits)?([eE][+-]?digits)?
func lexNumber(src string, start int) token {
	j := start
	if j < len(src) && src[j] == '-' {
		j++
	}
	digits := func() {
		for j < len(src) && isDigit(src[j]) {
			j++
		}
	}
	kind := tokInt
	digits()
	if j < len(src) && src[j] == '.' {
		kind = tokFloat
		j++
		digits()
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			kind = tokFloat
			j = k
			digits()
		}
	}
	return token{kind: kind, text: src[start:j], pos: start, end: j}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
