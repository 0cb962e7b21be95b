package scan

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Type classifies a scanner token.
type Type int

const (
	Ident Type = iota
	Punct
	String
	Number
	Template
	Regex
)

func (t Type) String() string {
	switch t {
	case Ident:
		return "identifier"
	case Punct:
		return "punctuation"
	case String:
		return "string"
	case Number:
		return "number"
	case Template:
		return "template"
	case Regex:
		return "regex"
	}
	return "unknown"
}

// Token is one lexical unit. Value holds the decoded string contents for
// String tokens and the raw text otherwise. Pure marks tokens preceded by a
// /*#__PURE__*/ or /*@__PURE__*/ annotation.
type Token struct {
	Value string
	Type  Type
	Pos   int
	Line  int
	Pure  bool
}

// Multi-character operators, longest first so greedy matching works.
var operators = []string{
	">>>=", "===", "!==", "**=", "<<=", ">>=", "&&=", "||=", "??=", "...",
	">>>", "=>", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"&&", "||", "??", "?.", "++", "--", "**", "<<", ">>",
}

// keywords that may directly precede a regex literal.
var regexPrecedingKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true,
	"of": true, "new": true, "delete": true, "void": true, "throw": true,
	"case": true, "do": true, "else": true, "yield": true, "await": true,
}

// lexMode tracks nesting between template literals and interpolation code.
type lexMode struct {
	template   bool
	braceDepth int
}

// Tokenize splits JavaScript source into tokens. Comments are consumed (pure
// annotations survive as a flag on the following token), template literals
// emit a Template token plus the tokens of each interpolation, and regex
// literals are detected with the usual previous-token heuristic. The lexer is
// tolerant: unterminated constructs end at EOF instead of failing.
func Tokenize(input string) []Token {
	var tokens []Token
	line := 1
	pure := false
	modes := []lexMode{{}}

	emit := func(t Token) {
		t.Line = line
		t.Pure = pure
		pure = false
		tokens = append(tokens, t)
	}

	i := 0
	for i < len(input) {
		c := input[i]

		if c == '\n' {
			line++
			i++
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' {
			i++
			continue
		}

		// Line comment
		if c == '/' && i+1 < len(input) && input[i+1] == '/' {
			for i < len(input) && input[i] != '\n' {
				i++
			}
			continue
		}

		// Block comment, possibly a pure annotation
		if c == '/' && i+1 < len(input) && input[i+1] == '*' {
			end := strings.Index(input[i+2:], "*/")
			var body string
			if end < 0 {
				body = input[i+2:]
				i = len(input)
			} else {
				body = input[i+2 : i+2+end]
				i += 2 + end + 2
			}
			if strings.Contains(body, "#__PURE__") || strings.Contains(body, "@__PURE__") {
				pure = true
			}
			line += strings.Count(body, "\n")
			continue
		}

		// Template literal or end of interpolation
		if c == '`' {
			tmpl, rest, lines := lexTemplate(input, i)
			emit(Token{Value: tmpl, Type: Template, Pos: i})
			line += lines
			if rest < 0 {
				// Unterminated head: interpolation tokens follow.
				modes = append(modes, lexMode{template: true})
				i = posAfterTemplateHead(input, i)
			} else {
				i = rest
			}
			continue
		}

		mode := &modes[len(modes)-1]
		if c == '{' {
			mode.braceDepth++
			emit(Token{Value: "{", Type: Punct, Pos: i})
			i++
			continue
		}
		if c == '}' {
			if mode.template && mode.braceDepth == 0 {
				// Close of a template interpolation: resume the literal.
				modes = modes[:len(modes)-1]
				tmpl, rest, lines := lexTemplate(input, i)
				emit(Token{Value: tmpl, Type: Template, Pos: i})
				line += lines
				if rest < 0 {
					modes = append(modes, lexMode{template: true})
					i = posAfterTemplateHead(input, i)
				} else {
					i = rest
				}
				continue
			}
			if mode.braceDepth > 0 {
				mode.braceDepth--
			}
			emit(Token{Value: "}", Type: Punct, Pos: i})
			i++
			continue
		}

		// String literal
		if c == '\'' || c == '"' {
			value, rest, lines := lexString(input, i)
			emit(Token{Value: value, Type: String, Pos: i})
			line += lines
			i = rest
			continue
		}

		// Regex literal
		if c == '/' && regexAllowed(tokens) {
			value, rest, ok := lexRegex(input, i)
			if ok {
				emit(Token{Value: value, Type: Regex, Pos: i})
				i = rest
				continue
			}
		}

		// Number
		if c >= '0' && c <= '9' {
			start := i
			for i < len(input) && isNumberChar(input[i]) {
				i++
			}
			emit(Token{Value: input[start:i], Type: Number, Pos: start})
			continue
		}

		// Identifier or keyword
		if isIdentStart(rune(c)) || c >= utf8.RuneSelf {
			start := i
			for i < len(input) {
				r, size := utf8.DecodeRuneInString(input[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			emit(Token{Value: input[start:i], Type: Ident, Pos: start})
			continue
		}

		// Multi-character operator
		matched := false
		for _, op := range operators {
			if strings.HasPrefix(input[i:], op) {
				emit(Token{Value: op, Type: Punct, Pos: i})
				i += len(op)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		emit(Token{Value: input[i : i+1], Type: Punct, Pos: i})
		i++
	}

	return tokens
}

// lexTemplate consumes a template chunk starting at the backquote or closing
// brace at pos. It returns the raw chunk, the index after it, and the number
// of newlines consumed. A rest of -1 means the chunk ended at `${` and
// interpolation tokens follow.
func lexTemplate(input string, pos int) (chunk string, rest int, lines int) {
	i := pos + 1
	for i < len(input) {
		switch input[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			lines++
		case '`':
			return input[pos : i+1], i + 1, lines
		case '$':
			if i+1 < len(input) && input[i+1] == '{' {
				return input[pos : i+2], -1, lines
			}
		}
		i++
	}
	return input[pos:], len(input), lines
}

// posAfterTemplateHead finds the index just past the `${` that ended the
// chunk starting at pos.
func posAfterTemplateHead(input string, pos int) int {
	i := pos + 1
	for i < len(input) {
		switch input[i] {
		case '\\':
			i += 2
			continue
		case '$':
			if i+1 < len(input) && input[i+1] == '{' {
				return i + 2
			}
		}
		i++
	}
	return len(input)
}

// lexString consumes a quoted string starting at pos and returns its decoded
// value without quotes.
func lexString(input string, pos int) (value string, rest int, lines int) {
	quote := input[pos]
	var b strings.Builder
	i := pos + 1
	for i < len(input) {
		c := input[i]
		if c == '\\' && i+1 < len(input) {
			next := input[i+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\n':
				lines++
			default:
				b.WriteByte(next)
			}
			i += 2
			continue
		}
		if c == quote {
			return b.String(), i + 1, lines
		}
		if c == '\n' {
			lines++
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), len(input), lines
}

// lexRegex consumes a regex literal. Reports ok=false when the slash turns
// out not to open one (comment handling happens before this is called).
func lexRegex(input string, pos int) (value string, rest int, ok bool) {
	i := pos + 1
	inClass := false
	for i < len(input) {
		c := input[i]
		switch {
		case c == '\\':
			i += 2
			continue
		case c == '\n':
			return "", pos, false
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			i++
			for i < len(input) && isIdentPart(rune(input[i])) {
				i++
			}
			return input[pos:i], i, true
		}
		i++
	}
	return "", pos, false
}

// regexAllowed applies the previous-token heuristic: a slash opens a regex
// when it cannot be a division operator.
func regexAllowed(tokens []Token) bool {
	if len(tokens) == 0 {
		return true
	}
	prev := tokens[len(tokens)-1]
	switch prev.Type {
	case Ident:
		return regexPrecedingKeywords[prev.Value]
	case Number, String, Template, Regex:
		return false
	case Punct:
		switch prev.Value {
		case ")", "]", "}", "++", "--":
			return false
		}
		return true
	}
	return true
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNumberChar(c byte) bool {
	return c >= '0' && c <= '9' || c == '.' || c == 'x' || c == 'X' ||
		c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' ||
		c == 'o' || c == 'O' || c == '_' || c == 'n'
}
