package scan

import (
	"github.com/wippyai/esm-bundler/ast"
)

// Analyze scans JavaScript source and produces the module facts the graph
// consumes: import and export records, dynamic import call sites, and
// top-level statements with their declared names, referenced names, and a
// side-effect verdict.
//
// The analysis is deliberately coarse. Statements are split on semicolons,
// closing braces of block-bodied statements, and newline boundaries where a
// statement keyword follows. Referenced names over-approximate: extra names
// cost precision, never correctness, because unknown names resolve to
// nothing. Side effects are inferred per statement: declarations are pure
// unless an initializer calls, constructs, awaits, or mutates at load time;
// everything else is assumed observable. Function and class bodies are
// deferred work and do not count against the declaring statement.
func Analyze(code string) *ast.ModuleFacts {
	s := &scanner{
		toks:  Tokenize(code),
		code:  code,
		facts: &ast.ModuleFacts{Code: code},
		seen:  make(map[string]bool),
	}
	s.run()
	return s.facts
}

type scanner struct {
	toks  []Token
	code  string
	facts *ast.ModuleFacts
	seen  map[string]bool // import sources already recorded
}

func (s *scanner) run() {
	s.scanDynamicImports()
	i := 0
	for i < len(s.toks) {
		j := s.statementEnd(i)
		if j <= i {
			j = i + 1
		}
		s.parseStatement(i, j)
		i = j
	}
	// Statements cover the source contiguously so any call-site offset maps
	// to the statement spanning it.
	for idx, st := range s.facts.Statements {
		if idx+1 < len(s.facts.Statements) {
			st.End = s.facts.Statements[idx+1].Pos
		} else {
			st.End = len(s.code)
		}
	}
}

// scanDynamicImports records every import() call site in the token stream,
// at any nesting depth. A single string literal argument yields a static
// specifier; anything else is a runtime expression.
func (s *scanner) scanDynamicImports() {
	for k := 0; k+1 < len(s.toks); k++ {
		t := s.toks[k]
		if t.Type != Ident || t.Value != "import" || s.toks[k+1].Value != "(" {
			continue
		}
		spec := ""
		if k+3 < len(s.toks) && s.toks[k+2].Type == String && s.toks[k+3].Value == ")" {
			spec = s.toks[k+2].Value
		}
		s.facts.DynamicImports = append(s.facts.DynamicImports, ast.DynamicImport{
			Specifier: spec,
			Pos:       t.Pos,
		})
	}
}

// statementEnd returns the token index one past the statement starting at
// start. Statements end at a top-level semicolon, at the closing brace of a
// block-bodied statement, or at a newline followed by a statement keyword.
func (s *scanner) statementEnd(start int) int {
	depth := 0
	block := s.blockBodied(start)
	k := start
	for k < len(s.toks) {
		t := s.toks[k]
		switch t.Value {
		case "(", "[", "{":
			depth++
		case ")", "]":
			depth--
		case "}":
			depth--
			if depth <= 0 && block {
				if k+1 < len(s.toks) {
					switch s.toks[k+1].Value {
					case "else", "catch", "finally", "while", "from":
						// Continuation of the same statement; "from"
						// covers `export { ... } from "src"`.
						k++
						continue
					case ";":
						return k + 2
					}
				}
				return k + 1
			}
		case ";":
			if depth <= 0 {
				return k + 1
			}
		}
		if depth <= 0 && k+1 < len(s.toks) {
			next := s.toks[k+1]
			if next.Line > t.Line && canEndStatement(t) && canStartStatement(next) {
				return k + 1
			}
		}
		k++
	}
	return len(s.toks)
}

// blockBodied reports whether the statement starting at k ends at its
// closing brace rather than a semicolon.
func (s *scanner) blockBodied(k int) bool {
	for k < len(s.toks) {
		switch v := s.toks[k].Value; v {
		case "export", "default", "async":
			k++
		case "{", "if", "for", "while", "do", "switch", "try", "function", "class":
			return true
		default:
			return false
		}
	}
	return false
}

func canEndStatement(t Token) bool {
	if t.Type != Punct {
		return true
	}
	switch t.Value {
	case "}", ")", "]", ";", "++", "--":
		return true
	}
	return false
}

func canStartStatement(t Token) bool {
	if t.Type != Ident {
		return false
	}
	switch t.Value {
	case "import", "export", "const", "let", "var", "function", "class",
		"async", "return", "throw", "if", "for", "while", "do", "switch",
		"try", "break", "continue", "debugger":
		return true
	}
	return false
}

func (s *scanner) parseStatement(start, end int) {
	first := s.toks[start]
	if first.Type == Ident {
		switch first.Value {
		case "import":
			// import( and import.meta are expressions, not declarations.
			if start+1 < end && s.toks[start+1].Value != "(" && s.toks[start+1].Value != "." {
				if s.parseImport(start, end) {
					return
				}
			}
		case "export":
			if s.parseExport(start, end) {
				return
			}
		}
	}
	s.parseGeneric(start, end)
}

// emit finalizes a statement's position and appends it.
func (s *scanner) emit(start, end int, st *ast.Statement) {
	st.Pos = s.toks[start].Pos
	last := s.toks[end-1]
	st.End = last.Pos + len(last.Value)
	s.facts.Statements = append(s.facts.Statements, st)
}

func (s *scanner) addSource(src string) {
	if s.seen[src] {
		return
	}
	s.seen[src] = true
	s.facts.ImportSources = append(s.facts.ImportSources, src)
}

// parseImport handles import declarations: bare, default, named, namespace,
// and combinations. Returns false on a malformed declaration so the caller
// can fall back to treating it as an ordinary statement.
func (s *scanner) parseImport(start, end int) bool {
	pos := s.toks[start].Pos
	var recs []ast.ImportRecord
	source := ""
	k := start + 1
	for k < end {
		t := s.toks[k]
		if t.Type == String {
			source = t.Value
			break
		}
		switch {
		case t.Value == "*":
			if k+2 < end && s.toks[k+1].Value == "as" {
				recs = append(recs, ast.ImportRecord{Imported: "*", Local: s.toks[k+2].Value, Pos: pos})
				k += 3
				continue
			}
		case t.Value == "{":
			pairs, next := s.parseNameList(k, end)
			for _, p := range pairs {
				recs = append(recs, ast.ImportRecord{Imported: p.name, Local: p.alias, Pos: pos})
			}
			k = next
			continue
		case t.Type == Ident && t.Value != "from":
			recs = append(recs, ast.ImportRecord{Imported: "default", Local: t.Value, Pos: pos})
		}
		k++
	}
	if source == "" {
		return false
	}
	declares := make([]string, 0, len(recs))
	for i := range recs {
		recs[i].Source = source
		declares = append(declares, recs[i].Local)
	}
	s.facts.Imports = append(s.facts.Imports, recs...)
	s.addSource(source)
	s.emit(start, end, &ast.Statement{Declares: declares, IsImport: true})
	return true
}

// parseExport handles every export form. Returns false on a malformed
// declaration.
func (s *scanner) parseExport(start, end int) bool {
	if start+1 >= end {
		return false
	}
	pos := s.toks[start].Pos
	t := s.toks[start+1]
	switch {
	case t.Value == "*":
		ns := ""
		k := start + 2
		if k+1 < end && s.toks[k].Value == "as" {
			ns = s.toks[k+1].Value
			k += 2
		}
		source := s.stringAfterFrom(k, end)
		if source == "" {
			return false
		}
		if ns != "" {
			s.facts.Exports = append(s.facts.Exports, ast.ExportRecord{
				Exported: ns, Local: "*", Source: source, Pos: pos,
			})
		} else {
			s.facts.ExportAllSources = append(s.facts.ExportAllSources, source)
		}
		s.addSource(source)
		s.emit(start, end, &ast.Statement{IsImport: true})
		return true

	case t.Value == "{":
		pairs, next := s.parseNameList(start+1, end)
		source := s.stringAfterFrom(next, end)
		if source != "" {
			for _, p := range pairs {
				s.facts.Exports = append(s.facts.Exports, ast.ExportRecord{
					Exported: p.alias, Local: p.name, Source: source, Pos: pos,
				})
			}
			s.addSource(source)
			s.emit(start, end, &ast.Statement{IsImport: true})
			return true
		}
		reads := make([]string, 0, len(pairs))
		for _, p := range pairs {
			s.facts.Exports = append(s.facts.Exports, ast.ExportRecord{
				Exported: p.alias, Local: p.name, Pos: pos,
			})
			reads = append(reads, p.name)
		}
		s.emit(start, end, &ast.Statement{Reads: reads})
		return true

	case t.Value == "default":
		rest := start + 2
		if rest >= end {
			return false
		}
		declares := []string{ast.DefaultName}
		head := rest
		if s.toks[head].Value == "async" && head+1 < end && s.toks[head+1].Value == "function" {
			head++
		}
		isDecl := s.toks[head].Value == "function" || s.toks[head].Value == "class"
		if isDecl {
			j := head + 1
			if j < end && s.toks[j].Value == "*" {
				j++
			}
			if j < end && s.toks[j].Type == Ident && s.toks[j].Value != "extends" {
				declares = append(declares, s.toks[j].Value)
			}
		}
		s.facts.Exports = append(s.facts.Exports, ast.ExportRecord{
			Exported: "default", Local: ast.DefaultName, Pos: pos,
		})
		s.emit(start, end, &ast.Statement{
			Declares:    declares,
			Reads:       s.readsIn(rest, end, declares),
			SideEffects: !isDecl && s.hasEffects(rest, end),
		})
		return true

	case t.Type == Ident:
		names := s.declaredBy(start+1, end)
		if len(names) == 0 {
			return false
		}
		for _, n := range names {
			s.facts.Exports = append(s.facts.Exports, ast.ExportRecord{
				Exported: n, Local: n, Pos: pos,
			})
		}
		s.emit(start, end, &ast.Statement{
			Declares:    names,
			Reads:       s.readsIn(start+1, end, names),
			SideEffects: s.hasEffects(start+1, end),
		})
		return true
	}
	return false
}

func (s *scanner) parseGeneric(start, end int) {
	first := s.toks[start]
	isDecl := false
	if first.Type == Ident {
		switch first.Value {
		case "const", "let", "var", "function", "class":
			isDecl = true
		case "async":
			isDecl = start+1 < end && s.toks[start+1].Value == "function"
		}
	}
	var declares []string
	effects := true
	if isDecl {
		declares = s.declaredBy(start, end)
		effects = s.hasEffects(start, end)
	} else {
		// var hoists out of blocks to module scope.
		meaningful := false
		for k := start; k < end; k++ {
			if s.toks[k].Value != ";" {
				meaningful = true
			}
			if s.toks[k].Type == Ident && s.toks[k].Value == "var" {
				declares = append(declares, s.bindingNames(k+1, end)...)
			}
		}
		effects = meaningful
	}
	s.emit(start, end, &ast.Statement{
		Declares:    declares,
		Reads:       s.readsIn(start, end, declares),
		SideEffects: effects,
	})
}

type namePair struct {
	name  string // name on the remote side, or the local binding
	alias string // binding (imports) or exported name (exports)
}

// parseNameList parses a braced specifier list `{ a, b as c }` starting at
// the opening brace, returning the pairs and the index past the close.
func (s *scanner) parseNameList(k, end int) ([]namePair, int) {
	var pairs []namePair
	k++
	for k < end {
		t := s.toks[k]
		if t.Value == "}" {
			return pairs, k + 1
		}
		if t.Type == Ident || t.Type == String {
			p := namePair{name: t.Value, alias: t.Value}
			if k+2 < end && s.toks[k+1].Value == "as" {
				p.alias = s.toks[k+2].Value
				k += 2
			}
			pairs = append(pairs, p)
		}
		k++
	}
	return pairs, k
}

// stringAfterFrom scans for `from "source"` and returns the source, or "".
func (s *scanner) stringAfterFrom(k, end int) string {
	for ; k < end; k++ {
		if s.toks[k].Type == Ident && s.toks[k].Value == "from" {
			if k+1 < end && s.toks[k+1].Type == String {
				return s.toks[k+1].Value
			}
			return ""
		}
	}
	return ""
}

// declaredBy returns the module-scope names bound by a declaration whose
// keyword sits at k: const/let/var declarator lists including destructuring
// patterns, or the name of a function or class declaration.
func (s *scanner) declaredBy(k, end int) []string {
	if k >= end {
		return nil
	}
	t := s.toks[k]
	if t.Value == "async" && k+1 < end && s.toks[k+1].Value == "function" {
		k++
		t = s.toks[k]
	}
	switch t.Value {
	case "function", "class":
		j := k + 1
		if j < end && s.toks[j].Value == "*" {
			j++
		}
		if j < end && s.toks[j].Type == Ident && s.toks[j].Value != "extends" {
			return []string{s.toks[j].Value}
		}
		return nil
	case "const", "let", "var":
		return s.bindingNames(k+1, end)
	}
	return nil
}

// bindingNames collects the names bound by a declarator list starting just
// past the declaration keyword. Object pattern keys and initializer
// expressions contribute nothing; `for (var x of y)` stops at the of/in.
func (s *scanner) bindingNames(k, end int) []string {
	var names []string
	depth := 0
	initDepth := -1 // >= 0 while skipping an initializer or default value
	for ; k < end; k++ {
		t := s.toks[k]
		if initDepth >= 0 {
			switch t.Value {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if depth < initDepth {
					initDepth = -1
					if depth < 0 {
						return names
					}
				}
			case ",":
				if depth == initDepth {
					initDepth = -1
				}
			case ";":
				if depth == 0 {
					return names
				}
			}
			continue
		}
		switch {
		case t.Value == "{" || t.Value == "[":
			depth++
		case t.Value == "}" || t.Value == "]":
			depth--
			if depth < 0 {
				return names
			}
		case t.Value == ")":
			return names
		case t.Value == "=" || t.Value == "=>":
			initDepth = depth
		case t.Value == ";":
			if depth == 0 {
				return names
			}
		case t.Type == Ident:
			if depth == 0 && (t.Value == "of" || t.Value == "in") {
				return names
			}
			if jsReserved[t.Value] {
				continue
			}
			// An ident followed by ':' is an object pattern key; the
			// binding is on the right of the colon.
			if k+1 < end && s.toks[k+1].Value == ":" {
				continue
			}
			names = append(names, t.Value)
		}
	}
	return names
}

// readsIn collects identifiers referenced between start and end, skipping
// reserved words, property accesses, object literal keys, and the names in
// declares. Order is first appearance, deduplicated.
func (s *scanner) readsIn(start, end int, declares []string) []string {
	skip := make(map[string]bool, len(declares))
	for _, d := range declares {
		skip[d] = true
	}
	var reads []string
	seen := make(map[string]bool)
	for k := start; k < end; k++ {
		t := s.toks[k]
		if t.Type != Ident || jsReserved[t.Value] || t.Value == "undefined" {
			continue
		}
		if k > start {
			prev := s.toks[k-1].Value
			if prev == "." || prev == "?." {
				continue
			}
			if k+1 < end && s.toks[k+1].Value == ":" && (prev == "{" || prev == ",") {
				continue
			}
		}
		if skip[t.Value] || seen[t.Value] {
			continue
		}
		seen[t.Value] = true
		reads = append(reads, t.Value)
	}
	return reads
}

// hasEffects reports whether executing the tokens in [k, end) is observable
// at module load: calls, construction, await, delete, throw, increment.
// Function bodies, class bodies, and arrow bodies are deferred and skipped;
// a class extends clause still executes and is scanned. Calls annotated
// pure are exempt.
func (s *scanner) hasEffects(k, end int) bool {
	for k < end {
		t := s.toks[k]
		switch {
		case t.Type == Ident && t.Value == "function":
			k = s.skipFunction(k, end)
			continue
		case t.Type == Ident && t.Value == "class":
			body := s.classBodyStart(k+1, end)
			if s.hasEffects(k+1, body) {
				return true
			}
			k = s.skipBalanced(body, end, "{", "}")
			continue
		case t.Value == "=>":
			k = s.skipArrowBody(k+1, end)
			continue
		case t.Value == "(":
			if k > 0 && callable(s.toks[k-1]) && !s.toks[k-1].Pure {
				return true
			}
		case t.Type == Template:
			// Tagged templates are calls.
			if k > 0 && callable(s.toks[k-1]) && !s.toks[k-1].Pure {
				return true
			}
		case t.Type == Ident && t.Value == "new":
			if !t.Pure {
				return true
			}
		case t.Type == Ident && t.Value == "import":
			// A dynamic import in an initializer starts a load.
			if k+1 < end && s.toks[k+1].Value == "(" && !t.Pure {
				return true
			}
		case t.Type == Ident && (t.Value == "await" || t.Value == "delete" ||
			t.Value == "throw" || t.Value == "yield"):
			return true
		case t.Value == "++" || t.Value == "--":
			return true
		}
		k++
	}
	return false
}

// callable reports whether a call following tok is a real invocation rather
// than control-flow syntax like if(...) or a grouping paren. "async" is
// excluded: `async (x) =>` parses as a call head but defines an arrow.
func callable(t Token) bool {
	if t.Type == Ident {
		return !jsReserved[t.Value] && t.Value != "async"
	}
	return t.Value == ")" || t.Value == "]"
}

// skipFunction advances past a function keyword, its parameter list, and
// its body.
func (s *scanner) skipFunction(k, end int) int {
	j := k + 1
	for j < end && s.toks[j].Value != "(" {
		j++
	}
	j = s.skipBalanced(j, end, "(", ")")
	for j < end && s.toks[j].Value != "{" {
		j++
	}
	return s.skipBalanced(j, end, "{", "}")
}

// classBodyStart returns the index of the brace opening a class body,
// skipping the name and any extends expression.
func (s *scanner) classBodyStart(k, end int) int {
	depth := 0
	for ; k < end; k++ {
		switch s.toks[k].Value {
		case "(", "[":
			depth++
		case ")", "]":
			depth--
		case "{":
			if depth == 0 {
				return k
			}
			depth++
		case "}":
			depth--
		}
	}
	return end
}

// skipArrowBody advances past an arrow function body starting just after
// the arrow: a braced block, or an expression ending at a comma or
// semicolon at the arrow's own depth.
func (s *scanner) skipArrowBody(k, end int) int {
	if k < end && s.toks[k].Value == "{" {
		return s.skipBalanced(k, end, "{", "}")
	}
	depth := 0
	for ; k < end; k++ {
		switch s.toks[k].Value {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth < 0 {
				return k
			}
		case ",", ";":
			if depth == 0 {
				return k
			}
		}
	}
	return k
}

// skipBalanced advances past a balanced pair starting at the open token at
// k, returning the index one past the matching close.
func (s *scanner) skipBalanced(k, end int, open, close string) int {
	if k >= end || s.toks[k].Value != open {
		if k >= end {
			return end
		}
		return k + 1
	}
	depth := 0
	for ; k < end; k++ {
		switch s.toks[k].Value {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return k + 1
			}
		}
	}
	return end
}

// jsReserved holds words that can never be identifiers in module code.
// Contextual keywords (of, as, from, async, get, set) are deliberately
// absent: they are legal binding names, and counting them as reads is
// harmless noise while missing a real read would drop live code.
var jsReserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "let": true, "static": true,
	"yield": true, "await": true,
}
