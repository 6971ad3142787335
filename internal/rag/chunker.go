package rag

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
)

// Language is a source language recognized by the indexer.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangMarkdown   Language = "markdown"
	LangText       Language = "text"
)

var languageByExt = map[string]Language{
	".go":       LangGo,
	".py":       LangPython,
	".js":       LangJavaScript,
	".jsx":      LangJavaScript,
	".mjs":      LangJavaScript,
	".cjs":      LangJavaScript,
	".ts":       LangTypeScript,
	".tsx":      LangTypeScript,
	".rs":       LangRust,
	".java":     LangJava,
	".c":        LangC,
	".h":        LangC,
	".cpp":      LangCPP,
	".cc":       LangCPP,
	".hpp":      LangCPP,
	".rb":       LangRuby,
	".php":      LangPHP,
	".md":       LangMarkdown,
	".markdown": LangMarkdown,
	".txt":      LangText,
	".rst":      LangText,
}

// DetectLanguage maps a file name to its language by extension. It returns
// "" for files the indexer does not read.
func DetectLanguage(path string) Language {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// IsCode reports whether l is a programming language rather than prose.
func (l Language) IsCode() bool {
	return l != "" && l != LangMarkdown && l != LangText
}

// Chunk is one indexed region of a file: a symbol for code, a window of
// lines otherwise. Lines are 1-based and inclusive.
type Chunk struct {
	Name      string
	Kind      string
	Parent    string
	Signature string
	Content   string
	Path      string
	Language  Language
	StartLine int
	EndLine   int
}

// DisplayName qualifies the symbol with its parent.
func (c Chunk) DisplayName() string {
	if c.Parent != "" {
		return c.Parent + "." + c.Name
	}
	return c.Name
}

// Lines returns how many lines the chunk spans.
func (c Chunk) Lines() int { return c.EndLine - c.StartLine + 1 }

// Document renders the chunk with a locating header. The id is derived from
// path, span and symbol, so indexing a file again replaces its chunks.
func (c Chunk) Document() Document {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s `%s`\n", c.Kind, c.DisplayName())
	fmt.Fprintf(&sb, "File: %s:%d-%d\n", c.Path, c.StartLine, c.EndLine)
	if c.Signature != "" {
		fmt.Fprintf(&sb, "\nSignature: `%s`\n", c.Signature)
	}
	sb.WriteString("\n```" + string(c.Language) + "\n")
	sb.WriteString(c.Content)
	if !strings.HasSuffix(c.Content, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString("```\n")

	source := SourceFile
	if c.Language.IsCode() {
		source = SourceCode
	}
	doc := NewDocument(sb.String())
	doc.ID = chunkID(c)
	doc.Source = source
	doc.Metadata = map[string]any{
		"path":       c.Path,
		"language":   string(c.Language),
		"kind":       c.Kind,
		"symbol":     c.DisplayName(),
		"start_line": c.StartLine,
		"end_line":   c.EndLine,
	}
	return *doc
}

// maxChunkLines caps a single symbol chunk.
const maxChunkLines = 200

// ChunkSource splits src into chunks. Code is cut at symbol boundaries; prose
// and code without recognizable symbols fall back to windows of
// windowLines lines.
func ChunkSource(path string, src []byte, lang Language, windowLines int) []Chunk {
	if windowLines <= 0 {
		windowLines = DefaultChunkLines
	}
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var chunks []Chunk
	switch lang {
	case LangGo:
		chunks = goChunks(path, text)
		if chunks == nil {
			chunks = braceChunks(path, lines, lang)
		}
	case LangPython, LangRuby:
		chunks = indentChunks(path, lines, lang)
	case LangJavaScript, LangTypeScript, LangRust, LangJava, LangC, LangCPP, LangPHP:
		chunks = braceChunks(path, lines, lang)
	}
	if len(chunks) == 0 {
		chunks = windowChunks(path, lines, lang, windowLines)
	}
	return chunks
}

// goChunks uses the Go parser. It returns nil when the file does not parse.
func goChunks(path, src string) []Chunk {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil
	}

	var chunks []Chunk
	add := func(node ast.Node, doc *ast.CommentGroup, name, kind, parent, sig string) {
		start := node.Pos()
		if doc != nil {
			start = doc.Pos()
		}
		from, to := fset.Position(start), fset.Position(node.End())
		chunks = append(chunks, Chunk{
			Name:      name,
			Kind:      kind,
			Parent:    parent,
			Signature: sig,
			Content:   src[from.Offset:to.Offset],
			Path:      path,
			Language:  LangGo,
			StartLine: from.Line,
			EndLine:   to.Line,
		})
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			kind, parent := "function", ""
			if d.Recv != nil && len(d.Recv.List) > 0 {
				kind, parent = "method", receiverName(d.Recv.List[0].Type)
			}
			sigEnd := d.Type.End()
			sig := src[fset.Position(d.Pos()).Offset:fset.Position(sigEnd).Offset]
			add(d, d.Doc, d.Name.Name, kind, parent, sig)
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				kind := "type"
				switch ts.Type.(type) {
				case *ast.StructType:
					kind = "struct"
				case *ast.InterfaceType:
					kind = "interface"
				}
				doc := ts.Doc
				var node ast.Node = ts
				if len(d.Specs) == 1 {
					doc, node = d.Doc, d
				}
				add(node, doc, ts.Name.Name, kind, "", "")
			}
		}
	}
	return chunks
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

type symbolPattern struct {
	re   *regexp.Regexp
	kind string
}

func patterns(kinds ...string) []symbolPattern {
	out := make([]symbolPattern, 0, len(kinds)/2)
	for i := 0; i+1 < len(kinds); i += 2 {
		out = append(out, symbolPattern{re: regexp.MustCompile(kinds[i]), kind: kinds[i+1]})
	}
	return out
}

// Each pattern is matched against a single line and captures the name.
var symbolPatterns = map[Language][]symbolPattern{
	LangGo: patterns(
		`^func\s+(?:\([^)]*\)\s*)?(\w+)\s*[\[(]`, "function",
		`^type\s+(\w+)\s+struct\b`, "struct",
		`^type\s+(\w+)\s+interface\b`, "interface",
	),
	LangPython: patterns(
		`^\s*(?:async\s+)?def\s+(\w+)\s*\(`, "function",
		`^\s*class\s+(\w+)`, "class",
	),
	LangRuby: patterns(
		`^\s*def\s+(?:self\.)?(\w+[?!]?)`, "method",
		`^\s*class\s+(\w+)`, "class",
		`^\s*module\s+(\w+)`, "module",
	),
	LangJavaScript: patterns(
		`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`, "function",
		`^\s*(?:export\s+)?(?:default\s+)?class\s+(\w+)`, "class",
		`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`, "function",
	),
	LangTypeScript: patterns(
		`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*[<(]`, "function",
		`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`, "class",
		`^\s*(?:export\s+)?interface\s+(\w+)`, "interface",
		`^\s*(?:export\s+)?type\s+(\w+)\s*(?:<[^>]*>)?\s*=`, "type",
		`^\s*(?:export\s+)?(?:const\s+)?enum\s+(\w+)`, "enum",
		`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*(?::[^=]+)?=>`, "function",
	),
	LangRust: patterns(
		`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+(\w+)`, "function",
		`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`, "struct",
		`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)`, "enum",
		`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`, "trait",
		`^\s*impl(?:<[^>]*>)?\s+(?:[\w:]+(?:<[^>]*>)?\s+for\s+)?(\w+)`, "impl",
		`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)\s*\{`, "module",
	),
	LangJava: patterns(
		`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized)\s+)*(?:<[^>]+>\s+)?[\w<>\[\],.]+\s+(\w+)\s*\([^;]*$`, "method",
		`^\s*(?:(?:public|private|protected|static|final|abstract)\s+)*class\s+(\w+)`, "class",
		`^\s*(?:(?:public|private|protected)\s+)?interface\s+(\w+)`, "interface",
		`^\s*(?:(?:public|private|protected)\s+)?enum\s+(\w+)`, "enum",
	),
	LangC: patterns(
		`^(?:[\w*]+\s+)+\**(\w+)\s*\([^;]*$`, "function",
		`^\s*(?:typedef\s+)?struct\s+(\w+)\s*\{`, "struct",
	),
	LangCPP: patterns(
		`^(?:[\w:*&<>]+\s+)+[*&]*([\w:~]+)\s*\([^;]*$`, "function",
		`^\s*(?:template\s*<[^>]*>\s*)?class\s+(\w+)[^;]*$`, "class",
		`^\s*struct\s+(\w+)[^;]*$`, "struct",
		`^\s*namespace\s+(\w+)`, "namespace",
	),
	LangPHP: patterns(
		`^\s*(?:(?:public|private|protected|static|abstract|final)\s+)*function\s+(\w+)\s*\(`, "function",
		`^\s*(?:(?:abstract|final)\s+)?class\s+(\w+)`, "class",
		`^\s*interface\s+(\w+)`, "interface",
		`^\s*trait\s+(\w+)`, "trait",
	),
}

// containerKinds hold other symbols, which take the container as parent.
var containerKinds = map[string]bool{
	"class": true, "struct": true, "impl": true, "trait": true,
	"interface": true, "module": true, "namespace": true,
}

func matchSymbol(lang Language, line string) (name, kind string, ok bool) {
	for _, p := range symbolPatterns[lang] {
		if m := p.re.FindStringSubmatch(line); m != nil {
			return m[1], p.kind, true
		}
	}
	return "", "", false
}

var controlWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "else": true, "do": true, "sizeof": true, "new": true,
}

// braceChunks finds symbol headers and extends each to its matching brace.
func braceChunks(path string, lines []string, lang Language) []Chunk {
	var chunks []Chunk
	for i, line := range lines {
		name, kind, ok := matchSymbol(lang, line)
		if !ok || controlWords[name] || controlWords[firstWord(line)] {
			continue
		}
		end := braceEnd(lines, i)
		chunks = append(chunks, newChunk(path, lines, lang, name, kind, i, end))
	}
	assignParents(chunks)
	return chunks
}

func firstWord(line string) string {
	f := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '('
	})
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// braceEnd returns the line closing the first block opened within a few
// lines of start, or start itself for declarations without a body.
func braceEnd(lines []string, start int) int {
	depth, opened := 0, false
	for i := start; i < len(lines); i++ {
		if !opened && i > start+3 {
			return start
		}
		line := stripStrings(lines[i])
		if !opened && strings.HasSuffix(strings.TrimSpace(line), ";") && !strings.Contains(line, "{") {
			return i
		}
		for _, r := range line {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return i
		}
	}
	return len(lines) - 1
}

var stringLiteral = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|//.*$`)

func stripStrings(line string) string {
	return stringLiteral.ReplaceAllString(line, `""`)
}

// indentChunks extends each header to the last line indented deeper than
// it. A closing "end" at the header's level belongs to the block.
func indentChunks(path string, lines []string, lang Language) []Chunk {
	var chunks []Chunk
	for i, line := range lines {
		name, kind, ok := matchSymbol(lang, line)
		if !ok {
			continue
		}
		indent := indentOf(line)
		end := i
		for j := i + 1; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				continue
			}
			if indentOf(lines[j]) <= indent {
				if lang == LangRuby && trimmed == "end" {
					end = j
				}
				break
			}
			end = j
		}
		chunks = append(chunks, newChunk(path, lines, lang, name, kind, i, end))
	}
	assignParents(chunks)
	return chunks
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func newChunk(path string, lines []string, lang Language, name, kind string, start, end int) Chunk {
	if end-start+1 > maxChunkLines {
		end = start + maxChunkLines - 1
	}
	return Chunk{
		Name:      name,
		Kind:      kind,
		Signature: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(lines[start]), "{")),
		Content:   strings.Join(lines[start:end+1], "\n"),
		Path:      path,
		Language:  lang,
		StartLine: start + 1,
		EndLine:   end + 1,
	}
}

// assignParents sets each chunk's parent to the innermost container whose
// span encloses it. Chunks are in start order.
func assignParents(chunks []Chunk) {
	for i := range chunks {
		for j := i - 1; j >= 0; j-- {
			p := chunks[j]
			if containerKinds[p.Kind] && p.StartLine < chunks[i].StartLine && p.EndLine >= chunks[i].EndLine {
				chunks[i].Parent = p.Name
				if chunks[i].Kind == "function" && p.Kind != "module" && p.Kind != "namespace" {
					chunks[i].Kind = "method"
				}
				break
			}
		}
	}
}

// windowChunks cuts lines into consecutive windows, skipping blank ones.
func windowChunks(path string, lines []string, lang Language, size int) []Chunk {
	var chunks []Chunk
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines)) - 1
		content := strings.Join(lines[start:end+1], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Name:      fmt.Sprintf("%s:%d-%d", filepath.Base(path), start+1, end+1),
			Kind:      "lines",
			Content:   content,
			Path:      path,
			Language:  lang,
			StartLine: start + 1,
			EndLine:   end + 1,
		})
	}
	return chunks
}
