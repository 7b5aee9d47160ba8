// Package completion turns a cursor position into a completion context and,
// given the workspace index, the candidate items for that context.
package completion

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phpls/pkg/model"
	"phpls/pkg/resolve"
)

// Kind discriminates the situations completion can be triggered in.
type Kind int

const (
	KindNone Kind = iota
	// KindMemberAccess follows `->`: instance methods and properties.
	KindMemberAccess
	// KindStaticAccess follows `::`: static methods, properties, and class constants.
	KindStaticAccess
	// KindVariable follows `$`: local variables and parameters.
	KindVariable
	// KindNamespace follows `\`: namespace/class-path completion.
	KindNamespace
	// KindUseStatement is inside a `use` clause.
	KindUseStatement
	// KindFree is anywhere else: class names, function names, keywords.
	KindFree
)

// Context is the detected completion situation at a cursor position.
type Context struct {
	Kind Kind

	// Prefix is the partial word typed so far, for Variable/Namespace/
	// UseStatement/Free. Unused for MemberAccess/StaticAccess.
	Prefix string

	// ObjectExpr is the receiver text for MemberAccess (e.g. "$this", "$foo").
	ObjectExpr string
	// ClassExpr is the class name/expression text for StaticAccess (e.g. "self", "Foo").
	ClassExpr string
	// ClassFQN is the resolved class FQN for StaticAccess, or the receiver
	// type a caller inferred for MemberAccess.
	ClassFQN string
}

// Detect determines what kind of completion is appropriate at (line, character).
func Detect(tree *sitter.Tree, source []byte, line, character int, fs *model.FileSymbols) Context {
	root := tree.RootNode()
	point := sitter.Point{Row: uint32(line), Column: uint32(character)}
	node := root.NamedDescendantForPointRange(point, point)

	lineText := sourceLine(source, line)
	cutAt := character
	if cutAt > len(lineText) {
		cutAt = len(lineText)
	}
	textBefore := lineText[:cutAt]

	if ctx, ok := checkMemberAccess(textBefore, node, source); ok {
		return ctx
	}
	if ctx, ok := checkStaticAccess(textBefore, fs); ok {
		return ctx
	}
	if ctx, ok := checkVariableAccess(textBefore); ok {
		return ctx
	}
	if ctx, ok := checkUseContext(node, source); ok {
		return ctx
	}
	if ctx, ok := checkNamespaceAccess(textBefore); ok {
		return ctx
	}

	prefix := extractWordBeforeCursor(textBefore)
	if prefix == "" {
		if isTypeHintPosition(node) {
			return Context{Kind: KindFree, Prefix: ""}
		}
		return Context{Kind: KindNone}
	}
	return Context{Kind: KindFree, Prefix: prefix}
}

func sourceLine(source []byte, line int) string {
	start := 0
	current := 0
	for i, b := range source {
		if current == line {
			start = i
			break
		}
		if b == '\n' {
			current++
			start = i + 1
		}
	}
	if current < line {
		return ""
	}
	end := start
	for end < len(source) && source[end] != '\n' {
		end++
	}
	return string(source[start:end])
}

func checkMemberAccess(textBefore string, node *sitter.Node, source []byte) (Context, bool) {
	trimmed := strings.TrimRight(textBefore, " \t")
	arrowPos := strings.LastIndex(trimmed, "->")
	if arrowPos < 0 {
		return Context{}, false
	}
	afterArrow := trimmed[arrowPos+2:]
	if !isIdentPrefix(afterArrow) {
		return Context{}, false
	}

	beforeArrow := strings.TrimRight(trimmed[:arrowPos], " \t")
	var objectExpr string
	if beforeArrow != "" {
		objectExpr = extractTrailingExpr(beforeArrow)
	} else if obj, ok := findObjectInCST(node, source); ok {
		objectExpr = obj
	} else {
		objectExpr = "$this"
	}

	return Context{Kind: KindMemberAccess, ObjectExpr: objectExpr}, true
}

func checkStaticAccess(textBefore string, fs *model.FileSymbols) (Context, bool) {
	trimmed := strings.TrimRight(textBefore, " \t")
	colonPos := strings.LastIndex(trimmed, "::")
	if colonPos < 0 {
		return Context{}, false
	}
	afterColons := trimmed[colonPos+2:]
	if !isIdentOrDollarPrefix(afterColons) {
		return Context{}, false
	}

	beforeColons := strings.TrimRight(trimmed[:colonPos], " \t")
	classExpr := extractTrailingExpr(beforeColons)
	classFQN := resolve.ResolveClassName(classExpr, fs)

	return Context{Kind: KindStaticAccess, ClassExpr: classExpr, ClassFQN: classFQN}, true
}

func checkVariableAccess(textBefore string) (Context, bool) {
	trimmed := strings.TrimRight(textBefore, " \t")
	dollarPos := strings.LastIndex(trimmed, "$")
	if dollarPos < 0 {
		return Context{}, false
	}
	afterDollar := trimmed[dollarPos+1:]
	if !isIdentPrefix(afterDollar) {
		return Context{}, false
	}

	beforeDollar := trimmed[:dollarPos]
	if len(beforeDollar) > 0 {
		last := beforeDollar[len(beforeDollar)-1]
		if isIdentByte(last) {
			return Context{}, false
		}
	}
	return Context{Kind: KindVariable, Prefix: afterDollar}, true
}

func checkNamespaceAccess(textBefore string) (Context, bool) {
	trimmed := strings.TrimRight(textBefore, " \t")
	bsPos := strings.LastIndex(trimmed, `\`)
	if bsPos < 0 {
		return Context{}, false
	}
	afterBS := trimmed[bsPos+1:]
	if !isIdentPrefix(afterBS) {
		return Context{}, false
	}

	wordStart := 0
	for i := bsPos - 1; i >= 0; i-- {
		c := trimmed[i]
		if !isIdentByte(c) && c != '\\' {
			wordStart = i + 1
			break
		}
	}
	return Context{Kind: KindNamespace, Prefix: trimmed[wordStart:]}, true
}

func checkUseContext(node *sitter.Node, source []byte) (Context, bool) {
	for n := node; n != nil; n = n.Parent() {
		if n.Type() == "namespace_use_declaration" || n.Type() == "namespace_use_clause" {
			text := string(source[n.StartByte():n.EndByte()])
			prefix := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "use"))
			return Context{Kind: KindUseStatement, Prefix: prefix}, true
		}
	}
	return Context{}, false
}

func extractTrailingExpr(text string) string {
	i := len(text)
	for i > 0 && isExprByte(text[i-1]) {
		i--
	}
	return text[i:]
}

func findObjectInCST(node *sitter.Node, source []byte) (string, bool) {
	for n := node; n != nil; n = n.Parent() {
		if n.Type() == "member_access_expression" || n.Type() == "member_call_expression" {
			if obj := n.ChildByFieldName("object"); obj != nil {
				return string(source[obj.StartByte():obj.EndByte()]), true
			}
		}
	}
	return "", false
}

func extractWordBeforeCursor(textBefore string) string {
	i := len(textBefore)
	for i > 0 && isIdentByte(textBefore[i-1]) {
		i--
	}
	return textBefore[i:]
}

func isTypeHintPosition(node *sitter.Node) bool {
	for n := node; n != nil; n = n.Parent() {
		switch n.Type() {
		case "named_type", "optional_type", "union_type", "intersection_type",
			"simple_parameter", "property_declaration":
			return true
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isExprByte(c byte) bool {
	return isIdentByte(c) || c == '$'
}

func isIdentPrefix(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isIdentOrDollarPrefix(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) && s[i] != '$' {
			return false
		}
	}
	return true
}
