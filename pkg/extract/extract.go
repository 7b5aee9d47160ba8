// Package extract walks a parsed PHP tree-sitter tree and produces the
// FileSymbols contribution documented in the workspace index's data model:
// every class-like, function, method, property, and constant declaration,
// plus the file's namespace and use-alias table.
package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phpls/pkg/docblock"
	"phpls/pkg/model"
)

// FileSymbols extracts every symbol declared in source, rooted at tree.
func FileSymbols(tree *sitter.Tree, source []byte, uri string) *model.FileSymbols {
	result := &model.FileSymbols{URI: uri}
	root := tree.RootNode()

	var currentNS string
	childCount := int(root.ChildCount())
	for i := 0; i < childCount; i++ {
		child := root.Child(i)
		if child.Type() == "namespace_definition" {
			ns := findNamespaceName(child, source)
			if ns != "" {
				result.Namespace = ns
			}
			currentNS = ns
			if body := child.ChildByFieldName("body"); body != nil {
				extractChildren(body, source, uri, result, currentNS)
			}
			continue
		}
		extractFromNode(child, source, uri, result, currentNS)
	}

	return result
}

func findNamespaceName(node *sitter.Node, source []byte) string {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child.Type() == "namespace_name" {
			return nodeText(child, source)
		}
	}
	return ""
}

func extractFromNode(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, ns string) {
	switch node.Type() {
	case "namespace_use_declaration":
		extractUseStatements(node, source, result)
	case "class_declaration":
		extractClassLike(node, source, uri, result, ns, model.KindClass)
	case "interface_declaration":
		extractClassLike(node, source, uri, result, ns, model.KindInterface)
	case "trait_declaration":
		extractClassLike(node, source, uri, result, ns, model.KindTrait)
	case "enum_declaration":
		extractClassLike(node, source, uri, result, ns, model.KindEnum)
	case "function_definition":
		extractFunction(node, source, uri, result, ns)
	case "const_declaration":
		extractGlobalConstants(node, source, uri, result, ns)
	case "function_call_expression":
		extractDefineCall(node, source, uri, result, ns)
		extractChildren(node, source, uri, result, ns)
	default:
		extractChildren(node, source, uri, result, ns)
	}
}

func extractChildren(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, ns string) {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		extractFromNode(node.Child(i), source, uri, result, ns)
	}
}

func extractUseStatements(node *sitter.Node, source []byte, result *model.FileSymbols) {
	kind := determineUseKind(node, source)
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		switch child.Type() {
		case "namespace_use_clause":
			extractSingleUseClause(child, source, result, kind)
		case "namespace_use_group":
			extractUseGroup(child, node, source, result, kind)
		}
	}
}

func extractSingleUseClause(clause *sitter.Node, source []byte, result *model.FileSymbols, kind model.UseKind) {
	var fqn, alias string
	sawAs := false

	count := int(clause.ChildCount())
	for i := 0; i < count; i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "qualified_name", "namespace_name", "name":
			if !sawAs {
				fqn = nodeText(child, source)
			} else {
				alias = nodeText(child, source)
			}
		case "as":
			sawAs = true
		case "namespace_aliasing_clause":
			if n := firstChildOfKind(child, "name"); n != nil {
				alias = nodeText(n, source)
			}
		}
	}

	if fqn == "" {
		return
	}
	result.Uses = append(result.Uses, model.UseStatement{
		FQN:   fqn,
		Alias: alias,
		Kind:  kind,
		Range: nodeRange(clause),
	})
}

func extractUseGroup(group, parent *sitter.Node, source []byte, result *model.FileSymbols, kind model.UseKind) {
	prefix := ""
	if p := parent.ChildByFieldName("prefix"); p != nil {
		prefix = nodeText(p, source)
	}

	count := int(group.ChildCount())
	for i := 0; i < count; i++ {
		child := group.Child(i)
		if child.Type() != "namespace_use_clause" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, source)
		fqn := name
		if prefix != "" {
			fqn = prefix + "\\" + name
		}
		alias := ""
		if a := child.ChildByFieldName("alias"); a != nil {
			alias = nodeText(a, source)
		}
		result.Uses = append(result.Uses, model.UseStatement{
			FQN:   fqn,
			Alias: alias,
			Kind:  kind,
			Range: nodeRange(child),
		})
	}
}

func determineUseKind(node *sitter.Node, source []byte) model.UseKind {
	text := nodeText(node, source)
	if strings.HasPrefix(text, "use function ") || strings.HasPrefix(text, "use function\t") {
		return model.UseFunction
	}
	if strings.HasPrefix(text, "use const ") || strings.HasPrefix(text, "use const\t") {
		return model.UseConstant
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function":
			return model.UseFunction
		case "const":
			return model.UseConstant
		case "namespace_use_clause", "namespace_use_group":
			return model.UseClass
		}
	}
	return model.UseClass
}

func extractClassLike(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, ns string, kind model.SymbolKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	fqn := makeFQN(ns, name)

	sym := model.Symbol{
		Name:           name,
		FQN:            fqn,
		Kind:           kind,
		URI:            uri,
		Range:          nodeRange(node),
		SelectionRange: nodeRange(nameNode),
		Visibility:     model.VisibilityPublic,
		Modifiers:      extractModifiers(node, source),
		Extends:        extractBaseClause(node, source),
		Implements:     extractInterfaceClause(node, source),
	}
	// Record extends/implements as FQNs, through the use-alias table and
	// then the current namespace, so the index can walk the hierarchy.
	for _, names := range [][]string{sym.Extends, sym.Implements} {
		for i, n := range names {
			head, rest, _ := strings.Cut(n, `\`)
			if fqn, ok := result.AliasFor(head, model.UseClass); ok && head != "" {
				names[i] = strings.TrimSuffix(fqn+`\`+rest, `\`)
			} else if head == "" {
				names[i] = rest
			} else {
				names[i] = makeFQN(ns, n)
			}
		}
	}
	attachDoc(&sym, node, source)
	result.Symbols = append(result.Symbols, sym)

	if body := node.ChildByFieldName("body"); body != nil {
		extractClassBody(body, source, uri, result, fqn)
		return
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		switch child.Type() {
		case "declaration_list", "enum_declaration_list", "class_body":
			extractClassBody(child, source, uri, result, fqn)
			return
		}
	}
}

func extractBaseClause(node *sitter.Node, source []byte) []string {
	return namesUnderKind(node, source, "base_clause")
}

func extractInterfaceClause(node *sitter.Node, source []byte) []string {
	return namesUnderKind(node, source, "class_interface_clause")
}

func namesUnderKind(node *sitter.Node, source []byte, kind string) []string {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child.Type() != kind {
			continue
		}
		var names []string
		inner := int(child.ChildCount())
		for j := 0; j < inner; j++ {
			grand := child.Child(j)
			switch grand.Type() {
			case "qualified_name", "namespace_name", "name":
				names = append(names, nodeText(grand, source))
			}
		}
		return names
	}
	return nil
}

func extractClassBody(body *sitter.Node, source []byte, uri string, result *model.FileSymbols, parentFQN string) {
	count := int(body.ChildCount())
	for i := 0; i < count; i++ {
		child := body.Child(i)
		switch child.Type() {
		case "method_declaration":
			extractMethod(child, source, uri, result, parentFQN)
		case "property_declaration":
			extractProperties(child, source, uri, result, parentFQN)
		case "class_const_declaration", "const_declaration":
			extractClassConstants(child, source, uri, result, parentFQN)
		case "enum_case":
			extractEnumCase(child, source, uri, result, parentFQN)
		}
	}
}

func extractMethod(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, parentFQN string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	fqn := parentFQN + "::" + name
	sig := extractSignature(node, source)

	sym := model.Symbol{
		Name:           name,
		FQN:            fqn,
		Kind:           model.KindMethod,
		URI:            uri,
		Range:          nodeRange(node),
		SelectionRange: nodeRange(nameNode),
		Visibility:     extractVisibility(node, source),
		Modifiers:      extractModifiers(node, source),
		Signature:      &sig,
		ParentFQN:      parentFQN,
	}
	attachDoc(&sym, node, source)
	result.Symbols = append(result.Symbols, sym)

	extractPromotedProperties(node, source, uri, result, parentFQN)
}

// extractPromotedProperties emits a KindProperty symbol on parentFQN for
// every constructor-promoted parameter in node's parameter list -- a
// property_promotion_parameter both declares a property and binds a
// parameter, so it gets a symbol on each side.
func extractPromotedProperties(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, parentFQN string) {
	paramList := node.ChildByFieldName("parameters")
	if paramList == nil {
		return
	}
	count := int(paramList.ChildCount())
	for i := 0; i < count; i++ {
		child := paramList.Child(i)
		if child.Type() != "property_promotion_parameter" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := strings.TrimPrefix(nodeText(nameNode, source), "$")
		fqn := parentFQN + "::$" + name

		var typeInfo *model.TypeExpr
		if t := child.ChildByFieldName("type"); t != nil {
			te := parseTypeNode(t, source)
			typeInfo = &te
		}

		sym := model.Symbol{
			Name:           name,
			FQN:            fqn,
			Kind:           model.KindProperty,
			URI:            uri,
			Range:          nodeRange(child),
			SelectionRange: nodeRange(nameNode),
			Visibility:     extractVisibility(child, source),
			Modifiers:      extractModifiers(child, source),
			ParentFQN:      parentFQN,
		}
		if typeInfo != nil {
			sym.Signature = &model.Signature{ReturnType: typeInfo}
		}
		result.Symbols = append(result.Symbols, sym)
	}
}

func extractFunction(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, ns string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	fqn := makeFQN(ns, name)
	sig := extractSignature(node, source)

	sym := model.Symbol{
		Name:           name,
		FQN:            fqn,
		Kind:           model.KindFunction,
		URI:            uri,
		Range:          nodeRange(node),
		SelectionRange: nodeRange(nameNode),
		Visibility:     model.VisibilityPublic,
		Signature:      &sig,
	}
	attachDoc(&sym, node, source)
	result.Symbols = append(result.Symbols, sym)
}

func extractProperties(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, parentFQN string) {
	visibility := extractVisibility(node, source)
	modifiers := extractModifiers(node, source)

	var typeInfo *model.TypeExpr
	if t := node.ChildByFieldName("type"); t != nil {
		te := parseTypeNode(t, source)
		typeInfo = &te
	}

	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child.Type() != "property_element" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = firstChildOfKind(child, "variable_name")
		}
		if nameNode == nil {
			continue
		}
		name := strings.TrimPrefix(nodeText(nameNode, source), "$")
		fqn := parentFQN + "::$" + name

		sym := model.Symbol{
			Name:           name,
			FQN:            fqn,
			Kind:           model.KindProperty,
			URI:            uri,
			Range:          nodeRange(node),
			SelectionRange: nodeRange(nameNode),
			Visibility:     visibility,
			Modifiers:      modifiers,
			ParentFQN:      parentFQN,
		}
		if typeInfo != nil {
			sym.Signature = &model.Signature{ReturnType: typeInfo}
		}
		attachDoc(&sym, node, source)
		result.Symbols = append(result.Symbols, sym)
	}
}

func extractClassConstants(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, parentFQN string) {
	visibility := extractVisibility(node, source)
	modifiers := extractModifiers(node, source)

	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child.Type() != "const_element" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = firstChildOfKind(child, "name")
		}
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, source)
		fqn := parentFQN + "::" + name

		sym := model.Symbol{
			Name:           name,
			FQN:            fqn,
			Kind:           model.KindClassConstant,
			URI:            uri,
			Range:          nodeRange(node),
			SelectionRange: nodeRange(nameNode),
			Visibility:     visibility,
			Modifiers:      modifiers,
			ParentFQN:      parentFQN,
		}
		attachDoc(&sym, node, source)
		result.Symbols = append(result.Symbols, sym)
	}
}

func extractGlobalConstants(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, ns string) {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child.Type() != "const_element" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, source)
		fqn := makeFQN(ns, name)

		sym := model.Symbol{
			Name:           name,
			FQN:            fqn,
			Kind:           model.KindGlobalConstant,
			URI:            uri,
			Range:          nodeRange(node),
			SelectionRange: nodeRange(nameNode),
			Visibility:     model.VisibilityPublic,
		}
		attachDoc(&sym, node, source)
		result.Symbols = append(result.Symbols, sym)
	}
}

// extractDefineCall recognizes define('Name', value) and emits the same
// KindGlobalConstant symbol shape as a namespace-level const declaration --
// Composer-generated autoloaders and plain scripts alike use define() for
// global constants at least as often as const.
func extractDefineCall(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, ns string) {
	fn := node.ChildByFieldName("function")
	if fn == nil || nodeText(fn, source) != "define" {
		return
	}
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}

	var first *sitter.Node
	count := int(args.ChildCount())
	for i := 0; i < count; i++ {
		if child := args.Child(i); child.Type() == "argument" {
			first = child
			break
		}
	}
	if first == nil {
		return
	}
	valueNode := first
	if first.NamedChildCount() > 0 {
		valueNode = first.NamedChild(0)
	}
	if valueNode.Type() != "string" {
		return
	}
	literal := stringLiteralValue(nodeText(valueNode, source))
	if literal == "" {
		return
	}
	// define()'s first argument is always the constant's fully-qualified
	// name, literally -- PHP never prepends the enclosing namespace the way
	// it does for a "const" declaration.
	fqn := strings.TrimPrefix(literal, "\\")
	name := fqn
	if i := strings.LastIndex(fqn, "\\"); i >= 0 {
		name = fqn[i+1:]
	}

	sym := model.Symbol{
		Name:           name,
		FQN:            fqn,
		Kind:           model.KindGlobalConstant,
		URI:            uri,
		Range:          nodeRange(node),
		SelectionRange: nodeRange(valueNode),
		Visibility:     model.VisibilityPublic,
	}
	result.Symbols = append(result.Symbols, sym)
}

func stringLiteralValue(raw string) string {
	if len(raw) < 2 {
		return ""
	}
	quote := raw[0]
	if (quote != '\'' && quote != '"') || raw[len(raw)-1] != quote {
		return ""
	}
	// Undo the escapes a constant name can carry: an escaped backslash and
	// an escaped quote of the literal's own kind.
	return strings.NewReplacer(`\\`, `\`, `\`+string(quote), string(quote)).Replace(raw[1 : len(raw)-1])
}

func extractEnumCase(node *sitter.Node, source []byte, uri string, result *model.FileSymbols, parentFQN string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	fqn := parentFQN + "::" + name

	sym := model.Symbol{
		Name:           name,
		FQN:            fqn,
		Kind:           model.KindEnumCase,
		URI:            uri,
		Range:          nodeRange(node),
		SelectionRange: nodeRange(nameNode),
		Visibility:     model.VisibilityPublic,
		ParentFQN:      parentFQN,
	}
	attachDoc(&sym, node, source)
	result.Symbols = append(result.Symbols, sym)
}

func extractSignature(node *sitter.Node, source []byte) model.Signature {
	var params []model.Parameter
	if paramList := node.ChildByFieldName("parameters"); paramList != nil {
		count := int(paramList.ChildCount())
		for i := 0; i < count; i++ {
			child := paramList.Child(i)
			switch child.Type() {
			case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
				params = append(params, extractParam(child, source))
			}
		}
	}

	var returnType *model.TypeExpr
	if t := node.ChildByFieldName("return_type"); t != nil {
		te := parseTypeNode(t, source)
		returnType = &te
	}

	return model.Signature{Params: params, ReturnType: returnType}
}

func extractParam(node *sitter.Node, source []byte) model.Parameter {
	rawName := "$unknown"
	if n := node.ChildByFieldName("name"); n != nil {
		rawName = nodeText(n, source)
	}
	name := strings.TrimPrefix(rawName, "$")

	var typeInfo *model.TypeExpr
	if t := node.ChildByFieldName("type"); t != nil {
		te := parseTypeNode(t, source)
		typeInfo = &te
	}

	defaultText := ""
	if d := node.ChildByFieldName("default_value"); d != nil {
		defaultText = nodeText(d, source)
	}

	return model.Parameter{
		Name:        name,
		Type:        typeInfo,
		Optional:    defaultText != "",
		Variadic:    node.Type() == "variadic_parameter",
		ByRef:       hasChildOfKind(node, "reference_modifier"),
		Promoted:    node.Type() == "property_promotion_parameter",
		DefaultText: defaultText,
	}
}

func parseTypeNode(node *sitter.Node, source []byte) model.TypeExpr {
	switch node.Type() {
	case "union_type":
		var parts []model.TypeExpr
		count := int(node.ChildCount())
		for i := 0; i < count; i++ {
			child := node.Child(i)
			if child.Type() != "|" {
				parts = append(parts, parseTypeNode(child, source))
			}
		}
		return model.TypeExpr{Kind: model.TypeUnion, Parts: parts}
	case "intersection_type":
		var parts []model.TypeExpr
		count := int(node.ChildCount())
		for i := 0; i < count; i++ {
			child := node.Child(i)
			if child.Type() != "&" {
				parts = append(parts, parseTypeNode(child, source))
			}
		}
		return model.TypeExpr{Kind: model.TypeIntersection, Parts: parts}
	case "optional_type":
		if node.NamedChildCount() > 0 {
			inner := parseTypeNode(node.NamedChild(0), source)
			return model.TypeExpr{Kind: model.TypeNullable, Of: &inner}
		}
		return model.TypeExpr{Kind: model.TypeMixed}
	default:
		text := nodeText(node, source)
		switch strings.ToLower(text) {
		case "void":
			return model.TypeExpr{Kind: model.TypeVoid}
		case "never":
			return model.TypeExpr{Kind: model.TypeNever}
		case "mixed":
			return model.TypeExpr{Kind: model.TypeMixed}
		case "self":
			return model.TypeExpr{Kind: model.TypeSelf}
		case "static":
			return model.TypeExpr{Kind: model.TypeStatic}
		case "parent":
			return model.TypeExpr{Kind: model.TypeParent}
		default:
			return model.TypeExpr{Kind: model.TypeNamed, Name: text}
		}
	}
}

func extractVisibility(node *sitter.Node, source []byte) model.Visibility {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		if child.Type() == "visibility_modifier" {
			switch nodeText(child, source) {
			case "protected":
				return model.VisibilityProtected
			case "private":
				return model.VisibilityPrivate
			default:
				return model.VisibilityPublic
			}
		}
	}
	return model.VisibilityPublic
}

func extractModifiers(node *sitter.Node, source []byte) model.Modifiers {
	var mods model.Modifiers
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static_modifier":
			mods.Static = true
		case "abstract_modifier":
			mods.Abstract = true
		case "final_modifier":
			mods.Final = true
		case "readonly_modifier":
			mods.Readonly = true
		default:
			if nodeText(child, source) == "static" {
				mods.Static = true
			}
		}
	}
	return mods
}

func hasChildOfKind(node *sitter.Node, kind string) bool {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		if node.Child(i).Type() == kind {
			return true
		}
	}
	return false
}

func firstChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		if child := node.Child(i); child.Type() == kind {
			return child
		}
	}
	return nil
}

// attachDoc finds the doc comment immediately preceding node -- a "comment"
// previous sibling starting with "/**" -- and, if present, both stores its
// raw text and parses it into a structured DocBlock.
func attachDoc(sym *model.Symbol, node *sitter.Node, source []byte) {
	prev := node.PrevSibling()
	for prev != nil {
		if prev.Type() == "comment" {
			text := nodeText(prev, source)
			if strings.HasPrefix(text, "/**") {
				sym.DocComment = text
				sym.Doc = docblock.Parse(text)
			}
			return
		}
		prev = prev.PrevSibling()
	}
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func nodeRange(node *sitter.Node) model.Range {
	start := node.StartPoint()
	end := node.EndPoint()
	return model.Range{
		StartLine: int(start.Row),
		StartCol:  int(start.Column),
		EndLine:   int(end.Row),
		EndCol:    int(end.Column),
	}
}

func makeFQN(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "\\" + name
}
