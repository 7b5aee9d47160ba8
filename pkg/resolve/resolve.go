// Package resolve turns a cursor position into the symbol it refers to:
// the name resolution and best-effort type propagation the hover,
// go-to-definition, references, and rename features all sit on top of.
package resolve

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phpls/pkg/docblock"
	"phpls/pkg/model"
)

// RefKind discriminates what kind of reference a resolved position turned
// out to be -- a class name, a call, a member access, a bare variable, etc.
type RefKind string

const (
	RefClassName            RefKind = "class"
	RefFunctionCall         RefKind = "function"
	RefMethodCall           RefKind = "method"
	RefPropertyAccess       RefKind = "property"
	RefStaticPropertyAccess RefKind = "static-property"
	RefClassConstant        RefKind = "class-constant"
	RefGlobalConstant       RefKind = "global-constant"
	RefVariable             RefKind = "variable"
	RefNamespaceName        RefKind = "namespace"
	RefUnknown              RefKind = "unknown"
)

// SymbolAtPosition is what name resolution found under the cursor.
type SymbolAtPosition struct {
	FQN        string
	Name       string
	RefKind    RefKind
	ObjectExpr string
	Range      model.Range
}

var builtinNonObjectTypes = map[string]bool{
	"int": true, "float": true, "string": true, "bool": true, "boolean": true,
	"array": true, "object": true, "null": true, "void": true, "never": true,
	"mixed": true, "callable": true, "iterable": true, "true": true, "false": true,
	"resource": true, "self": true, "static": true, "parent": true,
}

// SymbolAt finds the most specific node at (line, character) and resolves it.
func SymbolAt(tree *sitter.Tree, source []byte, line, character int, fs *model.FileSymbols) (SymbolAtPosition, bool) {
	node := findNodeAtPoint(tree.RootNode(), sitter.Point{Row: uint32(line), Column: uint32(character)})
	if node == nil {
		return SymbolAtPosition{}, false
	}
	return resolveNode(node, source, fs)
}

// VariableDefinitionAt locates the declaration (parameter, assignment,
// foreach binding, catch binding) of the variable under the cursor, within
// its enclosing callable scope.
func VariableDefinitionAt(tree *sitter.Tree, source []byte, line, character int) (model.Range, bool) {
	node := findNodeAtPoint(tree.RootNode(), sitter.Point{Row: uint32(line), Column: uint32(character)})
	if node == nil {
		return model.Range{}, false
	}
	for node != nil {
		text := string(source[node.StartByte():node.EndByte()])
		if node.Type() == "variable_name" || strings.HasPrefix(text, "$") {
			break
		}
		node = node.Parent()
	}
	if node == nil {
		return model.Range{}, false
	}

	varName := normalizeVarName(string(source[node.StartByte():node.EndByte()]))
	usageStart := node.StartByte()
	scope := findEnclosingFunction(node)
	if scope == nil {
		scope = tree.RootNode()
	}

	var best *model.Range
	var bestStart uint32
	findVariableDefinitionBefore(scope, varName, usageStart, source, &best, &bestStart)
	if best == nil {
		return model.Range{}, false
	}
	return *best, true
}

// InferVariableTypeAt resolves the declared or assigned type of varName as
// of (line, character), the way completion uses it to resolve `$var->`.
func InferVariableTypeAt(tree *sitter.Tree, source []byte, fs *model.FileSymbols, line, character int, varName string) (string, bool) {
	root := tree.RootNode()
	node := findNodeAtPoint(root, sitter.Point{Row: uint32(line), Column: uint32(character)})
	if node == nil {
		node = root
	}
	usageStart := positionToByte(source, line, character)
	scope := findEnclosingFunction(node)
	if scope == nil {
		scope = findRootNode(node)
	}
	ty, ok := inferVariableTypeInScope(scope, normalizeVarName(varName), usageStart, source, fs)
	return ty, ok
}

func findNodeAtPoint(root *sitter.Node, point sitter.Point) *sitter.Node {
	node := root.NamedDescendantForPointRange(point, point)
	if node == nil {
		return nil
	}
	for !node.IsNamed() {
		node = node.Parent()
		if node == nil {
			return nil
		}
	}
	if node.Type() == "name" {
		if parent := node.Parent(); parent != nil && parent.Type() == "variable_name" {
			node = parent
		}
	}
	return node
}

func resolveNode(node *sitter.Node, source []byte, fs *model.FileSymbols) (SymbolAtPosition, bool) {
	parent := node.Parent()
	if parent == nil {
		return SymbolAtPosition{}, false
	}
	nodeText := string(source[node.StartByte():node.EndByte()])
	parentKind := parent.Type()

	sameNode := func(a, b *sitter.Node) bool {
		return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
	}

	switch parentKind {
	case "member_access_expression":
		nameField := parent.ChildByFieldName("name")
		objectField := parent.ChildByFieldName("object")
		if sameNode(nameField, node) {
			objectText := ""
			if objectField != nil {
				objectText = string(source[objectField.StartByte():objectField.EndByte()])
			}
			propertyName := nodeText
			if !strings.HasPrefix(propertyName, "$") {
				propertyName = "$" + propertyName
			}
			fqn := propertyName
			if objectField != nil {
				if cls, ok := tryResolveObjectType(objectField, source, fs); ok {
					fqn = cls + "::" + propertyName
				}
			}
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: RefPropertyAccess, ObjectExpr: objectText, Range: nodeRange(node)}, true
		}
		return resolveNameNode(node, source, fs)

	case "member_call_expression":
		nameField := parent.ChildByFieldName("name")
		objectField := parent.ChildByFieldName("object")
		if sameNode(nameField, node) {
			objectText := ""
			if objectField != nil {
				objectText = string(source[objectField.StartByte():objectField.EndByte()])
			}
			fqn := nodeText
			if objectField != nil {
				if cls, ok := tryResolveObjectType(objectField, source, fs); ok {
					fqn = cls + "::" + nodeText
				}
			}
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: RefMethodCall, ObjectExpr: objectText, Range: nodeRange(node)}, true
		}
		return resolveNameNode(node, source, fs)

	case "scoped_call_expression":
		nameField := parent.ChildByFieldName("name")
		scopeField := parent.ChildByFieldName("scope")
		if sameNode(nameField, node) {
			scopeText, scopeFQN := resolveScopeText(scopeField, parent, source, fs)
			fqn := nodeText
			if scopeFQN != "" {
				fqn = scopeFQN + "::" + nodeText
			}
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: RefMethodCall, ObjectExpr: scopeText, Range: nodeRange(node)}, true
		}
		resolved := resolveScopeSelf(nodeText, parent, source, fs)
		return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true

	case "scoped_property_access_expression":
		nameField := parent.ChildByFieldName("name")
		scopeField := parent.ChildByFieldName("scope")
		if sameNode(nameField, node) {
			scopeText, scopeFQN := resolveScopeText(scopeField, parent, source, fs)
			refKind := RefClassConstant
			if strings.HasPrefix(nodeText, "$") {
				refKind = RefStaticPropertyAccess
			}
			fqn := nodeText
			if scopeFQN != "" {
				fqn = scopeFQN + "::" + nodeText
			}
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: refKind, ObjectExpr: scopeText, Range: nodeRange(node)}, true
		}
		resolved := resolveScopeSelf(nodeText, parent, source, fs)
		return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true

	case "function_call_expression":
		funcField := parent.ChildByFieldName("function")
		if sameNode(funcField, node) || node.Type() == "name" || node.Type() == "qualified_name" || node.Type() == "namespace_name" {
			functionText := nodeText
			if funcField != nil {
				functionText = string(source[funcField.StartByte():funcField.EndByte()])
			}
			resolved := resolveFunctionName(functionText, fs)
			return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefFunctionCall, Range: nodeRange(node)}, true
		}
		return resolveNameNode(node, source, fs)

	case "qualified_name", "namespace_name":
		if gp := parent.Parent(); gp != nil && gp.Type() == "function_call_expression" {
			qnameText := string(source[parent.StartByte():parent.EndByte()])
			resolved := resolveFunctionName(qnameText, fs)
			return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefFunctionCall, Range: nodeRange(node)}, true
		}

	case "class_constant_access_expression":
		scopeNode := parent.NamedChild(0)
		nameNode := parent.NamedChild(1)
		if sameNode(nameNode, node) {
			scopeText, scopeFQN := resolveScopeText(scopeNode, parent, source, fs)
			fqn := nodeText
			if scopeFQN != "" {
				fqn = scopeFQN + "::" + nodeText
			}
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: RefClassConstant, ObjectExpr: scopeText, Range: nodeRange(node)}, true
		}
		if sameNode(scopeNode, node) {
			resolved := resolveScopeSelf(nodeText, parent, source, fs)
			return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true
		}
		return SymbolAtPosition{}, false

	case "object_creation_expression":
		resolved := resolveClassName(nodeText, fs)
		return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true

	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		nameField := parent.ChildByFieldName("name")
		if sameNode(nameField, node) {
			fqn := resolveClassName(nodeText, fs)
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true
		}
		return SymbolAtPosition{}, false

	case "function_definition", "method_declaration":
		nameField := parent.ChildByFieldName("name")
		if sameNode(nameField, node) {
			var fqn string
			refKind := RefFunctionCall
			if parentKind == "method_declaration" {
				refKind = RefMethodCall
				if cls, ok := findParentClassFQN(parent, source, fs); ok {
					fqn = cls + "::" + nodeText
				} else {
					fqn = nodeText
				}
			} else {
				fqn = resolveFunctionName(nodeText, fs)
			}
			return SymbolAtPosition{FQN: fqn, Name: nodeText, RefKind: refKind, Range: nodeRange(node)}, true
		}
		return SymbolAtPosition{}, false

	case "base_clause", "class_interface_clause", "type_list":
		resolved := resolveClassName(nodeText, fs)
		return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true

	case "named_type", "optional_type", "union_type", "intersection_type":
		if node.Type() == "name" || node.Type() == "qualified_name" {
			resolved := resolveClassName(nodeText, fs)
			return SymbolAtPosition{FQN: resolved, Name: nodeText, RefKind: RefClassName, Range: nodeRange(node)}, true
		}
		return SymbolAtPosition{}, false
	}

	if node.Type() == "variable_name" || (node.Type() == "name" && strings.HasPrefix(nodeText, "$")) {
		return SymbolAtPosition{FQN: nodeText, Name: nodeText, RefKind: RefVariable, Range: nodeRange(node)}, true
	}
	if node.Type() == "qualified_name" || node.Type() == "name" {
		return resolveNameNode(node, source, fs)
	}
	return SymbolAtPosition{}, false
}

func resolveScopeText(scopeField, parent *sitter.Node, source []byte, fs *model.FileSymbols) (string, string) {
	if scopeField == nil {
		return "", ""
	}
	scopeText := string(source[scopeField.StartByte():scopeField.EndByte()])
	return scopeText, resolveScopeSelf(scopeText, parent, source, fs)
}

func resolveScopeSelf(text string, parent *sitter.Node, source []byte, fs *model.FileSymbols) string {
	switch text {
	case "self", "static":
		if cls, ok := findParentClassFQN(parent, source, fs); ok {
			return cls
		}
		return resolveClassName(text, fs)
	case "parent":
		if cls, ok := findParentClassFQN(parent, source, fs); ok {
			if sym := findContainerSymbol(fs, cls); sym != nil && len(sym.Extends) > 0 {
				return sym.Extends[0]
			}
		}
		return resolveClassName(text, fs)
	default:
		return resolveClassName(text, fs)
	}
}

// findContainerSymbol looks up a class/interface/trait/enum declared in fs
// by FQN, for resolving parent:: against the enclosing class's own extends
// list rather than the literal text "parent".
func findContainerSymbol(fs *model.FileSymbols, fqn string) *model.Symbol {
	if fs == nil {
		return nil
	}
	for i := range fs.Symbols {
		if fs.Symbols[i].FQN == fqn && fs.Symbols[i].IsContainer() {
			return &fs.Symbols[i]
		}
	}
	return nil
}

// tryResolveObjectType infers the FQN an expression evaluates to, handling
// `new Foo()`, `(new Foo())`, `$this`, a plain variable, and a bare class
// name used as a scope. Anything else (a chained call, a static factory
// call) is left unresolved rather than guessed.
func tryResolveObjectType(objectNode *sitter.Node, source []byte, fs *model.FileSymbols) (string, bool) {
	switch objectNode.Type() {
	case "object_creation_expression":
		count := int(objectNode.NamedChildCount())
		for i := 0; i < count; i++ {
			child := objectNode.NamedChild(i)
			if child.Type() == "name" || child.Type() == "qualified_name" {
				className := string(source[child.StartByte():child.EndByte()])
				return resolveClassName(className, fs), true
			}
		}
		return "", false
	case "parenthesized_expression":
		count := int(objectNode.NamedChildCount())
		for i := 0; i < count; i++ {
			if resolved, ok := tryResolveObjectType(objectNode.NamedChild(i), source, fs); ok {
				return resolved, true
			}
		}
		return "", false
	case "variable_name":
		text := string(source[objectNode.StartByte():objectNode.EndByte()])
		if text == "$this" {
			return findParentClassFQN(objectNode, source, fs)
		}
		return inferVariableType(objectNode, text, source, fs)
	case "name", "qualified_name":
		text := string(source[objectNode.StartByte():objectNode.EndByte()])
		return resolveClassName(text, fs), true
	default:
		return "", false
	}
}

func inferVariableType(varNode *sitter.Node, varName string, source []byte, fs *model.FileSymbols) (string, bool) {
	scope := findEnclosingFunction(varNode)
	if scope == nil {
		scope = findRootNode(varNode)
	}
	return inferVariableTypeInScope(scope, normalizeVarName(varName), varNode.StartByte(), source, fs)
}

func findEnclosingFunction(node *sitter.Node) *sitter.Node {
	current := node.Parent()
	for current != nil {
		switch current.Type() {
		case "method_declaration", "function_definition", "arrow_function", "anonymous_function_creation_expression":
			return current
		}
		current = current.Parent()
	}
	return nil
}

func findRootNode(node *sitter.Node) *sitter.Node {
	current := node
	for current.Parent() != nil {
		current = current.Parent()
	}
	return current
}

func inferVariableTypeInScope(scope *sitter.Node, varName string, usageStart uint32, source []byte, fs *model.FileSymbols) (string, bool) {
	if params := scope.ChildByFieldName("parameters"); params != nil {
		count := int(params.NamedChildCount())
		for i := 0; i < count; i++ {
			param := params.NamedChild(i)
			if param.Type() != "simple_parameter" && param.Type() != "property_promotion_parameter" {
				continue
			}
			nameNode := param.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			paramName := normalizeVarName(string(source[nameNode.StartByte():nameNode.EndByte()]))
			if paramName != varName {
				continue
			}
			if typeNode := param.ChildByFieldName("type"); typeNode != nil {
				if className, ok := extractTypeName(typeNode, source); ok {
					return resolveClassName(className, fs), true
				}
			}
		}
	}

	body := scope.ChildByFieldName("body")
	if body == nil {
		body = scope
	}
	return findVariableTypeBeforeUsage(body, varName, usageStart, source, fs)
}

func extractTypeName(typeNode *sitter.Node, source []byte) (string, bool) {
	switch typeNode.Type() {
	case "named_type":
		count := int(typeNode.NamedChildCount())
		for i := 0; i < count; i++ {
			child := typeNode.NamedChild(i)
			if child.Type() == "name" || child.Type() == "qualified_name" {
				return string(source[child.StartByte():child.EndByte()]), true
			}
		}
		return "", false
	case "optional_type":
		count := int(typeNode.NamedChildCount())
		for i := 0; i < count; i++ {
			if name, ok := extractTypeName(typeNode.NamedChild(i), source); ok {
				return name, true
			}
		}
		return "", false
	case "name", "qualified_name":
		return string(source[typeNode.StartByte():typeNode.EndByte()]), true
	default:
		return "", false
	}
}

// findVariableTypeBeforeUsage scans the statements of body preceding
// usageStart for the nearest applicable type: an inline @var docblock
// (named tags narrow to a matching assignment target; unnamed tags apply
// only when the statement is itself a direct assignment to varName) or an
// assignment whose right-hand side resolves via tryResolveObjectType. The
// nearest preceding statement always wins, whether or not it carries a
// @var tag, per the type-propagation precedence this project settled on.
func findVariableTypeBeforeUsage(body *sitter.Node, varName string, usageStart uint32, source []byte, fs *model.FileSymbols) (string, bool) {
	var inferred string
	var found bool

	count := int(body.NamedChildCount())
	for i := 0; i < count; i++ {
		stmt := body.NamedChild(i)
		if stmt.StartByte() >= usageStart {
			break
		}

		rhs, hasAssignment := assignmentRHSForVar(stmt, varName, source)

		if docType, ok := extractPrecedingPhpdocVarType(stmt, varName, hasAssignment, source, fs); ok {
			inferred, found = docType, true
			continue
		}

		if hasAssignment {
			if resolved, ok := tryResolveObjectType(rhs, source, fs); ok {
				inferred, found = resolved, true
			}
		}
	}
	return inferred, found
}

func assignmentRHSForVar(stmt *sitter.Node, varName string, source []byte) (*sitter.Node, bool) {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
		return nil, false
	}
	expr := stmt.NamedChild(0)
	if expr.Type() != "assignment_expression" {
		return nil, false
	}
	left := expr.ChildByFieldName("left")
	right := expr.ChildByFieldName("right")
	if left == nil || right == nil {
		return nil, false
	}
	leftText := normalizeVarName(string(source[left.StartByte():left.EndByte()]))
	if leftText != varName {
		return nil, false
	}
	return right, true
}

func extractPrecedingPhpdocVarType(stmt *sitter.Node, varName string, allowUnnamedVarTag bool, source []byte, fs *model.FileSymbols) (string, bool) {
	comment, ok := findPrecedingPhpdocComment(stmt, source)
	if !ok {
		return "", false
	}
	doc := docblock.Parse(comment)
	if doc.VarType == nil {
		return "", false
	}
	if doc.VarName != "" {
		if "$"+doc.VarName != varName {
			return "", false
		}
	} else if !allowUnnamedVarTag {
		return "", false
	}
	return resolvePhpdocVarType(*doc.VarType, stmt, source, fs)
}

func findPrecedingPhpdocComment(node *sitter.Node, source []byte) (string, bool) {
	prev := node.PrevSibling()
	for prev != nil {
		if prev.Type() == "comment" {
			text := string(source[prev.StartByte():prev.EndByte()])
			if strings.HasPrefix(text, "/**") {
				return text, true
			}
			return "", false
		}
		if prev.IsNamed() {
			return "", false
		}
		prev = prev.PrevSibling()
	}
	return "", false
}

func resolvePhpdocVarType(t model.TypeExpr, contextNode *sitter.Node, source []byte, fs *model.FileSymbols) (string, bool) {
	switch t.Kind {
	case model.TypeNamed:
		if isBuiltinNonObjectType(t.Name) {
			return "", false
		}
		return resolveClassName(t.Name, fs), true
	case model.TypeNullable:
		if t.Of == nil {
			return "", false
		}
		return resolvePhpdocVarType(*t.Of, contextNode, source, fs)
	case model.TypeUnion, model.TypeIntersection:
		for _, part := range t.Parts {
			if resolved, ok := resolvePhpdocVarType(part, contextNode, source, fs); ok {
				return resolved, true
			}
		}
		return "", false
	case model.TypeSelf, model.TypeStatic:
		return findParentClassFQN(contextNode, source, fs)
	default:
		return "", false
	}
}

func isBuiltinNonObjectType(name string) bool {
	return builtinNonObjectTypes[strings.ToLower(strings.TrimPrefix(name, `\`))]
}

func positionToByte(source []byte, line, character int) uint32 {
	offset := 0
	row := 0
	start := 0
	for i := 0; i <= len(source); i++ {
		if i == len(source) || source[i] == '\n' {
			if row == line {
				lineLen := i - start
				col := character
				if col > lineLen {
					col = lineLen
				}
				return uint32(offset + col)
			}
			offset += (i - start) + 1
			start = i + 1
			row++
		}
	}
	return uint32(len(source))
}

func resolveNameNode(node *sitter.Node, source []byte, fs *model.FileSymbols) (SymbolAtPosition, bool) {
	text := string(source[node.StartByte():node.EndByte()])
	parentKind := ""
	if p := node.Parent(); p != nil {
		parentKind = p.Type()
	}

	if strings.HasPrefix(text, "$") {
		return SymbolAtPosition{FQN: text, Name: text, RefKind: RefVariable, Range: nodeRange(node)}, true
	}

	if isConstantReferenceContext(parentKind) {
		resolved := resolveConstantName(text, fs)
		return SymbolAtPosition{FQN: resolved, Name: text, RefKind: RefGlobalConstant, Range: nodeRange(node)}, true
	}

	resolved := resolveClassName(text, fs)
	return SymbolAtPosition{FQN: resolved, Name: text, RefKind: RefClassName, Range: nodeRange(node)}, true
}

// ResolveClassName resolves a class/interface/trait/enum name as written in
// source to the FQN it refers to, via use-aliases then current namespace.
func ResolveClassName(name string, fs *model.FileSymbols) string {
	return resolveClassName(name, fs)
}

func resolveClassName(name string, fs *model.FileSymbols) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}
	switch name {
	case "self", "static", "parent", "$this":
		return name
	}

	parts := strings.Split(name, `\`)
	firstPart := parts[0]
	for _, use := range fs.Uses {
		if use.Kind != model.UseClass {
			continue
		}
		alias := use.Alias
		if alias == "" {
			alias = lastSegment(use.FQN)
		}
		if alias != firstPart {
			continue
		}
		if len(parts) == 1 {
			return use.FQN
		}
		return use.FQN + `\` + strings.Join(parts[1:], `\`)
	}

	if fs.Namespace != "" {
		return fs.Namespace + `\` + name
	}
	return name
}

func resolveFunctionName(name string, fs *model.FileSymbols) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}
	for _, use := range fs.Uses {
		if use.Kind != model.UseFunction {
			continue
		}
		alias := use.Alias
		if alias == "" {
			alias = lastSegment(use.FQN)
		}
		if alias == name {
			return use.FQN
		}
	}
	if strings.Contains(name, `\`) {
		return name
	}
	if fs.Namespace != "" {
		return fs.Namespace + `\` + name
	}
	return name
}

func resolveConstantName(name string, fs *model.FileSymbols) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}
	parts := strings.Split(name, `\`)
	firstPart := parts[0]
	for _, use := range fs.Uses {
		if use.Kind != model.UseConstant {
			continue
		}
		alias := use.Alias
		if alias == "" {
			alias = lastSegment(use.FQN)
		}
		if alias != firstPart {
			continue
		}
		if len(parts) == 1 {
			return use.FQN
		}
		return use.FQN + `\` + strings.Join(parts[1:], `\`)
	}

	if strings.Contains(name, `\`) {
		if fs.Namespace != "" {
			return fs.Namespace + `\` + name
		}
		return name
	}
	if fs.Namespace != "" {
		return fs.Namespace + `\` + name
	}
	return name
}

var nonConstantParentKinds = map[string]bool{
	"class_declaration": true, "interface_declaration": true, "trait_declaration": true,
	"enum_declaration": true, "function_definition": true, "method_declaration": true,
	"named_type": true, "optional_type": true, "union_type": true, "intersection_type": true,
	"object_creation_expression": true, "function_call_expression": true,
	"scoped_call_expression": true, "member_call_expression": true,
	"namespace_use_clause": true, "namespace_definition": true,
}

func isConstantReferenceContext(parentKind string) bool {
	return !nonConstantParentKinds[parentKind]
}

func findVariableDefinitionBefore(node *sitter.Node, varName string, usageStart uint32, source []byte, best **model.Range, bestStart *uint32) {
	if node.StartByte() >= usageStart {
		return
	}

	record := func(n *sitter.Node) {
		start := n.StartByte()
		if start < usageStart && (*best == nil || start > *bestStart) {
			r := nodeRange(n)
			*best = &r
			*bestStart = start
		}
	}

	switch node.Type() {
	case "simple_parameter", "property_promotion_parameter":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			if normalizeVarName(string(source[nameNode.StartByte():nameNode.EndByte()])) == varName {
				record(nameNode)
			}
		}
	case "assignment_expression":
		if left := node.ChildByFieldName("left"); left != nil {
			if normalizeVarName(string(source[left.StartByte():left.EndByte()])) == varName {
				record(left)
			}
		}
	case "foreach_statement":
		for _, field := range []string{"key", "value"} {
			if varNode := node.ChildByFieldName(field); varNode != nil {
				if normalizeVarName(string(source[varNode.StartByte():varNode.EndByte()])) == varName {
					record(varNode)
				}
			}
		}
	case "catch_clause":
		for _, field := range []string{"name", "variable"} {
			if varNode := node.ChildByFieldName(field); varNode != nil {
				if normalizeVarName(string(source[varNode.StartByte():varNode.EndByte()])) == varName {
					record(varNode)
				}
			}
		}
	}

	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		findVariableDefinitionBefore(node.NamedChild(i), varName, usageStart, source, best, bestStart)
	}
}

func normalizeVarName(text string) string {
	if strings.HasPrefix(text, "$") {
		return text
	}
	return "$" + text
}

func findParentClassFQN(node *sitter.Node, source []byte, fs *model.FileSymbols) (string, bool) {
	current := node.Parent()
	for current != nil {
		switch current.Type() {
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			nameNode := current.ChildByFieldName("name")
			if nameNode == nil {
				return "", false
			}
			name := string(source[nameNode.StartByte():nameNode.EndByte()])
			return resolveClassName(name, fs), true
		default:
			current = current.Parent()
		}
	}
	return "", false
}

func lastSegment(fqn string) string {
	if i := strings.LastIndex(fqn, `\`); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

func nodeRange(node *sitter.Node) model.Range {
	start := node.StartPoint()
	end := node.EndPoint()
	return model.Range{
		StartLine: int(start.Row), StartCol: int(start.Column),
		EndLine: int(end.Row), EndCol: int(end.Column),
	}
}
