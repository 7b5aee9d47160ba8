// Package references finds usage sites of a resolved symbol within a
// single file's parsed tree: the building block workspace-wide
// "find references" and rename fan out over, one file at a time.
package references

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phpls/pkg/model"
)

// FindInFile returns every location in tree that references targetFQN,
// given it is a symbol of targetKind. When includeDeclaration is true the
// symbol's own declaration site (if present in this file) is included too.
func FindInFile(tree *sitter.Tree, source []byte, fs *model.FileSymbols, targetFQN string, targetKind model.SymbolKind, includeDeclaration bool) []model.Range {
	var results []model.Range
	root := tree.RootNode()

	switch targetKind {
	case model.KindClass, model.KindInterface, model.KindTrait, model.KindEnum:
		findClassReferences(root, source, fs, targetFQN, includeDeclaration, &results)
	case model.KindFunction:
		findFunctionReferences(root, source, fs, targetFQN, includeDeclaration, &results)
	case model.KindMethod, model.KindProperty, model.KindClassConstant, model.KindEnumCase:
		findMemberReferences(root, source, fs, targetFQN, includeDeclaration, &results)
	case model.KindGlobalConstant:
		findConstantReferences(root, source, fs, targetFQN, includeDeclaration, &results)
	case model.KindNamespace:
		// Namespace references are not searched: no call site refers to a
		// namespace by itself, only to the FQNs declared within it.
	}

	return results
}

func declarationRanges(fs *model.FileSymbols, targetFQN string, kinds ...model.SymbolKind) []model.Range {
	var out []model.Range
	for _, sym := range fs.Symbols {
		if sym.FQN != targetFQN {
			continue
		}
		if len(kinds) == 0 {
			out = append(out, sym.SelectionRange)
			continue
		}
		for _, k := range kinds {
			if sym.Kind == k {
				out = append(out, sym.SelectionRange)
				break
			}
		}
	}
	return out
}

func findClassReferences(root *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, includeDeclaration bool, results *[]model.Range) {
	if includeDeclaration {
		*results = append(*results, declarationRanges(fs, targetFQN,
			model.KindClass, model.KindInterface, model.KindTrait, model.KindEnum)...)
	}
	walkForClassRefs(root, source, fs, targetFQN, results)
}

func walkForClassRefs(node *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, results *[]model.Range) {
	switch node.Type() {
	case "object_creation_expression":
		named := int(node.NamedChildCount())
		for i := 0; i < named; i++ {
			child := node.NamedChild(i)
			if child.Type() == "name" || child.Type() == "qualified_name" {
				checkClassNameRef(child, source, fs, targetFQN, results)
				break
			}
		}

	case "scoped_call_expression", "scoped_property_access_expression":
		if scope := node.ChildByFieldName("scope"); scope != nil {
			checkClassNameRef(scope, source, fs, targetFQN, results)
		}

	case "named_type":
		named := int(node.NamedChildCount())
		for i := 0; i < named; i++ {
			child := node.NamedChild(i)
			if child.Type() == "name" || child.Type() == "qualified_name" {
				checkClassNameRef(child, source, fs, targetFQN, results)
			}
		}
		if named == 0 {
			checkClassNameRef(node, source, fs, targetFQN, results)
		}

	case "base_clause", "class_interface_clause":
		named := int(node.NamedChildCount())
		for i := 0; i < named; i++ {
			child := node.NamedChild(i)
			if child.Type() == "name" || child.Type() == "qualified_name" {
				checkClassNameRef(child, source, fs, targetFQN, results)
			}
		}

	case "instanceof_expression":
		if right := node.ChildByFieldName("right"); right != nil {
			checkClassNameRef(right, source, fs, targetFQN, results)
		}

	case "catch_clause":
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			named := int(typeNode.NamedChildCount())
			for i := 0; i < named; i++ {
				child := typeNode.NamedChild(i)
				if child.Type() == "name" || child.Type() == "qualified_name" {
					checkClassNameRef(child, source, fs, targetFQN, results)
				}
			}
			if typeNode.Type() == "name" || typeNode.Type() == "qualified_name" {
				checkClassNameRef(typeNode, source, fs, targetFQN, results)
			}
		}
	}

	named := int(node.NamedChildCount())
	for i := 0; i < named; i++ {
		walkForClassRefs(node.NamedChild(i), source, fs, targetFQN, results)
	}
}

func checkClassNameRef(node *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, results *[]model.Range) {
	text := string(source[node.StartByte():node.EndByte()])
	if resolveNameToFQN(text, fs) == targetFQN {
		*results = append(*results, nodeRange(node))
	}
}

var builtinNames = map[string]bool{
	"self": true, "static": true, "parent": true, "$this": true,
	"string": true, "int": true, "float": true, "bool": true, "array": true,
	"callable": true, "iterable": true, "object": true, "mixed": true,
	"void": true, "never": true, "null": true, "false": true, "true": true,
}

func resolveNameToFQN(name string, fs *model.FileSymbols) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}
	if builtinNames[name] {
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

func findFunctionReferences(root *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, includeDeclaration bool, results *[]model.Range) {
	if includeDeclaration {
		*results = append(*results, declarationRanges(fs, targetFQN, model.KindFunction)...)
	}
	walkForFunctionRefs(root, source, fs, targetFQN, results)
}

func walkForFunctionRefs(node *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, results *[]model.Range) {
	if node.Type() == "function_call_expression" {
		if funcNode := node.ChildByFieldName("function"); funcNode != nil {
			text := string(source[funcNode.StartByte():funcNode.EndByte()])
			if resolveFunctionNameToFQN(text, fs) == targetFQN {
				*results = append(*results, nodeRange(funcNode))
			}
		}
	}

	named := int(node.NamedChildCount())
	for i := 0; i < named; i++ {
		walkForFunctionRefs(node.NamedChild(i), source, fs, targetFQN, results)
	}
}

func resolveFunctionNameToFQN(name string, fs *model.FileSymbols) string {
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

func findMemberReferences(root *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, includeDeclaration bool, results *[]model.Range) {
	sep := strings.LastIndex(targetFQN, "::")
	if sep < 0 {
		return
	}
	memberName := targetFQN[sep+2:]
	expectedClass := targetFQN[:sep]

	if includeDeclaration {
		*results = append(*results, declarationRanges(fs, targetFQN)...)
	}
	walkForMemberRefs(root, source, fs, expectedClass, memberName, results)
}

func walkForMemberRefs(node *sitter.Node, source []byte, fs *model.FileSymbols, expectedClass, memberName string, results *[]model.Range) {
	switch node.Type() {
	case "member_access_expression", "member_call_expression":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			text := string(source[nameNode.StartByte():nameNode.EndByte()])
			if text == memberName {
				*results = append(*results, nodeRange(nameNode))
			}
		}

	case "scoped_call_expression", "scoped_property_access_expression":
		nameNode := node.ChildByFieldName("name")
		scopeNode := node.ChildByFieldName("scope")
		if nameNode == nil || scopeNode == nil {
			break
		}
		text := string(source[nameNode.StartByte():nameNode.EndByte()])
		if text != memberName {
			break
		}
		scopeText := string(source[scopeNode.StartByte():scopeNode.EndByte()])
		scopeFQN := resolveNameToFQN(scopeText, fs)
		if scopeFQN == expectedClass || scopeText == "self" || scopeText == "static" || scopeText == "parent" {
			*results = append(*results, nodeRange(nameNode))
		}
	}

	named := int(node.NamedChildCount())
	for i := 0; i < named; i++ {
		walkForMemberRefs(node.NamedChild(i), source, fs, expectedClass, memberName, results)
	}
}

func findConstantReferences(root *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, includeDeclaration bool, results *[]model.Range) {
	if includeDeclaration {
		*results = append(*results, declarationRanges(fs, targetFQN, model.KindGlobalConstant)...)
	}
	walkForConstantRefs(root, source, fs, targetFQN, results)
}

var nonConstantParentKinds = map[string]bool{
	"function_call_expression": true, "object_creation_expression": true,
	"class_declaration": true, "interface_declaration": true, "trait_declaration": true,
	"enum_declaration": true, "function_definition": true, "named_type": true,
	"use_declaration": true, "namespace_use_clause": true,
}

func walkForConstantRefs(node *sitter.Node, source []byte, fs *model.FileSymbols, targetFQN string, results *[]model.Range) {
	if node.Type() == "name" || node.Type() == "qualified_name" {
		parentKind := ""
		if p := node.Parent(); p != nil {
			parentKind = p.Type()
		}
		if !nonConstantParentKinds[parentKind] {
			text := string(source[node.StartByte():node.EndByte()])
			if resolveNameToFQN(text, fs) == targetFQN {
				*results = append(*results, nodeRange(node))
			}
		}
	}

	named := int(node.NamedChildCount())
	for i := 0; i < named; i++ {
		walkForConstantRefs(node.NamedChild(i), source, fs, targetFQN, results)
	}
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
