package diagnostics

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phpls/pkg/model"
)

// Resolver looks up a fully-qualified name in the workspace index. It
// returns the symbol and true when fqn is known, or (nil, false) when it
// isn't -- the signature semantic diagnostics is built against, so callers
// can plug in an *index.Index without this package depending on it.
type Resolver func(fqn string) (*model.Symbol, bool)

// builtinTypeNames are names that must never be reported as unknown: PHP's
// special contextual names and scalar/compound type keywords. Checked
// case-sensitively in most call sites (matching a use-alias or a type-hint
// token verbatim) and case-insensitively in shouldCheckClass (a type hint
// written `INT` is still a builtin).
var builtinTypeNames = map[string]bool{
	"self": true, "static": true, "parent": true, "$this": true,
	"int": true, "float": true, "string": true, "bool": true,
	"array": true, "object": true, "null": true, "void": true,
	"never": true, "mixed": true, "callable": true, "iterable": true,
	"true": true, "false": true, "resource": true,
}

// SemanticDiagnostics walks tree looking for class/function/use references
// that resolver cannot find in the workspace index, plus constructor/
// function call argument-count mismatches against known signatures.
func SemanticDiagnostics(tree *sitter.Tree, source []byte, fs *model.FileSymbols, resolver Resolver) []model.Diagnostic {
	var diags []model.Diagnostic
	checkUseStatements(fs, resolver, &diags)
	walkForSemanticDiagnostics(tree.RootNode(), source, fs, resolver, &diags)
	return diags
}

func checkUseStatements(fs *model.FileSymbols, resolver Resolver, diags *[]model.Diagnostic) {
	for _, use := range fs.Uses {
		if use.Kind != model.UseClass {
			continue
		}
		fqn := use.FQN
		if builtinTypeNames[fqn] {
			continue
		}
		if !strings.Contains(fqn, `\`) {
			continue
		}
		if _, ok := resolver(fqn); !ok {
			*diags = append(*diags, model.Diagnostic{
				Range:    use.Range,
				Severity: model.SeverityWarning,
				Code:     model.DiagUnresolvedUse,
				Message:  "Unresolved use statement: " + fqn,
			})
		}
	}
}

func walkForSemanticDiagnostics(node *sitter.Node, source []byte, fs *model.FileSymbols, resolver Resolver, diags *[]model.Diagnostic) {
	switch node.Type() {
	case "object_creation_expression":
		checkClassInNew(node, source, fs, resolver, diags)
	case "named_type", "optional_type":
		checkTypeReference(node, source, fs, resolver, diags)
	case "base_clause", "class_interface_clause":
		checkInheritanceClause(node, source, fs, resolver, diags)
	case "function_call_expression":
		checkFunctionCall(node, source, fs, resolver, diags)
	}

	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		walkForSemanticDiagnostics(node.Child(i), source, fs, resolver, diags)
	}
}

func checkClassInNew(node *sitter.Node, source []byte, fs *model.FileSymbols, resolver Resolver, diags *[]model.Diagnostic) {
	var classFQN string
	var haveClass bool

	named := int(node.NamedChildCount())
	for i := 0; i < named; i++ {
		child := node.NamedChild(i)
		ck := child.Type()
		if ck != "name" && ck != "qualified_name" {
			continue
		}
		name := string(source[child.StartByte():child.EndByte()])
		fqn := resolveClassName(name, fs)

		if shouldCheckClass(fqn) {
			if _, ok := resolver(fqn); !ok {
				*diags = append(*diags, model.Diagnostic{
					Range:    nodeRange(child),
					Severity: model.SeverityWarning,
					Code:     model.DiagUnknownType,
					Message:  "Unknown class: " + fqn,
				})
			}
		}
		classFQN, haveClass = fqn, true
		break
	}

	if !haveClass {
		return
	}
	ctorSym, ok := resolver(classFQN + "::__construct")
	if !ok || ctorSym.Signature == nil {
		return
	}
	checkArgumentCount(node, *ctorSym.Signature, classFQN+"::__construct", diags)
}

func checkTypeReference(node *sitter.Node, source []byte, fs *model.FileSymbols, resolver Resolver, diags *[]model.Diagnostic) {
	target := node
	if node.Type() == "optional_type" {
		if node.NamedChildCount() == 0 {
			return
		}
		target = node.NamedChild(0)
	}
	if target.Type() != "named_type" {
		return
	}

	named := int(target.NamedChildCount())
	for i := 0; i < named; i++ {
		child := target.NamedChild(i)
		ck := child.Type()
		if ck != "name" && ck != "qualified_name" {
			continue
		}
		name := string(source[child.StartByte():child.EndByte()])
		fqn := resolveClassName(name, fs)

		if shouldCheckClass(fqn) {
			if _, ok := resolver(fqn); !ok {
				*diags = append(*diags, model.Diagnostic{
					Range:    nodeRange(child),
					Severity: model.SeverityWarning,
					Code:     model.DiagUnknownType,
					Message:  "Unknown class: " + fqn,
				})
			}
		}
		break
	}
}

func checkInheritanceClause(node *sitter.Node, source []byte, fs *model.FileSymbols, resolver Resolver, diags *[]model.Diagnostic) {
	named := int(node.NamedChildCount())
	for i := 0; i < named; i++ {
		child := node.NamedChild(i)
		ck := child.Type()
		if ck != "name" && ck != "qualified_name" {
			continue
		}
		name := string(source[child.StartByte():child.EndByte()])
		fqn := resolveClassName(name, fs)

		if shouldCheckClass(fqn) {
			if _, ok := resolver(fqn); !ok {
				*diags = append(*diags, model.Diagnostic{
					Range:    nodeRange(child),
					Severity: model.SeverityWarning,
					Code:     model.DiagUnknownType,
					Message:  "Unknown class: " + fqn,
				})
			}
		}
	}
}

func checkFunctionCall(node *sitter.Node, source []byte, fs *model.FileSymbols, resolver Resolver, diags *[]model.Diagnostic) {
	if node.NamedChildCount() == 0 {
		return
	}
	nameNode := node.NamedChild(0)
	nk := nameNode.Type()
	if nk != "name" && nk != "qualified_name" && nk != "namespace_name" {
		return
	}
	name := string(source[nameNode.StartByte():nameNode.EndByte()])
	fqn := resolveFunctionName(name, fs)

	resolvedFQN, funcSym, ok := fqn, (*model.Symbol)(nil), false
	if sym, found := resolver(fqn); found {
		resolvedFQN, funcSym, ok = fqn, sym, true
	} else if !strings.Contains(fqn, `\`) && fs.Namespace != "" {
		nsFQN := fs.Namespace + `\` + fqn
		if sym, found := resolver(nsFQN); found {
			resolvedFQN, funcSym, ok = nsFQN, sym, true
		}
	}

	if ok && funcSym.Signature != nil {
		checkArgumentCount(node, *funcSym.Signature, resolvedFQN, diags)
	}

	// Only flag namespaced function calls as unknown; a bare name is too
	// often a PHP built-in we don't index.
	if strings.Contains(fqn, `\`) {
		if _, found := resolver(fqn); !found {
			*diags = append(*diags, model.Diagnostic{
				Range:    nodeRange(nameNode),
				Severity: model.SeverityWarning,
				Code:     model.DiagUnknownFunction,
				Message:  "Unknown function: " + fqn,
			})
		}
	}
}

func checkArgumentCount(callNode *sitter.Node, sig model.Signature, calleeFQN string, diags *[]model.Diagnostic) {
	required := sig.RequiredParamCount()
	max := sig.MaxParamCount() // -1 means unbounded (variadic)
	actual := countArguments(callNode)

	argsNode := firstChildOfType(callNode, "arguments")
	if argsNode == nil {
		argsNode = callNode
	}

	if actual < required {
		*diags = append(*diags, model.Diagnostic{
			Range:    nodeRange(argsNode),
			Severity: model.SeverityWarning,
			Code:     model.DiagArgumentCountMismatch,
			Message:  tooFewArgsMessage(calleeFQN, required, actual),
		})
	} else if max >= 0 && actual > max {
		*diags = append(*diags, model.Diagnostic{
			Range:    nodeRange(argsNode),
			Severity: model.SeverityWarning,
			Code:     model.DiagArgumentCountMismatch,
			Message:  tooManyArgsMessage(calleeFQN, max, actual),
		})
	}
}

func tooFewArgsMessage(fqn string, required, actual int) string {
	return "Too few arguments to " + fqn + "(): expected at least " + itoa(required) + ", got " + itoa(actual)
}

func tooManyArgsMessage(fqn string, max, actual int) string {
	return "Too many arguments to " + fqn + "(): expected at most " + itoa(max) + ", got " + itoa(actual)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// shouldCheckClass reports whether fqn is worth resolving against the
// index: builtins and single-segment (unqualified) names are skipped
// outright, since an unqualified name is very often a PHP built-in class
// this implementation doesn't stub, and flagging it would be mostly noise.
func shouldCheckClass(fqn string) bool {
	if builtinTypeNames[strings.ToLower(fqn)] {
		return false
	}
	if !strings.Contains(fqn, `\`) {
		return false
	}
	return true
}

// resolveClassName turns a name as written in source into the FQN it
// refers to, using the file's use-aliases and current namespace.
func resolveClassName(name string, fs *model.FileSymbols) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}
	if builtinTypeNames[name] {
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

// resolveFunctionName mirrors resolveClassName for the function namespace,
// but leaves an unqualified name untouched: it may be a global PHP function
// this implementation never indexes.
func resolveFunctionName(name string, fs *model.FileSymbols) string {
	if strings.HasPrefix(name, `\`) {
		return strings.TrimLeft(name, `\`)
	}

	parts := strings.Split(name, `\`)
	firstPart := parts[0]

	for _, use := range fs.Uses {
		if use.Kind != model.UseFunction {
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

	if strings.Contains(name, `\`) && fs.Namespace != "" {
		return fs.Namespace + `\` + name
	}
	return name
}

func lastSegment(fqn string) string {
	if i := strings.LastIndex(fqn, `\`); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

func countArguments(node *sitter.Node) int {
	argsNode := firstChildOfType(node, "arguments")
	if argsNode == nil {
		return 0
	}
	count := 0
	named := int(argsNode.NamedChildCount())
	for i := 0; i < named; i++ {
		if argsNode.NamedChild(i).Type() == "argument" {
			count++
		}
	}
	return count
}

func firstChildOfType(node *sitter.Node, kind string) *sitter.Node {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		if child := node.Child(i); child.Type() == kind {
			return child
		}
	}
	return nil
}
