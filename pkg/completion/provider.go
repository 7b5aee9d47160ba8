package completion

import (
	"sort"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"phpls/pkg/index"
	"phpls/pkg/model"
)

// phpKeywords lists the reserved words offered in free context.
var phpKeywords = []string{
	"abstract", "array", "as", "break", "callable", "case", "catch", "class",
	"clone", "const", "continue", "declare", "default", "do", "echo", "else",
	"elseif", "enum", "extends", "final", "finally", "fn", "for", "foreach",
	"function", "global", "if", "implements", "include", "include_once",
	"instanceof", "interface", "list", "match", "namespace", "new", "print",
	"private", "protected", "public", "readonly", "require", "require_once",
	"return", "static", "switch", "throw", "trait", "try", "use", "var",
	"while", "yield",
}

// maxResults caps the items returned from the broader, unstructured
// contexts (namespace and free) so a short prefix over a large index
// doesn't flood the client.
const maxResults = 100

// Provide returns the completion items for ctx against idx and the
// current file's symbol contribution.
func Provide(ctx Context, idx *index.Index, fs *model.FileSymbols) []protocol.CompletionItem {
	switch ctx.Kind {
	case KindMemberAccess:
		return provideMemberCompletions(ctx.ObjectExpr, ctx.ClassFQN, idx, fs)
	case KindStaticAccess:
		return provideStaticCompletions(ctx.ClassFQN, ctx.ClassExpr, idx, fs)
	case KindVariable:
		return provideVariableCompletions(ctx.Prefix, fs)
	case KindNamespace, KindUseStatement:
		return provideNamespaceCompletions(ctx.Prefix, idx)
	case KindFree:
		return provideFreeCompletions(ctx.Prefix, idx)
	default:
		return nil
	}
}

func provideMemberCompletions(objectExpr, inferredClassFQN string, idx *index.Index, fs *model.FileSymbols) []protocol.CompletionItem {
	classFQN := inferredClassFQN
	if classFQN == "" {
		if objectExpr != "$this" {
			// Resolving an arbitrary variable's type requires the caller to
			// have already run type inference (pkg/resolve) and passed the
			// result in via ctx.ClassFQN; without it there's no class to
			// complete against.
			return nil
		}
		fqn, ok := findCurrentClassFQN(fs)
		if !ok {
			return nil
		}
		classFQN = fqn
	}

	var items []protocol.CompletionItem
	for _, member := range idx.GetMembers(classFQN) {
		if member.Modifiers.Static {
			continue
		}
		items = append(items, symbolToCompletionItem(member))
	}
	return items
}

func provideStaticCompletions(classFQN, classExpr string, idx *index.Index, fs *model.FileSymbols) []protocol.CompletionItem {
	// Detect leaves self/static/parent as written; resolve them here against
	// the file's class, and parent against that class's first extends.
	if classExpr == "self" || classExpr == "static" || classExpr == "parent" {
		current, ok := findCurrentClassFQN(fs)
		if sym, found := idx.Type(current); classExpr == "parent" && found && len(sym.Extends) > 0 {
			current = sym.Extends[0]
		} else if classExpr == "parent" || !ok {
			return nil
		}
		classFQN = current
	}
	var items []protocol.CompletionItem
	for _, member := range idx.GetMembers(classFQN) {
		// instance methods and properties are not reachable through ::
		if (member.Kind == model.KindMethod || member.Kind == model.KindProperty) && !member.Modifiers.Static {
			continue
		}
		items = append(items, symbolToCompletionItem(member))
	}
	return items
}

func provideVariableCompletions(prefix string, fs *model.FileSymbols) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := map[string]bool{}
	prefixLower := strings.ToLower(prefix)

	if strings.HasPrefix("this", prefixLower) {
		kind := protocol.CompletionItemKindVariable
		items = append(items, protocol.CompletionItem{Label: "$this", Kind: &kind})
		seen["$this"] = true
	}

	if fs == nil {
		return items
	}
	for _, sym := range fs.Symbols {
		if sym.Signature == nil {
			continue
		}
		for _, param := range sym.Signature.Params {
			varName := "$" + param.Name
			if seen[varName] || !strings.HasPrefix(strings.ToLower(param.Name), prefixLower) {
				continue
			}
			seen[varName] = true
			kind := protocol.CompletionItemKindVariable
			item := protocol.CompletionItem{Label: varName, Kind: &kind}
			if param.Type != nil {
				detail := param.Type.String()
				item.Detail = &detail
			}
			items = append(items, item)
		}
	}
	return items
}

func provideNamespaceCompletions(prefix string, idx *index.Index) []protocol.CompletionItem {
	prefixLower := strings.ToLower(prefix)
	var items []protocol.CompletionItem
	for _, sym := range idx.AllTypes() {
		if strings.Contains(strings.ToLower(sym.FQN), prefixLower) || strings.HasPrefix(strings.ToLower(sym.Name), prefixLower) {
			kind := symbolKindToCompletionKind(sym.Kind)
			detail := sym.FQN
			items = append(items, protocol.CompletionItem{Label: sym.Name, Kind: &kind, Detail: &detail})
		}
	}
	sortItems(items)
	return truncate(items, maxResults)
}

func provideFreeCompletions(prefix string, idx *index.Index) []protocol.CompletionItem {
	prefixLower := strings.ToLower(prefix)
	var items []protocol.CompletionItem

	for _, kw := range phpKeywords {
		if strings.HasPrefix(kw, prefixLower) {
			kind := protocol.CompletionItemKindKeyword
			items = append(items, protocol.CompletionItem{Label: kw, Kind: &kind})
		}
	}

	results := idx.Search(prefix)
	for i, sym := range results {
		if i >= 50 {
			break
		}
		kind := symbolKindToCompletionKind(sym.Kind)
		detail := sym.FQN
		items = append(items, protocol.CompletionItem{Label: sym.Name, Kind: &kind, Detail: &detail})
	}

	for _, sym := range idx.AllFunctions() {
		if strings.HasPrefix(strings.ToLower(sym.Name), prefixLower) {
			kind := protocol.CompletionItemKindFunction
			detail := sym.FQN
			items = append(items, protocol.CompletionItem{Label: sym.Name, Kind: &kind, Detail: &detail})
		}
	}

	return truncate(items, maxResults)
}

func symbolToCompletionItem(sym *model.Symbol) protocol.CompletionItem {
	kind := symbolKindToCompletionKind(sym.Kind)
	label := sym.Name
	if sym.Kind == model.KindProperty && !strings.HasPrefix(label, "$") {
		label = "$" + label
	}

	item := protocol.CompletionItem{
		Label: label,
		Kind:  &kind,
		// Stash the FQN so completionItem/resolve can look the symbol back up.
		Data: sym.FQN,
	}

	if sym.Signature != nil {
		var params []string
		for _, p := range sym.Signature.Params {
			s := ""
			if p.Type != nil {
				s += p.Type.String() + " "
			}
			s += "$" + p.Name
			params = append(params, s)
		}
		detail := "(" + strings.Join(params, ", ") + ")"
		if sym.Signature.ReturnType != nil {
			detail += ": " + sym.Signature.ReturnType.String()
		}
		item.Detail = &detail
	}

	if sym.Modifiers.Deprecated {
		item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
	}

	return item
}

func symbolKindToCompletionKind(kind model.SymbolKind) protocol.CompletionItemKind {
	switch kind {
	case model.KindClass:
		return protocol.CompletionItemKindClass
	case model.KindInterface, model.KindTrait:
		return protocol.CompletionItemKindInterface
	case model.KindEnum:
		return protocol.CompletionItemKindEnum
	case model.KindFunction:
		return protocol.CompletionItemKindFunction
	case model.KindMethod:
		return protocol.CompletionItemKindMethod
	case model.KindProperty:
		return protocol.CompletionItemKindProperty
	case model.KindClassConstant, model.KindGlobalConstant:
		return protocol.CompletionItemKindConstant
	case model.KindEnumCase:
		return protocol.CompletionItemKindEnumMember
	case model.KindNamespace:
		return protocol.CompletionItemKindModule
	default:
		return protocol.CompletionItemKindText
	}
}

func findCurrentClassFQN(fs *model.FileSymbols) (string, bool) {
	if fs == nil {
		return "", false
	}
	for _, sym := range fs.Symbols {
		if sym.IsContainer() {
			return sym.FQN, true
		}
	}
	return "", false
}

func sortItems(items []protocol.CompletionItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
}

func truncate(items []protocol.CompletionItem, n int) []protocol.CompletionItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}
