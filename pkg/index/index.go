// Package index maintains the workspace-wide symbol index: global lookup
// tables for types, functions, and constants, plus the per-file symbol
// contribution each of those entries was extracted from.
package index

import (
	"strings"
	"sync"

	"phpls/pkg/model"
)

// Index is the workspace's global, concurrency-safe symbol table. It is
// sharded into four maps rather than one, following the reference
// implementation's DashMap-per-namespace layout; in Go an RWMutex is the
// idiomatic stand-in for a lock-striped concurrent map (see DESIGN.md):
// mu guards the three symbol maps together and filesMu guards the per-file
// map -- readers (hover, completion, diagnostics) vastly outnumber writers
// (file re-index on save).
type Index struct {
	mu    sync.RWMutex
	types map[string]*model.Symbol // FQN -> class/interface/trait/enum
	funcs map[string]*model.Symbol // FQN -> function
	consts map[string]*model.Symbol // FQN -> global constant

	filesMu sync.RWMutex
	files   map[string]*model.FileSymbols // URI -> that file's contribution
}

// New creates an empty workspace index.
func New() *Index {
	return &Index{
		types:  make(map[string]*model.Symbol),
		funcs:  make(map[string]*model.Symbol),
		consts: make(map[string]*model.Symbol),
		files:  make(map[string]*model.FileSymbols),
	}
}

// UpdateFile replaces a file's contribution to the index wholesale: any
// symbols it previously owned are removed before the new ones are added,
// so stale top-level entries never outlive an edit.
func (idx *Index) UpdateFile(uri string, fs *model.FileSymbols) {
	idx.RemoveFile(uri)

	idx.mu.Lock()
	for i := range fs.Symbols {
		sym := &fs.Symbols[i]
		switch sym.Kind {
		case model.KindClass, model.KindInterface, model.KindTrait, model.KindEnum:
			idx.types[sym.FQN] = sym
		case model.KindFunction:
			idx.funcs[sym.FQN] = sym
		case model.KindGlobalConstant:
			idx.consts[sym.FQN] = sym
		}
	}
	idx.mu.Unlock()

	idx.filesMu.Lock()
	idx.files[uri] = fs
	idx.filesMu.Unlock()
}

// RemoveFile drops a file's contribution and every top-level symbol it owned.
func (idx *Index) RemoveFile(uri string) {
	idx.filesMu.Lock()
	old, ok := idx.files[uri]
	delete(idx.files, uri)
	idx.filesMu.Unlock()
	if !ok {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, sym := range old.Symbols {
		switch sym.Kind {
		case model.KindClass, model.KindInterface, model.KindTrait, model.KindEnum:
			delete(idx.types, sym.FQN)
		case model.KindFunction:
			delete(idx.funcs, sym.FQN)
		case model.KindGlobalConstant:
			delete(idx.consts, sym.FQN)
		}
	}
}

// FileSymbols returns the stored contribution for uri, or nil.
func (idx *Index) FileSymbols(uri string) *model.FileSymbols {
	idx.filesMu.RLock()
	defer idx.filesMu.RUnlock()
	return idx.files[uri]
}

// ResolveFQN resolves a fully-qualified name to its symbol: a top-level
// type/function/constant lookup, falling back to Class::member resolution.
func (idx *Index) ResolveFQN(fqn string) (*model.Symbol, bool) {
	idx.mu.RLock()
	if sym, ok := idx.types[fqn]; ok {
		idx.mu.RUnlock()
		return sym, true
	}
	if sym, ok := idx.funcs[fqn]; ok {
		idx.mu.RUnlock()
		return sym, true
	}
	if sym, ok := idx.consts[fqn]; ok {
		idx.mu.RUnlock()
		return sym, true
	}
	idx.mu.RUnlock()

	return idx.ResolveMember(fqn)
}

// ResolveMember resolves a "Class::member" FQN, walking the extends/
// implements hierarchy when the member isn't declared directly on the
// named class.
func (idx *Index) ResolveMember(fqn string) (*model.Symbol, bool) {
	sep := strings.LastIndex(fqn, "::")
	if sep < 0 {
		return nil, false
	}
	classFQN, memberName := fqn[:sep], fqn[sep+2:]
	return idx.resolveMemberInHierarchy(classFQN, memberName, fqn, map[string]bool{})
}

func (idx *Index) resolveMemberInHierarchy(classFQN, memberName, originalFQN string, visited map[string]bool) (*model.Symbol, bool) {
	if visited[classFQN] {
		return nil, false
	}
	visited[classFQN] = true

	members := idx.directMembers(classFQN)
	for _, m := range members {
		if m.FQN == originalFQN {
			return m, true
		}
	}
	for _, m := range members {
		if m.Name == memberName {
			return m, true
		}
	}

	idx.mu.RLock()
	classSym, ok := idx.types[classFQN]
	idx.mu.RUnlock()
	if !ok {
		return nil, false
	}

	for _, parent := range classSym.Extends {
		if sym, ok := idx.resolveMemberInHierarchy(parent, memberName, originalFQN, visited); ok {
			return sym, true
		}
	}
	for _, iface := range classSym.Implements {
		if sym, ok := idx.resolveMemberInHierarchy(iface, memberName, originalFQN, visited); ok {
			return sym, true
		}
	}
	return nil, false
}

// directMembers scans every indexed file's symbols for ones declared
// directly on typeFQN. A secondary parent-FQN index would make this O(1)
// per class at the cost of bookkeeping on every UpdateFile/RemoveFile; the
// reference implementation takes the same O(files) tradeoff (see DESIGN.md).
func (idx *Index) directMembers(typeFQN string) []*model.Symbol {
	idx.filesMu.RLock()
	defer idx.filesMu.RUnlock()
	var members []*model.Symbol
	for _, fs := range idx.files {
		for i := range fs.Symbols {
			if fs.Symbols[i].ParentFQN == typeFQN {
				members = append(members, &fs.Symbols[i])
			}
		}
	}
	return members
}

// GetMembers returns every member (methods, properties, constants, enum
// cases) of typeFQN, including those inherited via extends/implements.
func (idx *Index) GetMembers(typeFQN string) []*model.Symbol {
	var members []*model.Symbol
	idx.collectMembersRecursive(typeFQN, &members, map[string]bool{})
	return members
}

func (idx *Index) collectMembersRecursive(typeFQN string, members *[]*model.Symbol, visited map[string]bool) {
	if visited[typeFQN] {
		return
	}
	visited[typeFQN] = true

	*members = append(*members, idx.directMembers(typeFQN)...)

	idx.mu.RLock()
	classSym, ok := idx.types[typeFQN]
	idx.mu.RUnlock()
	if !ok {
		return
	}
	for _, parent := range classSym.Extends {
		idx.collectMembersRecursive(parent, members, visited)
	}
	for _, iface := range classSym.Implements {
		idx.collectMembersRecursive(iface, members, visited)
	}
}

// Search does a case-insensitive substring match over type, function, and
// constant names.
func (idx *Index) Search(query string) []*model.Symbol {
	q := strings.ToLower(query)
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []*model.Symbol
	for _, sym := range idx.types {
		if strings.Contains(strings.ToLower(sym.Name), q) {
			results = append(results, sym)
		}
	}
	for _, sym := range idx.funcs {
		if strings.Contains(strings.ToLower(sym.Name), q) {
			results = append(results, sym)
		}
	}
	for _, sym := range idx.consts {
		if strings.Contains(strings.ToLower(sym.Name), q) {
			results = append(results, sym)
		}
	}
	return results
}

// Type returns the indexed type symbol for fqn, if any.
func (idx *Index) Type(fqn string) (*model.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	sym, ok := idx.types[fqn]
	return sym, ok
}

// Function returns the indexed function symbol for fqn, if any.
func (idx *Index) Function(fqn string) (*model.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	sym, ok := idx.funcs[fqn]
	return sym, ok
}

// AllTypes returns every indexed class/interface/trait/enum symbol, for
// callers that need to scan the whole namespace (completion, workspace symbols).
func (idx *Index) AllTypes() []*model.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*model.Symbol, 0, len(idx.types))
	for _, sym := range idx.types {
		out = append(out, sym)
	}
	return out
}

// AllFunctions returns every indexed function symbol.
func (idx *Index) AllFunctions() []*model.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*model.Symbol, 0, len(idx.funcs))
	for _, sym := range idx.funcs {
		out = append(out, sym)
	}
	return out
}

// URIs returns every file URI with a contribution recorded in the index,
// for callers that need to fan a request out over the whole workspace
// (workspace-wide find references, rename).
func (idx *Index) URIs() []string {
	idx.filesMu.RLock()
	defer idx.filesMu.RUnlock()
	out := make([]string, 0, len(idx.files))
	for uri := range idx.files {
		out = append(out, uri)
	}
	return out
}
