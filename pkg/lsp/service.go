// Package lsp wires every analysis package into a running Language Server
// Protocol server: document lifecycle, diagnostics publishing, hover,
// go-to-definition, find references, completion, rename, and document
// symbols, on top of github.com/tliron/glsp.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"phpls/pkg/autoload"
	"phpls/pkg/completion"
	"phpls/pkg/diagnostics"
	"phpls/pkg/extract"
	"phpls/pkg/ignore"
	"phpls/pkg/index"
	"phpls/pkg/model"
	"phpls/pkg/phpparser"
	"phpls/pkg/references"
	"phpls/pkg/resolve"
	"phpls/pkg/rope"
	"phpls/pkg/snapshot"
	"phpls/pkg/stubs"
)

const serverName = "phpls"

var serverVersion = "0.1.0"

// StubsPath, when non-empty, points at a phpstorm-stubs checkout loaded
// into every workspace index at startup. Set via the cmd/phpls serve flag.
var StubsPath string

// Server is the PHP language server: one per client connection.
type Server struct {
	handler protocol.Handler
	glspSrv *glspserver.Server

	docs    *phpparser.Store
	idx     *index.Index
	scanner *index.Scanner
	snap    *snapshot.Store

	nsMapMu sync.RWMutex
	nsMap   *autoload.NamespaceMap

	cfgMu sync.RWMutex
	cfg   Config

	rootURI  string
	rootPath string

	indexOnce sync.Once

	notifyMu sync.Mutex
	notify   glsp.NotifyFunc

	logger   *slog.Logger
	levelVar *slog.LevelVar
}

// NewServer creates a PHP language server with no workspace attached yet;
// the workspace is resolved on the initialize request.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		docs:    phpparser.NewStore(),
		idx:     index.New(),
		scanner: index.NewScanner(),
		logger:  logger,
		cfg:     defaultConfig(),
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		Exit:        s.exit,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.didOpen,
		TextDocumentDidChange: s.didChange,
		TextDocumentDidSave:   s.didSave,
		TextDocumentDidClose:  s.didClose,

		TextDocumentHover:          s.hover,
		TextDocumentDefinition:     s.definition,
		TextDocumentReferences:     s.references,
		TextDocumentCompletion:     s.completion,
		TextDocumentDocumentSymbol: s.documentSymbol,
		TextDocumentRename:         s.rename,
		TextDocumentPrepareRename:  s.prepareRename,
		WorkspaceSymbol:            s.workspaceSymbol,

		CompletionItemResolve: s.completionResolve,
	}

	s.glspSrv = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// SetLevelVar wires a shared slog.LevelVar into the server so the
// logLevel initialization option can adjust verbosity at runtime instead
// of only at process start.
func (s *Server) SetLevelVar(v *slog.LevelVar) {
	s.levelVar = v
}

// RunStdio runs the server over stdin/stdout, the transport every LSP
// client launches a language server with.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.captureNotify(ctx)

	if params.RootURI != nil {
		s.rootURI = string(*params.RootURI)
		s.rootPath = uriToPath(s.rootURI)
	} else if params.RootPath != nil {
		s.rootPath = *params.RootPath
		s.rootURI = pathToURI(s.rootPath)
	}

	cfg := decodeConfig(params.InitializationOptions, StubsPath)
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	if s.levelVar != nil {
		if level, ok := parseLogLevel(cfg.LogLevel); ok {
			s.levelVar.Set(level)
		}
	}

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true
	capabilities.DocumentSymbolProvider = true
	capabilities.WorkspaceSymbolProvider = true
	capabilities.RenameProvider = &protocol.RenameOptions{PrepareProvider: boolPtr(true)}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"$", ">", ":", "\\"},
		ResolveProvider:   boolPtr(true),
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &serverVersion,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	go s.ensureWorkspaceIndex()
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	if s.snap != nil {
		s.snap.Close()
	}
	return nil
}

func (s *Server) exit(_ *glsp.Context) error {
	os.Exit(0)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// ensureWorkspaceIndex scans the workspace root once: composer.json for
// autoload resolution, phpstorm-stubs for builtin symbols, .gitignore for
// scan pruning, every *.php file for workspace symbols, and a SQLite
// snapshot so the next launch can skip unchanged files.
func (s *Server) ensureWorkspaceIndex() {
	s.indexOnce.Do(func() {
		if s.rootPath == "" {
			return
		}
		s.buildWorkspaceIndex()
		s.reindexOpenDocuments()
	})
}

func (s *Server) buildWorkspaceIndex() {
	root := s.rootPath
	logger := s.logger
	cfg := s.config()

	matcher, err := ignore.Load(root)
	if err != nil {
		logger.Warn("failed to load .gitignore", "error", err)
		matcher = ignore.ParseLines(nil)
	}
	matcher.SetAllowVendor(cfg.IndexVendor)
	s.scanner.SetIgnore(matcher)

	if cfg.ComposerEnabled {
		composerPath := filepath.Join(root, "composer.json")
		if nm, err := autoload.Load(composerPath); err == nil {
			s.nsMapMu.Lock()
			s.nsMap = nm
			s.nsMapMu.Unlock()
			// files entries are unconditionally require()d by Composer's
			// generated autoloader, so they are indexed eagerly rather than
			// waiting for a resolve_fqn miss like the rest of vendor/.
			for _, path := range nm.Files() {
				s.indexFileAt(path)
			}
		} else if !os.IsNotExist(err) {
			logger.Warn("failed to load composer.json", "error", err)
		}
	}

	if cfg.StubsPath != "" {
		if n, err := stubs.Load(context.Background(), s.idx, cfg.StubsPath, cfg.StubExtensions, logger); err != nil {
			logger.Warn("failed to load phpstorm stubs", "error", err)
		} else {
			logger.Info("loaded builtin stubs", "files", n)
		}
	}

	snapDir := filepath.Join(root, ".phpls")
	if err := os.MkdirAll(snapDir, 0o755); err == nil {
		if snap, err := snapshot.Open(filepath.Join(snapDir, "index.db")); err == nil {
			if err := snap.Migrate(); err != nil {
				logger.Warn("failed to migrate snapshot database", "error", err)
				snap.Close()
			} else {
				s.snap = snap
			}
		} else {
			logger.Warn("failed to open snapshot database", "error", err)
		}
	}

	stats, hashes, err := s.scanner.ScanWorkspace(context.Background(), root, s.idx)
	if err != nil {
		logger.Warn("workspace scan failed", "error", err)
		return
	}
	logger.Info("workspace scan complete",
		"candidates", stats.CandidateFiles, "parsed", stats.ParsedFiles, "errors", len(stats.Errors))

	s.nsMapMu.RLock()
	nm := s.nsMap
	s.nsMapMu.RUnlock()
	if nm != nil && cfg.IndexVendor {
		for _, dir := range nm.SourceDirectories() {
			if !strings.Contains(dir, string(filepath.Separator)+"vendor"+string(filepath.Separator)) {
				continue
			}
			if _, _, err := s.scanner.ScanWorkspace(context.Background(), dir, s.idx); err != nil {
				logger.Warn("vendor source directory scan failed", "dir", dir, "error", err)
			}
		}
	}

	if s.snap != nil {
		for uri, hash := range hashes {
			if fs := s.idx.FileSymbols(uri); fs != nil {
				if err := s.snap.SaveFile(uri, hash, fs); err != nil {
					logger.Debug("failed to persist snapshot entry", "uri", uri, "error", err)
				}
			}
		}
	}
}

func (s *Server) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// indexFileAt parses the file at path and installs it in the index under
// its file:// URI -- used both for autoload "files" entries at startup and
// for on-demand vendor indexing from resolveFQN.
func (s *Server) indexFileAt(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("autoload-mapped file unreadable", "path", path, "error", err)
		return
	}
	doc, err := phpparser.NewDocument(context.Background(), source)
	if err != nil {
		s.logger.Debug("autoload-mapped file unparseable", "path", path, "error", err)
		return
	}
	uri := pathToURI(path)
	fs := extract.FileSymbols(doc.Tree(), doc.Source(), uri)
	s.idx.UpdateFile(uri, fs)
}

// resolveFQN resolves fqn against the index, and on a miss for a
// class-shaped name, consults the autoload map for candidate file paths and
// indexes the first one that exists before retrying -- vendor code is never
// eagerly scanned (see buildWorkspaceIndex), only pulled in on demand.
func (s *Server) resolveFQN(fqn string) (*model.Symbol, bool) {
	if sym, ok := s.idx.ResolveFQN(fqn); ok {
		return sym, true
	}

	s.nsMapMu.RLock()
	nm := s.nsMap
	s.nsMapMu.RUnlock()
	if nm == nil {
		return nil, false
	}

	classFQN := fqn
	if i := strings.Index(fqn, "::"); i >= 0 {
		classFQN = fqn[:i]
	}
	for _, path := range nm.ResolveClass(classFQN) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		s.indexFileAt(path)
	}
	return s.idx.ResolveFQN(fqn)
}

// reindexOpenDocuments re-publishes diagnostics for files opened before the
// workspace scan finished, now that they can resolve against the full index.
func (s *Server) reindexOpenDocuments() {
	for _, uri := range s.docs.URIs() {
		doc := s.docs.Get(uri)
		if doc == nil {
			continue
		}
		s.reindexFile(uri, doc)
		s.publishDiagnostics(uri, doc)
	}
}

func (s *Server) reindexFile(uri string, doc *phpparser.Document) {
	fs := extract.FileSymbols(doc.Tree(), doc.Source(), uri)
	s.idx.UpdateFile(uri, fs)
}

func (s *Server) captureNotify(ctx *glsp.Context) {
	s.notifyMu.Lock()
	s.notify = ctx.Notify
	s.notifyMu.Unlock()
}

func (s *Server) sendNotification(method string, params any) {
	s.notifyMu.Lock()
	fn := s.notify
	s.notifyMu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

// --- document lifecycle ---

func (s *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.captureNotify(ctx)
	uri := string(params.TextDocument.URI)
	if err := s.docs.Open(context.Background(), uri, params.TextDocument.Version, []byte(params.TextDocument.Text)); err != nil {
		s.logger.Warn("failed to parse opened document", "uri", uri, "error", err)
		return nil
	}
	doc := s.docs.Get(uri)
	s.reindexFile(uri, doc)
	s.publishDiagnostics(uri, doc)
	return nil
}

func (s *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.captureNotify(ctx)
	uri := string(params.TextDocument.URI)
	doc := s.docs.Get(uri)
	if doc == nil {
		return nil
	}

	for _, rawChange := range params.ContentChanges {
		switch change := rawChange.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				if err := doc.Replace(context.Background(), []byte(change.Text)); err != nil {
					s.logger.Warn("full reparse failed", "uri", uri, "error", err)
					return nil
				}
				continue
			}
			rng := rope.Range{
				Start: rope.Position{Line: int(change.Range.Start.Line), Character: int(change.Range.Start.Character)},
				End:   rope.Position{Line: int(change.Range.End.Line), Character: int(change.Range.End.Character)},
			}
			if err := doc.ApplyEdit(context.Background(), rng, []byte(change.Text)); err != nil {
				s.logger.Warn("incremental edit failed, falling back to full reparse", "uri", uri, "error", err)
				return nil
			}
		case protocol.TextDocumentContentChangeEventWhole:
			if err := doc.Replace(context.Background(), []byte(change.Text)); err != nil {
				s.logger.Warn("full reparse failed", "uri", uri, "error", err)
				return nil
			}
		}
	}

	s.docs.SetVersion(uri, params.TextDocument.Version)
	s.reindexFile(uri, doc)
	s.publishDiagnostics(uri, doc)
	return nil
}

func (s *Server) didSave(_ *glsp.Context, _ *protocol.DidSaveTextDocumentParams) error {
	return nil
}

func (s *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.captureNotify(ctx)
	uri := string(params.TextDocument.URI)
	s.docs.Close(uri)
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *Server) publishDiagnostics(uri string, doc *phpparser.Document) {
	fs := s.idx.FileSymbols(uri)
	if fs == nil {
		return
	}

	mode := s.config().DiagnosticsMode
	var diags []model.Diagnostic
	if mode != DiagnosticsOff {
		diags = diagnostics.SyntaxErrors(doc.Tree())
		// Semantic checks only run on a syntactically clean tree -- a
		// dangling expression can make every downstream resolution bogus.
		if len(diags) == 0 && mode == DiagnosticsBasicSemantic {
			diags = append(diags, diagnostics.SemanticDiagnostics(doc.Tree(), doc.Source(), fs, s.resolveFQN)...)
		}
	}

	params := &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(uri),
		Diagnostics: toProtocolDiagnostics(diags),
	}
	if v := s.docs.Version(uri); v >= 0 {
		iv := protocol.UInteger(v)
		params.Version = &iv
	}
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, params)
}

// --- hover / definition / references ---

func (s *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	tree, source, fs, ok := s.fileState(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	line, col := int(params.Position.Line), int(params.Position.Character)

	at, ok := resolve.SymbolAt(tree, source, line, col, fs)
	if !ok || at.FQN == "" {
		return nil, nil
	}
	sym, ok := s.resolveFQN(at.FQN)
	if !ok {
		return nil, nil
	}

	content := hoverContent(sym)
	if content == "" {
		return nil, nil
	}
	rng := toProtocolRange(at.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: content},
		Range:    &rng,
	}, nil
}

func hoverContent(sym *model.Symbol) string {
	var b strings.Builder
	b.WriteString("```php\n")
	switch sym.Kind {
	case model.KindClass:
		b.WriteString("class " + sym.FQN)
	case model.KindInterface:
		b.WriteString("interface " + sym.FQN)
	case model.KindTrait:
		b.WriteString("trait " + sym.FQN)
	case model.KindEnum:
		b.WriteString("enum " + sym.FQN)
	case model.KindFunction, model.KindMethod:
		b.WriteString(formatSignature(sym))
	case model.KindProperty:
		b.WriteString(string(sym.Visibility) + " $" + sym.Name)
	case model.KindClassConstant, model.KindGlobalConstant:
		b.WriteString("const " + sym.Name)
	default:
		b.WriteString(sym.FQN)
	}
	b.WriteString("\n```")
	if sym.Doc != nil && sym.Doc.Summary != "" {
		b.WriteString("\n\n---\n\n" + sym.Doc.Summary)
	}
	if sym.Modifiers.Deprecated {
		b.WriteString("\n\n**deprecated**")
	}
	return b.String()
}

func formatSignature(sym *model.Symbol) string {
	var b strings.Builder
	if sym.Modifiers.Static {
		b.WriteString("static ")
	}
	b.WriteString("function " + sym.Name + "(")
	if sym.Signature != nil {
		for i, p := range sym.Signature.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			if p.Type != nil {
				b.WriteString(p.Type.String() + " ")
			}
			if p.Variadic {
				b.WriteString("...")
			}
			b.WriteString("$" + p.Name)
		}
	}
	b.WriteString(")")
	if sym.Signature != nil && sym.Signature.ReturnType != nil {
		b.WriteString(": " + sym.Signature.ReturnType.String())
	}
	return b.String()
}

func (s *Server) definition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	tree, source, fs, ok := s.fileState(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	line, col := int(params.Position.Line), int(params.Position.Character)

	at, ok := resolve.SymbolAt(tree, source, line, col, fs)
	if !ok {
		return nil, nil
	}
	if at.RefKind == resolve.RefVariable {
		if rng, ok := resolve.VariableDefinitionAt(tree, source, line, col); ok {
			return protocol.Location{URI: params.TextDocument.URI, Range: toProtocolRange(rng)}, nil
		}
		return nil, nil
	}
	if at.FQN == "" {
		return nil, nil
	}
	sym, ok := s.resolveFQN(at.FQN)
	if !ok {
		return nil, nil
	}
	return protocol.Location{URI: protocol.DocumentUri(sym.URI), Range: toProtocolRange(sym.SelectionRange)}, nil
}

func (s *Server) references(_ *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := string(params.TextDocument.URI)
	tree, source, fs, ok := s.fileState(uri)
	if !ok {
		return nil, nil
	}
	line, col := int(params.Position.Line), int(params.Position.Character)

	at, ok := resolve.SymbolAt(tree, source, line, col, fs)
	if !ok || at.FQN == "" {
		return nil, nil
	}

	kind, ok := s.kindOf(at)
	if !ok {
		return nil, nil
	}

	includeDecl := params.Context.IncludeDeclaration
	var locations []protocol.Location
	for _, candidateURI := range s.idx.URIs() {
		cTree, cSource, cFS, ok := s.fileState(candidateURI)
		if !ok {
			continue
		}
		for _, rng := range references.FindInFile(cTree, cSource, cFS, at.FQN, kind, includeDecl) {
			locations = append(locations, protocol.Location{
				URI:   protocol.DocumentUri(candidateURI),
				Range: toProtocolRange(rng),
			})
		}
	}
	return locations, nil
}

// kindOf maps a resolved reference back to the SymbolKind references.FindInFile
// dispatches on, from either the index entry (the common case) or the
// resolve.RefKind (for local names the index doesn't carry, like a
// variable -- which references deliberately never searches for).
func (s *Server) kindOf(at resolve.SymbolAtPosition) (model.SymbolKind, bool) {
	if sym, ok := s.resolveFQN(at.FQN); ok {
		return sym.Kind, true
	}
	switch at.RefKind {
	case resolve.RefClassName, resolve.RefNamespaceName:
		return model.KindClass, true
	case resolve.RefFunctionCall:
		return model.KindFunction, true
	case resolve.RefMethodCall:
		return model.KindMethod, true
	case resolve.RefPropertyAccess, resolve.RefStaticPropertyAccess:
		return model.KindProperty, true
	case resolve.RefClassConstant:
		return model.KindClassConstant, true
	case resolve.RefGlobalConstant:
		return model.KindGlobalConstant, true
	default:
		return "", false
	}
}

// --- completion ---

func (s *Server) completion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	tree, source, fs, ok := s.fileState(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	line, col := int(params.Position.Line), int(params.Position.Character)

	ctx := completion.Detect(tree, source, line, col, fs)
	if ctx.Kind == completion.KindMemberAccess && ctx.ClassFQN == "" && ctx.ObjectExpr != "$this" {
		if fqn, ok := resolve.InferVariableTypeAt(tree, source, fs, line, col, ctx.ObjectExpr); ok {
			ctx.ClassFQN = fqn
		}
	}

	return completion.Provide(ctx, s.idx, fs), nil
}

func (s *Server) completionResolve(_ *glsp.Context, item *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	fqn, ok := item.Data.(string)
	if !ok || fqn == "" {
		return item, nil
	}
	sym, ok := s.resolveFQN(fqn)
	if !ok {
		return item, nil
	}
	if sym.Doc != nil && sym.Doc.Summary != "" {
		doc := protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: sym.Doc.Summary}
		item.Documentation = &doc
	}
	return item, nil
}

// --- document symbols ---

func (s *Server) documentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	uri := string(params.TextDocument.URI)
	fs := s.idx.FileSymbols(uri)
	if fs == nil {
		return nil, nil
	}

	byParent := make(map[string][]*model.Symbol)
	var top []*model.Symbol
	for i := range fs.Symbols {
		sym := &fs.Symbols[i]
		if sym.Kind == model.KindParameter || sym.Kind == model.KindLocalVariable {
			continue
		}
		if sym.ParentFQN != "" {
			byParent[sym.ParentFQN] = append(byParent[sym.ParentFQN], sym)
		} else {
			top = append(top, sym)
		}
	}

	var build func(sym *model.Symbol) protocol.DocumentSymbol
	build = func(sym *model.Symbol) protocol.DocumentSymbol {
		ds := protocol.DocumentSymbol{
			Name:           sym.Name,
			Kind:           symbolKindToLSP(sym.Kind),
			Range:          toProtocolRange(sym.Range),
			SelectionRange: toProtocolRange(sym.SelectionRange),
		}
		for _, child := range byParent[sym.FQN] {
			ds.Children = append(ds.Children, build(child))
		}
		return ds
	}

	symbols := make([]protocol.DocumentSymbol, 0, len(top))
	for _, sym := range top {
		symbols = append(symbols, build(sym))
	}
	return symbols, nil
}

func symbolKindToLSP(kind model.SymbolKind) protocol.SymbolKind {
	switch kind {
	case model.KindNamespace:
		return protocol.SymbolKindNamespace
	case model.KindClass:
		return protocol.SymbolKindClass
	case model.KindInterface:
		return protocol.SymbolKindInterface
	case model.KindTrait:
		return protocol.SymbolKindStruct
	case model.KindEnum:
		return protocol.SymbolKindEnum
	case model.KindEnumCase:
		return protocol.SymbolKindEnumMember
	case model.KindFunction:
		return protocol.SymbolKindFunction
	case model.KindMethod:
		return protocol.SymbolKindMethod
	case model.KindProperty:
		return protocol.SymbolKindProperty
	case model.KindClassConstant, model.KindGlobalConstant:
		return protocol.SymbolKindConstant
	default:
		return protocol.SymbolKindVariable
	}
}

// --- workspace symbols ---

func (s *Server) workspaceSymbol(_ *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	matches := s.idx.Search(params.Query)
	out := make([]protocol.SymbolInformation, 0, len(matches))
	for _, sym := range matches {
		out = append(out, protocol.SymbolInformation{
			Name: sym.Name,
			Kind: symbolKindToLSP(sym.Kind),
			Location: protocol.Location{
				URI:   protocol.DocumentUri(sym.URI),
				Range: toProtocolRange(sym.SelectionRange),
			},
		})
	}
	return out, nil
}

// --- rename ---

// errNoRenameTarget means the position resolved to nothing renameable --
// not an error condition for the client, just an empty result.
var errNoRenameTarget = errors.New("no rename target at position")

// identifierPattern is PHP's unqualified-name grammar: a leading letter or
// underscore, then letters, digits, or underscores.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// renameTarget resolves what rename/prepareRename operate on at uri/line/col,
// rejecting local variables (scope soundness is out of reach without
// dataflow analysis) and default-library symbols (phpstorm-stubs, never a
// file the workspace owns) before either handler does any work.
func (s *Server) renameTarget(uri string, line, col int) (resolve.SymbolAtPosition, model.SymbolKind, error) {
	tree, source, fs, ok := s.fileState(uri)
	if !ok {
		return resolve.SymbolAtPosition{}, "", errNoRenameTarget
	}

	at, ok := resolve.SymbolAt(tree, source, line, col, fs)
	if !ok || at.FQN == "" {
		return resolve.SymbolAtPosition{}, "", errNoRenameTarget
	}
	if at.RefKind == resolve.RefVariable {
		return resolve.SymbolAtPosition{}, "", fmt.Errorf("renaming local variables is not supported")
	}
	if sym, ok := s.resolveFQN(at.FQN); ok && sym.Modifiers.DefaultLibrary {
		return resolve.SymbolAtPosition{}, "", fmt.Errorf("cannot rename a built-in symbol")
	}

	kind, ok := s.kindOf(at)
	if !ok {
		return resolve.SymbolAtPosition{}, "", errNoRenameTarget
	}
	return at, kind, nil
}

// validateNewName rejects anything that can't be a bare PHP identifier --
// rename never moves a symbol across a namespace.
func validateNewName(name string) error {
	if name == "" {
		return fmt.Errorf("new name must not be empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("new name must not contain whitespace")
	}
	if strings.Contains(name, "\\") {
		return fmt.Errorf("new name must not contain a namespace separator")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%q is not a valid PHP identifier", name)
	}
	return nil
}

func (s *Server) prepareRename(_ *glsp.Context, params *protocol.PrepareRenameParams) (any, error) {
	uri := string(params.TextDocument.URI)
	line, col := int(params.Position.Line), int(params.Position.Character)

	at, _, err := s.renameTarget(uri, line, col)
	if err != nil {
		if errors.Is(err, errNoRenameTarget) {
			return nil, nil
		}
		return nil, err
	}
	rng := toProtocolRange(at.Range)
	return &rng, nil
}

func (s *Server) rename(_ *glsp.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	uri := string(params.TextDocument.URI)
	line, col := int(params.Position.Line), int(params.Position.Character)

	at, kind, err := s.renameTarget(uri, line, col)
	if err != nil {
		if errors.Is(err, errNoRenameTarget) {
			return nil, nil
		}
		return nil, err
	}
	if err := validateNewName(params.NewName); err != nil {
		return nil, err
	}

	changes := make(map[protocol.DocumentUri][]protocol.TextEdit)
	for _, candidateURI := range s.idx.URIs() {
		cTree, cSource, cFS, ok := s.fileState(candidateURI)
		if !ok {
			continue
		}
		for _, rng := range references.FindInFile(cTree, cSource, cFS, at.FQN, kind, true) {
			changes[protocol.DocumentUri(candidateURI)] = append(changes[protocol.DocumentUri(candidateURI)], protocol.TextEdit{
				Range:   toProtocolRange(rng),
				NewText: params.NewName,
			})
		}
	}
	if len(changes) == 0 {
		return nil, nil
	}
	return &protocol.WorkspaceEdit{Changes: changes}, nil
}

// --- shared helpers ---

// fileState returns the parse tree, source, and symbol contribution for
// uri: from the open-document store if it's being edited, or parsed
// transiently from disk otherwise (a reference in another file the user
// hasn't opened still needs to participate in find-references and rename).
func (s *Server) fileState(uri string) (*sitter.Tree, []byte, *model.FileSymbols, bool) {
	if doc := s.docs.Get(uri); doc != nil {
		fs := s.idx.FileSymbols(uri)
		if fs == nil {
			fs = extract.FileSymbols(doc.Tree(), doc.Source(), uri)
		}
		return doc.Tree(), doc.Source(), fs, true
	}

	path := uriToPath(uri)
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, false
	}
	doc, err := phpparser.NewDocument(context.Background(), source)
	if err != nil {
		return nil, nil, nil, false
	}
	fs := s.idx.FileSymbols(uri)
	if fs == nil {
		fs = extract.FileSymbols(doc.Tree(), source, uri)
	}
	return doc.Tree(), source, fs, true
}

func toProtocolRange(r model.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.StartLine), Character: uint32(r.StartCol)},
		End:   protocol.Position{Line: uint32(r.EndLine), Character: uint32(r.EndCol)},
	}
}

func toProtocolDiagnostics(diags []model.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		sev := severityToLSP(d.Severity)
		out = append(out, protocol.Diagnostic{
			Range:    toProtocolRange(d.Range),
			Severity: &sev,
			Code:     &protocol.IntegerOrString{Value: d.Code},
			Source:   strPtr("phpls"),
			Message:  d.Message,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Start.Line != out[j].Range.Start.Line {
			return out[i].Range.Start.Line < out[j].Range.Start.Line
		}
		return out[i].Range.Start.Character < out[j].Range.Start.Character
	})
	return out
}

func severityToLSP(sev model.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case model.SeverityError:
		return protocol.DiagnosticSeverityError
	case model.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case model.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	case model.SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityWarning
	}
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func uriToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return u.Path
}

func pathToURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
