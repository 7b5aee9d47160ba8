// Package phpparser wraps tree-sitter's PHP grammar with an incremental
// reparse strategy driven directly by LSP edit ranges.
package phpparser

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"phpls/pkg/rope"
)

// Document holds the live parse state for a single open PHP file: its text
// buffer and the tree-sitter tree incrementally kept in sync with it.
type Document struct {
	buf  *rope.Buffer
	tree *sitter.Tree
}

// NewDocument parses source in full, as on textDocument/didOpen.
func NewDocument(ctx context.Context, source []byte) (*Document, error) {
	d := &Document{buf: rope.New(source)}
	tree, err := parse(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	d.tree = tree
	return d, nil
}

// Buffer returns the document's current text buffer.
func (d *Document) Buffer() *rope.Buffer { return d.buf }

// Tree returns the current tree-sitter parse tree. Callers must not retain
// it across a call to ApplyEdit or Replace, which invalidate it.
func (d *Document) Tree() *sitter.Tree { return d.tree }

// Source returns the document's current text.
func (d *Document) Source() []byte { return d.buf.Bytes() }

// ApplyEdit applies one incremental textDocument/didChange edit: rng and
// newText describe the change in LSP (0-based line/character) coordinates.
// The tree-sitter tree is told about the edit via Tree.Edit before
// reparsing, so the parser can reuse unaffected subtrees.
func (d *Document) ApplyEdit(ctx context.Context, rng rope.Range, newText []byte) error {
	startByte, err := d.buf.ByteOffset(rng.Start)
	if err != nil {
		return err
	}
	oldEndByte, err := d.buf.ByteOffset(rng.End)
	if err != nil {
		return err
	}

	startPoint := d.toPoint(rng.Start)
	oldEndPoint := d.toPoint(rng.End)

	if err := d.buf.Edit(rng, newText); err != nil {
		return err
	}

	newEndByte := startByte + len(newText)
	newEndPos, err := d.buf.PositionAt(newEndByte)
	if err != nil {
		return err
	}

	if d.tree != nil {
		d.tree.Edit(sitter.EditInput{
			StartIndex:  uint32(startByte),
			OldEndIndex: uint32(oldEndByte),
			NewEndIndex: uint32(newEndByte),
			StartPoint:  startPoint,
			OldEndPoint: oldEndPoint,
			NewEndPoint: d.toPoint(newEndPos),
		})
	}

	tree, err := parse(ctx, d.tree, d.buf.Bytes())
	if err != nil {
		return err
	}
	d.tree = tree
	return nil
}

// Replace discards the current content and tree, performing a full reparse.
// Used when a didChange notification sends the whole document instead of a
// range, or when incremental state has diverged.
func (d *Document) Replace(ctx context.Context, source []byte) error {
	d.buf.Replace(source)
	tree, err := parse(ctx, nil, source)
	if err != nil {
		return err
	}
	d.tree = tree
	return nil
}

func parse(ctx context.Context, oldTree *sitter.Tree, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(php.GetLanguage())
	return parser.ParseCtx(ctx, oldTree, source)
}

// toPoint converts an LSP code-point Position into a tree-sitter Point,
// whose Column is a byte offset from the start of the line, not a code-point
// count. Lines holding multibyte text would otherwise point Tree.Edit's
// reuse hints at the wrong byte.
func (d *Document) toPoint(pos rope.Position) sitter.Point {
	lineStart, err := d.buf.ByteOffset(rope.Position{Line: pos.Line, Character: 0})
	if err != nil {
		return sitter.Point{Row: uint32(pos.Line), Column: uint32(pos.Character)}
	}
	byteOffset, err := d.buf.ByteOffset(pos)
	if err != nil {
		return sitter.Point{Row: uint32(pos.Line), Column: uint32(pos.Character)}
	}
	return sitter.Point{Row: uint32(pos.Line), Column: uint32(byteOffset - lineStart)}
}
