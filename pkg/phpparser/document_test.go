package phpparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpls/pkg/rope"
)

func TestNewDocumentSimpleClass(t *testing.T) {
	doc, err := NewDocument(context.Background(), []byte("<?php\nclass Foo {\n    public function bar(): void {}\n}\n"))
	require.NoError(t, err)
	root := doc.Tree().RootNode()
	assert.Equal(t, "program", root.Type())
	assert.False(t, root.HasError())
}

func TestNewDocumentWithSyntaxError(t *testing.T) {
	doc, err := NewDocument(context.Background(), []byte("<?php\nfunction foo( {\n}\n"))
	require.NoError(t, err)
	assert.True(t, doc.Tree().RootNode().HasError())
}

func TestApplyEditRenamesClass(t *testing.T) {
	doc, err := NewDocument(context.Background(), []byte("<?php\nclass Foo {}\n"))
	require.NoError(t, err)

	err = doc.ApplyEdit(context.Background(), rope.Range{
		Start: rope.Position{Line: 1, Character: 6},
		End:   rope.Position{Line: 1, Character: 9},
	}, []byte("Bar"))
	require.NoError(t, err)

	assert.Contains(t, string(doc.Source()), "class Bar {}")
	assert.False(t, doc.Tree().RootNode().HasError())
}

func TestApplyEditAfterMultibyteLine(t *testing.T) {
	// "// café\n" has 8 code points but 9 bytes (é is 2 bytes in UTF-8);
	// an edit on the line after it must still land on "Foo", since toPoint
	// counts the byte column from the start of the edited line.
	doc, err := NewDocument(context.Background(), []byte("<?php\n// café\nclass Foo {}\n"))
	require.NoError(t, err)

	err = doc.ApplyEdit(context.Background(), rope.Range{
		Start: rope.Position{Line: 2, Character: 6},
		End:   rope.Position{Line: 2, Character: 9},
	}, []byte("Bar"))
	require.NoError(t, err)

	assert.Contains(t, string(doc.Source()), "class Bar {}")
	assert.False(t, doc.Tree().RootNode().HasError())
}

func TestNewDocumentEmptyPhp(t *testing.T) {
	doc, err := NewDocument(context.Background(), []byte("<?php\n"))
	require.NoError(t, err)
	assert.False(t, doc.Tree().RootNode().HasError())
}

func TestNewDocumentMixedHTML(t *testing.T) {
	doc, err := NewDocument(context.Background(), []byte("<html><body><?php echo 'hello'; ?></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "program", doc.Tree().RootNode().Type())
	assert.False(t, doc.Tree().RootNode().HasError())
}

func TestReplaceWholesale(t *testing.T) {
	doc, err := NewDocument(context.Background(), []byte("<?php\nclass A {}\n"))
	require.NoError(t, err)
	err = doc.Replace(context.Background(), []byte("<?php\nclass B {}\n"))
	require.NoError(t, err)
	assert.Contains(t, string(doc.Source()), "class B {}")
}

func TestStoreOpenCloseLifecycle(t *testing.T) {
	s := NewStore()
	uri := "file:///tmp/a.php"
	require.NoError(t, s.Open(context.Background(), uri, 1, []byte("<?php\n")))

	assert.True(t, s.IsOpen(uri))
	assert.Equal(t, int32(1), s.Version(uri))
	assert.NotNil(t, s.Get(uri))

	s.SetVersion(uri, 2)
	assert.Equal(t, int32(2), s.Version(uri))

	s.Close(uri)
	assert.False(t, s.IsOpen(uri))
	assert.Nil(t, s.Get(uri))
	assert.Equal(t, int32(-1), s.Version(uri))
}
