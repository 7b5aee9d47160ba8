package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"phpls/pkg/index"
	"phpls/pkg/model"
)

func TestKeywordCompletion(t *testing.T) {
	idx := index.New()
	items := Provide(Context{Kind: KindFree, Prefix: "cla"}, idx, &model.FileSymbols{})

	found := false
	for _, it := range items {
		if it.Label == "class" {
			found = true
		}
	}
	assert.True(t, found, "should contain 'class' keyword")
}

func TestClassCompletion(t *testing.T) {
	idx := index.New()
	fs := &model.FileSymbols{
		Namespace: "App",
		Symbols: []model.Symbol{
			{Name: "UserService", FQN: `App\UserService`, Kind: model.KindClass},
		},
	}
	idx.UpdateFile("file:///test.php", fs)

	items := Provide(Context{Kind: KindFree, Prefix: "User"}, idx, fs)

	found := false
	for _, it := range items {
		if it.Label == "UserService" {
			found = true
		}
	}
	assert.True(t, found, "should find UserService")
}

func TestVariableCompletion(t *testing.T) {
	fs := &model.FileSymbols{
		Symbols: []model.Symbol{
			{
				Name: "test", FQN: "test", Kind: model.KindFunction,
				Signature: &model.Signature{
					Params: []model.Parameter{
						{Name: "username", Type: &model.TypeExpr{Kind: model.TypeNamed, Name: "string"}},
					},
				},
			},
		},
	}
	idx := index.New()

	items := Provide(Context{Kind: KindVariable, Prefix: "user"}, idx, fs)

	found := false
	for _, it := range items {
		if it.Label == "$username" {
			found = true
		}
	}
	assert.True(t, found, "should find $username")
}

func TestMemberCompletionUsesInferredClassFQN(t *testing.T) {
	fs := &model.FileSymbols{
		Namespace: "App",
		Symbols: []model.Symbol{
			{Name: "Baz", FQN: `App\Test\Baz`, Kind: model.KindClass},
			{
				Name: "test", FQN: `App\Test\Baz::test`, Kind: model.KindMethod,
				ParentFQN: `App\Test\Baz`,
				Signature: &model.Signature{},
			},
		},
	}
	idx := index.New()
	idx.UpdateFile("file:///test.php", fs)

	items := Provide(Context{Kind: KindMemberAccess, ObjectExpr: "$baz2", ClassFQN: `App\Test\Baz`}, idx, fs)

	found := false
	for _, it := range items {
		if it.Label == "test" {
			found = true
		}
	}
	assert.True(t, found, "should include members of inferred class")
}
