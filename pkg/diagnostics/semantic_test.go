package diagnostics

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpls/pkg/extract"
	"phpls/pkg/model"
	"phpls/pkg/phpparser"
)

func dummySymbol() *model.Symbol {
	return &model.Symbol{Kind: model.KindClass, Visibility: model.VisibilityPublic}
}

func functionSymbol(fqn string, params []model.Parameter) *model.Symbol {
	name := fqn
	if i := strings.LastIndex(fqn, `\`); i >= 0 {
		name = fqn[i+1:]
	}
	return &model.Symbol{
		Name: name, FQN: fqn, Kind: model.KindFunction, Visibility: model.VisibilityPublic,
		Signature: &model.Signature{Params: params},
	}
}

func parseAndCheck(t *testing.T, code string, resolver Resolver) []model.Diagnostic {
	doc, err := phpparser.NewDocument(context.Background(), []byte(code))
	require.NoError(t, err)
	fs := extract.FileSymbols(doc.Tree(), []byte(code), "file:///test.php")
	return SemanticDiagnostics(doc.Tree(), []byte(code), fs, resolver)
}

func filterByCode(diags []model.Diagnostic, code string) []model.Diagnostic {
	var out []model.Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func anyMessageContains(diags []model.Diagnostic, substr string) bool {
	for _, d := range diags {
		if strings.Contains(d.Message, substr) {
			return true
		}
	}
	return false
}

func TestUnknownClassInNew(t *testing.T) {
	code := "<?php\nnamespace App;\n\nuse App\\Service\\UserService;\n\n$x = new UserService();\n$y = new UnknownClass();\n"
	diags := parseAndCheck(t, code, func(fqn string) (*model.Symbol, bool) {
		if fqn == `App\Service\UserService` {
			return dummySymbol(), true
		}
		return nil, false
	})

	unknown := filterByCode(diags, model.DiagUnknownType)
	assert.True(t, anyMessageContains(unknown, "UnknownClass"))
	assert.False(t, anyMessageContains(unknown, "UserService"))
}

func TestUnresolvedUse(t *testing.T) {
	code := "<?php\nnamespace App;\n\nuse App\\Service\\UserService;\nuse App\\Missing\\SomeClass;\n"
	diags := parseAndCheck(t, code, func(fqn string) (*model.Symbol, bool) {
		if fqn == `App\Service\UserService` {
			return dummySymbol(), true
		}
		return nil, false
	})

	unresolved := filterByCode(diags, model.DiagUnresolvedUse)
	require.Len(t, unresolved, 1)
	assert.Contains(t, unresolved[0].Message, `App\Missing\SomeClass`)
}

func TestUnknownNamespacedFunction(t *testing.T) {
	code := "<?php\nnamespace App;\n\nApp\\Utils\\helper();\n"
	diags := parseAndCheck(t, code, func(string) (*model.Symbol, bool) { return nil, false })

	unknownFuncs := filterByCode(diags, model.DiagUnknownFunction)
	assert.NotEmpty(t, unknownFuncs)
}

func TestNoFalsePositivesForBuiltins(t *testing.T) {
	code := "<?php\n$x = new \\stdClass();\nstrlen(\"hello\");\narray_map(fn($x) => $x, []);\n"
	diags := parseAndCheck(t, code, func(string) (*model.Symbol, bool) { return dummySymbol(), true })
	assert.Empty(t, diags)
}

func TestFunctionArgumentCountMismatchTooFew(t *testing.T) {
	code := "<?php\nnamespace App;\n\nfunction helper(string $a, string $b): void {}\nhelper();\n"
	diags := parseAndCheck(t, code, func(fqn string) (*model.Symbol, bool) {
		if fqn == `App\helper` {
			return functionSymbol(fqn, []model.Parameter{{Name: "a"}, {Name: "b"}}), true
		}
		return nil, false
	})

	argDiags := filterByCode(diags, model.DiagArgumentCountMismatch)
	assert.True(t, anyMessageContains(argDiags, `Too few arguments to App\helper()`))
}

func TestFunctionArgumentCountMismatchTooMany(t *testing.T) {
	code := "<?php\nnamespace App;\n\nfunction helper(string $a): void {}\nhelper(\"x\", \"y\");\n"
	diags := parseAndCheck(t, code, func(fqn string) (*model.Symbol, bool) {
		if fqn == `App\helper` {
			return functionSymbol(fqn, []model.Parameter{{Name: "a"}}), true
		}
		return nil, false
	})

	argDiags := filterByCode(diags, model.DiagArgumentCountMismatch)
	assert.True(t, anyMessageContains(argDiags, `Too many arguments to App\helper()`))
}
