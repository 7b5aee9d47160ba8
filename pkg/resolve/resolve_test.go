package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpls/pkg/extract"
	"phpls/pkg/phpparser"
)

func parseAndResolve(t *testing.T, code string, line, col int) (SymbolAtPosition, bool) {
	doc, err := phpparser.NewDocument(context.Background(), []byte(code))
	require.NoError(t, err)
	fs := extract.FileSymbols(doc.Tree(), []byte(code), "file:///test.php")
	return SymbolAt(doc.Tree(), []byte(code), line, col, fs)
}

func parseAndFindVarDef(t *testing.T, code string, line, col int) (int, bool) {
	doc, err := phpparser.NewDocument(context.Background(), []byte(code))
	require.NoError(t, err)
	r, ok := VariableDefinitionAt(doc.Tree(), []byte(code), line, col)
	if !ok {
		return 0, false
	}
	return r.StartLine, true
}

func parseAndInferVarTypeAt(t *testing.T, code string, line, col int, varName string) (string, bool) {
	doc, err := phpparser.NewDocument(context.Background(), []byte(code))
	require.NoError(t, err)
	fs := extract.FileSymbols(doc.Tree(), []byte(code), "file:///test.php")
	return InferVariableTypeAt(doc.Tree(), []byte(code), fs, line, col, varName)
}

func findLineCol(t *testing.T, code, needle string) (int, int) {
	for line, row := range strings.Split(code, "\n") {
		if col := strings.Index(row, needle); col >= 0 {
			return line, col
		}
	}
	t.Fatalf("needle not found: %s", needle)
	return 0, 0
}

func TestResolveClassNameWithUse(t *testing.T) {
	code := "<?php\nuse App\\Service\\UserService;\n\nnew UserService();\n"
	sym, ok := parseAndResolve(t, code, 3, 5)
	require.True(t, ok)
	assert.Equal(t, `App\Service\UserService`, sym.FQN)
	assert.Equal(t, RefClassName, sym.RefKind)
}

func TestResolveFunctionCall(t *testing.T) {
	code := "<?php\nnamespace App;\n\nstrlen('hello');\n"
	sym, ok := parseAndResolve(t, code, 3, 0)
	require.True(t, ok)
	assert.Equal(t, RefFunctionCall, sym.RefKind)
}

func TestResolveQualifiedFunctionCallWithoutDoubleNamespace(t *testing.T) {
	code := "<?php\nnamespace App\\Diagnostics;\n\nApp\\Utils\\helper();\n"
	sym, ok := parseAndResolve(t, code, 3, 13)
	require.True(t, ok)
	assert.Equal(t, RefFunctionCall, sym.RefKind)
	assert.Equal(t, `App\Utils\helper`, sym.FQN)
}

func TestResolveClassDefinition(t *testing.T) {
	code := "<?php\nnamespace App;\n\nclass Foo {\n}\n"
	sym, ok := parseAndResolve(t, code, 3, 6)
	require.True(t, ok)
	assert.Equal(t, "Foo", sym.Name)
	assert.Equal(t, `App\Foo`, sym.FQN)
}

func TestResolveMethodCallOnNew(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Foo;\n\n(new Foo())->increment(5);\n"
	sym, ok := parseAndResolve(t, code, 4, 13)
	require.True(t, ok, "should resolve method call on new expression")
	assert.Equal(t, "increment", sym.Name)
	assert.Equal(t, RefMethodCall, sym.RefKind)
	assert.Equal(t, `App\Foo::increment`, sym.FQN)
}

func TestResolveMethodCallOnThis(t *testing.T) {
	code := "<?php\nnamespace App;\n\nclass Foo {\n    public function bar(): void {\n        $this->baz();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 5, 16)
	require.True(t, ok, "should resolve method call on $this")
	assert.Equal(t, "baz", sym.Name)
	assert.Equal(t, RefMethodCall, sym.RefKind)
	assert.Equal(t, `App\Foo::baz`, sym.FQN)
}

func TestResolvePropertyAccessOnThis(t *testing.T) {
	code := "<?php\nnamespace App;\n\nclass Foo {\n    private string $name;\n    public function bar(): string {\n        return $this->name;\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 6, 22)
	require.True(t, ok, "should resolve property access on $this")
	assert.Equal(t, "name", sym.Name)
	assert.Equal(t, `App\Foo::$name`, sym.FQN)
	assert.Equal(t, RefPropertyAccess, sym.RefKind)
}

func TestResolveFullyQualified(t *testing.T) {
	code := "<?php\n\\DateTime::createFromFormat('Y-m-d', '2024-01-01');\n"
	_, ok := parseAndResolve(t, code, 1, 1)
	assert.True(t, ok)
}

func TestResolveMethodCallOnVariableAssignedNew(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(): void {\n        $baz = new Baz();\n        $baz->test();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 7, 15)
	require.True(t, ok, "should resolve method on variable assigned via new")
	assert.Equal(t, "test", sym.Name)
	assert.Equal(t, RefMethodCall, sym.RefKind)
	assert.Equal(t, `App\Test\Baz::test`, sym.FQN)
}

func TestResolveMethodCallOnTypedParameter(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(Baz $baz2): void {\n        $baz2->test();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 6, 16)
	require.True(t, ok, "should resolve method on typed parameter")
	assert.Equal(t, "test", sym.Name)
	assert.Equal(t, RefMethodCall, sym.RefKind)
	assert.Equal(t, `App\Test\Baz::test`, sym.FQN)
}

func TestResolvePropertyAccessOnTypedParameter(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(Baz $baz2): void {\n        echo $baz2->name;\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 6, 20)
	require.True(t, ok, "should resolve property on typed parameter")
	assert.Equal(t, "name", sym.Name)
	assert.Equal(t, `App\Test\Baz::$name`, sym.FQN)
	assert.Equal(t, RefPropertyAccess, sym.RefKind)
}

func TestResolveMethodCallOnVariableTypedByInlinePhpdocVar(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(): void {\n        /** @var Baz $baz2 */\n        $baz2 = makeBaz();\n        $baz2->test();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 8, 16)
	require.True(t, ok, "should resolve method on variable typed by inline @var")
	assert.Equal(t, "test", sym.Name)
	assert.Equal(t, RefMethodCall, sym.RefKind)
	assert.Equal(t, `App\Test\Baz::test`, sym.FQN)
}

func TestInlinePhpdocVarMustMatchVariableName(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(): void {\n        /** @var Baz $other */\n        $baz2 = makeBaz();\n        $baz2->test();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 8, 16)
	require.True(t, ok, "symbol should resolve")
	assert.NotEqual(t, `App\Test\Baz::test`, sym.FQN)
}

func TestUnnamedInlinePhpdocVarAppliesToImmediateAssignment(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(): void {\n        /** @var Baz */\n        $baz2 = makeBaz();\n        $baz2->test();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 8, 16)
	require.True(t, ok, "symbol should resolve")
	assert.Equal(t, `App\Test\Baz::test`, sym.FQN)
}

func TestUnnamedInlinePhpdocVarDoesNotApplyWithoutAssignment(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nclass Bar {\n    public function greet(): void {\n        /** @var Baz */\n        consume($baz2);\n        $baz2->test();\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 8, 16)
	require.True(t, ok, "symbol should resolve")
	assert.NotEqual(t, `App\Test\Baz::test`, sym.FQN)
}

func TestInferVariableTypeAtPositionFromInlinePhpdocVar(t *testing.T) {
	code := "<?php\nnamespace App;\nuse App\\Test\\Baz;\n\nfunction run(): void {\n    /** @var Baz $baz2 */\n    $baz2 = makeBaz();\n    $baz2->\n}\n"
	inferred, ok := parseAndInferVarTypeAt(t, code, 7, 11, "$baz2")
	require.True(t, ok, "type should be inferred")
	assert.Equal(t, `App\Test\Baz`, inferred)
}

func TestResolvePropertyVsMethodSameName(t *testing.T) {
	code := "<?php\nnamespace App\\Test;\n\nclass Baz {\n    public string $test = 'x';\n    public function test(): string { return 'ok'; }\n}\n\nfunction go(Baz $baz2): void {\n    echo $baz2->test;\n    $baz2->test();\n}\n"

	prop, ok := parseAndResolve(t, code, 9, 17)
	require.True(t, ok, "property should resolve")
	assert.Equal(t, RefPropertyAccess, prop.RefKind)
	assert.Equal(t, `App\Test\Baz::$test`, prop.FQN)

	method, ok := parseAndResolve(t, code, 10, 12)
	require.True(t, ok, "method should resolve")
	assert.Equal(t, RefMethodCall, method.RefKind)
	assert.Equal(t, `App\Test\Baz::test`, method.FQN)
}

func TestResolveClassConstantAccess(t *testing.T) {
	code := "<?php\nnamespace App;\n\nclass Foo {\n    public const VERSION = '1.0';\n    public function run(): string {\n        return self::VERSION;\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 6, 21)
	require.True(t, ok, "should resolve class constant access")
	assert.Equal(t, RefClassConstant, sym.RefKind)
	assert.Equal(t, `App\Foo::VERSION`, sym.FQN)
}

func TestResolveGlobalConstantReference(t *testing.T) {
	code := "<?php\nnamespace App;\n\nconst BUILD = 'dev';\n\necho BUILD;\n"
	sym, ok := parseAndResolve(t, code, 5, 5)
	require.True(t, ok, "should resolve global constant usage")
	assert.Equal(t, RefGlobalConstant, sym.RefKind)
	assert.Equal(t, `App\BUILD`, sym.FQN)
}

func TestFindVariableDefinitionAssignment(t *testing.T) {
	code := "<?php\nfunction demo(): void {\n    $value = 1;\n    echo $value;\n}\n"
	line, ok := parseAndFindVarDef(t, code, 3, 10)
	require.True(t, ok, "definition should be found")
	assert.Equal(t, 2, line)
}

func TestFindVariableDefinitionParameter(t *testing.T) {
	code := "<?php\nfunction demo(string $name): void {\n    echo $name;\n}\n"
	line, ok := parseAndFindVarDef(t, code, 2, 10)
	require.True(t, ok, "parameter definition should be found")
	assert.Equal(t, 1, line)
}

func TestResolveGlobalConstantInMethodBody(t *testing.T) {
	code := "<?php\nnamespace App;\n\nconst BUILD = 'dev';\n\nclass Demo {\n    public const VERSION = '1.0';\n\n    public function run(): string {\n        $value = BUILD;\n        return self::VERSION . $value;\n    }\n}\n"
	sym, ok := parseAndResolve(t, code, 9, 17)
	require.True(t, ok, "BUILD symbol should resolve")
	assert.Equal(t, RefGlobalConstant, sym.RefKind)
	assert.Equal(t, `App\BUILD`, sym.FQN)
}

func TestResolveStaticPropertyAccessVariants(t *testing.T) {
	code := "<?php\nnamespace App;\n\nclass User { public static string $var = 'u'; }\n\nclass Demo {\n    public static string $created = 'c';\n    public static string $var = 'd';\n\n    public function run(): void {\n        echo self::$created;\n        echo static::$var;\n        echo User::$var;\n    }\n}\n"

	l1, c1 := findLineCol(t, code, "self::$created")
	selfProp, ok := parseAndResolve(t, code, l1, c1+8)
	require.True(t, ok, "self::$created should resolve")
	assert.Equal(t, RefStaticPropertyAccess, selfProp.RefKind)
	assert.Equal(t, `App\Demo::$created`, selfProp.FQN)

	l2, c2 := findLineCol(t, code, "static::$var")
	staticProp, ok := parseAndResolve(t, code, l2, c2+9)
	require.True(t, ok, "static::$var should resolve")
	assert.Equal(t, RefStaticPropertyAccess, staticProp.RefKind)
	assert.Equal(t, `App\Demo::$var`, staticProp.FQN)

	l3, c3 := findLineCol(t, code, "User::$var")
	userProp, ok := parseAndResolve(t, code, l3, c3+7)
	require.True(t, ok, "User::$var should resolve")
	assert.Equal(t, RefStaticPropertyAccess, userProp.RefKind)
	assert.Equal(t, `App\User::$var`, userProp.FQN)
}

func TestResolveParentMethodCall(t *testing.T) {
	code := "<?php\nnamespace App;\n\nclass Base {\n    public function greet(): string { return 'base'; }\n}\n\nclass Child extends Base {\n    public function greet(): string {\n        return parent::greet();\n    }\n}\n"
	l, c := findLineCol(t, code, "parent::greet")
	sym, ok := parseAndResolve(t, code, l, c+9)
	require.True(t, ok, "parent::greet() should resolve")
	assert.Equal(t, RefMethodCall, sym.RefKind)
	assert.Equal(t, `App\Base::greet`, sym.FQN)
}
