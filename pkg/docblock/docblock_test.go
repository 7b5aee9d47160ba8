package docblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phpls/pkg/model"
)

func TestParseSummaryOnly(t *testing.T) {
	d := Parse("/**\n * Formats a user's display name.\n */")
	assert.Equal(t, "Formats a user's display name.", d.Summary)
}

func TestParseMultilineSummary(t *testing.T) {
	d := Parse("/**\n * Formats a user's display name.\n * Falls back to the email address.\n */")
	assert.Equal(t, "Formats a user's display name. Falls back to the email address.", d.Summary)
}

func TestParseSummaryStopsAtBlankLine(t *testing.T) {
	d := Parse("/**\n * Summary line.\n *\n * Extra paragraph not part of the summary.\n */")
	assert.Equal(t, "Summary line.", d.Summary)
}

func TestParseParamWithDescription(t *testing.T) {
	d := Parse("/**\n * @param string $name The user's name.\n */")
	require.Len(t, d.Params, 1)
	p := d.Params[0]
	assert.Equal(t, "name", p.Name)
	require.NotNil(t, p.Type)
	assert.Equal(t, "string", p.Type.Name)
	assert.Equal(t, "The user's name.", p.Description)
}

func TestParseParamWithoutType(t *testing.T) {
	d := Parse("/**\n * @param $name\n */")
	require.Len(t, d.Params, 1)
	assert.Equal(t, "name", d.Params[0].Name)
	assert.Nil(t, d.Params[0].Type)
}

func TestParseReturnUnionType(t *testing.T) {
	d := Parse("/**\n * @return int|false\n */")
	require.NotNil(t, d.ReturnType)
	assert.Equal(t, model.TypeUnion, d.ReturnType.Kind)
	assert.Equal(t, "int|false", d.ReturnType.String())
}

func TestParseVarWithName(t *testing.T) {
	d := Parse("/**\n * @var Collection $items\n */")
	require.NotNil(t, d.VarType)
	assert.Equal(t, "Collection", d.VarType.Name)
	assert.Equal(t, "items", d.VarName)
}

func TestParseVarWithoutName(t *testing.T) {
	d := Parse("/**\n * @var Collection\n */")
	require.NotNil(t, d.VarType)
	assert.Equal(t, "Collection", d.VarType.Name)
	assert.Equal(t, "", d.VarName)
}

func TestParseMultipleThrows(t *testing.T) {
	d := Parse("/**\n * @throws InvalidArgumentException\n * @throws \\RuntimeException\n */")
	require.Len(t, d.Throws, 2)
	assert.Equal(t, "InvalidArgumentException", d.Throws[0].Name)
	assert.Equal(t, `\RuntimeException`, d.Throws[1].Name)
}

func TestParseDeprecatedWithMessage(t *testing.T) {
	d := Parse("/**\n * @deprecated Use newMethod() instead.\n */")
	assert.True(t, d.Deprecated)
	assert.Equal(t, "Use newMethod() instead.", d.DeprecatedText)
}

func TestParseDeprecatedBare(t *testing.T) {
	d := Parse("/**\n * @deprecated\n */")
	assert.True(t, d.Deprecated)
	assert.Equal(t, "Deprecated", d.DeprecatedText)
}

func TestParseProperty(t *testing.T) {
	d := Parse("/**\n * @property string $name\n * @property-read int $id\n * @property-write bool $active\n */")
	require.Len(t, d.Properties, 3)
	assert.Equal(t, model.AccessReadWrite, d.Properties[0].Access)
	assert.Equal(t, "name", d.Properties[0].Name)
	assert.Equal(t, model.AccessRead, d.Properties[1].Access)
	assert.Equal(t, "id", d.Properties[1].Name)
	assert.Equal(t, model.AccessWrite, d.Properties[2].Access)
	assert.Equal(t, "active", d.Properties[2].Name)
}

func TestParseMethodStatic(t *testing.T) {
	d := Parse("/**\n * @method static Builder create(array $attrs)\n */")
	require.Len(t, d.Methods, 1)
	m := d.Methods[0]
	assert.True(t, m.Static)
	assert.Equal(t, "create", m.Name)
	require.NotNil(t, m.ReturnType)
	assert.Equal(t, "Builder", m.ReturnType.Name)
}

func TestParseMethodInstance(t *testing.T) {
	d := Parse("/**\n * @method int count()\n */")
	require.Len(t, d.Methods, 1)
	m := d.Methods[0]
	assert.False(t, m.Static)
	assert.Equal(t, "count", m.Name)
}

func TestParseNullableType(t *testing.T) {
	d := Parse("/**\n * @param ?string $maybe\n */")
	require.Len(t, d.Params, 1)
	require.NotNil(t, d.Params[0].Type)
	assert.Equal(t, model.TypeNullable, d.Params[0].Type.Kind)
	assert.Equal(t, "?string", d.Params[0].Type.String())
}

func TestParseIntersectionType(t *testing.T) {
	got := ParseTypeString("Countable&Iterator")
	assert.Equal(t, model.TypeIntersection, got.Kind)
	assert.Equal(t, "Countable&Iterator", got.String())
}

func TestParseByRefParamNotMistakenForIntersection(t *testing.T) {
	got := ParseTypeString("int&$value")
	assert.Equal(t, model.TypeNamed, got.Kind)
}

func TestParseFullCombined(t *testing.T) {
	comment := "/**\n" +
		" * Creates a new order.\n" +
		" *\n" +
		" * @param int $customerId The customer's id.\n" +
		" * @param string|null $note\n" +
		" * @return self\n" +
		" * @throws \\DomainException\n" +
		" * @deprecated Use OrderFactory instead.\n" +
		" */"
	d := Parse(comment)
	assert.Equal(t, "Creates a new order.", d.Summary)
	require.Len(t, d.Params, 2)
	assert.Equal(t, "customerId", d.Params[0].Name)
	assert.Equal(t, "int", d.Params[0].Type.Name)
	assert.Equal(t, "note", d.Params[1].Name)
	assert.Equal(t, model.TypeUnion, d.Params[1].Type.Kind)
	require.NotNil(t, d.ReturnType)
	assert.Equal(t, model.TypeSelf, d.ReturnType.Kind)
	require.Len(t, d.Throws, 1)
	assert.True(t, d.Deprecated)
	assert.Equal(t, "Use OrderFactory instead.", d.DeprecatedText)
}
