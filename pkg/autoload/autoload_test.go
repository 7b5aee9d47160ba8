package autoload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPSR4Basic(t *testing.T) {
	doc := `{"autoload": {"psr-4": {"App\\": "src/"}}}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	paths := nm.ResolveClass(`App\Service\UserService`)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join("/project", "src", "Service", "UserService.php"), paths[0])
}

func TestPSR4WithDev(t *testing.T) {
	doc := `{
		"autoload": {"psr-4": {"App\\": "src/"}},
		"autoload-dev": {"psr-4": {"App\\Tests\\": "tests/"}}
	}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	prod := nm.ResolveClass(`App\Foo`)
	require.Len(t, prod, 1)

	test := nm.ResolveClass(`App\Tests\FooTest`)
	require.Len(t, test, 1)
	assert.Equal(t, filepath.Join("/project", "tests", "FooTest.php"), test[0])
}

func TestPSR4MultipleDirs(t *testing.T) {
	doc := `{"autoload": {"psr-4": {"App\\": ["src/", "lib/"]}}}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	paths := nm.ResolveClass(`App\Foo`)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join("/project", "src", "Foo.php"), paths[0])
	assert.Equal(t, filepath.Join("/project", "lib", "Foo.php"), paths[1])
}

func TestClassmapAndFiles(t *testing.T) {
	doc := `{
		"autoload": {
			"classmap": ["database/"],
			"files": ["helpers/functions.php"]
		}
	}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	assert.Contains(t, nm.SourceDirectories(), filepath.Join("/project", "database"))
	assert.Equal(t, []string{filepath.Join("/project", "helpers", "functions.php")}, nm.Files())
}

func TestResolveClassNotMatching(t *testing.T) {
	doc := `{"autoload": {"psr-4": {"App\\": "src/"}}}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	assert.Empty(t, nm.ResolveClass(`Other\Foo`))
}

func TestSourceDirectories(t *testing.T) {
	doc := `{"autoload": {"psr-4": {"App\\": "src/", "Other\\": "other/"}}}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	dirs := nm.SourceDirectories()
	assert.Contains(t, dirs, filepath.Join("/project", "src"))
	assert.Contains(t, dirs, filepath.Join("/project", "other"))
}

func TestEmptyComposerJSON(t *testing.T) {
	nm, err := Parse([]byte(`{}`), "/project")
	require.NoError(t, err)
	assert.Empty(t, nm.ResolveClass(`App\Foo`))
	assert.Empty(t, nm.SourceDirectories())
	assert.Empty(t, nm.Files())
}

func TestPSR0Resolution(t *testing.T) {
	doc := `{"autoload": {"psr-0": {"App_": "src/"}}}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	paths := nm.ResolveClass(`App_Service_UserService`)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join("/project", "src", "App", "Service", "UserService.php"), paths[0])
}

func TestRealWorldLaravelShape(t *testing.T) {
	doc := `{
		"autoload": {
			"psr-4": {"App\\": "app/"},
			"files": ["app/helpers.php"]
		},
		"autoload-dev": {
			"psr-4": {"Tests\\": "tests/"}
		}
	}`
	nm, err := Parse([]byte(doc), "/project")
	require.NoError(t, err)

	app := nm.ResolveClass(`App\Http\Controllers\HomeController`)
	require.Len(t, app, 1)
	assert.Equal(t, filepath.Join("/project", "app", "Http", "Controllers", "HomeController.php"), app[0])

	tests := nm.ResolveClass(`Tests\Unit\ExampleTest`)
	require.Len(t, tests, 1)

	assert.Equal(t, []string{filepath.Join("/project", "app", "helpers.php")}, nm.Files())
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	composerPath := filepath.Join(dir, "composer.json")
	require.NoError(t, os.WriteFile(composerPath, []byte(`{"autoload": {"psr-4": {"App\\": "src/"}}}`), 0o644))

	nm, err := Load(composerPath)
	require.NoError(t, err)
	assert.Equal(t, dir, nm.BaseDir())

	paths := nm.ResolveClass(`App\Foo`)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "src", "Foo.php"), paths[0])
}
