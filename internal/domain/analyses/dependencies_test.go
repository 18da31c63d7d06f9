package analyses_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/repolens/internal/domain/analyses"
)

func TestExtractDependencies_PackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
  "name": "demo",
  "dependencies": {"express": "^4.18.2", "lodash": "~4.17.21", "left-pad": "1.3.0"},
  "devDependencies": {"jest": ">=29.0.0"}
}`)

	deps := analyses.ExtractDependencies(root, []analyses.ConfigFile{{Path: "package.json"}})
	assert.Len(t, deps, 4)

	byName := map[string]analyses.DependencyRecord{}
	for _, d := range deps {
		byName[d.Name] = d
	}
	assert.Equal(t, "4.18.2", byName["express"].Version)
	assert.Equal(t, "4.17.21", byName["lodash"].Version)
	assert.Equal(t, "1.3.0", byName["left-pad"].Version)
	assert.Equal(t, analyses.DepTypeRuntime, byName["express"].Type)
	assert.Equal(t, analyses.DepTypeDev, byName["jest"].Type)
	assert.Equal(t, "29.0.0", byName["jest"].Version)
	assert.Equal(t, "package.json", byName["express"].Manifest)
}

func TestExtractDependencies_RequirementsTxt(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements.txt", `# comment
flask==2.3.2

requests==2.31.0
no-version-here
pytest == 7.4.0
`)

	deps := analyses.ExtractDependencies(root, []analyses.ConfigFile{{Path: "requirements.txt"}})
	assert.Len(t, deps, 3)

	byName := map[string]string{}
	for _, d := range deps {
		assert.Equal(t, "requirements.txt", d.Manifest)
		byName[d.Name] = d.Version
	}
	assert.Equal(t, "2.3.2", byName["flask"])
	assert.Equal(t, "2.31.0", byName["requests"])
	assert.Equal(t, "7.4.0", byName["pytest"])
}

func TestExtractDependencies_GoMod(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", `module example.com/demo

go 1.22

require github.com/google/uuid v1.6.0

require (
	github.com/go-chi/chi/v5 v5.2.2
	gopkg.in/yaml.v3 v3.0.1 // indirect
)
`)

	deps := analyses.ExtractDependencies(root, []analyses.ConfigFile{{Path: "go.mod"}})
	assert.Len(t, deps, 3)
	byName := map[string]string{}
	for _, d := range deps {
		byName[d.Name] = d.Version
	}
	assert.Equal(t, "1.6.0", byName["github.com/google/uuid"])
	assert.Equal(t, "5.2.2", byName["github.com/go-chi/chi/v5"])
}

func TestExtractDependencies_MalformedManifestDegrades(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{not json at all`)
	writeFile(t, root, "requirements.txt", "flask==2.3.2\n")

	deps := analyses.ExtractDependencies(root, []analyses.ConfigFile{
		{Path: "package.json"},
		{Path: "requirements.txt"},
	})

	// broken manifest contributes nothing, the other still parses
	assert.Len(t, deps, 1)
	assert.Equal(t, "flask", deps[0].Name)
}

func TestExtractDependencies_UnrecognizedManifestsIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "FROM alpine\n")

	deps := analyses.ExtractDependencies(root, []analyses.ConfigFile{{Path: "Dockerfile"}})
	assert.Empty(t, deps)
}
