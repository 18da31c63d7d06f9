package analyses

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DepTypeRuntime = "runtime"
	DepTypeDev     = "dev"
)

// ExtractDependencies parses every recognized manifest in configs into
// normalized records. A manifest that fails to parse contributes nothing;
// it never aborts the analysis.
func ExtractDependencies(root string, configs []ConfigFile) []DependencyRecord {
	var out []DependencyRecord
	for _, c := range configs {
		full := filepath.Join(root, filepath.FromSlash(c.Path))
		var (
			recs []DependencyRecord
			err  error
		)
		switch strings.ToLower(path.Base(c.Path)) {
		case "package.json":
			recs, err = parsePackageJSON(full)
		case "requirements.txt":
			recs, err = parseRequirementsTxt(full)
		case "go.mod":
			recs, err = parseGoMod(full)
		default:
			continue
		}
		if err != nil {
			log.Printf("warn: skipping manifest %s: %v", c.Path, err)
			continue
		}
		out = append(out, recs...)
	}
	return out
}

func parsePackageJSON(path string) ([]DependencyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}

	var out []DependencyRecord
	for name, version := range pkg.Dependencies {
		out = append(out, DependencyRecord{
			Name:     name,
			Version:  cleanVersion(version),
			Type:     DepTypeRuntime,
			Manifest: "package.json",
		})
	}
	for name, version := range pkg.DevDependencies {
		out = append(out, DependencyRecord{
			Name:     name,
			Version:  cleanVersion(version),
			Type:     DepTypeDev,
			Manifest: "package.json",
		})
	}
	return out, nil
}

func parseRequirementsTxt(path string) ([]DependencyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []DependencyRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// only name==version lines are recognized
		name, version, found := strings.Cut(line, "==")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		version = strings.TrimSpace(version)
		if name == "" || version == "" {
			continue
		}
		out = append(out, DependencyRecord{
			Name:     name,
			Version:  version,
			Type:     DepTypeRuntime,
			Manifest: "requirements.txt",
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseGoMod(path string) ([]DependencyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []DependencyRecord
	inRequire := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "require (":
			inRequire = true
			continue
		case inRequire && line == ")":
			inRequire = false
			continue
		}

		var fields []string
		if inRequire {
			fields = strings.Fields(line)
		} else if strings.HasPrefix(line, "require ") {
			fields = strings.Fields(strings.TrimPrefix(line, "require "))
		} else {
			continue
		}
		if len(fields) < 2 || strings.HasPrefix(fields[0], "//") {
			continue
		}
		out = append(out, DependencyRecord{
			Name:     fields[0],
			Version:  cleanVersion(fields[1]),
			Type:     DepTypeRuntime,
			Manifest: "go.mod",
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// cleanVersion strips leading range/prefix markers (^, ~, >=, v, ...) so
// records carry a bare version string.
func cleanVersion(v string) string {
	return strings.TrimLeft(strings.TrimSpace(v), "^~<>=v ")
}
