package analyses

import (
	"path"
	"sort"
	"strings"
)

// Closed extension -> language table. Unknown extensions are ignored on
// purpose; detection stays surface-level.
var languageByExt = map[string]string{
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".py":    "Python",
	".go":    "Go",
	".java":  "Java",
	".rb":    "Ruby",
	".php":   "PHP",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".rs":    "Rust",
	".kt":    "Kotlin",
	".swift": "Swift",
	".scala": "Scala",
	".dart":  "Dart",
	".ex":    "Elixir",
	".exs":   "Elixir",
	".lua":   "Lua",
	".pl":    "Perl",
	".r":     "R",
	".m":     "Objective-C",
	".vue":   "Vue",
	".md":    "Markdown",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".sh":    "Shell",
	".sql":   "SQL",
	".yml":   "YAML",
	".yaml":  "YAML",
	".json":  "JSON",
	".xml":   "XML",
}

// Closed list of well-known manifest/config filenames.
var knownConfigFiles = map[string]bool{
	"package.json":       true,
	"package-lock.json":  true,
	"yarn.lock":          true,
	"requirements.txt":   true,
	"pipfile":            true,
	"pyproject.toml":     true,
	"setup.py":           true,
	"go.mod":             true,
	"go.sum":             true,
	"cargo.toml":         true,
	"pom.xml":            true,
	"build.gradle":       true,
	"gemfile":            true,
	"composer.json":      true,
	"dockerfile":         true,
	"docker-compose.yml": true,
	".dockerignore":      true,
	"makefile":           true,
	".gitignore":         true,
	".env.example":       true,
	"tsconfig.json":      true,
}

// DetectLanguages collapses file extensions into a sorted language set.
func DetectLanguages(files []FileEntry) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		if f.IsDir {
			continue
		}
		if lang, ok := languageByExt[f.Extension]; ok {
			seen[lang] = true
		}
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// DetectConfigFiles scans filenames against the closed manifest list.
// Matching is case-insensitive on the base name (Dockerfile, Makefile).
func DetectConfigFiles(files []FileEntry) []ConfigFile {
	var out []ConfigFile
	for _, f := range files {
		if f.IsDir {
			continue
		}
		if knownConfigFiles[strings.ToLower(path.Base(f.Path))] {
			out = append(out, ConfigFile{Path: f.Path, Size: f.Size})
		}
	}
	return out
}
