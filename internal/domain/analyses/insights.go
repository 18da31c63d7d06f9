package analyses

import (
	"fmt"
	"path"
	"strings"
)

// FallbackInsights builds the degraded-mode insights for a run whose
// enrichment call failed or was never configured. Output is deterministic
// for a given analysis and carries the exact schema the inference service
// would return, so downstream consumers never see a missing field.
func FallbackInsights(data *AnalysisData, m *Metrics) *Insights {
	ins := &Insights{
		Architecture: fallbackArchitecture(data),
		Quality: Quality{
			Score:   fallbackQualityScore(data, m),
			Summary: "Heuristic score derived from repository structure; no inference service was consulted.",
		},
		Performance: []string{
			"Review the largest source files for opportunities to split responsibilities.",
			"Cache derived artifacts in CI to avoid repeated full rebuilds.",
		},
		Security: []string{
			"Pin dependency versions and enable automated vulnerability scanning.",
			"Add secret scanning to the repository to catch committed credentials early.",
		},
		DevOps: fallbackDevOps(data),
	}
	return ins
}

func fallbackArchitecture(data *AnalysisData) string {
	primary := "an unidentified primary language"
	if len(data.Languages) > 0 {
		primary = data.Languages[0]
		if lang := dominantLanguage(data); lang != "" {
			primary = lang
		}
	}
	return fmt.Sprintf(
		"Repository of %d files across %d directories (max depth %d), primarily %s.",
		data.Structure.TotalFiles, data.Structure.TotalDirs, data.Structure.MaxDepth, primary,
	)
}

// dominantLanguage picks the language whose extensions dominate the
// histogram; ties resolve to the lexicographically smaller name.
func dominantLanguage(data *AnalysisData) string {
	counts := make(map[string]int)
	for ext, n := range data.Structure.Extensions {
		if lang, ok := languageByExt[ext]; ok {
			counts[lang] += n
		}
	}
	best, bestN := "", 0
	for lang, n := range counts {
		if n > bestN || (n == bestN && best != "" && lang < best) {
			best, bestN = lang, n
		}
	}
	return best
}

func fallbackQualityScore(data *AnalysisData, m *Metrics) int {
	score := 50
	if hasConfigFile(data, ".gitignore") {
		score += 5
	}
	if len(data.ConfigFiles) > 0 {
		score += 10
	}
	if m.TotalFiles > 0 && m.AvgLinesPerFile < 200 {
		score += 15
	}
	if n := len(data.Dependencies); n > 0 && n < 50 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func fallbackDevOps(data *AnalysisData) []string {
	out := []string{
		"Run the analysis pipeline from CI on every default-branch push.",
	}
	if hasConfigFile(data, "dockerfile") {
		out = append(out, "A Dockerfile is present; publish versioned images from CI.")
	} else {
		out = append(out, "Add a Dockerfile so builds are reproducible across environments.")
	}
	return out
}

func hasConfigFile(data *AnalysisData, name string) bool {
	for _, c := range data.ConfigFiles {
		if strings.EqualFold(path.Base(c.Path), name) {
			return true
		}
	}
	return false
}
