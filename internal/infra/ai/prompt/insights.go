package prompt

import (
	"encoding/json"
	"fmt"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior software architect reviewing a repository analysis. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- quality.score is an integer between 0 and 100.
- performance, security and devops are arrays of short, concrete suggestions (1-5 items each, never empty).
- architecture is one concise paragraph describing the likely architecture.
- Base every statement on the facts provided; do not invent files or dependencies.

Schema (example with empty values):
{
  "architecture": "<string>",
  "quality": {"score": 0, "summary": "<string>"},
  "performance": ["<string>"],
  "security": ["<string>"],
  "devops": ["<string>"]
}`
}

// GetUserPrompt builds a compact user message around the consolidated facts.
func GetUserPrompt(data *domain.AnalysisData, m *domain.Metrics) string {
	facts := map[string]any{
		"languages":        data.Languages,
		"total_files":      data.Structure.TotalFiles,
		"total_dirs":       data.Structure.TotalDirs,
		"max_depth":        data.Structure.MaxDepth,
		"extensions":       data.Structure.Extensions,
		"config_files":     data.ConfigFiles,
		"dependency_count": len(data.Dependencies),
		"total_lines":      m.TotalLines,
		"largest_file":     m.LargestFile,
	}
	// cap the dependency sample so the prompt stays small
	deps := data.Dependencies
	if len(deps) > 25 {
		deps = deps[:25]
	}
	facts["dependencies_sample"] = deps

	b, _ := json.Marshal(facts)
	return fmt.Sprintf("Analyze this repository and respond with the JSON per schema. Facts: %s", b)
}

// InsightsPayload mirrors the schema the system prompt demands.
type InsightsPayload struct {
	Architecture string `json:"architecture"`
	Quality      struct {
		Score   int    `json:"score"`
		Summary string `json:"summary"`
	} `json:"quality"`
	Performance []string `json:"performance"`
	Security    []string `json:"security"`
	DevOps      []string `json:"devops"`
}

// Validate rejects structurally present but empty responses so the caller
// falls back instead of persisting a hollow object.
func (p *InsightsPayload) Validate() error {
	if p.Architecture == "" {
		return fmt.Errorf("missing architecture")
	}
	if len(p.Performance) == 0 || len(p.Security) == 0 || len(p.DevOps) == 0 {
		return fmt.Errorf("empty suggestion list")
	}
	if p.Quality.Score < 0 || p.Quality.Score > 100 {
		return fmt.Errorf("quality score out of range: %d", p.Quality.Score)
	}
	return nil
}

// ToInsights converts the wire payload into the domain value object.
func (p *InsightsPayload) ToInsights() *domain.Insights {
	return &domain.Insights{
		Architecture: p.Architecture,
		Quality:      domain.Quality{Score: p.Quality.Score, Summary: p.Quality.Summary},
		Performance:  p.Performance,
		Security:     p.Security,
		DevOps:       p.DevOps,
	}
}
