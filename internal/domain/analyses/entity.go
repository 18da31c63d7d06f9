package analyses

import (
	"time"
)

// ID tipe untuk Analysis
type AnalysisID string

// Status enum
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces the forward-only lifecycle:
// pending -> analyzing -> {completed|failed}
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusAnalyzing
	case StatusAnalyzing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// FileEntry satu entri dari hasil traversal
type FileEntry struct {
	Path      string `json:"path"`
	IsDir     bool   `json:"is_dir"`
	Size      int64  `json:"size"`
	Extension string `json:"extension,omitempty"`
}

// Structure value object hasil Structure Walker
type Structure struct {
	TotalDirs  int            `json:"total_dirs"`
	TotalFiles int            `json:"total_files"`
	MaxDepth   int            `json:"max_depth"`
	Extensions map[string]int `json:"extensions"`
	Files      []FileEntry    `json:"files"`
}

// ConfigFile recognized manifest/config file
type ConfigFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DependencyRecord normalized dependency entry
type DependencyRecord struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Type     string `json:"type"`     // runtime | dev
	Manifest string `json:"manifest"` // package.json | requirements.txt | go.mod
}

// Quality score + summary dari enrichment
type Quality struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
}

// Insights qualitative enrichment output; carries exactly the schema the
// inference service returns, fallback included.
type Insights struct {
	Architecture string   `json:"architecture"`
	Quality      Quality  `json:"quality"`
	Performance  []string `json:"performance"`
	Security     []string `json:"security"`
	DevOps       []string `json:"devops"`
}

// LargestFile path + line count
type LargestFile struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
}

// Metrics aggregate size metrics
type Metrics struct {
	DurationMS      int64       `json:"duration_ms"`
	TotalLines      int         `json:"total_lines"`
	TotalFiles      int         `json:"total_files"`
	AvgLinesPerFile float64     `json:"avg_lines_per_file"`
	LargestFile     LargestFile `json:"largest_file"`
	DependencyCount int         `json:"dependency_count"`
}

// AnalysisData hasil lengkap pipeline, populated only when completed.
// InsightsDegraded marks Insights as produced by the deterministic fallback
// instead of the inference service.
type AnalysisData struct {
	Structure        Structure          `json:"structure"`
	Languages        []string           `json:"languages"`
	ConfigFiles      []ConfigFile       `json:"config_files"`
	Dependencies     []DependencyRecord `json:"dependencies"`
	Insights         Insights           `json:"insights"`
	InsightsDegraded bool               `json:"insights_degraded,omitempty"`
}

// Aggregate Root: Analysis
type Analysis struct {
	ID                  AnalysisID    `json:"id"`
	OwnerID             string        `json:"owner_id"`
	RepoURL             string        `json:"repo_url"`
	Branch              string        `json:"branch"`
	Depth               int           `json:"depth"`
	IncludeDependencies bool          `json:"include_dependencies"`
	Status              Status        `json:"status"`
	Data                *AnalysisData `json:"analysis_data,omitempty"`
	Metrics             *Metrics      `json:"metrics,omitempty"`
	ArtifactURL         string        `json:"artifact_url,omitempty"`
	Error               string        `json:"error,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
