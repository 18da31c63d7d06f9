package analyses

import (
	"bytes"
	"os"
	"path/filepath"
)

// Extensions excluded from line counting. Closed deny-list; anything not
// listed is treated as text.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true, ".tar": true,
	".gz": true, ".bz2": true, ".xz": true, ".rar": true, ".7z": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".wasm": true, ".class": true, ".jar": true, ".pyc": true, ".o": true,
	".a": true, ".db": true, ".sqlite": true,
}

// CalculateMetrics reads every text file once and aggregates line counts.
// Unreadable or binary-miscategorized files are skipped, never fatal.
// Ties on the largest file keep the first file seen.
func CalculateMetrics(root string, files []FileEntry) *Metrics {
	m := &Metrics{}
	for _, f := range files {
		if f.IsDir || binaryExts[f.Extension] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			continue
		}
		lines := countLines(data)
		m.TotalLines += lines
		m.TotalFiles++
		if lines > m.LargestFile.Lines {
			m.LargestFile = LargestFile{Path: f.Path, Lines: lines}
		}
	}
	if m.TotalFiles > 0 {
		m.AvgLinesPerFile = float64(m.TotalLines) / float64(m.TotalFiles)
	}
	return m
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
