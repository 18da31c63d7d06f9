package analyses

import (
	"os"
	"path/filepath"
	"strings"
)

// WalkStructure traverses the tree under root iteratively (explicit stack,
// not recursion, so arbitrarily deep trees cannot blow the call stack) and
// produces the structure inventory. The .git directory is excluded.
// Any I/O error aborts the walk; structure cannot be partially analyzed.
func WalkStructure(root string) (*Structure, error) {
	type frame struct {
		abs   string
		rel   string
		depth int
	}

	s := &Structure{
		Extensions: make(map[string]int),
		Files:      []FileEntry{},
	}

	stack := []frame{{abs: root, rel: "", depth: 0}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(cur.abs)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			name := e.Name()
			rel := name
			if cur.rel != "" {
				rel = cur.rel + "/" + name
			}
			depth := cur.depth + 1
			if depth > s.MaxDepth {
				s.MaxDepth = depth
			}

			if e.IsDir() {
				if name == ".git" {
					continue
				}
				s.TotalDirs++
				s.Files = append(s.Files, FileEntry{Path: rel, IsDir: true})
				stack = append(stack, frame{abs: filepath.Join(cur.abs, name), rel: rel, depth: depth})
				continue
			}

			info, err := e.Info()
			if err != nil {
				return nil, err
			}
			ext := strings.ToLower(filepath.Ext(name))
			s.TotalFiles++
			if ext != "" {
				s.Extensions[ext]++
			}
			s.Files = append(s.Files, FileEntry{
				Path:      rel,
				Size:      info.Size(),
				Extension: ext,
			})
		}
	}

	return s, nil
}
