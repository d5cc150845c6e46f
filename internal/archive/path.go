package archive

import (
	"path"
	"strings"

	"github.com/ChuLiYu/atcoder-archive/internal/lang"
	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

var separatorReplacer = strings.NewReplacer("/", "_", "\\", "_")

// Path returns where a submission's code lives in the worktree:
// {language}/{contest_id}/{problem_id}{extension}.
func Path(s types.Submission) string {
	return path.Join(
		segment(s.Language),
		segment(s.ContestID),
		segment(s.ProblemID+lang.Extension(s.Language)),
	)
}

// segment keeps a label to exactly one directory level.
func segment(label string) string {
	label = separatorReplacer.Replace(label)
	switch label {
	case "", ".", "..":
		return "_"
	}
	return label
}
