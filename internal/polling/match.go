package polling

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ResultSuffix ends every extraction result object name.
const ResultSuffix = "-result.json"

var uploadPrefix = regexp.MustCompile(`^\d+_`)

// ResultFile is a stored extraction result.
type ResultFile struct {
	Key          string
	FileName     string
	LastModified time.Time
}

// BaseName reduces an uploaded file name to the form used in result names:
// directories, a leading "<digits>_" upload prefix and everything from the
// first "." are removed, and underscores become hyphens.
func BaseName(fileName string) string {
	name := uploadPrefix.ReplaceAllString(path.Base(fileName), "")
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "_", "-")
}

// ResultKeyFor returns the key the result of fileName is expected under.
func ResultKeyFor(resultPrefix, fileName string) string {
	return resultPrefix + BaseName(fileName) + ResultSuffix
}

// FindResultForFile picks the result belonging to fileName: its name, less
// the result suffix, must contain BaseName(fileName), and when uploadTime
// is set it must have been modified after it. The most recent wins.
func FindResultForFile(fileName string, results []ResultFile, uploadTime time.Time) (ResultFile, bool) {
	base := BaseName(fileName)
	if base == "" {
		return ResultFile{}, false
	}

	var candidates []ResultFile
	for _, r := range results {
		name := strings.Replace(r.FileName, ResultSuffix, "", 1)
		if !strings.Contains(name, base) {
			continue
		}
		if !uploadTime.IsZero() && !r.LastModified.IsZero() && !r.LastModified.After(uploadTime) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return ResultFile{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastModified.After(candidates[j].LastModified)
	})
	return candidates[0], true
}
