package checkpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var chapterMarkerRegexp = regexp.MustCompile(`(?i)\bchapter\s+(\d+)\b`)

// CountChapterMarkers returns N for the longest run "Chapter 1" .. "Chapter N"
// named in an outline. Repeated mentions count once, and numbers past the
// first gap are ignored, so every counted chapter has an OutlineSegment.
func CountChapterMarkers(outline string) int {
	seen := map[int]struct{}{}
	for _, m := range chapterMarkerRegexp.FindAllStringSubmatch(outline, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		seen[n] = struct{}{}
	}
	count := 0
	for {
		if _, ok := seen[count+1]; !ok {
			return count
		}
		count++
	}
}

// FinalizeOutline applies the chapter-count gate to the final outline text and
// returns the chapter count to fix on the novel.
func FinalizeOutline(outline string, bounds Bounds) (int, error) {
	n := CountChapterMarkers(outline)
	if !bounds.Contains(n) {
		return n, fmt.Errorf("%w: outline declares %d chapters, need %d-%d", ErrChapterCountOutOfRange, n, bounds.Min, bounds.Max)
	}
	return n, nil
}

// OutlineSegment extracts the block of outline lines describing chapter n:
// from the line naming it up to the next line naming any other chapter.
func OutlineSegment(outline string, n int) string {
	lines := strings.Split(outline, "\n")
	own := regexp.MustCompile(`(?i)\bchapter\s+` + strconv.Itoa(n) + `\b`)
	start := -1
	for i, line := range lines {
		if own.MatchString(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if chapterMarkerRegexp.MatchString(lines[i]) && !own.MatchString(lines[i]) {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}
