package deps

import (
	"os/exec"
	"strings"
)

// toolVersion returns the first line of `<tool> -version` output, trimmed to
// the "name version x.y" prefix ffmpeg-family tools print. Empty on failure.
func toolVersion(path string) string {
	out, err := exec.Command(path, "-version").Output()
	if err != nil {
		return ""
	}
	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	if len(lines) == 0 {
		return ""
	}
	first := strings.TrimSpace(lines[0])
	// "ffmpeg version 7.1 Copyright ..." -> "ffmpeg version 7.1"
	if idx := strings.Index(first, " Copyright"); idx > 0 {
		first = first[:idx]
	}
	return first
}
