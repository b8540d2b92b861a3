package collect

import (
	"fmt"
	"regexp"
	"strconv"

	vcsurl "github.com/gitsight/go-vcsurl"
)

var pullPathRegexp = regexp.MustCompile(`^(.*github\.com/[\w.-]+/[\w.-]+)/pull/(\d+)`)

// ParsePullURL splits a pull request URL into its "owner/repo" name and number.
func ParsePullURL(raw string) (repo string, number int, err error) {
	m := pullPathRegexp.FindStringSubmatch(raw)
	if m == nil {
		return "", 0, fmt.Errorf("not a github pull request url: %q", raw)
	}
	info, err := vcsurl.Parse(m[1])
	if err != nil {
		return "", 0, fmt.Errorf("parse repository url %q: %w", m[1], err)
	}
	number, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("pull request number in %q: %w", raw, err)
	}
	return info.FullName, number, nil
}
