package probe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrBannerMismatch is returned when a status body does not match the banner.
const ErrBannerMismatch = sentinel.Error("status body does not match banner")

// Banner reports the versions a running server advertises.
type Banner struct {
	FrameworkVersion string
	RuntimeVersion   string
	RuntimeEngine    string
}

// BannerParser matches status bodies for one framework/runtime pair.
type BannerParser struct {
	re *regexp.Regexp
}

// NewBannerParser builds a parser for banners naming framework and runtime,
// for example "Rails" and "Ruby". Matching ignores case.
func NewBannerParser(framework, runtime string) *BannerParser {
	f := regexp.QuoteMeta(framework)
	r := regexp.QuoteMeta(runtime)
	pattern := `(?ims)^` + f + `\s+version\s*:\s*(\d+\.\d+\.\d+(?:\.\d+)?)\s*\n+\s*` +
		r + `\s+version\s*:\s*(\S.*?)\s*\n+\s*` +
		r + `\s+engine\s*:\s*(.*?)\s*\n?$`
	return &BannerParser{re: regexp.MustCompile(pattern)}
}

// Parse extracts the versions from body. Surrounding whitespace is ignored.
func (p *BannerParser) Parse(body string) (Banner, error) {
	m := p.re.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return Banner{}, fmt.Errorf("%w: %q", ErrBannerMismatch, truncate(body, 200))
	}
	return Banner{FrameworkVersion: m[1], RuntimeVersion: m[2], RuntimeEngine: m[3]}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
