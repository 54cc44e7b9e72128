package governance

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes one captured item to be evaluated.
type Request struct {
	AppName    string
	WindowName string
	Text       string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// ContentPolicy decides which captured content may reach the pipeline.
// Our own windows are excluded so the agent never reads its own output.
type ContentPolicy struct {
	DeniedWindows []*regexp.Regexp
	DeniedApps    []*regexp.Regexp
	strip         *bluemonday.Policy
}

func NewContentPolicy() *ContentPolicy {
	return &ContentPolicy{strip: bluemonday.StrictPolicy()}
}

// NewDefaultContentPolicy excludes windows whose titles contain any of names (case-insensitive).
func NewDefaultContentPolicy(names ...string) *ContentPolicy {
	p := NewContentPolicy()
	for _, n := range names {
		if n == "" {
			continue
		}
		p.DeniedWindows = append(p.DeniedWindows, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(n)))
	}
	return p
}

func (p *ContentPolicy) DenyWindow(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	p.DeniedWindows = append(p.DeniedWindows, re)
	return nil
}

func (p *ContentPolicy) DenyApp(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	p.DeniedApps = append(p.DeniedApps, re)
	return nil
}

func (p *ContentPolicy) Evaluate(req Request) Result {
	for _, re := range p.DeniedWindows {
		if re.MatchString(req.WindowName) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Window '%s' matches restricted pattern: %s", req.WindowName, re.String()),
			}
		}
	}
	for _, re := range p.DeniedApps {
		if re.MatchString(req.AppName) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("App '%s' matches restricted pattern: %s", req.AppName, re.String()),
			}
		}
	}
	return Result{Effect: EffectAllow, Reason: "Approved by default policy"}
}

// Allowed is Evaluate reduced to a bool.
func (p *ContentPolicy) Allowed(req Request) bool {
	return p.Evaluate(req).Effect == EffectAllow
}

// markupTag matches well-formed tags and comments. A bare '<' in OCR or
// transcript text ("a<b") is not one.
var markupTag = regexp.MustCompile(`<!--[\s\S]*?-->|</?[a-zA-Z][a-zA-Z0-9-]*(?:\s+[a-zA-Z_:][-a-zA-Z0-9_:.]*(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'=<>]+))?)*\s*/?>`)

// Clean strips markup from captured text before it is prompted or relayed.
// Text between tags is escaped first so the sanitizer only ever sees real tags.
func (p *ContentPolicy) Clean(text string) string {
	if p.strip == nil {
		p.strip = bluemonday.StrictPolicy()
	}
	var b strings.Builder
	last := 0
	for _, loc := range markupTag.FindAllStringIndex(text, -1) {
		b.WriteString(escapeText(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(escapeText(text[last:]))
	return strings.TrimSpace(html.UnescapeString(p.strip.Sanitize(b.String())))
}

func escapeText(s string) string {
	return html.EscapeString(html.UnescapeString(s))
}

var queryOperators = strings.NewReplacer(
	"#", " ", `"`, " ", "*", " ", "^", " ", "{", " ", "}", " ",
	"[", " ", "]", " ", "(", " ", ")", " ", "~", " ", "?", " ", `\`, " ", "$", " ",
)

// SanitizeQuery removes full-text search operators and collapses whitespace.
func SanitizeQuery(q string) string {
	return strings.Join(strings.Fields(queryOperators.Replace(q)), " ")
}
