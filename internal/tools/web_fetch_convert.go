package tools

import (
	"encoding/json"
	"regexp"
	"strings"
)

// extractJSON pretty-prints JSON content.
func extractJSON(body []byte) (string, string) {
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		formatted, _ := json.MarshalIndent(data, "", "  ")
		return string(formatted), "json"
	}
	return string(body), "raw"
}

// --- HTML extraction utilities, ported from the original filesystem.go's
// regex-based htmlToMarkdown/htmlToText (no Readability-equivalent pass). ---

var (
	reScript    = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle     = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reComment   = regexp.MustCompile(`<!--[\s\S]*?-->`)
	reNav       = regexp.MustCompile(`(?is)<nav[\s\S]*?</nav>`)
	reFooter    = regexp.MustCompile(`(?is)<footer[\s\S]*?</footer>`)
	reHeader    = regexp.MustCompile(`(?is)<header[\s\S]*?</header>`)
	reTag       = regexp.MustCompile(`<[^>]+>`)
	reMultiNL   = regexp.MustCompile(`\n{3,}`)
	reMultiSP   = regexp.MustCompile(`[ \t]{2,}`)
	reH1        = regexp.MustCompile(`(?i)<h1[^>]*>([\s\S]*?)</h1>`)
	reH2        = regexp.MustCompile(`(?i)<h2[^>]*>([\s\S]*?)</h2>`)
	reH3        = regexp.MustCompile(`(?i)<h3[^>]*>([\s\S]*?)</h3>`)
	reParagraph = regexp.MustCompile(`(?i)<p[^>]*>([\s\S]*?)</p>`)
	reBreak     = regexp.MustCompile(`(?i)<br\s*/?>`)
	reListItem  = regexp.MustCompile(`(?i)<li[^>]*>([\s\S]*?)</li>`)
	reAnchor    = regexp.MustCompile(`(?i)<a[^>]*href="([^"]*)"[^>]*>([\s\S]*?)</a>`)
	reStrong    = regexp.MustCompile(`(?i)<(?:strong|b)[^>]*>([\s\S]*?)</(?:strong|b)>`)
	reEm        = regexp.MustCompile(`(?i)<(?:em|i)[^>]*>([\s\S]*?)</(?:em|i)>`)
)

// htmlToMarkdown converts HTML to a markdown-like format. Not a full
// Readability implementation but covers common patterns.
func htmlToMarkdown(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")

	s = reH1.ReplaceAllString(s, "\n# $1\n")
	s = reH2.ReplaceAllString(s, "\n## $1\n")
	s = reH3.ReplaceAllString(s, "\n### $1\n")

	s = reAnchor.ReplaceAllString(s, "[$2]($1)")
	s = reStrong.ReplaceAllString(s, "**$1**")
	s = reEm.ReplaceAllString(s, "*$1*")

	s = reParagraph.ReplaceAllString(s, "\n$1\n")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reListItem.ReplaceAllString(s, "\n- $1")

	s = reTag.ReplaceAllString(s, "")

	s = decodeHTMLEntities(s)
	s = reMultiNL.ReplaceAllString(s, "\n\n")
	s = reMultiSP.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// htmlToText extracts plain text from HTML content.
func htmlToText(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")

	s = reParagraph.ReplaceAllString(s, "\n$1\n")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reListItem.ReplaceAllString(s, "\n- $1")

	s = reTag.ReplaceAllString(s, "")

	s = decodeHTMLEntities(s)
	s = reMultiSP.ReplaceAllString(s, " ")
	s = reMultiNL.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	var clean []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

func decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&nbsp;", " ",
		"&mdash;", "—",
		"&ndash;", "–",
		"&hellip;", "...",
		"&copy;", "(c)",
	)
	return replacer.Replace(s)
}
