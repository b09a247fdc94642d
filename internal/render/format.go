package render

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// LinkRef represents a collected hyperlink reference
type LinkRef struct {
	Index int
	URL   string
	Text  string
}

// FormatOptions controls terminal formatting behavior
type FormatOptions struct {
	WrapWidth int
	// Links appends a [LINKS] section listing collected references
	Links bool
}

var (
	plainURLRe = regexp.MustCompile(`(?i)\bhttps?://[\w\-\._~:/%\?#\[\]@!$&'()*+,;=]+`)
	bareURLRe  = regexp.MustCompile(`(?i)^[a-z][a-z0-9+\-.]*://\S+$`)
	htmlTagRe  = regexp.MustCompile(`(?i)<(html|body|div|p|br|a|ul|ol|li|table|h[1-6]|span|strong|em|b|i|blockquote|pre)[\s/>]`)
)

// LooksLikeHTML reports whether s carries markup worth parsing
func LooksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

// FormatBody turns an email body, digest or summary into terminal text. HTML
// is converted to text; plain-text URLs are replaced by [n] references.
func FormatBody(body string, opts FormatOptions) string {
	var text string
	var links []LinkRef
	if LooksLikeHTML(body) {
		if t, l, err := renderHTMLToText(body); err == nil {
			text, links = t, l
		}
	}
	if strings.TrimSpace(text) == "" {
		text = body
	}

	text = normalizeNewlines(text)
	if len(links) == 0 {
		if detected, replaced := detectPlainTextLinks(text); len(detected) > 0 {
			links, text = detected, replaced
		}
	}

	if opts.WrapWidth > 0 {
		text = WrapTextPreserving(text, opts.WrapWidth)
	}
	text = sanitizeBodyPreservingCode(text)
	text = dedupeConsecutiveLines(text)
	text = strings.TrimSpace(text)

	if !opts.Links || len(links) == 0 {
		return text
	}

	var out strings.Builder
	out.WriteString(text)
	out.WriteString("\n\n[LINKS]\n")
	for _, lr := range links {
		fmt.Fprintf(&out, "(%d) %s\n", lr.Index, lr.URL)
	}
	return strings.TrimRight(out.String(), "\n")
}

// HTMLToText converts markup to plain text without wrapping
func HTMLToText(s string) string {
	return FormatBody(s, FormatOptions{})
}

// detectPlainTextLinks finds URLs in plain text and replaces them with [n] references
func detectPlainTextLinks(input string) ([]LinkRef, string) {
	idx := 0
	links := make([]LinkRef, 0, 4)
	replaced := plainURLRe.ReplaceAllStringFunc(input, func(m string) string {
		idx++
		links = append(links, LinkRef{Index: idx, URL: m, Text: m})
		return fmt.Sprintf("[%d]", idx)
	})
	return links, replaced
}

// sanitizeBodyPreservingCode applies glyph/whitespace sanitization to non-code lines
func sanitizeBodyPreservingCode(s string) string {
	lines := strings.Split(s, "\n")
	inCode := false
	for i, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			inCode = !inCode
			continue
		}
		if !inCode {
			lines[i] = sanitizeForTerminal(ln)
		}
	}
	return strings.Join(lines, "\n")
}

// sanitizeForTerminal replaces rich-text glyphs with ASCII-safe equivalents
func sanitizeForTerminal(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u00A0', '\u202F':
			b.WriteRune(' ')
		case '\u200B', '\u200C', '\u200D', '\uFEFF', '\u034F', '\u2060', '\u00AD':
			// invisible
		case '\u2013', '\u2014':
			b.WriteRune('-')
		case '\u2022', '\u2043', '\u25AA', '\u25CF', '\u25E6':
			b.WriteString("- ")
		case '\u2018', '\u2019':
			b.WriteRune('\'')
		case '\u201C', '\u201D':
			b.WriteRune('"')
		case '\u2026':
			b.WriteString("...")
		default:
			if r >= '\u2000' && r <= '\u200A' {
				b.WriteRune(' ')
				continue
			}
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				continue
			}
			if unicode.Is(unicode.So, r) {
				continue
			}
			b.WriteRune(r)
		}
	}
	return collapseBlankRuns(b.String())
}

// dedupeConsecutiveLines drops repeated lines, common in newsletter footers
func dedupeConsecutiveLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var prev string
	for _, ln := range lines {
		cur := strings.TrimRight(ln, " ")
		trimmed := strings.TrimSpace(cur)
		if trimmed != "" && trimmed == prev {
			continue
		}
		if trimmed == "| |" || trimmed == "|" {
			continue
		}
		out = append(out, cur)
		prev = trimmed
	}
	return collapseBlankRuns(strings.Join(out, "\n"))
}

// renderHTMLToText parses HTML and emits text, collecting links
func renderHTMLToText(htmlStr string) (string, []LinkRef, error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	links := make([]LinkRef, 0, 8)
	quoteDepth := 0
	inPre := false

	var visit func(n *html.Node)
	visitChildren := func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := n.Data
			if !inPre {
				text = collapseSpace(sanitizeForTerminal(text))
			}
			if strings.TrimSpace(text) == "" {
				if text != "" && !inPre {
					b.WriteByte(' ')
				}
				return
			}
			if quoteDepth > 0 {
				if out := b.String(); out == "" || strings.HasSuffix(out, "\n") {
					b.WriteString(strings.Repeat("> ", min(quoteDepth, 3)))
					text = strings.TrimLeft(text, " ")
				}
			}
			b.WriteString(text)
			return
		case html.ElementNode:
			switch strings.ToLower(n.Data) {
			case "head", "style", "script", "title", "meta", "link":
				return
			case "div", "section", "tr":
				visitChildren(n)
				b.WriteString("\n")
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				var inner strings.Builder
				collectChildren(&inner, n)
				if t := strings.TrimSpace(inner.String()); t != "" {
					b.WriteString("\n" + t + "\n\n")
				}
				return
			case "hr":
				b.WriteString("\n-----\n")
				return
			case "br":
				b.WriteByte('\n')
				return
			case "p":
				visitChildren(n)
				b.WriteString("\n\n")
				return
			case "ul", "ol":
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && strings.EqualFold(c.Data, "li") {
						b.WriteString("- ")
						visitChildren(c)
						b.WriteByte('\n')
					}
				}
				b.WriteByte('\n')
				return
			case "blockquote":
				quoteDepth++
				visitChildren(n)
				quoteDepth--
				b.WriteByte('\n')
				return
			case "pre":
				b.WriteString("\n```\n")
				was := inPre
				inPre = true
				visitChildren(n)
				inPre = was
				b.WriteString("\n```\n")
				return
			case "a":
				href := attr(n, "href")
				var inner strings.Builder
				collectChildren(&inner, n)
				label := strings.TrimSpace(inner.String())
				if label == "" {
					label = firstAttr(n, "aria-label", "title")
				}
				if label == "" {
					label = href
				}
				if href == "" || strings.HasPrefix(strings.ToLower(href), "mailto:") {
					b.WriteString(label)
					return
				}
				links = append(links, LinkRef{Index: len(links) + 1, URL: href, Text: label})
				fmt.Fprintf(&b, "%s [%d]", label, len(links))
				return
			case "img":
				if alt := strings.TrimSpace(attr(n, "alt")); alt != "" {
					b.WriteString("[" + alt + "]")
				}
				return
			case "td", "th":
				visitChildren(n)
				b.WriteString(" ")
				return
			}
		}
		visitChildren(n)
	}
	visit(doc)
	return strings.TrimSpace(collapseBlankRuns(tidyLines(b.String()))), links, nil
}

// collapseSpace folds HTML source whitespace into single spaces, keeping
// one at either end so adjacent inline text stays separated.
func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	out := strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if unicode.IsSpace(r[0]) && out != "" {
		out = " " + out
	}
	if unicode.IsSpace(r[len(r)-1]) {
		out += " "
	}
	return out
}

// tidyLines trims stray spaces around lines outside code fences
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	inCode := false
	for i, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			inCode = !inCode
			lines[i] = strings.TrimSpace(ln)
			continue
		}
		if !inCode {
			lines[i] = strings.TrimSpace(ln)
		}
	}
	return strings.Join(lines, "\n")
}

// WrapTextPreserving wraps text to width preserving quotes (> ), code/PGP blocks and URLs
func WrapTextPreserving(input string, width int) string {
	if width <= 0 {
		return input
	}
	lines := strings.Split(normalizeNewlines(input), "\n")
	out := make([]string, 0, len(lines))
	inCode := false
	inPGP := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if strings.HasPrefix(line, "-----BEGIN ") {
			inPGP = true
		}
		if inCode || inPGP {
			out = append(out, line)
			if strings.HasPrefix(line, "-----END ") {
				inPGP = false
			}
			continue
		}
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	prefix := ""
	rest := line
	for strings.HasPrefix(rest, "> ") {
		prefix += "> "
		rest = strings.TrimPrefix(rest, "> ")
	}
	tokens := strings.Fields(rest)
	if len(tokens) == 0 {
		return []string{strings.TrimRight(prefix, " ")}
	}

	var out []string
	cur := prefix
	flush := func() {
		out = append(out, strings.TrimRight(cur, " "))
		cur = prefix
	}
	for _, tok := range tokens {
		empty := cur == prefix
		switch {
		case empty:
			cur += tok
		case displayLen(cur)+1+displayLen(tok) <= width:
			cur += " " + tok
		default:
			flush()
			cur += tok
		}
		// hard cut a single token longer than the line, except URLs
		for displayLen(cur) > width && displayLen(prefix) < width && !bareURLRe.MatchString(tok) {
			r := []rune(cur)
			out = append(out, string(r[:width]))
			cur = prefix + string(r[width:])
		}
	}
	flush()
	return out
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return collapseBlankRuns(s)
}

func collapseBlankRuns(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

func collectChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(sanitizeForTerminal(n.Data))
	case html.ElementNode:
		if strings.EqualFold(n.Data, "br") {
			b.WriteByte('\n')
			return
		}
	}
	collectChildren(b, n)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func firstAttr(n *html.Node, keys ...string) string {
	for _, k := range keys {
		if v := attr(n, k); v != "" {
			return v
		}
	}
	return ""
}

func displayLen(s string) int { return len([]rune(s)) }
