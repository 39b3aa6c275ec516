package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSnippetLength is the rune budget for reply snippets in logs and notifications
const DefaultSnippetLength = 200

// HTMLParser turns reply bodies into short plain-text snippets
type HTMLParser struct {
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
	invisibleRegex  *regexp.Regexp
	quoteRegex      *regexp.Regexp
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
		// Zero-width spaces, soft hyphens and similar
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{115F}\x{1160}\x{17B4}\x{17B5}\x{180E}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}\x{FFF0}-\x{FFF8}]+`),
		// "On <date>, <someone> wrote:" introduces the quoted original
		quoteRegex: regexp.MustCompile(`(?m)^On .+wrote:\s*$`),
	}
}

// Parse converts HTML to clean plain text
func (p *HTMLParser) Parse(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	// Quoted history is not part of the reply itself
	doc.Find("script, style, head, meta, link, blockquote, .gmail_quote").Remove()

	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	return p.clean(doc.Text()), nil
}

// Snippet returns up to maxRunes of readable reply text, preferring the
// plain-text part and falling back to the HTML part.
func (p *HTMLParser) Snippet(textBody, htmlBody string, maxRunes int) string {
	text := p.stripQuoted(textBody)
	if strings.TrimSpace(text) == "" && htmlBody != "" {
		parsed, err := p.Parse(htmlBody)
		if err == nil {
			text = parsed
		}
	}

	text = p.clean(text)
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, maxRunes)
}

// stripQuoted drops "> " quoted lines and everything after an attribution line
func (p *HTMLParser) stripQuoted(text string) string {
	if loc := p.quoteRegex.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (p *HTMLParser) clean(text string) string {
	text = p.invisibleRegex.ReplaceAllString(text, "")
	text = p.whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	var cleanLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	text = strings.Join(cleanLines, "\n")

	text = p.newlineRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultSnippetLength
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
