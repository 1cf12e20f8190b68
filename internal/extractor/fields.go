package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/textutil"
)

// DefaultDisclaimer matches the note appended to the rank value, including a
// footnote number left in front of it.
const DefaultDisclaimer = `(?is)(?:\s+\d+)?\s*based on the top \w+ page.*$`

var scorePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\D*(\d+(?:,\d+)*)`)

// listLabels are split on commas and repaired rather than stored verbatim.
var listLabels = map[string]bool{
	domain.FieldGenres: true,
	domain.FieldGenre:  true,
	domain.FieldThemes: true,
	domain.FieldTheme:  true,
}

// reserved labels are owned by other extraction steps.
var reserved = map[string]bool{
	domain.FieldTitle:        true,
	domain.FieldTitleEnglish: true,
	domain.FieldSynopsis:     true,
	domain.FieldImage:        true,
	domain.FieldScoreCount:   true,
}

// ExtractTitles returns the declared title and English title. If either is
// missing both fall back to the last path segment of link.
func ExtractTitles(doc *goquery.Document, link domain.Link) (title, english string) {
	title = cleanText(doc.Find("h1.title-name.h1_bold_none").First())
	english = cleanText(doc.Find("p.title-english.title-inherit").First())
	if title == "" || english == "" {
		fallback := lastSegment(link)
		return fallback, fallback
	}
	return title, english
}

// ExtractSynopsis returns the first description paragraph.
func ExtractSynopsis(doc *goquery.Document) domain.Value {
	s := doc.Find(`p[itemprop="description"]`).First()
	if s.Length() == 0 {
		return domain.NotFound
	}
	text := strings.TrimSpace(s.Text())
	if text == "" {
		return domain.NotFound
	}
	return domain.TextValue(text)
}

// ExtractMetadata reads the "Label: value" side panel. Labels are lower-cased;
// genres and themes become repaired lists, score is split into score and
// score_count, ranked loses its disclaimer.
func ExtractMetadata(doc *goquery.Document, disclaimer *regexp.Regexp) map[string]domain.Value {
	fields := make(map[string]domain.Value)
	doc.Find("div.spaceit_pad").Each(func(_ int, s *goquery.Selection) {
		if s.Find("span").Length() == 0 {
			return
		}
		text := cleanText(s)
		label, value, ok := strings.Cut(text, ":")
		if !ok {
			return
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if label == "" || reserved[label] {
			return
		}

		switch {
		case listLabels[label]:
			if tags := textutil.SplitTags(value); len(tags) > 0 {
				fields[label] = domain.ListValue(tags)
			} else {
				fields[label] = domain.NotFound
			}
		case label == domain.FieldScore:
			fields[domain.FieldScore], fields[domain.FieldScoreCount] = ParseScore(value)
		case label == domain.FieldRanked:
			fields[label] = textOrAbsent(StripDisclaimer(value, disclaimer))
		default:
			fields[label] = textOrAbsent(value)
		}
	})
	return fields
}

// ParseScore splits "8.45 (scored by 123,456 users)" into its two numbers.
// Both are absent when the pattern does not match.
func ParseScore(value string) (score, count domain.Value) {
	m := scorePattern.FindStringSubmatch(value)
	if m == nil {
		return domain.NotFound, domain.NotFound
	}
	return domain.TextValue(m[1]), domain.TextValue(m[2])
}

// StripDisclaimer removes the rank disclaimer. A nil pattern leaves value as is.
func StripDisclaimer(value string, disclaimer *regexp.Regexp) string {
	if disclaimer == nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(disclaimer.ReplaceAllString(value, ""))
}

// ImageURL locates the cover image, resolved against link.
func ImageURL(doc *goquery.Document, link domain.Link) (string, bool) {
	img := doc.Find("img.ac").First()
	candidates := []string{attr(img, "data-src"), attr(img, "src"),
		attr(doc.Find(`meta[property="og:image"]`).First(), "content")}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		ref, err := url.Parse(c)
		if err != nil {
			continue
		}
		if base, err := url.Parse(string(link)); err == nil && base.IsAbs() {
			ref = base.ResolveReference(ref)
		}
		return ref.String(), true
	}
	return "", false
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

// cleanText returns the selection text without footnotes and scripts, with
// whitespace runs collapsed.
func cleanText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	c := s.Clone()
	c.Find("sup, script, style").Remove()
	return strings.Join(strings.Fields(c.Text()), " ")
}

func textOrAbsent(s string) domain.Value {
	if s == "" {
		return domain.NotFound
	}
	return domain.TextValue(s)
}

func lastSegment(link domain.Link) string {
	p := string(link)
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}
