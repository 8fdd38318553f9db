package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Links returns the resolved href of every anchor in rawHTML that starts
// with prefix, in document order. Duplicates are kept.
//
// Relative hrefs resolve against <base href> when present, else pageURL,
// matching what a browser reports for anchor.href.
func Links(rawHTML, pageURL, prefix string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := resolved.String()
		if strings.HasPrefix(abs, prefix) {
			links = append(links, abs)
		}
	})
	return links
}
