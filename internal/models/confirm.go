package models

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// confirmURL finds the follow-up link on a download warning page, which is
// how Google Drive asks to confirm files too large to virus-scan. Both the
// form variant (action plus hidden inputs) and the older confirm= link are
// understood.
func confirmURL(pageURL string, page []byte) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		q := url.Values{}
		form.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
			name, _ := in.Attr("name")
			value, _ := in.Attr("value")
			if name != "" {
				q.Set(name, value)
			}
		})
		if q.Get("confirm") == "" {
			return true
		}
		action, _ := form.Attr("action")
		target, err := base.Parse(action)
		if err != nil {
			return true
		}
		target.RawQuery = q.Encode()
		found = target.String()
		return false
	})
	if found != "" {
		return found, true
	}

	if href, ok := doc.Find(`a[href*="confirm="]`).First().Attr("href"); ok {
		if target, err := base.Parse(href); err == nil {
			return target.String(), true
		}
	}
	return "", false
}
