// Package video resolves shared video links into identifiers and thumbnail
// references. Resolution is purely syntactic; nothing is fetched.
package video

import (
	"fmt"
	"regexp"
)

// ThumbnailTemplate is the location thumbnails are derived from.
const ThumbnailTemplate = "https://img.youtube.com/vi/%s/hqdefault.jpg"

// matchers are tried in order. The first captures ids embedded in a path or a
// v= query parameter, the second catches youtu.be short links.
var matchers = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})(?:\?|&|/|$)`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
}

// Ref is a video link together with whatever could be derived from it.
type Ref struct {
	URL       string `json:"url"`
	ID        string `json:"id,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// HasThumbnail reports whether an id was found for the link.
func (r Ref) HasThumbnail() bool { return r.Thumbnail != "" }

// ExtractID returns the 11 character video id found in url.
func ExtractID(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	for _, re := range matchers {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Thumbnail returns the thumbnail location for url.
func Thumbnail(url string) (string, bool) {
	id, ok := ExtractID(url)
	if !ok {
		return "", false
	}
	return fmt.Sprintf(ThumbnailTemplate, id), true
}

// Resolve builds a Ref for url. Unresolvable links keep only URL.
func Resolve(url string) Ref {
	ref := Ref{URL: url}
	if id, ok := ExtractID(url); ok {
		ref.ID = id
		ref.Thumbnail = fmt.Sprintf(ThumbnailTemplate, id)
	}
	return ref
}

// ResolveAll resolves every link in order.
func ResolveAll(urls []string) []Ref {
	refs := make([]Ref, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, Resolve(u))
	}
	return refs
}
