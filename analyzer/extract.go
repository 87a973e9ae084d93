package analyzer

import (
	"strings"

	"golang.org/x/net/html"
)

const defaultCharset = "UTF-8"

// Extraction holds the raw metadata found in a document.
// Empty strings mean the value was not found.
type Extraction struct {
	Title     string
	Charset   string
	Canonical string

	// First content value per meta name / meta property
	Named      map[string]string
	Properties map[string]string

	// Every analyzable tag in document order, title and charset first, canonical last
	RawTags []RawTag
}

// Name returns the content of the first <meta name=key> carrying a content attribute
func (e *Extraction) Name(key string) string {
	return e.Named[key]
}

// Property returns the content of the first <meta property=key> carrying a content attribute
func (e *Extraction) Property(key string) string {
	return e.Properties[key]
}

// Extract scans raw HTML once, left to right, and collects the SEO relevant tags.
// It never fails: unreadable or truncated markup just leaves fields empty.
// Contents of script, style and comments are not scanned.
func Extract(doc string) *Extraction {
	ex := &Extraction{
		Named:      make(map[string]string),
		Properties: make(map[string]string),
	}

	var (
		metas         []RawTag
		equivCharset  string
		inTitle       bool
		titleSeen     bool
		titleText     strings.Builder
		canonicalSeen bool
	)

	z := html.NewTokenizer(strings.NewReader(doc))

scan:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way we keep what we have
			break scan

		case html.StartTagToken, html.SelfClosingTagToken:
			tag, hasAttr := z.TagName()
			switch string(tag) {
			case "title":
				if tt == html.SelfClosingTagToken {
					// <title/> opens a title like <title>, but must not swallow
					// the markup that follows as title text
					z.NextIsNotRawText()
				}
				if !titleSeen {
					inTitle = true
					titleText.Reset()
				}
			case "meta":
				attrs := readAttrs(z, hasAttr)
				if raw, ok := ex.collectMeta(attrs, &equivCharset); ok {
					metas = append(metas, raw)
				}
			case "link":
				if canonicalSeen {
					continue
				}
				attrs := readAttrs(z, hasAttr)
				if !strings.EqualFold(strings.TrimSpace(attrs["rel"]), "canonical") {
					continue
				}
				if href := strings.TrimSpace(attrs["href"]); href != "" {
					ex.Canonical = href
					canonicalSeen = true
				}
			}

		case html.TextToken:
			if inTitle {
				// Raw keeps entities undecoded
				titleText.Write(z.Raw())
			}

		case html.EndTagToken:
			tag, _ := z.TagName()
			if inTitle && string(tag) == "title" {
				inTitle = false
				titleSeen = true
				ex.Title = strings.TrimSpace(titleText.String())
			}
		}
	}

	if ex.Charset == "" {
		ex.Charset = equivCharset
	}

	ex.RawTags = make([]RawTag, 0, len(metas)+3)
	if ex.Title != "" {
		ex.RawTags = append(ex.RawTags, RawTag{Name: "title", Content: optional(ex.Title), element: elementTitle})
	}
	if ex.Charset != "" {
		ex.RawTags = append(ex.RawTags, RawTag{Name: "charset", Content: optional(ex.Charset), element: elementCharset})
	}
	ex.RawTags = append(ex.RawTags, metas...)
	if ex.Canonical != "" {
		ex.RawTags = append(ex.RawTags, RawTag{Name: "canonical", Content: optional(ex.Canonical), element: elementCanonical})
	}

	return ex
}

// collectMeta records lookups for one <meta> element and returns its raw tag, if it has one
func (ex *Extraction) collectMeta(attrs map[string]string, equivCharset *string) (RawTag, bool) {
	if cs, ok := attrs["charset"]; ok && ex.Charset == "" {
		ex.Charset = strings.TrimSpace(cs)
	}

	content, hasContent := attrs["content"]

	if equiv, ok := attrs["http-equiv"]; ok && hasContent && *equivCharset == "" &&
		strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
		*equivCharset = charsetFromContentType(content)
	}

	if !hasContent {
		return RawTag{}, false
	}

	name := attrs["name"]
	property := attrs["property"]

	if name != "" {
		if _, seen := ex.Named[name]; !seen {
			ex.Named[name] = content
		}
	}
	if property != "" {
		if _, seen := ex.Properties[property]; !seen {
			ex.Properties[property] = content
		}
	}

	c := content
	switch {
	case name != "":
		return RawTag{Name: name, Content: &c}, true
	case property != "":
		return RawTag{Name: property, Content: &c, Property: property}, true
	}
	return RawTag{}, false
}

// readAttrs collects the attributes of the current tag. Keys come lowercased
// from the tokenizer; on duplicates the first one wins.
func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := make(map[string]string)
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		k := string(key)
		if _, seen := attrs[k]; !seen {
			attrs[k] = string(val)
		}
	}
	return attrs
}

// charsetFromContentType pulls X out of "text/html; charset=X"
func charsetFromContentType(contentType string) string {
	idx := strings.Index(strings.ToLower(contentType), "charset=")
	if idx < 0 || idx+len("charset=") > len(contentType) {
		return ""
	}
	rest := strings.TrimLeft(contentType[idx+len("charset="):], "\"' ")
	end := strings.IndexAny(rest, "\"' \t\r\n;")
	if end >= 0 {
		rest = rest[:end]
	}
	return rest
}
