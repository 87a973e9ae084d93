package analyzer

import "net/url"

const (
	defaultTwitterCard = "summary_large_image"
	defaultOGType      = "website"
)

// ComposePreviews projects the extracted values onto the four preview
// surfaces. Each surface has its own fallback chain; the first non-empty
// source wins.
func ComposePreviews(pageURL string, ex *Extraction) Previews {
	var (
		title         = ex.Title
		description   = ex.Name("description")
		ogTitle       = ex.Property("og:title")
		ogDescription = ex.Property("og:description")
		ogImage       = ex.Property("og:image")
		siteName      = firstOf(ex.Property("og:site_name"), hostname(pageURL))
	)

	return Previews{
		Google: SearchPreview{
			Title:       firstOf(title, ogTitle, "No title"),
			URL:         pageURL,
			Description: firstOf(description, ogDescription, "No description available"),
		},
		Facebook: SocialPreview{
			Title:       firstOf(ogTitle, title, "No title"),
			Description: firstOf(ogDescription, description, "No description"),
			Image:       optional(ogImage),
			URL:         pageURL,
			SiteName:    siteName,
			Type:        firstOf(ex.Property("og:type"), defaultOGType),
		},
		Twitter: TwitterPreview{
			Card:        firstOf(ex.Name("twitter:card"), defaultTwitterCard),
			Title:       firstOf(ex.Name("twitter:title"), ogTitle, title, "No title"),
			Description: firstOf(ex.Name("twitter:description"), ogDescription, description, "No description"),
			Image:       optional(firstOf(ex.Name("twitter:image"), ogImage)),
			Site:        optional(ex.Name("twitter:site")),
			Creator:     optional(ex.Name("twitter:creator")),
		},
		LinkedIn: LinkedInPreview{
			Title:       firstOf(ogTitle, title, "No title"),
			Description: firstOf(ogDescription, description, "No description"),
			Image:       optional(ogImage),
			URL:         pageURL,
			SiteName:    siteName,
		},
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// hostname returns the host of a URL without port, or "" if it does not parse
func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
