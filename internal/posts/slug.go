package posts

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Slugify turns a title into a URL-friendly identifier:
// lowercase, runs of non-alphanumerics collapsed to single dashes
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // avoid a leading dash
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SlugFor derives the post slug from its title and id. The id suffix keeps
// slugs unique across posts with equal titles without a store round trip.
func SlugFor(title string, id primitive.ObjectID) string {
	idHex := id.Hex()
	suffix := idHex[len(idHex)-6:]

	slug := Slugify(title)
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
