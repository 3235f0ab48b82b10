package wishlists

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// transliterations maps Cyrillic letters to Latin for slug building.
var transliterations = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

const maxSlugBase = 60

// Slugify lowers, transliterates, and hyphenates a title into a URL
// slug. Falls back to "wishlist" when nothing usable remains.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if mapped, ok := transliterations[r]; ok {
			b.WriteString(mapped)
			lastHyphen = mapped == ""
			continue
		}
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugBase {
		slug = strings.Trim(slug[:maxSlugBase], "-")
	}
	if slug == "" {
		slug = "wishlist"
	}
	return slug
}

// uniqueSlug appends a short random suffix so two wishlists with the
// same title never collide.
func uniqueSlug(title string) string {
	return Slugify(title) + "-" + uuid.NewString()[:8]
}
