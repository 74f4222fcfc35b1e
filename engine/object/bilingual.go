package object

// BilingualText carries the Chinese and English renditions of a piece
// of display text.
type BilingualText struct {
	Zh string `json:"zh"`
	En string `json:"en"`
}

// EmptyText is the zero bilingual value.
var EmptyText = BilingualText{}

// Get returns the rendition for the given language code. Anything
// other than "en" selects Chinese.
func (b BilingualText) Get(language string) string {
	if language == "en" {
		return b.En
	}
	return b.Zh
}

// IsEmpty reports whether both renditions are blank.
func (b BilingualText) IsEmpty() bool {
	return b.Zh == "" && b.En == ""
}

// Append returns a copy with the given suffixes appended to each
// rendition.
func (b BilingualText) Append(zh, en string) BilingualText {
	return BilingualText{Zh: b.Zh + zh, En: b.En + en}
}
