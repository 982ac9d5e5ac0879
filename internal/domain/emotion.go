package domain

import "strings"

// Emotion is a label from the closed emotion vocabulary
type Emotion string

const (
	NoEmotion Emotion = "no-emotion"
	Joy       Emotion = "joy"
	Sadness   Emotion = "sadness"
	Surprise  Emotion = "surprise"
	Anger     Emotion = "anger"
	Disgust   Emotion = "disgust"
	Fear      Emotion = "fear"
)

// EmotionInfo pairs a label with its display glyph
type EmotionInfo struct {
	Label Emotion `json:"label"`
	Glyph string  `json:"glyph"`
}

// vocabulary is the only label -> glyph table; order is the canonical display order.
var vocabulary = []EmotionInfo{
	{NoEmotion, "😐"},
	{Joy, "😀"},
	{Sadness, "😞"},
	{Surprise, "😮"},
	{Anger, "😡"},
	{Disgust, "🤢"},
	{Fear, "😨"},
}

var (
	glyphByLabel = make(map[Emotion]string, len(vocabulary))
	labelByGlyph = make(map[string]Emotion, len(vocabulary))
)

func init() {
	for _, v := range vocabulary {
		glyphByLabel[v.Label] = v.Glyph
		labelByGlyph[v.Glyph] = v.Label
	}
}

// Emotions returns the vocabulary in display order
func Emotions() []EmotionInfo {
	out := make([]EmotionInfo, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Valid reports whether e belongs to the vocabulary
func (e Emotion) Valid() bool {
	_, ok := glyphByLabel[e]
	return ok
}

// Glyph returns the display glyph, or "" for labels outside the vocabulary
func (e Emotion) Glyph() string {
	return glyphByLabel[e]
}

func (e Emotion) String() string {
	return string(e)
}

// ParseEmotion resolves a label or a glyph to a vocabulary member. Labels are
// matched case-insensitively, with '_' and ' ' treated as '-', so classifier
// output such as "No_Emotion" resolves to NoEmotion.
func ParseEmotion(s string) (Emotion, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if em, ok := labelByGlyph[s]; ok {
		return em, true
	}

	norm := strings.ToLower(s)
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	em := Emotion(norm)
	if em.Valid() {
		return em, true
	}
	// the service reports "no emotion" in a few spellings
	if norm == "noemotion" || norm == "none" || norm == "neutral" {
		return NoEmotion, true
	}
	return "", false
}

// MatchesEmotion reports whether q names e exactly, either by label or by glyph.
func (e Emotion) MatchesEmotion(q string) bool {
	if e == "" {
		return false
	}
	return q == string(e) || q == e.Glyph()
}
