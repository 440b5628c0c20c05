package catalog

import "strings"

// Katakana (U+30A1..U+30F6) and their Hiragana counterparts, position by
// position: base, voiced, semi-voiced and small forms.
const (
	katakanaRow = "ァアィイゥウェエォオカガキギクグケゲコゴサザシジスズセゼソゾタダチヂッツヅテデトドナニヌネノハバパヒビピフブプヘベペホボポマミムメモャヤュユョヨラリルレロヮワヰヱヲンヴヵヶ"
	hiraganaRow = "ぁあぃいぅうぇえぉおかがきぎくぐけげこごさざしじすずせぜそぞただちぢっつづてでとどなにぬねのはばぱひびぴふぶぷへべぺほぼぽまみむめもゃやゅゆょよらりるれろゎわゐゑをんゔゕゖ"
)

// kanaFold maps every Katakana codepoint in katakanaRow to its Hiragana.
var kanaFold = buildKanaFold()

func buildKanaFold() map[rune]rune {
	from, to := []rune(katakanaRow), []rune(hiraganaRow)
	if len(from) != len(to) {
		panic("catalog: kana fold table rows differ in length")
	}
	m := make(map[rune]rune, len(from))
	for i, r := range from {
		m[r] = to[i]
	}
	return m
}

// spaceStripper removes ASCII (U+0020) and ideographic (U+3000) spaces anywhere
// in the string.
var spaceStripper = strings.NewReplacer(" ", "", "　", "")

// Normalize canonicalizes text for matching:
//  1. Empty input -> ""
//  2. Lowercase (locale-invariant)
//  3. Remove every U+0020 and U+3000
//  4. Fold Katakana to Hiragana; everything else passes through
//
// Normalize is pure and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ToLower(text)
	s = spaceStripper.Replace(s)
	return strings.Map(foldKana, s)
}

func foldKana(r rune) rune {
	if h, ok := kanaFold[r]; ok {
		return h
	}
	return r
}
