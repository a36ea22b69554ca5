package tags

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

var cnDigits = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9, '十': 10,
}

var romanShape = regexp2.MustCompile(`^[IVX]+$`, 0)

// RomanToInt converts a roman numeral made of I, V and X. Returns 0 for
// anything else.
func RomanToInt(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	if ok, err := romanShape.MatchString(s); err != nil || !ok {
		return 0
	}
	values := map[byte]int{'I': 1, 'V': 5, 'X': 10}
	num := 0
	for i := 0; i < len(s); i++ {
		v := values[s[i]]
		if i > 0 && v > values[s[i-1]] {
			num += v - 2*values[s[i-1]]
		} else {
			num += v
		}
	}
	return num
}

// ChineseToNumber converts Chinese numerals (一..九十九), roman numerals
// and plain digit strings. Returns 0 when the text is not a number.
func ChineseToNumber(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	runes := []rune(text)
	if len(runes) == 1 {
		if v, ok := cnDigits[runes[0]]; ok {
			return v
		}
	}
	if r := RomanToInt(text); r > 0 {
		return r
	}
	// Compound forms: 十一, 二十, 二十五.
	if idx := strings.IndexRune(text, '十'); idx >= 0 {
		tens, units := 1, 0
		head := []rune(text[:idx])
		tail := []rune(strings.TrimPrefix(text[idx:], "十"))
		if len(head) == 1 {
			v, ok := cnDigits[head[0]]
			if !ok {
				return 0
			}
			tens = v
		} else if len(head) > 1 {
			return 0
		}
		if len(tail) == 1 {
			v, ok := cnDigits[tail[0]]
			if !ok {
				return 0
			}
			units = v
		} else if len(tail) > 1 {
			return 0
		}
		return tens*10 + units
	}
	return 0
}
