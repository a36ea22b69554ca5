// Package cleaner prepares release names for the external parser and
// strips residual noise from extracted titles. It hosts the operator
// word-rule engine (substitution, episode offsets, forced metadata,
// suppression) that runs before anything else sees the filename.
package cleaner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/formula"
	"github.com/angelospk/animatch/pkg/core/patterns"
)

// remotePrefix marks rules synced from a shared community list; they
// behave identically but are labelled differently in the trace.
const remotePrefix = "[REMOTE]"

var (
	emptyBrackets    = regexp2.MustCompile(`\[\s*\]|\(\s*\)|\{\s*\}`, 0)
	embeddedMeta     = regexp2.MustCompile(`\{\[(.*?)\]\}`, 0)
	decorativeGlyphs = regexp2.MustCompile(`[★☆■□◆◇●○•]`, 0)
	dupFansubSuffix  = regexp2.MustCompile(`(字幕组|字幕組|字幕社|工作室)\s*(字幕组|字幕組|字幕社|工作室)`, 0)
	dashedEpisode    = regexp2.MustCompile(` - (\d+) - `, 0)
	trailingEpisode  = regexp2.MustCompile(` - (\d{1,4}(?:\.\d+)?)(?= )`, 0)
	separatorRuns    = regexp2.MustCompile(`[ ._=-]{3,}`, 0)
	whitespaceRuns   = regexp2.MustCompile(`\s+`, 0)
	backrefGroup     = regexp2.MustCompile(`\\(\d+)`, 0)
)

// calcEpisode applies an offset formula to a numeric string. Any
// failure leaves the original value untouched: a broken rule must never
// corrupt the filename.
func calcEpisode(base, expr string) string {
	n, err := strconv.Atoi(base)
	if err != nil {
		return base
	}
	v, err := formula.Eval(expr, n)
	if err != nil {
		return base
	}
	return strconv.Itoa(v)
}

// toReplacement converts operator-style \1 backreferences into the
// engine's ${1} form and escapes stray $ signs.
func toReplacement(target string) string {
	out := strings.ReplaceAll(target, "$", "$$")
	var b strings.Builder
	for i := 0; i < len(out); i++ {
		if out[i] == '\\' && i+1 < len(out) && out[i+1] >= '0' && out[i+1] <= '9' {
			j := i + 1
			for j < len(out) && out[j] >= '0' && out[j] <= '9' {
				j++
			}
			b.WriteString("${" + out[i+1:j] + "}")
			i = j - 1
			continue
		}
		b.WriteByte(out[i])
	}
	return b.String()
}

// parseForcedItems splits "k=v;k2=v2" into the forced map, lowering the
// keys.
func parseForcedItems(inner string, forced map[string]string) {
	for _, item := range strings.Split(inner, ";") {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		forced[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
}

// PreClean runs the operator word rules and baseline noise removal over
// a raw filename before the external parser sees it. It returns the
// cleaned name, any forced metadata the rules extracted, and the audit
// messages. Rules are isolated: one broken rule is logged and skipped.
func PreClean(filename string, customWords []string, forceFilename bool) (string, map[string]string, []string) {
	logs := []string{fmt.Sprintf("original filename: %s", filename)}
	temp := filename

	// Single-file mode: path separators would confuse tokenization.
	if forceFilename && strings.ContainsAny(temp, "/\\") {
		temp = strings.NewReplacer("/", "_", "\\", "_").Replace(temp)
		logs = append(logs, "[preclean] single-file mode, path separators neutralized")
	}

	pureFilename := filepath.Base(filename)
	forced := map[string]string{}

	for _, ruleLine := range customWords {
		if ruleLine == "" || strings.HasPrefix(ruleLine, "#") {
			continue
		}
		sourceTag := "[private]"
		actualLine := ruleLine
		if strings.HasPrefix(ruleLine, remotePrefix) {
			sourceTag = "[community]"
			actualLine = ruleLine[len(remotePrefix):]
		}

		for _, word := range strings.Split(actualLine, "&&") {
			word = strings.TrimSpace(word)
			if word == "" {
				continue
			}
			temp = applyWordRule(temp, pureFilename, word, sourceTag, forced, &logs)
		}
	}

	temp = patterns.EraseAll(emptyBrackets, temp)

	// Embedded forced metadata, usually produced by a substitution rule
	// of the shape "pattern => \1{[s=2]}".
	if m := patterns.FindMatch(embeddedMeta, temp); m != nil {
		inner := patterns.Group(m, 1)
		logs = append(logs, fmt.Sprintf("[preclean] embedded metadata: %s", inner))
		parseForcedItems(inner, forced)
		temp = strings.Replace(temp, m.String(), "", 1)
	}

	for _, nw := range patterns.NoiseWords {
		if patterns.Match(nw, temp) {
			logs = append(logs, "[builtin] noise word removed")
			temp = patterns.EraseAll(nw, temp)
		}
	}

	temp = patterns.EraseAll(decorativeGlyphs, temp)

	// Colons and slashes are parser-hostile.
	temp = strings.ReplaceAll(temp, ":", " ")
	temp = strings.ReplaceAll(temp, " / ", "  ")
	temp = strings.ReplaceAll(temp, "/", " ")

	// Substitution rules can stack names like 桜都字幕组字幕组.
	temp = patterns.ReplaceAll(dupFansubSuffix, temp, "$1")

	// " - 01 - " recursion guard for the external parser.
	temp = patterns.ReplaceAll(dashedEpisode, temp, " [$1] ")

	// " - 01 [" would lose its dash to the separator collapse below and
	// take the episode with it, so bracket the number first.
	temp = patterns.ReplaceAll(trailingEpisode, temp, " [$1]")

	temp = patterns.ReplaceAll(separatorRuns, temp, "  ")
	final := strings.TrimSpace(patterns.ReplaceAll(whitespaceRuns, temp, " "))
	logs = append(logs, fmt.Sprintf("cleaned result: %s", final))
	return final, forced, logs
}

func applyWordRule(temp, pureFilename, word, sourceTag string, forced map[string]string, logs *[]string) string {
	// 1. Episode offset locator: "start <> end >> formula".
	if strings.Contains(word, "<>") && strings.Contains(word, ">>") {
		locatorPart, expr, _ := strings.Cut(word, ">>")
		startTag, endTag, ok := strings.Cut(locatorPart, "<>")
		if !ok {
			return temp
		}
		startTag, endTag, expr = strings.TrimSpace(startTag), strings.TrimSpace(endTag), strings.TrimSpace(expr)
		re, err := patterns.Compile("(" + regexp2.Escape(startTag) + `)\s*(\d+)\s*(` + regexp2.Escape(endTag) + ")")
		if err != nil {
			*logs = append(*logs, fmt.Sprintf("[rule]%s bad locator rule: %s", sourceTag, word))
			return temp
		}
		if m := patterns.FindMatch(re, temp); m != nil {
			originalNum := patterns.Group(m, 2)
			newNum := calcEpisode(originalNum, expr)
			newStr := patterns.Group(m, 1) + newNum + patterns.Group(m, 3)
			temp = strings.Replace(temp, m.String(), newStr, 1)
			*logs = append(*logs, fmt.Sprintf("[rule]%s episode offset: %s -> %s", sourceTag, originalNum, newNum))
		}
		return temp
	}

	// 2. Substitution: "pattern => target".
	if strings.Contains(word, " => ") {
		patternStr, target, _ := strings.Cut(word, " => ")
		patternStr, target = strings.TrimSpace(patternStr), strings.TrimSpace(target)
		re, err := patterns.Compile(patternStr)
		if err != nil {
			*logs = append(*logs, fmt.Sprintf("[rule]%s bad pattern: %s", sourceTag, patternStr))
			return temp
		}
		matched := patterns.Match(re, temp)
		if !matched && pureFilename != "" && patterns.Match(re, pureFilename) {
			matched = true
			*logs = append(*logs, fmt.Sprintf("[rule]%s matched via basename anchor: %s", sourceTag, patternStr))
		}
		if !matched {
			return temp
		}

		// 2.1 Forced metadata extraction: target "{[k=v;...]}".
		if strings.HasPrefix(target, "{[") && strings.HasSuffix(target, "]}") {
			m := patterns.FindMatch(re, temp)
			if m == nil {
				m = patterns.FindMatch(re, pureFilename)
			}
			if m == nil {
				return temp
			}
			*logs = append(*logs, fmt.Sprintf("[rule]%s extraction rule hit: %s", sourceTag, word))
			inner := target[2 : len(target)-2]
			for _, item := range strings.Split(inner, ";") {
				k, v, ok := strings.Cut(item, "=")
				if !ok {
					continue
				}
				k, v = strings.ToLower(strings.TrimSpace(k)), strings.TrimSpace(v)
				// Formula form: {[e=\1@+12]} applies an offset to the
				// captured group.
				if k == "e" && strings.Contains(v, `\`) && strings.Contains(v, "@") {
					if gm := patterns.FindMatch(backrefGroup, v); gm != nil {
						if idx, err := strconv.Atoi(patterns.Group(gm, 1)); err == nil && idx <= m.GroupCount() {
							base := patterns.Group(m, idx)
							_, formulaPart, _ := strings.Cut(v, "@")
							v = calcEpisode(base, "@"+formulaPart)
						}
					}
				}
				forced[k] = v
			}
			return temp
		}

		// 2.2 Plain substitution, with a stacking guard: skip when the
		// target already sits in the name and the pattern is just a
		// fragment of it.
		if strings.Contains(temp, target) && strings.Contains(target, patternStr) {
			return temp
		}
		*logs = append(*logs, fmt.Sprintf("[rule]%s substitution: %s -> %s", sourceTag, patternStr, target))
		return patterns.ReplaceAll(re, temp, toReplacement(target))
	}

	// 3. Plain suppression word.
	re, err := patterns.Compile(word)
	if err != nil {
		*logs = append(*logs, fmt.Sprintf("[rule]%s bad suppression word: %s", sourceTag, word))
		return temp
	}
	if patterns.Match(re, temp) || patterns.Match(re, pureFilename) {
		*logs = append(*logs, fmt.Sprintf("[rule]%s suppression word applied: %s", sourceTag, word))
		temp = patterns.EraseAll(re, temp)
	}
	return temp
}
