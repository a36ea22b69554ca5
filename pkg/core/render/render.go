// Package render applies operator render rules to a finished
// recognition outcome. Rules run last, after any catalog match, and
// can override ids, types, numbering and names. Every rule is
// isolated: one broken rule logs and the rest still run.
package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/angelospk/animatch/pkg/core/formula"
	"github.com/angelospk/animatch/pkg/core/patterns"
)

// remotePrefix marks rules synced from a community list.
const remotePrefix = "[REMOTE]"

// Outcome is the mutable result a render pass operates on.
type Outcome struct {
	Filename      string
	TMDBID        string
	Type          string // "movie" or "tv"
	Title         string
	CNName        string
	ENName        string
	Year          string
	Season        int
	Episode       float64
	ProcessedName string
}

// Refetcher re-resolves catalog details when a rule overrides the id.
type Refetcher interface {
	Refetch(ctx context.Context, tmdbID, mediaType string) (title, year string, err error)
}

// Apply runs the rules in order against the outcome. It returns the
// audit messages; the outcome is mutated in place.
func Apply(ctx context.Context, rules []string, out *Outcome, fetch Refetcher) []string {
	var logs []string
	skipped := 0

	for i, raw := range rules {
		rule := strings.TrimSpace(raw)
		if rule == "" || strings.HasPrefix(rule, "#") {
			continue
		}
		sourceTag := "[private]"
		if strings.HasPrefix(rule, remotePrefix) {
			sourceTag = "[community]"
			rule = strings.TrimSpace(rule[len(remotePrefix):])
		}

		switch {
		case strings.Contains(rule, "<>") && strings.Contains(rule, ">>"):
			logs = append(logs, applyOffsetRule(i, sourceTag, rule, out)...)
		case isConditionalRule(rule):
			logs = append(logs, applyConditionalRule(ctx, i, sourceTag, rule, out, fetch)...)
		case strings.Contains(rule, " => "):
			logs = append(logs, applySubstitutionRule(i, sourceTag, rule, out)...)
		default:
			skipped++
		}
	}

	if skipped > 0 {
		logs = append(logs, fmt.Sprintf("[render] %d unrecognized rule(s) skipped", skipped))
	}
	return logs
}

// applyOffsetRule handles "A <> B >> formula": locate the episode
// number between the two anchors in the raw filename and renumber.
func applyOffsetRule(pos int, tag, rule string, out *Outcome) []string {
	locatorPart, expr, _ := strings.Cut(rule, ">>")
	startTag, endTag, ok := strings.Cut(locatorPart, "<>")
	if !ok {
		return []string{fmt.Sprintf("[render]%s rule %d: malformed locator", tag, pos)}
	}
	startTag, endTag, expr = strings.TrimSpace(startTag), strings.TrimSpace(endTag), strings.TrimSpace(expr)

	re, err := patterns.Compile(regexp2.Escape(startTag) + `\s*(\d+)\s*` + regexp2.Escape(endTag))
	if err != nil {
		return []string{fmt.Sprintf("[render]%s rule %d: bad locator pattern: %v", tag, pos, err)}
	}
	m := patterns.FindMatch(re, out.Filename)
	if m == nil {
		return nil
	}
	base, err := strconv.Atoi(patterns.Group(m, 1))
	if err != nil {
		return nil
	}
	v, err := formula.Eval(expr, base)
	if err != nil {
		return []string{fmt.Sprintf("[render]%s rule %d: formula failed: %v", tag, pos, err)}
	}
	out.Episode = float64(v)
	return []string{fmt.Sprintf("[render]%s rule %d: episode renumbered %d -> %d", tag, pos, base, v)}
}

func isConditionalRule(rule string) bool {
	rule = strings.TrimPrefix(rule, "@")
	lhs, rhs, ok := strings.Cut(rule, "=>")
	if !ok {
		return false
	}
	lhs, rhs = strings.TrimSpace(lhs), strings.TrimSpace(rhs)
	return strings.HasPrefix(lhs, "{[") && strings.HasSuffix(lhs, "]}") &&
		strings.HasPrefix(rhs, "{[") && strings.HasSuffix(rhs, "]}")
}

// applyConditionalRule handles "{[conditions]} => {[modifications]}".
func applyConditionalRule(ctx context.Context, pos int, tag, rule string, out *Outcome, fetch Refetcher) []string {
	rule = strings.TrimPrefix(rule, "@")
	lhs, rhs, _ := strings.Cut(rule, "=>")
	conds := parseItems(strings.TrimSpace(lhs))
	mods := parseItems(strings.TrimSpace(rhs))

	match, err := conditionsMatch(conds, out)
	if err != nil {
		return []string{fmt.Sprintf("[render]%s rule %d: bad condition: %v", tag, pos, err)}
	}
	if !match {
		return nil
	}

	logs := []string{fmt.Sprintf("[render]%s rule %d: conditions matched", tag, pos)}

	if v, ok := mods["type"]; ok {
		out.Type = strings.ToLower(v)
		logs = append(logs, fmt.Sprintf("[render] type -> %s", out.Type))
	}
	if v, ok := mods["tmdbid"]; ok {
		out.TMDBID = v
		logs = append(logs, fmt.Sprintf("[render] tmdbid -> %s", v))
		if fetch != nil {
			title, year, err := fetch.Refetch(ctx, v, out.Type)
			if err != nil {
				logs = append(logs, fmt.Sprintf("[render] refetch failed: %v", err))
			} else {
				if title != "" {
					out.Title = title
				}
				if year != "" {
					out.Year = year
				}
				logs = append(logs, fmt.Sprintf("[render] refetched: %s (%s)", title, year))
			}
		}
	}
	if v, ok := mods["year"]; ok {
		out.Year = v
		logs = append(logs, fmt.Sprintf("[render] year -> %s", v))
	}
	if v, ok := mods["s"]; ok {
		if n, err := evalNumeric(v, out); err == nil {
			out.Season = n
			logs = append(logs, fmt.Sprintf("[render] season -> %d", n))
		} else {
			logs = append(logs, fmt.Sprintf("[render] season formula failed: %v", err))
		}
	}
	if v, ok := mods["e"]; ok {
		if n, err := evalNumeric(v, out); err == nil {
			out.Episode = float64(n)
			logs = append(logs, fmt.Sprintf("[render] episode -> %d", n))
		} else {
			logs = append(logs, fmt.Sprintf("[render] episode formula failed: %v", err))
		}
	}
	return logs
}

// parseItems splits "{[k=v;k2=v2]}" into a map.
func parseItems(block string) map[string]string {
	block = strings.TrimSuffix(strings.TrimPrefix(block, "{["), "]}")
	items := map[string]string{}
	for _, item := range strings.Split(block, ";") {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		items[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return items
}

func conditionsMatch(conds map[string]string, out *Outcome) (bool, error) {
	for k, v := range conds {
		switch k {
		case "tmdbid":
			if out.TMDBID != v {
				return false, nil
			}
		case "type":
			if !strings.EqualFold(out.Type, v) {
				return false, nil
			}
		case "year":
			if out.Year != v {
				return false, nil
			}
		case "s":
			n, err := strconv.Atoi(v)
			if err != nil {
				return false, fmt.Errorf("season %q", v)
			}
			if out.Season != n {
				return false, nil
			}
		case "e":
			ok, err := episodeInRange(v, out.Episode)
			if err != nil || !ok {
				return ok, err
			}
		case "includes":
			ok, err := evalIncludes(v, out.Filename)
			if err != nil || !ok {
				return ok, err
			}
		default:
			return false, fmt.Errorf("unknown condition %q", k)
		}
	}
	return true, nil
}

// episodeInRange accepts "12" or "1-12" (inclusive).
func episodeInRange(spec string, ep float64) (bool, error) {
	if lo, hi, ok := strings.Cut(spec, "-"); ok {
		a, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		b, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("episode range %q", spec)
		}
		return ep >= a && ep <= b, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(spec), 64)
	if err != nil {
		return false, fmt.Errorf("episode %q", spec)
	}
	return ep == n, nil
}

// evalIncludes evaluates a boolean substring expression against the
// filename: terms combine with & and |, parentheses group, a bare term
// is a case-insensitive containment test.
func evalIncludes(expr, filename string) (bool, error) {
	p := &includesParser{expr: expr, name: strings.ToLower(filename)}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	p.skipSpaces()
	if p.pos != len(p.expr) {
		return false, fmt.Errorf("includes expression %q: trailing input", expr)
	}
	return v, nil
}

type includesParser struct {
	expr string
	name string
	pos  int
}

func (p *includesParser) skipSpaces() {
	for p.pos < len(p.expr) && p.expr[p.pos] == ' ' {
		p.pos++
	}
}

func (p *includesParser) parseOr() (bool, error) {
	v, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for {
		p.skipSpaces()
		if p.pos >= len(p.expr) || p.expr[p.pos] != '|' {
			return v, nil
		}
		p.pos++
		rhs, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		v = v || rhs
	}
}

func (p *includesParser) parseAnd() (bool, error) {
	v, err := p.parseTerm()
	if err != nil {
		return false, err
	}
	for {
		p.skipSpaces()
		if p.pos >= len(p.expr) || p.expr[p.pos] != '&' {
			return v, nil
		}
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return false, err
		}
		v = v && rhs
	}
}

func (p *includesParser) parseTerm() (bool, error) {
	p.skipSpaces()
	if p.pos < len(p.expr) && p.expr[p.pos] == '(' {
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		p.skipSpaces()
		if p.pos >= len(p.expr) || p.expr[p.pos] != ')' {
			return false, fmt.Errorf("includes expression %q: missing )", p.expr)
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	for p.pos < len(p.expr) {
		c := p.expr[p.pos]
		if c == '&' || c == '|' || c == ')' {
			break
		}
		p.pos++
	}
	term := strings.TrimSpace(p.expr[start:p.pos])
	if term == "" {
		return false, fmt.Errorf("includes expression %q: empty term", p.expr)
	}
	return strings.Contains(p.name, strings.ToLower(term)), nil
}

// evalNumeric resolves a modification value that may be a plain number
// or a formula over EP, S and YEAR.
func evalNumeric(v string, out *Outcome) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	expr := strings.ToUpper(v)
	if out.Year != "" {
		expr = strings.ReplaceAll(expr, "YEAR", out.Year)
	}
	expr = strings.ReplaceAll(expr, "EP", formatNumber(out.Episode))
	expr = strings.ReplaceAll(expr, "S", strconv.Itoa(out.Season))
	return formula.EvalArithmetic(expr)
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// fieldSubTargets are the name fields a plain substitution touches.
func applySubstitutionRule(pos int, tag, rule string, out *Outcome) []string {
	patternStr, target, _ := strings.Cut(rule, " => ")
	patternStr, target = strings.TrimSpace(patternStr), strings.TrimSpace(target)

	re, err := patterns.Compile(patternStr)
	if err != nil {
		return []string{fmt.Sprintf("[render]%s rule %d: bad pattern: %v", tag, pos, err)}
	}

	var logs []string
	apply := func(field string, val *string) {
		if *val == "" || !patterns.Match(re, *val) {
			return
		}
		*val = patterns.ReplaceAll(re, *val, target)
		logs = append(logs, fmt.Sprintf("[render]%s rule %d: %s rewritten", tag, pos, field))
	}
	apply("cn_name", &out.CNName)
	apply("en_name", &out.ENName)
	apply("title", &out.Title)
	apply("processed_name", &out.ProcessedName)
	return logs
}
