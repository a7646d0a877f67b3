package judge

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

var bestEffortRe = map[string]*regexp.Regexp{
	"a": regexp.MustCompile(`(?i)score[_\s]*a\b[^\d-]{0,16}(-?\d+(?:\.\d+)?)`),
	"b": regexp.MustCompile(`(?i)score[_\s]*b\b[^\d-]{0,16}(-?\d+(?:\.\d+)?)`),
}

// Parse extracts a Verdict from a free-form judge reply. It first
// scans for the rubric's labelled lines, then falls back to matching
// numeric tokens against the known score labels anywhere in the text.
// Both overall scores must be present and on the scale, or the whole
// verdict fails; a metric that doesn't parse is simply absent.
func Parse(reply string) (*Verdict, error) {
	v := &Verdict{Metrics: make(map[string]MetricPair)}
	var (
		haveA, haveB   bool
		reasoningLines []string
		inReasoning    bool
	)

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		label, rest, ok := splitLabel(line)
		if !ok {
			if inReasoning && line != "" {
				reasoningLines = append(reasoningLines, line)
			}
			continue
		}
		inReasoning = false

		switch label {
		case "SCORE_A":
			if n, ok := firstNumber(rest); ok {
				v.ScoreA, haveA = n, true
			}
		case "SCORE_B":
			if n, ok := firstNumber(rest); ok {
				v.ScoreB, haveB = n, true
			}
		case "ACCURACY", "COHERENCE", "COMPLETENESS", "STYLE":
			if pair, ok := parsePair(rest); ok {
				v.Metrics[strings.ToLower(label)] = pair
			}
		case "WINNER":
			// Ignored: winner designation belongs to the orchestrator.
		case "REASONING":
			inReasoning = true
			if rest != "" {
				reasoningLines = append(reasoningLines, rest)
			}
		}
	}

	// Best-effort extraction when the strict labels were missing.
	if !haveA {
		if n, ok := matchScore(reply, "a"); ok {
			v.ScoreA, haveA = n, true
		}
	}
	if !haveB {
		if n, ok := matchScore(reply, "b"); ok {
			v.ScoreB, haveB = n, true
		}
	}

	switch {
	case !haveA && !haveB:
		return nil, &ParseError{Reason: "no scores found", Reply: reply}
	case !haveA:
		return nil, &ParseError{Reason: "score for side A missing", Reply: reply}
	case !haveB:
		return nil, &ParseError{Reason: "score for side B missing", Reply: reply}
	}
	if !inScale(v.ScoreA) || !inScale(v.ScoreB) {
		return nil, &ParseError{Reason: "score outside 0-10 scale", Reply: reply}
	}

	// Drop any metric pair off the scale rather than normalizing it.
	for name, pair := range v.Metrics {
		if !inScale(pair.A) || !inScale(pair.B) {
			delete(v.Metrics, name)
		}
	}

	v.Reasoning = strings.Join(reasoningLines, " ")
	if v.Reasoning == "" {
		v.Reasoning = strings.TrimSpace(reply)
	}
	return v, nil
}

// splitLabel recognizes "LABEL: rest" lines, tolerating leading
// markdown decoration like "**" or "- ".
func splitLabel(line string) (label, rest string, ok bool) {
	line = strings.TrimLeft(line, "*-# ")
	head, tail, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	head = strings.ToUpper(strings.TrimRight(strings.TrimSpace(head), "*"))
	head = strings.ReplaceAll(head, " ", "_")
	switch head {
	case "SCORE_A", "SCORE_B", "ACCURACY", "COHERENCE", "COMPLETENESS", "STYLE", "WINNER", "REASONING":
		rest = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tail), "*"))
		return head, rest, true
	}
	return "", "", false
}

func firstNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePair reads "x | y" (also tolerating "," or "/" separators, or
// just two numbers in sequence).
func parsePair(s string) (MetricPair, bool) {
	nums := numberRe.FindAllString(s, 2)
	if len(nums) != 2 {
		return MetricPair{}, false
	}
	a, errA := strconv.ParseFloat(nums[0], 64)
	b, errB := strconv.ParseFloat(nums[1], 64)
	if errA != nil || errB != nil {
		return MetricPair{}, false
	}
	return MetricPair{A: a, B: b}, true
}

func matchScore(reply, side string) (float64, bool) {
	m := bestEffortRe[side].FindStringSubmatch(reply)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
