// Package segment turns raw chapter text into speaker-attributed
// segments and splits those segments into synthesis-sized chunks.
package segment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/socialawy/audioformation/pkg/types"
)

// speakerTagRe matches a leading "[character_id]" tag on its own line
// start, capturing the id.
var speakerTagRe = regexp.MustCompile(`^\[([a-zA-Z0-9_-]+)\]\s*`)

// Go's regexp (RE2) has no lookbehind, so sentence/breath splitting is
// done by scanning for terminator runes and splitting just after the
// trailing whitespace instead of compiling a lookbehind pattern.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true, '؟': true, '。': true,
}

var breathTerminators = map[rune]bool{
	',': true, '،': true, ';': true, '؛': true, ':': true,
}

// SplitSentences splits text into sentences at Arabic and Latin
// sentence-ending punctuation, returning trimmed non-empty sentences.
func SplitSentences(text string) []string {
	return splitAfterRunes(strings.TrimSpace(text), sentenceTerminators)
}

// SplitBreathGroups splits text into sub-sentence clause units: sentences
// first, then each sentence further split at clause punctuation.
func SplitBreathGroups(text string) []string {
	var groups []string
	for _, sentence := range SplitSentences(text) {
		for _, part := range splitAfterRunes(sentence, breathTerminators) {
			groups = append(groups, part)
		}
	}
	return groups
}

// splitAfterRunes splits s immediately after any rune in terminators
// followed by whitespace, mirroring the original's
// `(?<=[terminators])\s+` lookbehind split, then trims and drops empties.
func splitAfterRunes(s string, terminators map[rune]bool) []string {
	var parts []string
	var current strings.Builder
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		current.WriteRune(r)
		if terminators[r] {
			// consume following whitespace as the split point
			j := i + 1
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}
			if j > i+1 {
				parts = append(parts, current.String())
				current.Reset()
				i = j
				continue
			}
		}
		i++
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// ChunkText splits text into generation-ready chunks bounded by
// maxChars, according to strategy.
func ChunkText(text string, maxChars int, strategy types.ChunkStrategy) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var units []string
	switch strategy {
	case types.StrategyBreathGroup:
		units = SplitBreathGroups(text)
	case types.StrategySentence:
		units = SplitSentences(text)
	default:
		return hardSplit(text, maxChars)
	}

	var chunks []string
	current := ""
	for _, unit := range units {
		if len(unit) > maxChars {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				current = ""
			}
			chunks = append(chunks, hardSplit(unit, maxChars)...)
			continue
		}

		var candidate string
		if current != "" {
			candidate = strings.TrimSpace(current + " " + unit)
		} else {
			candidate = unit
		}
		if len(candidate) <= maxChars {
			current = candidate
		} else {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
			}
			current = unit
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// hardSplit force-splits text at maxChars, preferring the last word
// boundary within the bound.
func hardSplit(text string, maxChars int) []string {
	var chunks []string
	remaining := strings.TrimSpace(text)

	for remaining != "" {
		if len(remaining) <= maxChars {
			chunks = append(chunks, remaining)
			break
		}

		window := remaining[:maxChars]
		splitPos := strings.LastIndex(window, " ")
		if splitPos <= 0 {
			splitPos = maxChars
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:splitPos]))
		remaining = strings.TrimSpace(remaining[splitPos:])
	}

	return chunks
}

// ParseChapterSegments parses chapter text into speaker-attributed
// segments. In single mode, any speaker tags are stripped and the whole
// chapter becomes one segment under defaultCharacter. In multi mode, text
// is split at leading "[character_id]" tags, with a blank line reverting
// to defaultCharacter.
func ParseChapterSegments(text string, mode types.ChapterMode, defaultCharacter string) []types.Segment {
	if mode == types.ModeSingle {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = speakerTagRe.ReplaceAllString(line, "")
		}
		cleaned := strings.TrimSpace(strings.Join(lines, "\n"))
		return []types.Segment{{Character: defaultCharacter, Text: cleaned, Index: 0}}
	}

	var segments []types.Segment
	currentCharacter := defaultCharacter
	var currentParts []string
	index := 0

	flush := func() {
		if len(currentParts) > 0 {
			segments = append(segments, types.Segment{
				Character: currentCharacter,
				Text:      strings.TrimSpace(strings.Join(currentParts, " ")),
				Index:     index,
			})
			index++
			currentParts = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			currentCharacter = defaultCharacter
			continue
		}

		if loc := speakerTagRe.FindStringSubmatchIndex(line); loc != nil {
			newChar := line[loc[2]:loc[3]]
			if len(currentParts) > 0 && newChar != currentCharacter {
				flush()
			}
			currentCharacter = newChar
			remaining := strings.TrimSpace(line[loc[1]:])
			if remaining != "" {
				currentParts = append(currentParts, remaining)
			}
		} else {
			currentParts = append(currentParts, strings.TrimSpace(line))
		}
	}
	flush()

	return segments
}

// ValidateSpeakerTags checks every "[character_id]" tag in text against
// knownCharacters and returns a warning string per unknown reference,
// including the 1-based line number of the tag.
func ValidateSpeakerTags(text string, knownCharacters map[string]bool) []string {
	var warnings []string
	lines := strings.Split(text, "\n")
	for lineNum, line := range lines {
		loc := speakerTagRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		charID := line[loc[2]:loc[3]]
		if !knownCharacters[charID] {
			warnings = append(warnings, fmtUnknownTag(lineNum+1, charID))
		}
	}
	return warnings
}

func fmtUnknownTag(line int, charID string) string {
	return "Line " + strconv.Itoa(line) + ": Unknown speaker tag [" + charID + "]."
}
