package directory

import "strings"

// voiceExtractor is one candidate location for the voice identifier. The
// backend has shipped it under several names over time; the first extractor
// producing a non-empty string wins.
type voiceExtractor struct {
	source  string
	extract func(map[string]any) string
}

var voiceExtractors = []voiceExtractor{
	{"voiceId", plainString("voiceId")},
	{"voice_id", plainString("voice_id")},
	{"toneType", plainString("toneType")},
	{"tone_type", plainString("tone_type")},
	{"tones[0].toneType", firstTone("toneType")},
	{"tones[0].tone_type", firstTone("tone_type")},
	{"tone.toneType", nested("tone", "toneType")},
	{"tone.tone_type", nested("tone", "tone_type")},
}

// resolveVoiceID runs the candidate extractors in priority order and returns
// the winning value plus the field it came from.
func resolveVoiceID(record map[string]any) (string, string) {
	for _, candidate := range voiceExtractors {
		if value := candidate.extract(record); value != "" {
			return value, candidate.source
		}
	}
	return "", ""
}

func plainString(key string) func(map[string]any) string {
	return func(record map[string]any) string {
		value, _ := record[key].(string)
		return strings.TrimSpace(value)
	}
}

func firstTone(key string) func(map[string]any) string {
	return func(record map[string]any) string {
		tones, _ := record["tones"].([]any)
		if len(tones) == 0 {
			return ""
		}
		first, _ := tones[0].(map[string]any)
		value, _ := first[key].(string)
		return strings.TrimSpace(value)
	}
}

func nested(outer, inner string) func(map[string]any) string {
	return func(record map[string]any) string {
		obj, _ := record[outer].(map[string]any)
		value, _ := obj[inner].(string)
		return strings.TrimSpace(value)
	}
}

// firstString returns the first non-empty string among the given keys.
func firstString(record map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := record[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// intField reads a JSON number as int.
func intField(record map[string]any, key string) (int, bool) {
	value, ok := record[key].(float64)
	if !ok {
		return 0, false
	}
	return int(value), true
}
