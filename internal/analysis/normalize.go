package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedResponse indicates the model output contains no parseable
// structured payload.
var ErrMalformedResponse = errors.New("analysis: malformed model response")

// ErrInvalidReply indicates the payload parsed but lacks a usable reply
// (missing or shorter than 3 characters).
var ErrInvalidReply = errors.New("analysis: payload has no usable reply")

// fenceRe matches markdown code-fence markers, with or without a language tag.
var fenceRe = regexp.MustCompile("(?i)```json\\s*|```\\s*")

// replyRe extracts a quoted reply value from otherwise unparseable text.
var replyRe = regexp.MustCompile(`"reply"\s*:\s*"([^"]+)"`)

// wirePayload mirrors the JSON object the model is instructed to emit.
// Numeric fields are decoded loosely because models sometimes quote numbers
// or emit nonsense in their place.
type wirePayload struct {
	Reply          string  `json:"reply" jsonschema:"description=Your warm empathetic response (2-3 sentences)"`
	PrimaryEmotion Emotion `json:"primary_emotion" jsonschema:"enum=joy,enum=sadness,enum=anger,enum=fear,enum=anxiety,enum=neutral,enum=frustration,enum=loneliness,enum=hope"`
	Intensity      any     `json:"intensity" jsonschema:"description=Emotion intensity from 0.0 to 1.0"`
	HiddenEmotion  *string `json:"hidden_emotion" jsonschema:"description=Masked emotion if detected; null otherwise"`
	RiskScore      any     `json:"risk_score" jsonschema:"description=0.0 for normal; 0.7-1.0 for self-harm or suicide risk"`
	Distortion     *string `json:"distortion" jsonschema:"description=Cognitive distortion label if detected; null otherwise"`
}

// Normalize converts raw model output text into a [Result].
//
// The pipeline is: strip code fences, extract the first balanced {...} region,
// decode it, then validate and apply per-field defaults. It returns
// [ErrMalformedResponse] when no structured payload can be recovered and
// [ErrInvalidReply] when the payload decodes but its reply is missing or
// shorter than 3 characters.
func Normalize(raw string) (Result, error) {
	clean := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	candidate, ok := extractObject(clean)
	if !ok {
		return Result{}, fmt.Errorf("%w: no balanced object in %d bytes of text", ErrMalformedResponse, len(raw))
	}

	var payload wirePayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(payload.Reply) < 3 {
		return Result{}, fmt.Errorf("%w: reply %q", ErrInvalidReply, payload.Reply)
	}

	res := Result{
		Reply:          payload.Reply,
		PrimaryEmotion: payload.PrimaryEmotion,
		Intensity:      clamp01(coerceFloat(payload.Intensity, DefaultIntensity)),
		RiskScore:      clamp01(coerceFloat(payload.RiskScore, DefaultRiskScore)),
	}
	if res.PrimaryEmotion == "" {
		res.PrimaryEmotion = EmotionNeutral
	}
	if payload.HiddenEmotion != nil {
		res.HiddenEmotion = *payload.HiddenEmotion
	}
	if payload.Distortion != nil {
		res.Distortion = *payload.Distortion
	}
	return res, nil
}

// SalvageReply attempts a last-resort partial extraction from raw text that
// failed full normalization. When a "reply": "..." pattern is found, it
// synthesizes a minimal neutral [Result] around it. Reports ok=false when no
// such pattern exists.
func SalvageReply(raw string) (Result, bool) {
	m := replyRe.FindStringSubmatch(raw)
	if m == nil || m[1] == "" {
		return Result{}, false
	}
	return Result{
		Reply:          m[1],
		PrimaryEmotion: EmotionNeutral,
		Intensity:      DefaultIntensity,
		RiskScore:      DefaultRiskScore,
	}, true
}

// extractObject returns the first balanced {...} region of s. Quoted strings
// are honoured so braces inside reply text do not unbalance the scan.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// coerceFloat interprets v as a float64, accepting JSON numbers and numeric
// strings. Missing, non-numeric, and zero values all yield def; a zero score
// from the model is indistinguishable from an absent one, matching the
// established behavior consumers were built against.
func coerceFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		if n == 0 {
			return def
		}
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || f == 0 {
			return def
		}
		return f
	default:
		return def
	}
}
