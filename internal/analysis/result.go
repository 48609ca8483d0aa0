// Package analysis turns raw model output into structured emotional
// assessments of user messages. It contains the response normalizer, the
// offline fallback responder, and the conversation analyzer that orchestrates
// both around the external model call.
package analysis

// Emotion is the primary emotion label assigned to a user message.
type Emotion string

const (
	EmotionJoy         Emotion = "joy"
	EmotionSadness     Emotion = "sadness"
	EmotionAnger       Emotion = "anger"
	EmotionFear        Emotion = "fear"
	EmotionAnxiety     Emotion = "anxiety"
	EmotionNeutral     Emotion = "neutral"
	EmotionFrustration Emotion = "frustration"
	EmotionLoneliness  Emotion = "loneliness"
	EmotionHope        Emotion = "hope"
)

// IsValid reports whether e is one of the recognised emotion labels.
func (e Emotion) IsValid() bool {
	switch e {
	case EmotionJoy, EmotionSadness, EmotionAnger, EmotionFear, EmotionAnxiety,
		EmotionNeutral, EmotionFrustration, EmotionLoneliness, EmotionHope:
		return true
	}
	return false
}

// Defaults applied when the model omits a field or returns garbage for it.
const (
	DefaultIntensity = 0.5
	DefaultRiskScore = 0.0
)

// Result is the structured emotional assessment of one user message.
// It is immutable once produced; consumers read it for display, persistence,
// and crisis evaluation.
type Result struct {
	// Reply is the companion's response text. Always non-empty and at least
	// 3 characters.
	Reply string `json:"reply"`

	// PrimaryEmotion is the dominant emotion detected in the user's message.
	PrimaryEmotion Emotion `json:"primary_emotion"`

	// Intensity of the primary emotion in [0, 1].
	Intensity float64 `json:"intensity"`

	// HiddenEmotion is an optional secondary emotion the model suspects the
	// user is masking. Empty when absent.
	HiddenEmotion string `json:"hidden_emotion,omitempty"`

	// RiskScore estimates self-harm risk in [0, 1]. The crisis policy
	// compares it against the configured threshold.
	RiskScore float64 `json:"risk_score"`

	// Distortion is an optional cognitive distortion label (e.g.,
	// "catastrophizing"). Empty when absent.
	Distortion string `json:"distortion,omitempty"`
}

// clamp01 restricts v to [0, 1]. Models occasionally return out-of-range
// scores (e.g., risk_score 5.0); downstream threshold comparisons and chart
// rendering assume the documented range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
