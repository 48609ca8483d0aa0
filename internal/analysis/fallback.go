package analysis

import (
	"math/rand/v2"
	"regexp"
)

// Fallback rule names, used as the metric attribute for canned replies.
const (
	RulePositive = "positive"
	RuleGreeting = "greeting"
	RuleSadness  = "sadness"
	RuleStress   = "stress"
	RuleDefault  = "default"
)

// Ordered keyword patterns; the first match wins.
var (
	positiveRe = regexp.MustCompile(`(?i)good|great|fine|chill|happy|fun|awesome|well|okay|ok\b`)
	greetingRe = regexp.MustCompile(`(?i)^(hi|hello|hey|hola|sup|yo)\b`)
	sadnessRe  = regexp.MustCompile(`(?i)sad|down|bad|upset|depressed|lonely|hurt|crying`)
	stressRe   = regexp.MustCompile(`(?i)stress|anxious|worried|nervous|overwhelm|panic`)
)

var positiveReplies = []string{
	"That's wonderful to hear! 😊 What's been making things feel good for you?",
	"I'm glad you're feeling good! 🌟 Anything exciting happening?",
	"That's great! 😊 It's nice to hear you're doing well. What's on your mind?",
}

var greetingReplies = []string{
	"Hey there! 👋 How are you doing today?",
	"Hello! 😊 It's great to see you. How's your day going?",
	"Hi! 🌟 What's on your mind today?",
}

const (
	sadnessReply = "I'm sorry you're feeling this way. 💙 Thank you for sharing with me. Would you like to talk about what's going on?"
	stressReply  = "It sounds like you have a lot on your mind. 💙 Take a deep breath. I'm here to listen. What's been causing you the most stress?"
	defaultReply = "Thanks for sharing! 😊 Tell me more about what's going on with you today."
)

// Responder produces a usable [Result] from the user's message alone, with no
// network or external state. It is used when the model call errors, times
// out, or normalization fully fails. It never fails, and it never assigns a
// risk score above zero, so a canned reply cannot trigger the crisis policy.
type Responder struct {
	pick func(n int) int
}

// ResponderOption configures a [Responder].
type ResponderOption func(*Responder)

// WithPickFunc replaces the random pool-index selector. Tests use this to
// make reply selection deterministic.
func WithPickFunc(pick func(n int) int) ResponderOption {
	return func(r *Responder) {
		if pick != nil {
			r.pick = pick
		}
	}
}

// NewResponder creates a [Responder] with an unseeded random reply selector.
func NewResponder(opts ...ResponderOption) *Responder {
	r := &Responder{pick: rand.IntN}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond matches message against the ordered rule set and returns the
// resulting assessment plus the name of the rule that fired.
func (r *Responder) Respond(message string) (Result, string) {
	switch {
	case positiveRe.MatchString(message):
		return Result{
			Reply:          positiveReplies[r.pick(len(positiveReplies))],
			PrimaryEmotion: EmotionJoy,
			Intensity:      0.6,
		}, RulePositive

	case greetingRe.MatchString(message):
		return Result{
			Reply:          greetingReplies[r.pick(len(greetingReplies))],
			PrimaryEmotion: EmotionNeutral,
			Intensity:      0.5,
		}, RuleGreeting

	case sadnessRe.MatchString(message):
		return Result{
			Reply:          sadnessReply,
			PrimaryEmotion: EmotionSadness,
			Intensity:      0.7,
		}, RuleSadness

	case stressRe.MatchString(message):
		return Result{
			Reply:          stressReply,
			PrimaryEmotion: EmotionAnxiety,
			Intensity:      0.7,
		}, RuleStress

	default:
		return Result{
			Reply:          defaultReply,
			PrimaryEmotion: EmotionNeutral,
			Intensity:      0.5,
		}, RuleDefault
	}
}
