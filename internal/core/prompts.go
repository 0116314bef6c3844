package core

import (
	"fmt"
	"strings"

	"pockettherapist.dev/agent/internal/store"
)

// RenderTranscript renders messages as a plain-text conversation, one
// "Role: content" line per turn. Any non-user role is rendered as
// Assistant. An empty history renders as an empty string.
func RenderTranscript(messages []store.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := "Assistant"
		if msg.Role == store.RoleUser {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

// BuildReframePrompt is used when the latest message carries negative
// affect: the model is asked to reframe the thought in context.
func BuildReframePrompt(transcript, latest string) string {
	return "You are PocketTherapist, a compassionate CBT-based AI.\n" +
		"Here's the recent conversation:\n" +
		transcript + "\n\n" +
		fmt.Sprintf("User's latest message: %q\n", latest) +
		"Reframe their negative thought empathetically. Keep it short and warm."
}

// BuildChatPrompt is the conversational template for neutral and
// positive turns.
func BuildChatPrompt(transcript, latest string) string {
	return "You are PocketTherapist, a kind and conversational AI.\n" +
		fmt.Sprintf("Recent conversation:\n%s\n\n", transcript) +
		fmt.Sprintf("User: %s\n", latest) +
		"Respond in 3-4 sentences. Stay warm, reflective, and encouraging."
}

// BuildStandaloneReframePrompt is the context-free retry path used when
// the primary reframe call fails. It asks for a structured response
// rather than a free-form one.
func BuildStandaloneReframePrompt(thought string) string {
	systemPrompt := "You are PocketTherapist, a compassionate, concise, non-judgmental " +
		"assistant helping users reframe negative thoughts. Keep replies short."

	userPrompt := fmt.Sprintf("User negative thought: %q\n\n", thought) +
		"Respond with:\n" +
		"1) A brief empathic reflection (1 sentence).\n" +
		"2) Identify possible cognitive distortion(s) (comma separated).\n" +
		"3) Offer 2 concise reframes (each a short sentence).\n" +
		"4) One small actionable step the user can take now.\n\n" +
		"If you detect suicidal intent, instead respond with a crisis-safety message " +
		"encouraging immediate help and providing resources."

	return systemPrompt + "\n\n" + userPrompt
}

// BuildWeeklySummaryPrompt wraps rendered checkin lines in the weekly
// reflection instruction.
func BuildWeeklySummaryPrompt(checkins []store.Checkin) string {
	lines := make([]string, 0, len(checkins))
	for _, c := range checkins {
		lines = append(lines, fmt.Sprintf("%s: %s [sentiment: %s]", c.CreatedAt.Format("2006-01-02"), c.Text, c.Sentiment))
	}

	return "Here are the user's checkins for the past 7 days:\n" +
		strings.Join(lines, "\n") +
		"\n\nProvide a 120-word summary highlighting emotional trends, 3 recurring themes, " +
		"and 3 practical mental health tips."
}
