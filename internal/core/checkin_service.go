package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"pockettherapist.dev/agent/internal/store"
)

// historyWindow is how many recent turns the model sees.
const historyWindow = 6

const (
	WelcomeMessage = "Hi! I'm PocketTherapist - your AI check-in buddy.\n" +
		"You can say things like:\n" +
		"- 'I feel anxious today'\n" +
		"- 'I'm happy this morning!'\n" +
		"I'll listen, respond with empathy, and offer CBT-based reframes."

	CrisisMessage = "I'm really sorry you're feeling this way. " +
		"I'm not a crisis service, but I want you to be safe. " +
		"If you're in immediate danger, please call your local emergency number. " +
		"In Kenya, you can reach Befrienders at +254 722 178 177."

	UserDataErrorMessage = "Sorry, there was an issue accessing user data."

	GenericErrorMessage = "Something went wrong on our end. Please try again later."

	chatFallbackMessage = "I'm here with you, but I'm having trouble responding right now."

	reframeFallbackMessage = "Sorry, I'm having trouble generating a reframe right now. Please try again later."
)

// ErrUserResolution marks a storage failure while resolving the user,
// the only fatal persistence failure in the pipeline.
var ErrUserResolution = errors.New("failed to resolve user")

// CheckinService runs the per-message pipeline: resolve user, classify,
// assemble context, call the model, persist the turn.
type CheckinService struct {
	dbStore *store.SQLiteStore
	llm     Completer
}

func NewCheckinService(db *store.SQLiteStore, llm Completer) *CheckinService {
	return &CheckinService{
		dbStore: db,
		llm:     llm,
	}
}

// HandleMessage processes one inbound message and returns the reply
// text. Persistence after user resolution is uniformly best-effort:
// failures are logged and the conversation continues, so a flaky disk
// degrades history rather than dropping replies.
func (s *CheckinService) HandleMessage(ctx context.Context, externalUserID, text string) (string, error) {
	user, err := s.dbStore.GetOrCreateUser(externalUserID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserResolution, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.recordTurn(user.ID, store.RoleAssistant, WelcomeMessage)
		return WelcomeMessage, nil
	}

	s.recordTurn(user.ID, store.RoleUser, text)

	// Crisis branch: bypasses sentiment classification and the model.
	if DetectRisk(text) {
		if err := s.dbStore.CreateCheckin(&store.Checkin{UserID: user.ID, Text: text, Sentiment: SentimentRisk}); err != nil {
			log.Printf("Failed to log risk checkin for user %s: %v", externalUserID, err)
		}
		s.recordTurn(user.ID, store.RoleAssistant, CrisisMessage)
		return CrisisMessage, nil
	}

	sentiment := DetectSentiment(text)
	if err := s.dbStore.CreateCheckin(&store.Checkin{UserID: user.ID, Text: text, Sentiment: sentiment}); err != nil {
		log.Printf("Failed to save checkin for user %s: %v", externalUserID, err)
	}

	transcript := s.AssembleHistory(user.ID)

	var reply string
	if isNegativeAffect(sentiment) {
		reply = s.generateReframe(ctx, transcript, text)

		if err := s.dbStore.CreateReframe(&store.Reframe{UserID: user.ID, OriginalText: text, ReframedText: reply}); err != nil {
			log.Printf("Failed to save reframe record for user %s: %v", externalUserID, err)
		}
	} else {
		prompt := BuildChatPrompt(transcript, text)
		reply, err = s.llm.Complete(ctx, prompt)
		if err != nil {
			log.Printf("Completion error (chat) for user %s: %v", externalUserID, err)
			reply = chatFallbackMessage
		}
	}

	s.recordTurn(user.ID, store.RoleAssistant, reply)

	return reply, nil
}

// generateReframe tries the in-context reframe first, then a simpler
// standalone reframe, then a fixed apology. Two calls at most.
func (s *CheckinService) generateReframe(ctx context.Context, transcript, text string) string {
	reply, err := s.llm.Complete(ctx, BuildReframePrompt(transcript, text))
	if err == nil {
		return reply
	}
	log.Printf("Completion error (reframe): %v", err)

	reply, err = s.llm.Complete(ctx, BuildStandaloneReframePrompt(text))
	if err == nil {
		return reply
	}
	log.Printf("Completion error (standalone reframe): %v", err)

	return reframeFallbackMessage
}

// AssembleHistory renders the user's last turns as a chronological
// transcript. A read failure degrades to an empty transcript.
func (s *CheckinService) AssembleHistory(userID int64) string {
	messages, err := s.dbStore.GetLastNMessagesByUserID(userID, historyWindow)
	if err != nil {
		log.Printf("Error getting chat history for user %d: %v. Proceeding without history.", userID, err)
		return ""
	}

	// Newest-first from the store, oldest-first for the model.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return RenderTranscript(messages)
}

func (s *CheckinService) recordTurn(userID int64, role, content string) {
	msg := store.Message{
		UserID:  &userID,
		Role:    role,
		Content: content,
	}
	if err := s.dbStore.CreateMessage(&msg); err != nil {
		log.Printf("Failed to store %s message for user %d: %v", role, userID, err)
	}
}

// RecentMessages is the admin history feed: the newest messages across
// all users.
func (s *CheckinService) RecentMessages(limit int) ([]store.Message, error) {
	return s.dbStore.GetRecentMessages(limit)
}
