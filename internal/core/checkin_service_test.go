package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pockettherapist.dev/agent/internal/store"
)

type fakeCompleter struct {
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.respond == nil {
		return "a warm reply", nil
	}
	return f.respond(prompt)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dbStore, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })
	return dbStore
}

func TestHandleMessageEmptyInput(t *testing.T) {
	dbStore := newTestStore(t)
	llm := &fakeCompleter{}
	svc := NewCheckinService(dbStore, llm)

	for _, text := range []string{"", "   "} {
		reply, err := svc.HandleMessage(context.Background(), "alice", text)
		if err != nil {
			t.Fatalf("HandleMessage err: %v", err)
		}
		if reply != WelcomeMessage {
			t.Fatalf("expected welcome message, got %q", reply)
		}
	}

	if len(llm.prompts) != 0 {
		t.Fatalf("empty input must not reach the model, got %d calls", len(llm.prompts))
	}

	user, err := dbStore.GetUserByExternalID("alice")
	if err != nil || user == nil {
		t.Fatalf("expected user to be created, err: %v", err)
	}
	checkins, err := dbStore.GetCheckinsSince(user.ID, time.Time{})
	if err != nil {
		t.Fatalf("GetCheckinsSince err: %v", err)
	}
	if len(checkins) != 0 {
		t.Fatalf("empty input must not record a checkin, got %d", len(checkins))
	}
}

func TestHandleMessageCrisisBranch(t *testing.T) {
	dbStore := newTestStore(t)
	llm := &fakeCompleter{
		respond: func(string) (string, error) {
			return "", &CompletionError{Kind: FailureUnavailable, Err: errors.New("down")}
		},
	}
	svc := NewCheckinService(dbStore, llm)

	reply, err := svc.HandleMessage(context.Background(), "bob", "I want to die")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if reply != CrisisMessage {
		t.Fatalf("expected crisis message, got %q", reply)
	}

	// The crisis branch never touches the model, so model availability
	// is irrelevant.
	if len(llm.prompts) != 0 {
		t.Fatalf("crisis branch must not reach the model, got %d calls", len(llm.prompts))
	}

	user, _ := dbStore.GetUserByExternalID("bob")
	checkins, err := dbStore.GetCheckinsSince(user.ID, time.Time{})
	if err != nil {
		t.Fatalf("GetCheckinsSince err: %v", err)
	}
	if len(checkins) != 1 || checkins[0].Sentiment != SentimentRisk {
		t.Fatalf("expected one risk checkin, got %+v", checkins)
	}
}

func TestHandleMessageNegativeBranch(t *testing.T) {
	dbStore := newTestStore(t)
	llm := &fakeCompleter{
		respond: func(string) (string, error) {
			return "That sounds heavy. Here's another way to see it.", nil
		},
	}
	svc := NewCheckinService(dbStore, llm)

	reply, err := svc.HandleMessage(context.Background(), "carol", "I feel so anxious about tomorrow")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if reply != "That sounds heavy. Here's another way to see it." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if len(llm.prompts) != 1 {
		t.Fatalf("expected one completion call, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0], "CBT-based") {
		t.Fatalf("negative branch must use the reframe template, got:\n%s", llm.prompts[0])
	}

	user, _ := dbStore.GetUserByExternalID("carol")
	checkins, _ := dbStore.GetCheckinsSince(user.ID, time.Time{})
	if len(checkins) != 1 || checkins[0].Sentiment != SentimentNegative {
		t.Fatalf("expected one negative checkin, got %+v", checkins)
	}

	reframes, err := dbStore.GetReframesByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetReframesByUserID err: %v", err)
	}
	if len(reframes) != 1 {
		t.Fatalf("expected one reframe record, got %d", len(reframes))
	}
	if reframes[0].OriginalText != "I feel so anxious about tomorrow" || reframes[0].ReframedText != reply {
		t.Fatalf("unexpected reframe record: %+v", reframes[0])
	}
}

func TestHandleMessageReframeFallsBackToStandalone(t *testing.T) {
	dbStore := newTestStore(t)
	llm := &fakeCompleter{}
	llm.respond = func(string) (string, error) {
		if len(llm.prompts) == 1 {
			return "", &CompletionError{Kind: FailureTimeout, Err: context.DeadlineExceeded}
		}
		return "a standalone reframe", nil
	}
	svc := NewCheckinService(dbStore, llm)

	reply, err := svc.HandleMessage(context.Background(), "dan", "i'm so stressed")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if reply != "a standalone reframe" {
		t.Fatalf("expected standalone reframe, got %q", reply)
	}

	if len(llm.prompts) != 2 {
		t.Fatalf("expected two completion calls, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[1], "cognitive distortion") {
		t.Fatalf("second call must use the standalone template, got:\n%s", llm.prompts[1])
	}
}

func TestHandleMessageReframeFixedFallback(t *testing.T) {
	dbStore := newTestStore(t)
	llm := &fakeCompleter{
		respond: func(string) (string, error) {
			return "", &CompletionError{Kind: FailureUnavailable, Err: errors.New("down")}
		},
	}
	svc := NewCheckinService(dbStore, llm)

	reply, err := svc.HandleMessage(context.Background(), "erin", "feeling depressed again")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if reply != reframeFallbackMessage {
		t.Fatalf("expected fixed reframe fallback, got %q", reply)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("expected two completion attempts before the fixed fallback, got %d", len(llm.prompts))
	}
}

func TestHandleMessageChatFallback(t *testing.T) {
	dbStore := newTestStore(t)
	llm := &fakeCompleter{
		respond: func(string) (string, error) {
			return "", &CompletionError{Kind: FailureUnknown, Err: errors.New("boom")}
		},
	}
	svc := NewCheckinService(dbStore, llm)

	reply, err := svc.HandleMessage(context.Background(), "fay", "just checking in")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if reply != chatFallbackMessage {
		t.Fatalf("expected chat fallback, got %q", reply)
	}
	if len(llm.prompts) != 1 {
		t.Fatalf("neutral branch retries nothing, expected one call, got %d", len(llm.prompts))
	}
}

func TestHandleMessagePersistsBothTurns(t *testing.T) {
	dbStore := newTestStore(t)
	svc := NewCheckinService(dbStore, &fakeCompleter{})

	if _, err := svc.HandleMessage(context.Background(), "gus", "hello there"); err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}

	user, _ := dbStore.GetUserByExternalID("gus")
	messages, err := dbStore.GetLastNMessagesByUserID(user.ID, 10)
	if err != nil {
		t.Fatalf("GetLastNMessagesByUserID err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant turns, got %d", len(messages))
	}
	// Newest first.
	if messages[0].Role != store.RoleAssistant || messages[1].Role != store.RoleUser {
		t.Fatalf("unexpected turn order: %s, %s", messages[0].Role, messages[1].Role)
	}
}

func TestAssembleHistoryEmpty(t *testing.T) {
	dbStore := newTestStore(t)
	svc := NewCheckinService(dbStore, &fakeCompleter{})

	user, err := dbStore.GetOrCreateUser("nobody")
	if err != nil {
		t.Fatalf("GetOrCreateUser err: %v", err)
	}

	if transcript := svc.AssembleHistory(user.ID); transcript != "" {
		t.Fatalf("expected empty transcript, got %q", transcript)
	}
}

func TestAssembleHistoryWindowAndOrder(t *testing.T) {
	dbStore := newTestStore(t)
	svc := NewCheckinService(dbStore, &fakeCompleter{})

	user, err := dbStore.GetOrCreateUser("henry")
	if err != nil {
		t.Fatalf("GetOrCreateUser err: %v", err)
	}

	for i := 1; i <= 8; i++ {
		role := store.RoleUser
		if i%2 == 0 {
			role = store.RoleAssistant
		}
		msg := store.Message{UserID: &user.ID, Role: role, Content: fmt.Sprintf("turn %d", i)}
		if err := dbStore.CreateMessage(&msg); err != nil {
			t.Fatalf("CreateMessage err: %v", err)
		}
	}

	transcript := svc.AssembleHistory(user.ID)
	lines := strings.Split(transcript, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected the 6 most recent turns, got %d lines:\n%s", len(lines), transcript)
	}
	if lines[0] != "User: turn 3" {
		t.Fatalf("expected oldest retained turn first, got %q", lines[0])
	}
	if lines[5] != "Assistant: turn 8" {
		t.Fatalf("expected newest turn last, got %q", lines[5])
	}
}
