package core

import (
	"context"
	"errors"
	"log"
	"time"

	"pockettherapist.dev/agent/internal/store"
)

// summaryWindow is the trailing period a weekly summary covers.
const summaryWindow = 7 * 24 * time.Hour

const (
	NoCheckinsMessage = "No check-ins in the last 7 days."
	NoDataMessage     = "No data for that user."

	summaryFallbackMessage = "Sorry, unable to generate your summary right now."
)

// ErrUserNotFound is returned when the external identifier does not
// resolve to an existing user. Distinct from a storage failure.
var ErrUserNotFound = errors.New("user not found")

// SummaryService generates aggregate mood summaries from stored
// checkins. Independent of the per-message pipeline; shares the store
// and the completion client.
type SummaryService struct {
	dbStore *store.SQLiteStore
	llm     Completer
}

func NewSummaryService(db *store.SQLiteStore, llm Completer) *SummaryService {
	return &SummaryService{
		dbStore: db,
		llm:     llm,
	}
}

// WeeklySummary renders the user's trailing-week checkins and asks the
// model for a trend summary. The model is only called when there is
// something to summarize.
func (s *SummaryService) WeeklySummary(ctx context.Context, externalUserID string) (string, error) {
	user, err := s.dbStore.GetUserByExternalID(externalUserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	since := time.Now().Add(-summaryWindow)
	checkins, err := s.dbStore.GetCheckinsSince(user.ID, since)
	if err != nil {
		return "", err
	}

	if len(checkins) == 0 {
		return NoCheckinsMessage, nil
	}

	summary, err := s.llm.Complete(ctx, BuildWeeklySummaryPrompt(checkins))
	if err != nil {
		log.Printf("Completion error (weekly summary) for user %s: %v", externalUserID, err)
		return summaryFallbackMessage, nil
	}
	return summary, nil
}
