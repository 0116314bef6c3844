package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"pockettherapist.dev/agent/internal/auth"
	"pockettherapist.dev/agent/internal/config"
	"pockettherapist.dev/agent/internal/core"
	"pockettherapist.dev/agent/internal/store"
)

// historyFeedLimit caps the admin message feed.
const historyFeedLimit = 20

type APIHandler struct {
	checkinService *core.CheckinService
	summaryService *core.SummaryService
}

func NewAPIHandler(cs *core.CheckinService, ss *core.SummaryService) *APIHandler {
	return &APIHandler{
		checkinService: cs,
		summaryService: ss,
	}
}

// MessageResponse is the single response shape for every conversational
// endpoint, success or failure: a human-readable string, never raw
// error detail.
type MessageResponse struct {
	Response string `json:"response"`
}

func writeResponse(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(MessageResponse{Response: text})
}

type MessageRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Sender  string `json:"sender"`
}

// externalUserID applies the identifier precedence: user_id first,
// sender as a fallback, "anonymous" as the default.
func (r *MessageRequest) externalUserID() string {
	if r.UserID != "" {
		return r.UserID
	}
	if r.Sender != "" {
		return r.Sender
	}
	return "anonymous"
}

func (h *APIHandler) MessageHandler(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeResponse(w, http.StatusBadRequest, "Sorry, I couldn't read that message.")
			return
		}
	}

	reply, err := h.checkinService.HandleMessage(r.Context(), req.externalUserID(), req.Message)
	if err != nil {
		log.Printf("Error handling message for user %s: %v", req.externalUserID(), err)
		if errors.Is(err, core.ErrUserResolution) {
			writeResponse(w, http.StatusInternalServerError, core.UserDataErrorMessage)
		} else {
			writeResponse(w, http.StatusInternalServerError, core.GenericErrorMessage)
		}
		return
	}

	writeResponse(w, http.StatusOK, reply)
}

type SummaryRequest struct {
	UserID string `json:"user_id"`
}

func (h *APIHandler) WeeklySummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if r.Method == http.MethodPost {
		var req SummaryRequest
		if r.Body != http.NoBody {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeResponse(w, http.StatusBadRequest, "Sorry, I couldn't read that request.")
				return
			}
		}
		userID = req.UserID
	} else {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		userID = "anonymous"
	}

	summary, err := h.summaryService.WeeklySummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			writeResponse(w, http.StatusNotFound, core.NoDataMessage)
			return
		}
		log.Printf("Error generating weekly summary for user %s: %v", userID, err)
		writeResponse(w, http.StatusInternalServerError, core.GenericErrorMessage)
		return
	}

	writeResponse(w, http.StatusOK, summary)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.checkinService.RecentMessages(historyFeedLimit)
	if err != nil {
		log.Printf("Error fetching message history: %v", err)
		writeResponse(w, http.StatusInternalServerError, core.GenericErrorMessage)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// AdminAuthMiddleware requires a valid admin bearer token when a secret
// is configured, and is a no-op otherwise.
func (h *APIHandler) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.AppConfig.AdminJWTSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if _, err := auth.ValidateAdminToken(tokenString); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
