package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/types"
)

const maxFeedbackCommentLength = 2000

type feedbackRequest struct {
	Sentiment string            `json:"sentiment"`
	Comment   string            `json:"comment"`
	Extra     map[string]string `json:"extra,omitempty"`
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode feedback request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Sentiment == "" {
		writeJSONError(w, "sentiment is required", http.StatusBadRequest)
		return
	}
	if len(req.Comment) > maxFeedbackCommentLength {
		writeJSONError(w, "comment is too long", http.StatusBadRequest)
		return
	}

	feedback := types.Feedback{
		Sentiment: req.Sentiment,
		Comment:   req.Comment,
		UserID:    user.ID,
		Extra:     req.Extra,
		Timestamp: time.Now().UTC(),
	}

	if err := s.storage.InsertFeedback(ctx, feedback); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to insert feedback", slog.Any("error", err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
