package chi

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
)

// chatRequest is the POST /api/chat body. chat_history is kept raw so that
// malformed entries can be skipped one by one instead of failing the request.
type chatRequest struct {
	Question    string          `json:"question"`
	ChatHistory json.RawMessage `json:"chat_history"`
}

type chatResponse struct {
	Answer   string `json:"answer"`
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Chunks *int              `json:"chunks,omitempty"`
}

type usageResponse struct {
	Period      string        `json:"period"`
	Provider    string        `json:"provider"`
	PeriodStart *time.Time    `json:"period_start,omitempty"`
	PeriodEnd   *time.Time    `json:"period_end,omitempty"`
	TokensUsed  int64         `json:"tokens_used"`
	Budget      budgetPayload `json:"budget"`
}

type budgetPayload struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

func usageToResponse(r domusage.Report) usageResponse {
	resp := usageResponse{
		Period:     string(r.Period),
		Provider:   r.Provider,
		TokensUsed: r.TokensUsed,
		Budget: budgetPayload{
			TokensLimit:     r.Budget.TokensLimit,
			TokensRemaining: r.Budget.TokensRemaining,
			IsExhausted:     r.Budget.Exhausted,
		},
	}
	if !r.PeriodStart.IsZero() {
		start, end := r.PeriodStart, r.PeriodEnd
		resp.PeriodStart, resp.PeriodEnd = &start, &end
	}
	if !r.Budget.ResetsAt.IsZero() {
		resetsAt := r.Budget.ResetsAt
		resp.Budget.ResetsAt = &resetsAt
	}
	return resp
}

// historyFromJSON keeps only entries that are arrays of exactly two strings.
// Anything else, including a non-array chat_history, yields no turns for that entry.
func historyFromJSON(raw json.RawMessage, log *zap.Logger) domain.ChatHistory {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Debug("Ignoring chat_history that is not a list", zap.Error(err))
		return nil
	}

	history := make(domain.ChatHistory, 0, len(entries))
	for i, e := range entries {
		var pair []string
		if err := json.Unmarshal(e, &pair); err != nil || len(pair) != 2 {
			log.Debug("Dropping malformed chat_history entry", zap.Int("index", i))
			continue
		}
		history = append(history, domain.ChatTurn{Question: pair[0], Answer: pair[1]})
	}
	return history
}
