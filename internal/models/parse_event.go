package models

import "fmt"

// ParsedEntity is one extracted span from the NLU parse result. Order is
// meaningful and preserved as received.
type ParsedEntity struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Value      string  `json:"value"`
	Entity     string  `json:"entity"`
	Confidence float64 `json:"confidence"`
}

// RankedIntent is one candidate intent with its score, as reported by the
// NLU pipeline. The ranking order is preserved as received.
type RankedIntent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ParseEvent is the structured record for one parsed user utterance as
// delivered by the inbound event feed. It is validated at the ingestion
// boundary and never persisted directly; ingestion turns it into a
// MessageLog.
type ParseEvent struct {
	Text          string         `json:"text"`
	Intent        RankedIntent   `json:"intent"`
	Entities      []ParsedEntity `json:"entities"`
	IntentRanking []RankedIntent `json:"intent_ranking"`

	// Model is the explicitly attributed model, when the parsing service
	// reported one. Empty means the resolver fallback chain decides.
	Model string `json:"model,omitempty"`

	// Optional back-references to the stored conversation event.
	ConversationID *string `json:"conversation_id,omitempty"`
	EventID        *uint   `json:"event_id,omitempty"`
}

// Validate checks the invariants the ingestion path relies on.
func (p *ParseEvent) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("parse event text is required")
	}
	if p.Intent.Confidence < 0 || p.Intent.Confidence > 1 {
		return fmt.Errorf("intent confidence must be within [0, 1], got %f", p.Intent.Confidence)
	}
	for i, e := range p.Entities {
		if e.Entity == "" {
			return fmt.Errorf("entity %d is missing its type", i)
		}
		if e.Start > e.End {
			return fmt.Errorf("entity %d has an inverted span [%d, %d]", i, e.Start, e.End)
		}
	}
	return nil
}
