package prompt

import (
	"fmt"
	"strings"

	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/review"
)

// Builder assembles the prompts for all three deliberation stages.
// Stateless; all state comes from parameters. Thread-safe.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Stage1Messages builds the opinion request for one councilor: the answer
// directive, the prior conversation, then the new question.
func (b *Builder) Stage1Messages(history []models.ChatMessage, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: stage1SystemDirective})
	messages = appendHistory(messages, history)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return messages
}

// Stage2Messages builds the review request: a single user-role prompt
// holding the original question and every opinion under its anonymous
// label, the reviewer's own included. The reviewer is told to answer with
// "Rank N: <label> — <reasoning>" lines, best first, and to leave out the
// response it recognizes as its own.
func (b *Builder) Stage2Messages(userMessage string, opinions []review.LabeledOpinion) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, stage2Header, userMessage)
	for _, op := range opinions {
		fmt.Fprintf(&sb, "\n===== Response %s =====\n%s\n", op.Label, op.Text)
	}
	sb.WriteString(stage2Task)

	return []llm.Message{{Role: llm.RoleUser, Content: sb.String()}}
}

// Stage3Messages builds the chairman synthesis request: the chairman
// directive, the prior conversation, then a user-role context holding the
// question, each usable opinion attributed by model id, and the aggregated
// ranking summary.
func (b *Builder) Stage3Messages(history []models.ChatMessage, userMessage string, opinions []models.ModelOpinion, aggregate []models.AggregateRank) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, stage3QueryHeader, userMessage)

	sb.WriteString(stage3ResponsesBanner)
	for i, op := range models.NonErrorOpinions(opinions) {
		fmt.Fprintf(&sb, "Response %d (Model: %s):\n%s\n\n", i+1, op.ModelID, op.Text)
	}

	sb.WriteString(stage3ReviewsBanner)
	if len(aggregate) == 0 {
		sb.WriteString(stage3NoReviews)
	} else {
		sb.WriteString("Aggregate ranking across reviewers (lower mean rank is better):\n")
		for i, ar := range aggregate {
			fmt.Fprintf(&sb, "%d. %s: mean rank %.2f (%d reviews)\n", i+1, ar.ModelID, ar.MeanRank, ar.ReviewerCount)
		}
	}
	sb.WriteString(stage3Task)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: stage3SystemDirective})
	messages = appendHistory(messages, history)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: sb.String()})
	return messages
}

// appendHistory converts persisted conversation messages to request form.
func appendHistory(messages []llm.Message, history []models.ChatMessage) []llm.Message {
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}
