package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
)

func TestDefaultCouncilUsedWhenNoSelection(t *testing.T) {
	tc := NewTestCouncil(t,
		WithRoster("m1", "m2", "m3", "m4"),
		WithDefaultModels("m1", "m2", "m3"),
	)

	for _, id := range []string{"m1", "m2", "m3"} {
		tc.Client.OnStream(id, ScriptEntry{Text: "Four."})
		tc.Client.OnComplete(id, ScriptEntry{Text: "Rank 1: Response A — fine\nRank 2: Response B — fine"})
	}
	tc.Client.OnStream("chairman", ScriptEntry{Text: "Four."})

	res := tc.Ask("What is 2+2?")
	require.NoError(t, res.Err)
	require.NotNil(t, res.Turn)
	assertTerminal(t, res.Events, events.EventTypeComplete)

	require.Len(t, res.Turn.Opinions, 3)
	for i, id := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, id, res.Turn.Opinions[i].ModelID)
		assert.Equal(t, 1, tc.Client.StreamCalls(id))
	}
	assert.Zero(t, tc.Client.StreamCalls("m4"), "models outside the default council are not called")
}

func TestSelectedModelsRestrictCouncil(t *testing.T) {
	tc := NewTestCouncil(t, WithRoster("m1", "m2", "m3", "m4"))

	// Survivors label by model id: A=m2, B=m4.
	tc.Client.OnStream("m2", ScriptEntry{Text: "Four."})
	tc.Client.OnStream("m4", ScriptEntry{Text: "It is 4."})
	tc.Client.OnComplete("m2", ScriptEntry{Text: "Rank 1: Response B — solid"})
	tc.Client.OnComplete("m4", ScriptEntry{Text: "Rank 1: Response A — good"})
	tc.Client.OnStream("chairman", ScriptEntry{Text: "Four."})

	res := tc.Ask("What is 2+2?", "m2", "m4")
	require.NoError(t, res.Err)
	require.NotNil(t, res.Turn)
	assertTerminal(t, res.Events, events.EventTypeComplete)
	assertReviewInvariants(t, res.Events, res.Turn)

	require.Len(t, res.Turn.Opinions, 2)
	assert.Equal(t, "m2", res.Turn.Opinions[0].ModelID)
	assert.Equal(t, "m4", res.Turn.Opinions[1].ModelID)
	assert.Zero(t, tc.Client.StreamCalls("m1"))
	assert.Zero(t, tc.Client.StreamCalls("m3"))
}

func TestReviewRequestsHideModelIdentities(t *testing.T) {
	tc := NewTestCouncil(t, WithRoster("claude-x", "gpt-y", "gemini-z"))

	tc.Client.OnStream("claude-x", ScriptEntry{Text: "The answer is four."})
	tc.Client.OnStream("gpt-y", ScriptEntry{Text: "2+2 equals 4."})
	tc.Client.OnStream("gemini-z", ScriptEntry{Text: "Four, of course."})
	for _, id := range []string{"claude-x", "gpt-y", "gemini-z"} {
		tc.Client.OnComplete(id, ScriptEntry{Text: "Rank 1: Response A — fine\nRank 2: Response B — fine\nRank 3: Response C — fine"})
	}
	tc.Client.OnStream("chairman", ScriptEntry{Text: "Four."})

	res := tc.Ask("What is 2+2?")
	require.NoError(t, res.Err)
	assertTerminal(t, res.Events, events.EventTypeComplete)

	req := tc.Client.CompleteRequest("claude-x", 0)
	require.NotNil(t, req)
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content

	// Reviewers see every opinion under its label, never a model id.
	assert.Contains(t, prompt, "Response A")
	assert.Contains(t, prompt, "Response B")
	assert.Contains(t, prompt, "Response C")
	assert.Contains(t, prompt, "The answer is four.")
	assert.Contains(t, prompt, "2+2 equals 4.")
	assert.Contains(t, prompt, "Four, of course.")
	assert.NotContains(t, prompt, "claude-x")
	assert.NotContains(t, prompt, "gpt-y")
	assert.NotContains(t, prompt, "gemini-z")
}

func TestConcurrentTurnsStayIsolated(t *testing.T) {
	tc := NewTestCouncil(t)

	// Two entries per model, one for each in-flight turn.
	for i := 0; i < 2; i++ {
		for _, id := range []string{"m1", "m2", "m3"} {
			tc.Client.OnStream(id, ScriptEntry{Text: "Four."})
			tc.Client.OnComplete(id, ScriptEntry{Text: "Rank 1: Response A — fine\nRank 2: Response B — fine"})
		}
		tc.Client.OnStream("chairman", ScriptEntry{Text: "Four."})
	}

	sessA := tc.Start("What is 2+2?")
	sessB := tc.Start("What is 3+3?")

	evsA := tc.Collect(sessA)
	evsB := tc.Collect(sessB)
	turnA, errA := sessA.Wait()
	turnB, errB := sessB.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	require.NotNil(t, turnA)
	require.NotNil(t, turnB)
	assertTerminal(t, evsA, events.EventTypeComplete)
	assertTerminal(t, evsB, events.EventTypeComplete)
	assert.NotEqual(t, sessA.ConversationID(), sessB.ConversationID())

	convA := tc.Conversation(sessA.ConversationID())
	convB := tc.Conversation(sessB.ConversationID())
	assert.Equal(t, "What is 2+2?", convA.Messages[0].Content)
	assert.Equal(t, "What is 3+3?", convB.Messages[0].Content)
	require.Len(t, convA.Turns, 1)
	require.Len(t, convB.Turns, 1)

	convs, err := tc.Store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

func TestConversationHistoryThreadsIntoLaterTurns(t *testing.T) {
	tc := NewTestCouncil(t)

	for i := 0; i < 2; i++ {
		for _, id := range []string{"m1", "m2", "m3"} {
			tc.Client.OnComplete(id, ScriptEntry{Text: "Rank 1: Response A — fine\nRank 2: Response B — fine"})
		}
	}
	for _, id := range []string{"m1", "m2", "m3"} {
		tc.Client.OnStream(id, ScriptEntry{Text: "Four."})
	}
	tc.Client.OnStream("chairman", ScriptEntry{Text: "Four."})
	for _, id := range []string{"m1", "m2", "m3"} {
		tc.Client.OnStream(id, ScriptEntry{Text: "Forty."})
	}
	tc.Client.OnStream("chairman", ScriptEntry{Text: "Forty."})

	first := tc.AskConversation("history-conv", "What is 2+2?")
	require.NoError(t, first.Err)
	second := tc.AskConversation("history-conv", "And ten times that?")
	require.NoError(t, second.Err)

	// Second-turn councilors see the persisted first turn verbatim.
	req := tc.Client.StreamRequest("m1", 1)
	require.NotNil(t, req)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What is 2+2?"}, req.Messages[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Four."}, req.Messages[2])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "And ten times that?"}, req.Messages[3])

	// So does the chairman.
	chairmanReq := tc.Client.StreamRequest("chairman", 1)
	require.NotNil(t, chairmanReq)
	require.Len(t, chairmanReq.Messages, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What is 2+2?"}, chairmanReq.Messages[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Four."}, chairmanReq.Messages[2])

	conv := tc.Conversation("history-conv")
	assert.Len(t, conv.Messages, 4)
	assert.Len(t, conv.Turns, 2)
	assert.Equal(t, models.RoleAssistant, conv.Messages[3].Role)
	assert.Equal(t, "Forty.", conv.Messages[3].Content)
}
