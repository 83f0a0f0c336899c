package models

import "time"

// ModelOpinion is one councilor's stage-1 answer. Text and Err are
// mutually exclusive: Text is "" whenever Err is set.
type ModelOpinion struct {
	ModelID    string      `json:"model_id"`
	Text       string      `json:"text"`
	Err        string      `json:"error,omitempty"`
	Usage      *TokenUsage `json:"usage,omitempty"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Errored reports whether the opinion carries an error instead of text.
func (o ModelOpinion) Errored() bool {
	return o.Err != ""
}

// TokenUsage is the provider-reported token accounting for one model call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Ranking is one entry of a parsed stage-2 review. Rank is 1-based; within
// a single ReviewResult the ranks form a contiguous permutation of 1..k and
// model ids are unique.
type Ranking struct {
	ModelID   string `json:"model_id"`
	Rank      int    `json:"rank"`
	Reasoning string `json:"reasoning"`
}

// ReviewResult is one reviewer's stage-2 reply after parsing. When the
// reply could not be interpreted, ParseOK is false, Rankings is empty and
// RawText still carries the original reply.
type ReviewResult struct {
	ReviewerModelID string    `json:"reviewer_model_id"`
	Rankings        []Ranking `json:"rankings"`
	RawText         string    `json:"raw_text"`
	ParseOK         bool      `json:"parse_ok"`
}

// AggregateRank summarizes one model's standing across all valid reviews:
// the mean of the ranks it received and how many reviewers ranked it.
type AggregateRank struct {
	ModelID       string  `json:"model_id"`
	MeanRank      float64 `json:"mean_rank"`
	ReviewerCount int     `json:"reviewer_count"`
}

// CouncilTurn is the complete artifact set of one user turn: the question,
// every stage-1 opinion, every stage-2 review and the synthesized answer.
// FinalUsage is the chairman's token accounting when the provider reported
// one.
type CouncilTurn struct {
	TurnID      string         `json:"turn_id"`
	UserMessage string         `json:"user_message"`
	Opinions    []ModelOpinion `json:"opinions"`
	Reviews     []ReviewResult `json:"reviews"`
	FinalText   string         `json:"final_text"`
	FinalUsage  *TokenUsage    `json:"final_usage,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// NonErrorOpinions returns the opinions that produced text, preserving
// input order.
func NonErrorOpinions(opinions []ModelOpinion) []ModelOpinion {
	out := make([]ModelOpinion, 0, len(opinions))
	for _, op := range opinions {
		if !op.Errored() {
			out = append(out, op)
		}
	}
	return out
}
