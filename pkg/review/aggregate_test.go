package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/models"
)

func TestAggregate_MeanRanks(t *testing.T) {
	// Three reviewers, each ranking its two peers: m1 gets 1 twice, m2 gets
	// 1 and 2, m3 gets 2 twice.
	reviews := []models.ReviewResult{
		{ReviewerModelID: "m1", ParseOK: true, Rankings: []models.Ranking{
			{ModelID: "m2", Rank: 1}, {ModelID: "m3", Rank: 2},
		}},
		{ReviewerModelID: "m2", ParseOK: true, Rankings: []models.Ranking{
			{ModelID: "m1", Rank: 1}, {ModelID: "m3", Rank: 2},
		}},
		{ReviewerModelID: "m3", ParseOK: true, Rankings: []models.Ranking{
			{ModelID: "m1", Rank: 1}, {ModelID: "m2", Rank: 2},
		}},
	}

	got := Aggregate(reviews)

	assert.Equal(t, []models.AggregateRank{
		{ModelID: "m1", MeanRank: 1.0, ReviewerCount: 2},
		{ModelID: "m2", MeanRank: 1.5, ReviewerCount: 2},
		{ModelID: "m3", MeanRank: 2.0, ReviewerCount: 2},
	}, got)
}

func TestAggregate_ExcludesUnparseableReviews(t *testing.T) {
	reviews := []models.ReviewResult{
		{ReviewerModelID: "m1", ParseOK: true, Rankings: []models.Ranking{
			{ModelID: "m2", Rank: 1},
		}},
		{ReviewerModelID: "m2", ParseOK: false, RawText: "I don't know."},
	}

	got := Aggregate(reviews)

	require.Len(t, got, 1)
	assert.Equal(t, models.AggregateRank{ModelID: "m2", MeanRank: 1.0, ReviewerCount: 1}, got[0])
}

func TestAggregate_TiesBrokenByModelID(t *testing.T) {
	reviews := []models.ReviewResult{
		{ReviewerModelID: "m1", ParseOK: true, Rankings: []models.Ranking{
			{ModelID: "m3", Rank: 1}, {ModelID: "m2", Rank: 1},
		}},
	}

	got := Aggregate(reviews)

	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].ModelID)
	assert.Equal(t, "m3", got[1].ModelID)
}

func TestAggregate_NoValidReviews(t *testing.T) {
	reviews := []models.ReviewResult{
		{ReviewerModelID: "m1", ParseOK: false},
		{ReviewerModelID: "m2", ParseOK: false},
	}

	assert.Empty(t, Aggregate(reviews))
}
