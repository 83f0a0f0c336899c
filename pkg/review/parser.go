package review

import (
	"regexp"
	"strings"

	"github.com/synod-ai/synod/pkg/models"
)

// rankLinePattern matches one ranking line of a review reply. Reviewers are
// asked for "Rank N: <label> — <reasoning>" but real replies drift, so the
// pattern also accepts "#N:" and "N." numbering, an optional "Response"
// prefix before the label, and ":" or "-" as the separator. The reasoning
// tail is optional.
var rankLinePattern = regexp.MustCompile(`(?i)^\s*(?:rank\s*)?#?\s*(?:\d+)\s*[.:)]\s*(?:response\s+)?([A-Za-z]+)\s*(?:[—–:-]+\s*)?(.*?)\s*$`)

// Parse interprets one reviewer's raw reply as an ordered ranking.
//
// Each line is matched against rankLinePattern and its label resolved
// through the anonymization mapping. Lines with unknown labels, rankings of
// the reviewer's own response, and repeated model ids are dropped. The
// survivors keep their order of appearance and are renumbered 1..k; the
// reply text instructs reviewers to list best first, so appearance order is
// the ranking. When fewer than half of the reviewer's peers are matched the
// reply is recorded as unparseable: ParseOK false, no rankings, raw text
// kept for the turn artifact.
func Parse(reviewerID string, labeled []LabeledOpinion, raw string) models.ReviewResult {
	result := models.ReviewResult{
		ReviewerModelID: reviewerID,
		Rankings:        []models.Ranking{},
		RawText:         raw,
	}

	byLabel := make(map[string]string, len(labeled))
	expected := 0
	for _, lo := range labeled {
		byLabel[lo.Label] = lo.ModelID
		if lo.ModelID != reviewerID {
			expected++
		}
	}

	seen := make(map[string]bool, expected)
	var rankings []models.Ranking
	for _, line := range strings.Split(raw, "\n") {
		m := rankLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		modelID, ok := byLabel[strings.ToUpper(m[1])]
		if !ok || modelID == reviewerID || seen[modelID] {
			continue
		}
		seen[modelID] = true
		rankings = append(rankings, models.Ranking{
			ModelID:   modelID,
			Rank:      len(rankings) + 1,
			Reasoning: m[2],
		})
	}

	if len(rankings)*2 < expected {
		return result
	}
	result.Rankings = rankings
	result.ParseOK = true
	return result
}
