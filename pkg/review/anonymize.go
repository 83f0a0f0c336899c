// Package review implements the peer-review stage: anonymous labeling of
// stage-1 opinions, tolerant parsing of ranking replies, and aggregation
// of the parsed ranks for the chairman.
package review

import (
	"sort"

	"github.com/synod-ai/synod/pkg/models"
)

// LabeledOpinion is one stage-1 opinion under its anonymous review label.
// Reviewers see only the label and text, never the model id.
type LabeledOpinion struct {
	Label   string
	ModelID string
	Text    string
}

// Anonymize assigns labels to the non-error opinions in a canonical order:
// model id ascending. The order is stable across reviewers, so every
// reviewer works against the same mapping.
func Anonymize(opinions []models.ModelOpinion) []LabeledOpinion {
	usable := models.NonErrorOpinions(opinions)
	sort.Slice(usable, func(i, j int) bool { return usable[i].ModelID < usable[j].ModelID })

	labeled := make([]LabeledOpinion, len(usable))
	for i, op := range usable {
		labeled[i] = LabeledOpinion{Label: labelFor(i), ModelID: op.ModelID, Text: op.Text}
	}
	return labeled
}

// labelFor maps 0-based positions to labels A..Z, then AA, AB, and so on.
func labelFor(i int) string {
	label := ""
	for {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
		if i < 0 {
			return label
		}
	}
}
