package sage

import (
	"fmt"
	"sort"

	"github.com/hupe1980/trinity/core"
)

// Analyze runs a weighted multi-criteria decision analysis: priority weights
// are normalized to sum to 1 (unnormalized input is tolerated), each
// attribute is min-max normalized across the alternatives, and every
// alternative receives the weighted sum of its normalized attributes.
//
// The ranking is descending by score; equal scores preserve the original
// alternative insertion order (stable sort). The ranking always has exactly
// as many entries as there are alternatives.
func Analyze(alternatives []core.Alternative, weights map[string]float64) (*core.DecisionMatrix, error) {
	if len(alternatives) == 0 {
		return nil, fmt.Errorf("decision analysis requires alternatives: %w", core.ErrInvalidInput)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("decision analysis requires priority weights: %w", core.ErrInvalidInput)
	}

	var total float64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative priority weight: %w", core.ErrInvalidInput)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("priority weights sum to zero: %w", core.ErrInvalidInput)
	}
	normWeights := make(map[string]float64, len(weights))
	for k, w := range weights {
		normWeights[k] = w / total
	}

	// Min-max bounds per attribute, over the alternatives that carry it.
	type bounds struct{ min, max float64 }
	attrBounds := map[string]bounds{}
	for _, alt := range alternatives {
		for attr, v := range alt.Attributes {
			b, ok := attrBounds[attr]
			if !ok {
				attrBounds[attr] = bounds{min: v, max: v}
				continue
			}
			if v < b.min {
				b.min = v
			}
			if v > b.max {
				b.max = v
			}
			attrBounds[attr] = b
		}
	}

	ranking := make([]core.RankedAlternative, len(alternatives))
	for i, alt := range alternatives {
		var score float64
		for attr, w := range normWeights {
			v, ok := alt.Attributes[attr]
			if !ok {
				continue
			}
			b := attrBounds[attr]
			norm := 1.0
			if b.max > b.min {
				norm = (v - b.min) / (b.max - b.min)
			}
			score += w * norm
		}
		ranking[i] = core.RankedAlternative{Name: alt.Name, Score: score}
	}

	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Score > ranking[j].Score })
	for i := range ranking {
		ranking[i].Rank = i + 1
	}

	return &core.DecisionMatrix{Weights: normWeights, Ranking: ranking}, nil
}
