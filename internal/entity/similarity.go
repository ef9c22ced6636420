package entity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/osinto/casefile/internal/models"
)

// comparableFields contribute to the attribute-overlap part of the
// duplicate score when both sides carry at least one value.
var comparableFields = []string{
	"birthDate",
	"country",
	"nationality",
	"jurisdiction",
	"registrationNumber",
	"email",
	"innCode",
	"vatCode",
}

// FindDuplicates scores every same-schema entity pair and returns the
// candidates at or above threshold, ordered by score descending.
func (s *Service) FindDuplicates(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
	entities, err := s.List(ctx, investigationID, "")
	if err != nil {
		return nil, err
	}

	if schema != "" {
		filtered := make([]models.Entity, 0, len(entities))
		for _, entity := range entities {
			if entity.Schema == schema {
				filtered = append(filtered, entity)
			}
		}
		entities = filtered
	}

	candidates := []models.DuplicateCandidate{}
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			left, right := entities[i], entities[j]
			if left.Schema != right.Schema {
				continue
			}

			score, reason := similarity(left, right)
			if score < threshold {
				continue
			}
			candidates = append(candidates, models.DuplicateCandidate{
				Left:       left,
				Right:      right,
				Similarity: round4(score),
				Reason:     reason,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// similarity scores one pair. Name similarity contributes 70%, overlap
// across the comparable fields the remaining 30%. The score is capped
// at 1.0.
func similarity(left, right models.Entity) (float64, string) {
	leftName := left.Properties.First("name")
	if leftName == "" {
		leftName = left.ID
	}
	rightName := right.Properties.First("name")
	if rightName == "" {
		rightName = right.ID
	}

	nameSimilarity := sequenceRatio(strings.ToLower(leftName), strings.ToLower(rightName))
	score := 0.7 * nameSimilarity
	reasons := []string{fmt.Sprintf("name similarity %.2f", nameSimilarity)}

	overlap, checked := 0, 0
	for _, field := range comparableFields {
		leftValues := foldSet(left.Properties.Get(field))
		rightValues := foldSet(right.Properties.Get(field))
		if len(leftValues) == 0 || len(rightValues) == 0 {
			continue
		}
		checked++
		if intersects(leftValues, rightValues) {
			overlap++
		}
	}

	if checked > 0 {
		overlapRatio := float64(overlap) / float64(checked)
		score += 0.3 * overlapRatio
		reasons = append(reasons, fmt.Sprintf("attribute overlap %.2f", overlapRatio))
	}

	return math.Min(score, 1.0), strings.Join(reasons, ", ")
}

func foldSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[strings.ToLower(value)] = struct{}{}
	}
	return set
}

func intersects(left, right map[string]struct{}) bool {
	for value := range left {
		if _, ok := right[value]; ok {
			return true
		}
	}
	return false
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

// sequenceRatio is the Ratcliff/Obershelp similarity: twice the total
// length of matching blocks over the combined length. Two empty strings
// are fully similar.
func sequenceRatio(a, b string) float64 {
	left, right := []rune(a), []rune(b)
	total := len(left) + len(right)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingTotal(left, right)) / float64(total)
}

type matchSpan struct {
	alo, ahi, blo, bhi int
}

// matchingTotal sums the matching blocks found by recursively splitting
// around the longest common block, preferring the earliest block on ties.
func matchingTotal(a, b []rune) int {
	positions := make(map[rune][]int, len(b))
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	matched := 0
	queue := []matchSpan{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		span := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, size := longestMatch(a, positions, span)
		if size == 0 {
			continue
		}
		matched += size
		queue = append(queue,
			matchSpan{span.alo, i, span.blo, j},
			matchSpan{i + size, span.ahi, j + size, span.bhi})
	}
	return matched
}

// longestMatch finds the longest block a[i:i+size] == b[j:j+size] within
// the span. Ties resolve to the lowest i, then the lowest j.
func longestMatch(a []rune, positions map[rune][]int, span matchSpan) (int, int, int) {
	besti, bestj, bestsize := span.alo, span.blo, 0
	lengths := map[int]int{}

	for i := span.alo; i < span.ahi; i++ {
		next := map[int]int{}
		for _, j := range positions[a[i]] {
			if j < span.blo {
				continue
			}
			if j >= span.bhi {
				break
			}
			size := lengths[j-1] + 1
			next[j] = size
			if size > bestsize {
				besti, bestj, bestsize = i-size+1, j-size+1, size
			}
		}
		lengths = next
	}
	return besti, bestj, bestsize
}
