package service

import (
	"sort"
)

// PackMode says how a candidate was emitted.
type PackMode string

const (
	PackFull PackMode = "full"
	PackGist PackMode = "gist"
)

// PackCandidate is one ranked entry offered to the packer.
type PackCandidate struct {
	ID      string
	Content string
	Gist    string
	Score   float64
}

// PackedEntry is one emitted entry with its accounting.
type PackedEntry struct {
	ID     string   `json:"id"`
	Mode   PackMode `json:"mode"`
	Text   string   `json:"text"`
	Tokens int      `json:"tokens"`
	Score  float64  `json:"score"`
}

// PackResult is the packer's output.
type PackResult struct {
	Entries         []PackedEntry `json:"entries"`
	TotalTokensUsed int           `json:"total_tokens_used"`
	BudgetRemaining int           `json:"budget_remaining"`
	Overflow        bool          `json:"overflow"`
}

// EstimateTokens approximates the token count of a text as ceil(len/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// MaxGistLength is the hard cap on gist text.
const MaxGistLength = 280

// FallbackGist truncates content to a gist when no generated gist exists.
func FallbackGist(content string) string {
	if len(content) <= MaxGistLength {
		return content
	}
	return content[:MaxGistLength-3] + "..."
}

// gistBudgetShare is the fraction of the post-top-2 remainder reserved for
// gists; the rest backfills full content.
const gistBudgetShare = 0.70

// PackContext compresses a ranked candidate list into a token budget. The
// top two candidates are always emitted in full; if they alone exceed the
// budget the result is marked overflow. The remainder is split 70/30 between
// a gist bucket and a full-content backfill bucket, with a reallocation pass
// over skipped candidates. Pure: identical inputs produce identical outputs.
func PackContext(candidates []PackCandidate, budget int) PackResult {
	if len(candidates) == 0 {
		return PackResult{Entries: []PackedEntry{}, BudgetRemaining: maxInt(0, budget)}
	}

	top := candidates
	if len(top) > 2 {
		top = top[:2]
	}

	topTokens := 0
	topEntries := make([]PackedEntry, 0, 2)
	for _, c := range top {
		t := EstimateTokens(c.Content)
		topTokens += t
		topEntries = append(topEntries, PackedEntry{ID: c.ID, Mode: PackFull, Text: c.Content, Tokens: t, Score: c.Score})
	}

	if topTokens > budget {
		return PackResult{
			Entries:         topEntries,
			TotalTokensUsed: topTokens,
			BudgetRemaining: 0,
			Overflow:        true,
		}
	}

	remaining := budget - topTokens
	gistBudget := int(float64(remaining) * gistBudgetShare)
	fullBudget := remaining - gistBudget

	var gistBucket, fullBucket []PackedEntry
	var skipped []PackCandidate
	gistUsed, fullUsed := 0, 0

	for _, c := range candidates[minInt(2, len(candidates)):] {
		gistText := c.Gist
		if gistText == "" {
			gistText = FallbackGist(c.Content)
		}
		g := EstimateTokens(gistText)
		f := EstimateTokens(c.Content)

		switch {
		case gistUsed+g <= gistBudget:
			gistUsed += g
			gistBucket = append(gistBucket, PackedEntry{ID: c.ID, Mode: PackGist, Text: gistText, Tokens: g, Score: c.Score})
		case fullUsed+f <= fullBudget:
			fullUsed += f
			fullBucket = append(fullBucket, PackedEntry{ID: c.ID, Mode: PackFull, Text: c.Content, Tokens: f, Score: c.Score})
		default:
			skipped = append(skipped, c)
		}
	}

	// Reallocation: leftover room in either bucket is pooled for another pass
	// over the skipped candidates, trying full content first while the gist
	// bucket has room left and the gist first otherwise.
	for _, c := range skipped {
		gistText := c.Gist
		if gistText == "" {
			gistText = FallbackGist(c.Content)
		}
		g := EstimateTokens(gistText)
		f := EstimateTokens(c.Content)
		leftover := remaining - gistUsed - fullUsed
		fullFirst := gistUsed < gistBudget

		switch {
		case fullFirst && f <= leftover:
			fullUsed += f
			fullBucket = append(fullBucket, PackedEntry{ID: c.ID, Mode: PackFull, Text: c.Content, Tokens: f, Score: c.Score})
		case g <= leftover:
			gistUsed += g
			gistBucket = append(gistBucket, PackedEntry{ID: c.ID, Mode: PackGist, Text: gistText, Tokens: g, Score: c.Score})
		case f <= leftover:
			fullUsed += f
			fullBucket = append(fullBucket, PackedEntry{ID: c.ID, Mode: PackFull, Text: c.Content, Tokens: f, Score: c.Score})
		}
	}

	extras := append(gistBucket, fullBucket...)
	sort.SliceStable(extras, func(i, j int) bool { return extras[i].Score > extras[j].Score })

	entries := append(topEntries, extras...)
	total := topTokens + gistUsed + fullUsed

	return PackResult{
		Entries:         entries,
		TotalTokensUsed: total,
		BudgetRemaining: maxInt(0, budget-total),
		Overflow:        false,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
