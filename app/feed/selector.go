package feed

import (
	"sort"
	"strings"
	"time"
)

// Stopwords excluded from title tokenization when clustering.
var stopwords = map[string]bool{
	"THE": true, "A": true, "AN": true, "OF": true, "IN": true, "ON": true,
	"AND": true, "OR": true, "TO": true, "FOR": true, "WITH": true, "AT": true,
	"BY": true, "FROM": true, "ABOUT": true, "OVER": true, "AFTER": true,
	"BEFORE": true, "IS": true, "ARE": true, "WAS": true, "WERE": true,
	"AS": true, "NEW": true, "US": true,
}

const (
	clusterSimilarityThreshold = 0.4
	minTokenLength             = 3
)

// Selector ranks fresh items by recency and topic-cluster size, then applies
// a per-source diversity cap.
type Selector struct {
	MaxForAI     int
	PerSourceCap int
}

func NewSelector(maxForAI, perSourceCap int) *Selector {
	return &Selector{MaxForAI: maxForAI, PerSourceCap: perSourceCap}
}

// Run scores and selects items. The input order is the tiebreak: the sort is
// stable, so equal scores keep insertion order.
func (s *Selector) Run(items []Item, now time.Time) []ScoredItem {
	if len(items) == 0 {
		return nil
	}

	clusterSizes := clusterSizes(items)

	type scored struct {
		item  Item
		score float64
	}
	ranked := make([]scored, len(items))
	for i, item := range items {
		score := recencyScore(item.PublishedAt, now)
		score += 6 * float64(max(0, clusterSizes[i]-1))
		ranked[i] = scored{item: item, score: score}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	perSource := make(map[string]int)
	var selected []ScoredItem
	for _, entry := range ranked {
		if len(selected) >= s.MaxForAI {
			break
		}
		if perSource[entry.item.Source] >= s.PerSourceCap {
			continue
		}
		perSource[entry.item.Source]++
		selected = append(selected, ScoredItem{
			Item:  entry.item,
			Rank:  len(selected) + 1,
			Score: entry.score,
		})
	}

	return selected
}

// recencyScore favors items published within the last 12 hours, with a
// secondary tail out to 24 hours. Items without a timestamp score zero.
func recencyScore(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	h := now.Sub(*publishedAt).Hours()
	if h < 0 {
		h = 0
	}
	score := 2 * maxFloat(0, 12-h)
	score += maxFloat(0, 24-h)
	return score
}

// clusterSizes groups items into topic clusters via union-find over title
// token sets and returns each item's cluster size. Two items join the same
// cluster when their Jaccard similarity reaches the threshold.
func clusterSizes(items []Item) []int {
	tokens := make([]map[string]bool, len(items))
	for i, item := range items {
		tokens[i] = tokenizeTitle(item.Title)
	}

	uf := newUnionFind(len(items))
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if jaccard(tokens[i], tokens[j]) >= clusterSimilarityThreshold {
				uf.union(i, j)
			}
		}
	}

	counts := make(map[int]int)
	for i := range items {
		counts[uf.find(i)]++
	}

	sizes := make([]int, len(items))
	for i := range items {
		sizes[i] = counts[uf.find(i)]
	}
	return sizes
}

func tokenizeTitle(title string) map[string]bool {
	var b strings.Builder
	for _, r := range strings.ToUpper(title) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := make(map[string]bool)
	for _, token := range strings.Fields(b.String()) {
		if len(token) < minTokenLength || stopwords[token] {
			continue
		}
		tokens[token] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	intersection := 0
	for token := range smaller {
		if larger[token] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// unionFind is a flat parent array with path compression. Item counts per
// run stay in the hundreds, so the quadratic pairing above is fine.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
