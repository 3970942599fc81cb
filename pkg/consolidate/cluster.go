package consolidate

import (
	"sort"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

// unionFind is a standard disjoint-set with path compression.
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

// clusterFacts pair-scans facts within the same category and unions pairs
// whose embeddings reach the similarity threshold. For every cluster of two
// or more, the strongest member survives and the rest are superseded by it.
func clusterFacts(facts []models.Fact, threshold float64) []store.FactSupersession {
	uf := newUnionFind(len(facts))
	for i := 0; i < len(facts); i++ {
		if facts[i].Embedding == nil {
			continue
		}
		for j := i + 1; j < len(facts); j++ {
			if facts[j].Embedding == nil || facts[i].Category != facts[j].Category {
				continue
			}
			if store.CosineSimilarity(facts[i].Embedding, facts[j].Embedding) >= threshold {
				uf.union(i, j)
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range facts {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	var supersessions []store.FactSupersession
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(a, b int) bool {
			fa, fb := facts[members[a]], facts[members[b]]
			if fa.IsEssential != fb.IsEssential {
				return fa.IsEssential
			}
			if fa.Confidence != fb.Confidence {
				return fa.Confidence > fb.Confidence
			}
			return fa.CreatedAt.After(fb.CreatedAt)
		})
		winner := facts[members[0]]
		for _, idx := range members[1:] {
			supersessions = append(supersessions, store.FactSupersession{
				ExistingID: facts[idx].ID,
				NewID:      winner.ID,
			})
		}
	}
	return supersessions
}
