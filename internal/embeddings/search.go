package embeddings

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Product is a catalog item with a precomputed embedding vector.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Embedding   []float64 `json:"embedding"`
}

// Match pairs a product with its similarity score against a query.
type Match struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// LoadProducts reads a JSON array of products from disk.
func LoadProducts(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse products file: %w", err)
	}
	return products, nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK returns the k products most similar to the query vector,
// highest score first. Products without embeddings are skipped.
func TopK(query []float64, products []Product, k int) []Match {
	matches := make([]Match, 0, len(products))
	for _, p := range products {
		if len(p.Embedding) == 0 {
			continue
		}
		matches = append(matches, Match{Product: p, Score: CosineSimilarity(query, p.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
