// cmd/embeddings-demo/main.go
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/saleorbridge/payment-bridge/internal/embeddings"
)

// SearchService answers semantic product searches over a precomputed
// catalog. The query is embedded on demand; products carry their vectors in
// the catalog file.
type SearchService struct {
	client   *embeddings.Client
	products []embeddings.Product
}

func main() {
	godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8030"
	}
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "./configs/products.json"
	}
	apiKey := os.Getenv("EMBEDDINGS_API_KEY")
	if apiKey == "" {
		log.Fatal("EMBEDDINGS_API_KEY is required")
	}
	baseURL := os.Getenv("EMBEDDINGS_API_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/embeddings"
	}

	products, err := embeddings.LoadProducts(catalogPath)
	if err != nil {
		log.Fatal("Failed to load product catalog:", err)
	}
	log.Printf("Loaded %d products from %s", len(products), catalogPath)

	service := &SearchService{
		client:   embeddings.NewClient(apiKey, baseURL, os.Getenv("EMBEDDINGS_MODEL")),
		products: products,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", service.healthCheck).Methods("GET")
	r.HandleFunc("/api/search", service.search).Methods("GET")

	log.Printf("🔍 Embeddings Demo starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func (s *SearchService) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}

	k := 5
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "k must be a positive integer"})
			return
		}
		k = parsed
	}

	vector, err := s.client.EmbedOne(r.Context(), query)
	if err != nil {
		log.Printf("Embedding query failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to embed query"})
		return
	}

	matches := embeddings.TopK(vector, s.products, k)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"matches": matches,
	})
}

func (s *SearchService) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "embeddings-demo",
		"status":    "healthy",
		"timestamp": time.Now(),
		"products":  len(s.products),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
