// llm-stub is a tiny OpenAI-compatible server that answers every
// assessment prompt with a canned trust report. It exists so the API can
// be exercised end to end without a real model backend.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys := ""
		if len(req.Messages) > 0 {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		if !strings.Contains(sys, "security analyst") {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		// Pull the product name back out of the user message so the stub
		// reply at least echoes the request.
		product := "Unknown Product"
		if len(req.Messages) >= 2 {
			for _, line := range strings.Split(req.Messages[1].Content, "\n") {
				if after, ok := strings.CutPrefix(strings.TrimSpace(line), "Product: "); ok {
					product = after
					break
				}
			}
		}
		assessment := map[string]any{
			"product_name": product,
			"vendor": map[string]any{
				"name":               "Stub Vendor",
				"reputation_summary": "Synthetic assessment from llm-stub",
			},
			"category":          "Other",
			"description":       product + " assessed by the stub backend",
			"usage_description": "Test traffic only",
			"cve_trends": map[string]any{
				"total_cves":    2,
				"high_count":    1,
				"medium_count":  1,
				"trend_summary": "Synthetic CVE trend",
			},
			"compliance": map[string]any{"notes": "Synthetic compliance notes"},
			"trust_score": map[string]any{
				"score":            65,
				"confidence":       "Medium",
				"rationale":        "Canned rationale from llm-stub",
				"positive_factors": []string{"Deterministic test data"},
			},
		}
		b, _ := json.Marshal(assessment)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": string(b)}},
			},
		})
	})

	log.Printf("llm-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
