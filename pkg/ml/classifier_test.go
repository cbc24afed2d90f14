package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPClassifierRoundTrip(t *testing.T) {
	var gotFeatures []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("path = %q, want /predict", r.URL.Path)
		}
		var req struct {
			Features []float64 `json:"features"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotFeatures = req.Features
		json.NewEncoder(w).Encode(map[string]any{"prediction": 1, "probability": 0.91})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 2*time.Second)
	pred, err := c.Classify(context.Background(), Vitals{29, 120, 80, 6.5, 98.6, 72})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !pred.HighRisk || pred.Probability != 0.91 {
		t.Fatalf("prediction = %+v, want high risk 0.91", pred)
	}
	if len(gotFeatures) != 6 || gotFeatures[0] != 29 || gotFeatures[5] != 72 {
		t.Fatalf("features sent = %v", gotFeatures)
	}
}

func TestHTTPClassifierRejectsBadProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"prediction": 0, "probability": 1.7})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 2*time.Second)
	if _, err := c.Classify(context.Background(), Vitals{}); err == nil {
		t.Fatal("expected error for out-of-range probability")
	}
}

func TestHTTPClassifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 2*time.Second)
	if _, err := c.Classify(context.Background(), Vitals{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFallbackRecommendationFlagsConcerns(t *testing.T) {
	cases := []struct {
		name    string
		vitals  Vitals
		keyword string
	}{
		{"teenage", Vitals{16, 115, 75, 6.0, 98.4, 74}, "age group"},
		{"hypertensive", Vitals{28, 150, 95, 6.0, 98.4, 74}, "blood pressure reading is elevated"},
		{"hypotensive", Vitals{28, 85, 55, 6.0, 98.4, 74}, "blood pressure reading is low"},
		{"high blood sugar", Vitals{28, 115, 75, 8.2, 98.4, 74}, "blood sugar"},
		{"fever", Vitals{28, 115, 75, 6.0, 101.2, 74}, "fever"},
		{"tachycardia", Vitals{28, 115, 75, 6.0, 98.4, 112}, "heart rate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FallbackRecommendation(tc.vitals, true)
			if !strings.Contains(got, tc.keyword) {
				t.Fatalf("recommendation %q does not mention %q", got, tc.keyword)
			}
		})
	}
}

func TestFallbackRecommendationHealthyVitals(t *testing.T) {
	healthy := Vitals{28, 115, 75, 6.0, 98.4, 74}

	got := FallbackRecommendation(healthy, false)
	if !strings.Contains(got, "within the expected ranges") {
		t.Fatalf("unexpected low-risk advice: %q", got)
	}

	// Healthy inputs with a high-risk label still advise follow-up.
	got = FallbackRecommendation(healthy, true)
	if !strings.Contains(got, "consult your care provider") {
		t.Fatalf("unexpected high-risk advice: %q", got)
	}
}
