package callcontext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullRecord = `{
  "patient": {"name": "Alice"},
  "interests": [{"name": "gardening"}, {"name": "chess"}],
  "medications": [{"name": "Aspirin", "dosage": "75mg", "frequency": "daily"}],
  "recentCalls": [{"summary": "Talked about roses"}, {"summary": "Planned a visit"}],
  "relevantNews": [
    {"interest": "gardening", "news": [{"title": "Spring blooms", "summary": "Early tulips"}, {"title": "Frost", "summary": "Cover seedlings"}]},
    {"interest": "chess", "news": [{"title": "Final", "summary": "Draw in game 12"}]}
  ]
}`

func TestResolverResolveMapsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contextPath, r.URL.Path)
		assert.Equal(t, "call-1", r.URL.Query().Get("id"))
		assert.Equal(t, "patient-9", r.URL.Query().Get("patientId"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fullRecord))
	}))
	defer srv.Close()

	vars := NewResolver(srv.URL+"/", "anon-key").Resolve(context.Background(), "call-1", "patient-9")

	assert.Equal(t, "Alice", vars[VarName])
	assert.Equal(t, "Here is a list of interests: gardening, chess", vars[VarInterests])
	assert.Equal(t, "Here is a list of medications: Aspirin 75mg daily", vars[VarMedication])
	assert.Equal(t, "Here is a summary of recent conversations: Talked about roses, Planned a visit", vars[VarRecentConversations])
	assert.Equal(t,
		"Here is relevant news for your interests: For gardening: Spring blooms - Early tulips; Frost - Cover seedlings. For chess: Final - Draw in game 12",
		vars[VarRelevantNews])
}

func TestRecordVariablesMissingFieldsUseDefaults(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
	}{
		{"nil record", nil},
		{"empty record", &Record{}},
		{"empty lists", &Record{
			Patient:      &Patient{},
			Interests:    []Interest{},
			Medications:  []Medication{},
			RecentCalls:  []RecentCall{},
			RelevantNews: []InterestNews{},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Defaults(), tt.rec.Variables())
		})
	}
}

func TestRecordVariablesPartial(t *testing.T) {
	rec := &Record{Patient: &Patient{Name: "Bob"}, Interests: []Interest{{Name: "fishing"}}}
	vars := rec.Variables()

	assert.Equal(t, "Bob", vars[VarName])
	assert.Equal(t, "Here is a list of interests: fishing", vars[VarInterests])
	assert.Equal(t, DefaultMedication, vars[VarMedication])
	assert.Equal(t, DefaultRecentConversations, vars[VarRecentConversations])
	assert.Equal(t, DefaultRelevantNews, vars[VarRelevantNews])
}

func TestResolverFailuresDegradeToDefaults(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not found", func(w http.ResponseWriter, _ *http.Request) {
			http.NotFound(w, nil)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"patient": `))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			vars := NewResolver(srv.URL, "").Resolve(context.Background(), "call-1", "p")
			assert.Equal(t, Defaults(), vars)
		})
	}
}

func TestResolverUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewResolver(url, "token")
	_, err := r.Fetch(context.Background(), "call-1", "p")
	require.Error(t, err)

	assert.Equal(t, Defaults(), r.Resolve(context.Background(), "call-1", "p"))
}

func TestResolverUnconfigured(t *testing.T) {
	assert.Equal(t, Defaults(), NewResolver("", "").Resolve(context.Background(), "call-1", "p"))
}
