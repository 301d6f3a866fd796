package callcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFetchTimeout bounds a single context fetch.
const DefaultFetchTimeout = 10 * time.Second

// contextPath is the context service function that returns a Record.
const contextPath = "/functions/v1/getCallContext"

// Record is the structured payload returned by the context service. Every
// field is optional.
type Record struct {
	Patient      *Patient       `json:"patient,omitempty"`
	Interests    []Interest     `json:"interests,omitempty"`
	Medications  []Medication   `json:"medications,omitempty"`
	RecentCalls  []RecentCall   `json:"recentCalls,omitempty"`
	RelevantNews []InterestNews `json:"relevantNews,omitempty"`
}

// Patient identifies the callee.
type Patient struct {
	Name string `json:"name"`
}

// Interest is one topic the callee enjoys.
type Interest struct {
	Name string `json:"name"`
}

// Medication is one prescription with its schedule.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

// RecentCall summarises an earlier conversation.
type RecentCall struct {
	Summary string `json:"summary"`
}

// InterestNews groups news articles under the interest they relate to.
type InterestNews struct {
	Interest string    `json:"interest"`
	News     []Article `json:"news"`
}

// Article is one news item.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Variables flattens the record into prompt variables. Fields that are
// absent or empty map to their placeholder sentence.
func (r *Record) Variables() Variables {
	vars := Defaults()
	if r == nil {
		return vars
	}

	if r.Patient != nil && r.Patient.Name != "" {
		vars[VarName] = r.Patient.Name
	}

	if len(r.Interests) > 0 {
		names := make([]string, 0, len(r.Interests))
		for _, i := range r.Interests {
			names = append(names, i.Name)
		}
		vars[VarInterests] = "Here is a list of interests: " + strings.Join(names, ", ")
	}

	if len(r.Medications) > 0 {
		meds := make([]string, 0, len(r.Medications))
		for _, m := range r.Medications {
			meds = append(meds, fmt.Sprintf("%s %s %s", m.Name, m.Dosage, m.Frequency))
		}
		vars[VarMedication] = "Here is a list of medications: " + strings.Join(meds, ", ")
	}

	if len(r.RecentCalls) > 0 {
		summaries := make([]string, 0, len(r.RecentCalls))
		for _, c := range r.RecentCalls {
			summaries = append(summaries, c.Summary)
		}
		vars[VarRecentConversations] = "Here is a summary of recent conversations: " + strings.Join(summaries, ", ")
	}

	if len(r.RelevantNews) > 0 {
		perInterest := make([]string, 0, len(r.RelevantNews))
		for _, item := range r.RelevantNews {
			articles := make([]string, 0, len(item.News))
			for _, n := range item.News {
				articles = append(articles, n.Title+" - "+n.Summary)
			}
			perInterest = append(perInterest, fmt.Sprintf("For %s: %s", item.Interest, strings.Join(articles, "; ")))
		}
		news := "Here is relevant news for your interests: " + strings.Join(perInterest, ". ")
		vars[VarRelevantNews] = strings.TrimSpace(news)
	}

	return vars
}

// Resolver fetches call context from the context service.
type Resolver struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.httpClient = c }
}

// WithLogger sets the resolver's logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver for the service rooted at baseURL. An
// empty baseURL yields a resolver that always returns Defaults.
func NewResolver(baseURL, token string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultFetchTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "context_resolver")
	return r
}

// Resolve returns the variables for a call. It never fails: any fetch or
// decode error is logged and the defaults are returned.
func (r *Resolver) Resolve(ctx context.Context, callID, patientID string) Variables {
	if r.baseURL == "" {
		r.logger.Debug("context service not configured, using defaults", "call_id", callID)
		return Defaults()
	}

	rec, err := r.Fetch(ctx, callID, patientID)
	if err != nil {
		r.logger.Error("failed to fetch call context", "error", err, "call_id", callID, "patient_id", patientID)
		return Defaults()
	}

	vars := rec.Variables()
	r.logger.Info("resolved call context", "call_id", callID, "name", vars.Name())
	return vars
}

// Fetch performs one GET against the context service and decodes the record.
func (r *Resolver) Fetch(ctx context.Context, callID, patientID string) (*Record, error) {
	q := url.Values{}
	q.Set("id", callID)
	q.Set("patientId", patientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+contextPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build context request: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch call context: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch call context: unexpected status %s", resp.Status)
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode call context: %w", err)
	}
	return &rec, nil
}
