package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KatnessChen/MaraMap-Backend/internal/buildinfo"
	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

const postColumns = "id,source_id,raw_text,user_id,status,meta,created_at"

type PostgRESTOptions struct {
	// URL is the project URL, e.g. https://<project>.supabase.co
	URL string `mapstructure:"url"`

	// ServiceKey is sent both as apikey and as bearer token.
	ServiceKey string `mapstructure:"service_key"`

	// Table defaults to "posts".
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout"`
}

var _ Store = (*PostgRESTPostStore)(nil)

// PostgRESTPostStore talks to the posts table through Supabase's REST interface.
type PostgRESTPostStore struct {
	base       *url.URL
	serviceKey string
	table      string
	client     *http.Client
}

// restError is the error body returned by PostgREST.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func NewPostgRESTPostStore(opts PostgRESTOptions, client *http.Client) (*PostgRESTPostStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("postgrest store requires a url")
	}
	if opts.ServiceKey == "" {
		return nil, fmt.Errorf("postgrest store requires a service key")
	}
	base, err := url.Parse(strings.TrimSuffix(opts.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("postgrest url %q is not absolute", opts.URL)
	}
	if opts.Table == "" {
		opts.Table = "posts"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &PostgRESTPostStore{
		base:       base,
		serviceKey: opts.ServiceKey,
		table:      opts.Table,
		client:     client,
	}, nil
}

func (s *PostgRESTPostStore) tableURL(query url.Values) string {
	u := *s.base
	u.Path = u.Path + "/rest/v1/" + s.table
	u.RawQuery = query.Encode()
	return u.String()
}

func (s *PostgRESTPostStore) do(ctx context.Context, method, target string, body any, prefer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent("store"))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	return s.client.Do(req)
}

func (s *PostgRESTPostStore) FindBySourceID(ctx context.Context, sourceID string) (*core.Post, error) {
	query := url.Values{}
	query.Set("select", postColumns)
	query.Set("source_id", "eq."+sourceID)
	query.Set("limit", "1")

	resp, err := s.do(ctx, http.MethodGet, s.tableURL(query), nil, "")
	if err != nil {
		return nil, fmt.Errorf("querying post by source id: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("querying post by source id: %w", decodeRESTError(resp))
	}

	var rows []core.Post
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type insertRow struct {
	SourceID string          `json:"source_id"`
	RawText  string          `json:"raw_text"`
	UserID   string          `json:"user_id"`
	Status   core.PostStatus `json:"status"`
	Meta     core.PostMeta   `json:"meta"`
}

func (s *PostgRESTPostStore) Insert(ctx context.Context, post *core.Post) (string, error) {
	row := insertRow{
		SourceID: post.SourceID,
		RawText:  post.RawText,
		UserID:   post.UserID,
		Status:   post.Status,
		Meta:     post.Meta,
	}
	query := url.Values{}
	query.Set("select", "id")

	resp, err := s.do(ctx, http.MethodPost, s.tableURL(query), row, "return=representation")
	if err != nil {
		return "", fmt.Errorf("inserting post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		restErr := decodeRESTError(resp)
		if resp.StatusCode == http.StatusConflict || restErr.Code == pgUniqueViolation {
			return "", fmt.Errorf("source id %q: %w", post.SourceID, core.ErrDuplicateSourceID)
		}
		return "", fmt.Errorf("inserting post: %w", restErr)
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return "", fmt.Errorf("decoding inserted post: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

func (s *PostgRESTPostStore) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "0")

	resp, err := s.do(ctx, http.MethodGet, s.tableURL(query), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeRESTError(resp)
	}
	return nil
}

func (s *PostgRESTPostStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type restStatusError struct {
	Status int
	restError
}

func (e *restStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postgrest: unexpected status %d", e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("postgrest: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("postgrest: %d: %s (%s)", e.Status, e.Message, e.Code)
}

func decodeRESTError(resp *http.Response) *restStatusError {
	out := &restStatusError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, &out.restError)
	return out
}
