package metaculus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
)

const defaultBaseURL = "https://www.metaculus.com/api"

// Config provides optional overrides.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RequestsPerSec paces every outbound request against the
	// platform's usage quota.
	RequestsPerSec int
}

// Client talks to the Metaculus API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient builds a configured platform client. A missing token is
// fine for read-only use; writes report it when attempted.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		log:        logging.Component("metaculus"),
	}
}

// ListPostsParams filters the posts listing.
type ListPostsParams struct {
	Limit              int
	Offset             int
	OrderBy            string
	Tournaments        []string
	Statuses           string
	IncludeDescription bool
}

// PostsPage is one page of the posts listing.
type PostsPage struct {
	Results []Post `json:"results"`
}

// ListPosts fetches a single page of posts.
func (c *Client) ListPosts(ctx context.Context, params ListPostsParams) (*PostsPage, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(params.Offset))
	if params.OrderBy != "" {
		q.Set("order_by", params.OrderBy)
	}
	for _, t := range params.Tournaments {
		q.Add("tournaments", t)
	}
	if params.Statuses != "" {
		q.Set("statuses", params.Statuses)
	}
	if params.IncludeDescription {
		q.Set("include_description", "true")
	}

	var page PostsPage
	if err := c.get(ctx, "/posts/", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPost fetches a single post with its question details.
func (c *Client) GetPost(ctx context.Context, postID int64) (*Post, error) {
	var post Post
	if err := c.get(ctx, fmt.Sprintf("/posts/%d/", postID), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ForecastPayload is one element of a forecast submission. Exactly one
// of the three value fields is set per question type; the platform
// expects the others as explicit nulls, so none carry omitempty.
type ForecastPayload struct {
	Question                  int64              `json:"question"`
	ContinuousCDF             []float64          `json:"continuous_cdf"`
	ProbabilityYes            *float64           `json:"probability_yes"`
	ProbabilityYesPerCategory map[string]float64 `json:"probability_yes_per_category"`
}

// SubmitForecast posts one or more forecasts. Requires a token.
func (c *Client) SubmitForecast(ctx context.Context, payloads ...ForecastPayload) error {
	if c.token == "" {
		return fmt.Errorf("metaculus: token is required to submit forecasts")
	}
	if len(payloads) == 0 {
		return fmt.Errorf("metaculus: no forecasts to submit")
	}
	for _, p := range payloads {
		c.log.Info().Int64("question_id", p.Question).Msg("submitting forecast")
	}
	return c.post(ctx, "/questions/forecast/", payloads, nil)
}

type commentPayload struct {
	Text             string `json:"text"`
	Parent           *int64 `json:"parent"`
	IncludedForecast bool   `json:"included_forecast"`
	IsPrivate        bool   `json:"is_private"`
	OnPost           int64  `json:"on_post"`
}

// PostComment attaches a private comment to a post, used to record the
// bot's reasoning alongside a submitted forecast. Requires a token.
func (c *Client) PostComment(ctx context.Context, postID int64, text string) error {
	if c.token == "" {
		return fmt.Errorf("metaculus: token is required to post comments")
	}
	payload := commentPayload{
		Text:             text,
		IncludedForecast: true,
		IsPrivate:        true,
		OnPost:           postID,
	}
	return c.post(ctx, "/comments/create/", payload, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *Client) post(ctx context.Context, path string, payload, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

// do paces the request, attaches auth, and decodes 2xx bodies into dst.
// Non-2xx responses become errors carrying the status and a bounded
// body excerpt; callers decide whether that is fatal.
func (c *Client) do(req *http.Request, dst any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("metaculus API %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if dst == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
