package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/sentiscope/config"
	"github.com/spacesedan/sentiscope/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	TWITTER_MIN_PAGE_SIZE = 5
	TWITTER_MAX_PAGE_SIZE = 100
	TWITTER_TWEET_FIELDS  = "lang,created_at,note_tweet"
	twitterNotFoundType   = "https://api.twitter.com/2/problems/resource-not-found"
)

// TwitterClient fetches a user's recent tweets from the Twitter API v2.
type TwitterClient struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	maxPages       int
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type TwitterOption func(*TwitterClient)

func WithRateLimiter(l *rate.Limiter) TwitterOption {
	return func(tc *TwitterClient) { tc.limiter = l }
}

func WithBackoff(initial, ceiling time.Duration, retries int) TwitterOption {
	return func(tc *TwitterClient) {
		tc.initialBackoff = initial
		tc.maxBackoff = ceiling
		tc.maxRetries = retries
	}
}

// NewTwitterClient authenticates with a static bearer token when one is
// configured and with the app-only client credentials flow otherwise.
func NewTwitterClient(cfg config.TwitterConfig, opts ...TwitterOption) *TwitterClient {
	tc := &TwitterClient{
		baseURL:        strings.TrimRight(cfg.APIURL, "/"),
		client:         twitterHTTPClient(cfg),
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxPages:       cfg.MaxPages,
		maxRetries:     MAX_RETRIES,
		initialBackoff: INITIAL_BACKOFF,
		maxBackoff:     MAX_BACKOFF,
	}
	if tc.maxPages <= 0 {
		tc.maxPages = 1
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.maxRetries <= 0 {
		tc.maxRetries = 1
	}
	return tc
}

func twitterHTTPClient(cfg config.TwitterConfig) *http.Client {
	ctx := context.Background()
	if cfg.BearerToken != "" {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.BearerToken,
			TokenType:   "Bearer",
		}))
	}

	oauthConf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return oauthConf.Client(ctx)
}

// Fetch returns up to limit tweets by handle written in language, most
// recent first. Pages are followed until the limit is met or maxPages pages
// were read.
func (tc *TwitterClient) Fetch(ctx context.Context, handle string, limit int, language string) ([]models.RawDocument, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if limit <= 0 {
		return nil, nil
	}

	user, err := tc.lookupUser(ctx, handle)
	if err != nil {
		return nil, err
	}

	docs := make([]models.RawDocument, 0, limit)
	nextToken := ""
	for page := 1; page <= tc.maxPages; page++ {
		timeline, err := tc.timelinePage(ctx, handle, user.ID, limit, nextToken)
		if err != nil {
			return nil, err
		}

		for _, tweet := range timeline.Data {
			if language != "" && tweet.Lang != language {
				continue
			}
			docs = append(docs, models.RawDocument{
				ID:        tweet.ID,
				Text:      tweet.FullText(),
				Index:     len(docs),
				Lang:      tweet.Lang,
				CreatedAt: tweet.CreatedAt,
			})
			if len(docs) == limit {
				break
			}
		}

		slog.Debug("[TwitterClient] Fetched timeline page",
			slog.String("handle", handle),
			slog.Int("page", page),
			slog.Int("page_size", len(timeline.Data)),
			slog.Int("collected", len(docs)))

		if len(docs) == limit || timeline.Meta.NextToken == "" {
			break
		}
		nextToken = timeline.Meta.NextToken
	}

	slog.Info("[TwitterClient] Successfully fetched tweets",
		slog.String("handle", handle),
		slog.Int("count", len(docs)))
	return docs, nil
}

func (tc *TwitterClient) lookupUser(ctx context.Context, handle string) (*models.TwitterUser, error) {
	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", tc.baseURL, url.PathEscape(handle))

	var res models.TwitterUserResponse
	if err := tc.get(ctx, handle, endpoint, &res); err != nil {
		return nil, err
	}
	if res.Data == nil || res.Data.ID == "" {
		// The API answers 200 with a resource-not-found error for unknown users.
		detail := "user not found"
		for _, e := range res.Errors {
			if e.Type == twitterNotFoundType && e.Detail != "" {
				detail = e.Detail
				break
			}
		}
		return nil, models.NewFetchError(models.FetchUnknownHandle, handle, errors.New(detail))
	}
	return res.Data, nil
}

func (tc *TwitterClient) timelinePage(ctx context.Context, handle, userID string, limit int, nextToken string) (*models.TwitterTimelineResponse, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(pageSize(limit)))
	q.Set("tweet.fields", TWITTER_TWEET_FIELDS)
	if nextToken != "" {
		q.Set("pagination_token", nextToken)
	}
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", tc.baseURL, url.PathEscape(userID), q.Encode())

	var res models.TwitterTimelineResponse
	if err := tc.get(ctx, handle, endpoint, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// pageSize clamps limit into the range the timeline endpoint accepts.
func pageSize(limit int) int {
	return max(TWITTER_MIN_PAGE_SIZE, min(limit, TWITTER_MAX_PAGE_SIZE))
}

// get performs a GET with retries. Rate limits and server errors are retried
// with doubling backoff; everything else fails fast. Every failure is a
// *models.FetchError.
func (tc *TwitterClient) get(ctx context.Context, handle, endpoint string, out any) error {
	var lastErr error
	backoff := tc.initialBackoff

	for attempt := 1; attempt <= tc.maxRetries; attempt++ {
		if err := tc.limiter.Wait(ctx); err != nil {
			return models.NewFetchError(models.FetchNetwork, handle, err)
		}

		wait := backoff
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return models.NewFetchError(models.FetchNetwork, handle, err)
		}
		req.Header.Set("User-Agent", USER_AGENT)

		res, err := tc.client.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				slog.Error("[TwitterClient] Failed to obtain access token", slog.String("error", err.Error()))
				return models.NewFetchError(models.FetchUnauthorized, handle, err)
			}
			if ctx.Err() != nil {
				return models.NewFetchError(models.FetchNetwork, handle, ctx.Err())
			}
			slog.Warn("[TwitterClient] Request failed, retrying...",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()))
			lastErr = models.NewFetchError(models.FetchNetwork, handle, err)
		} else {
			body, readErr := io.ReadAll(res.Body)
			res.Body.Close()

			switch {
			case res.StatusCode == http.StatusOK:
				if readErr != nil {
					return models.NewFetchError(models.FetchNetwork, handle, readErr)
				}
				if err := json.Unmarshal(body, out); err != nil {
					slog.Error("[TwitterClient] Failed to parse JSON response", slog.String("error", err.Error()))
					return models.NewFetchError(models.FetchNetwork, handle, fmt.Errorf("decode response: %w", err))
				}
				return nil
			case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
				slog.Error("[TwitterClient] Credentials rejected", slog.Int("status", res.StatusCode))
				return models.NewFetchError(models.FetchUnauthorized, handle, statusError(res))
			case res.StatusCode == http.StatusNotFound:
				return models.NewFetchError(models.FetchUnknownHandle, handle, statusError(res))
			case res.StatusCode == http.StatusTooManyRequests:
				if reset, ok := rateLimitReset(res.Header); ok {
					wait = min(reset, tc.maxBackoff)
				}
				slog.Warn("[TwitterClient] Rate limit exceeded, retrying...",
					slog.Int("attempt", attempt),
					slog.Duration("backoff", wait))
				lastErr = models.NewFetchError(models.FetchRateLimited, handle, statusError(res))
			case res.StatusCode >= http.StatusInternalServerError:
				slog.Warn("[TwitterClient] Server error, retrying...",
					slog.Int("status", res.StatusCode),
					slog.Int("attempt", attempt),
					slog.Duration("backoff", wait))
				lastErr = models.NewFetchError(models.FetchNetwork, handle, statusError(res))
			default:
				slog.Warn("[TwitterClient] Unexpected response", slog.Int("status", res.StatusCode))
				return models.NewFetchError(models.FetchNetwork, handle, statusError(res))
			}
		}

		if attempt == tc.maxRetries {
			slog.Error("[TwitterClient] Failed after max retries", slog.String("handle", handle))
			break
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return models.NewFetchError(models.FetchNetwork, handle, err)
		}
		backoff = min(backoff*2, tc.maxBackoff)
	}

	return lastErr
}

func statusError(res *http.Response) error {
	return fmt.Errorf("unexpected status %d", res.StatusCode)
}

// rateLimitReset reads the epoch-seconds x-rate-limit-reset header.
func rateLimitReset(h http.Header) (time.Duration, bool) {
	raw := h.Get("x-rate-limit-reset")
	if raw == "" {
		return 0, false
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	d := time.Until(time.Unix(epoch, 0))
	if d <= 0 {
		return 0, false
	}
	return d, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
