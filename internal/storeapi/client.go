// Package storeapi is the HTTP client for the external schedule store.
package storeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"medsched/internal/schedule"
)

// ErrScheduleConflict marks a store rejection caused by an overlapping
// schedule for the same doctor and date range. Callers distinguish it from
// generic failures; everything else is terminal for the attempt and retried
// only by a fresh user action.
var ErrScheduleConflict = errors.New("schedule overlaps an existing schedule for this doctor")

// Client talks JSON to the schedule store. Request bodies carry dates as
// "YYYY-MM-DD" strings; response bodies carry [year, month, day] tuples.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	limiter *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with baseURL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRateLimit caps outbound calls at rps requests per second with the given
// burst.
func (c *Client) UseRateLimit(rps float64, burst int) {
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UseRedisCache configures optional Redis caching for reference-data GETs.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListDurationOptions fetches the appointment duration lookup values. These
// are immutable reference data, so responses are cached when Redis is wired.
func (c *Client) ListDurationOptions(ctx context.Context) ([]schedule.DurationOption, error) {
	endpoint := c.baseURL + "/api/v1/appointment-durations"
	cacheKey := "medsched:durations"

	var wrap struct {
		Durations []schedule.DurationOption `json:"durations"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Durations, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Durations, nil
}

// CreateSchedule submits a new schedule. An overlap rejection surfaces as
// ErrScheduleConflict.
func (c *Client) CreateSchedule(ctx context.Context, payload schedule.CreatePayload) (*schedule.Persisted, error) {
	endpoint := c.baseURL + "/api/v1/schedules"
	var out schedule.Persisted
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSchedule replaces one schedule by id with the given payload.
func (c *Client) UpdateSchedule(ctx context.Context, id string, payload schedule.CreatePayload) (*schedule.Persisted, error) {
	endpoint := fmt.Sprintf("%s/api/v1/schedules/%s", c.baseURL, url.PathEscape(id))
	var out schedule.Persisted
	if err := c.doJSON(ctx, http.MethodPut, endpoint, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleFilter narrows ListSchedules to a single date or a date range.
// Zero-value fields are omitted from the query.
type ScheduleFilter struct {
	Date string // "YYYY-MM-DD"
	From string
	To   string
}

// ListSchedules fetches a doctor's persisted schedules.
func (c *Client) ListSchedules(ctx context.Context, doctorID string, filter ScheduleFilter) ([]schedule.Persisted, error) {
	endpoint := fmt.Sprintf("%s/api/v1/doctors/%s/schedules", c.baseURL, url.PathEscape(doctorID))

	q := url.Values{}
	if filter.Date != "" {
		q.Set("date", filter.Date)
	}
	if filter.From != "" {
		q.Set("from", filter.From)
	}
	if filter.To != "" {
		q.Set("to", filter.To)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var wrap struct {
		Schedules []schedule.Persisted `json:"schedules"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	return wrap.Schedules, nil
}

// DeleteSchedule removes one schedule by id.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/v1/schedules/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, nil)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorBody is the store's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// decodeError maps the store's rejection to a typed error. HTTP 409, or any
// error message mentioning an overlapping schedule, is a conflict; everything
// else stays a generic failure.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body errorBody
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode == http.StatusConflict || isOverlapMessage(body.Error) {
		if body.Error != "" {
			return fmt.Errorf("%w: %s", ErrScheduleConflict, body.Error)
		}
		return ErrScheduleConflict
	}

	if body.Error != "" {
		return fmt.Errorf("http %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("http %d", resp.StatusCode)
}

func isOverlapMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "overlap") || strings.Contains(m, "already has a schedule")
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
