package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config drives a synthetic traffic run against a live instance. Profiles:
// "whoami" polls the session check endpoint, "auth" exercises the
// credential endpoints (expected to fail with 4xx against real turnstile),
// "mixed" interleaves both.
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusCounts  map[string]int
}

type target struct {
	method string
	path   string
	body   string
}

var (
	whoamiTargets = []target{
		{http.MethodGet, "/health/live", ""},
		{http.MethodGet, "/api/user/whoami", ""},
	}
	authTargets = []target{
		{http.MethodPost, "/api/otp/request", `{"email":"loadgen@example.com","turnstileToken":"loadgen"}`},
		{http.MethodPost, "/api/email_password/login", `{"email":"loadgen@example.com","password":"loadgen-password","turnstileToken":"loadgen"}`},
		{http.MethodPost, "/api/user/logout", ""},
	}
)

// Run fires requests at BaseURL for the configured duration and reports
// aggregate status classes. 4xx answers count as served traffic, not
// failures; only transport errors and 5xx do.
func Run(ctx context.Context, cfg Config) (Result, error) {
	profile := normalizeProfile(cfg.Profile)
	targets := profileTargets(profile)
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var mu sync.Mutex
	res := Result{StatusCounts: make(map[string]int)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	interval := time.Second / time.Duration(cfg.RPS)
	work := make(chan target)

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for t := range work {
				status, err := fire(gctx, client, cfg.BaseURL, t)
				mu.Lock()
				res.TotalRequests++
				if err != nil {
					res.Failures++
					res.StatusCounts["error"]++
				} else {
					class := classifyStatusClass(status)
					res.StatusCounts[class]++
					if class == "5xx" {
						res.Failures++
					}
				}
				mu.Unlock()
			}
			return nil
		})
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ticker := time.NewTicker(interval)
feed:
	for {
		select {
		case <-runCtx.Done():
			break feed
		case <-ticker.C:
			select {
			case work <- targets[rng.Intn(len(targets))]:
			case <-runCtx.Done():
				break feed
			}
		}
	}
	ticker.Stop()
	close(work)
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func fire(ctx context.Context, client *http.Client, baseURL string, t target) (int, error) {
	var body *bytes.Reader
	if t.body != "" {
		body = bytes.NewReader([]byte(t.body))
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, t.method, strings.TrimRight(baseURL, "/")+t.path, body)
	if err != nil {
		return 0, err
	}
	if t.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func profileTargets(profile string) []target {
	switch profile {
	case "whoami":
		return whoamiTargets
	case "auth":
		return authTargets
	default:
		return append(append([]target{}, whoamiTargets...), authTargets...)
	}
}

func normalizeProfile(profile string) string {
	p := strings.ToLower(strings.TrimSpace(profile))
	switch p {
	case "whoami", "auth", "mixed":
		return p
	case "":
		return "mixed"
	default:
		return "mixed"
	}
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

// Summary renders the per-class counts in a stable order for log lines.
func (r Result) Summary() string {
	order := []string{"2xx", "3xx", "4xx", "5xx", "error", "other"}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		if n := r.StatusCounts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, " ")
}
