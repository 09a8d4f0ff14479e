package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/subpirate/analyzer/internal/domain"
)

const defaultBaseURL = "https://www.reddit.com"

// PublicClient fetches subreddit data through Reddit's public JSON endpoints.
// No credentials required, but the rate limit is strict.
type PublicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
}

type aboutResponse struct {
	Data struct {
		DisplayName       string `json:"display_name"`
		Title             string `json:"title"`
		PublicDescription string `json:"public_description"`
		Subscribers       int    `json:"subscribers"`
		ActiveUserCount   int    `json:"active_user_count"`
		Over18            bool   `json:"over18"`
	} `json:"data"`
}

type rulesResponse struct {
	Rules []struct {
		ShortName   string `json:"short_name"`
		Description string `json:"description"`
	} `json:"rules"`
}

type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Subreddit   string  `json:"subreddit_name_prefixed"`
				Author      string  `json:"author"`
				URL         string  `json:"url"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				SelfText    string  `json:"selftext"`
				IsSelf      bool    `json:"is_self"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func NewPublicClient(userAgent string) (*PublicClient, error) {
	return &PublicClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Public JSON Limit: 1 req / 2 seconds (Stricter)
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		userAgent: userAgent,
		baseURL:   defaultBaseURL,
	}, nil
}

// FetchSubredditInfo returns the community snapshot including its rules.
func (pc *PublicClient) FetchSubredditInfo(ctx context.Context, sub string) (*domain.SubredditInfo, error) {
	var about aboutResponse
	if err := pc.getJSON(ctx, sub, fmt.Sprintf("/r/%s/about.json", sub), &about); err != nil {
		return nil, err
	}

	rules, err := pc.fetchRules(ctx, sub)
	if err != nil {
		return nil, err
	}

	name := about.Data.DisplayName
	if name == "" {
		name = sub
	}
	return &domain.SubredditInfo{
		Name:        name,
		Title:       about.Data.Title,
		Description: about.Data.PublicDescription,
		Subscribers: about.Data.Subscribers,
		ActiveUsers: about.Data.ActiveUserCount,
		NSFW:        about.Data.Over18,
		Rules:       rules,
	}, nil
}

func (pc *PublicClient) fetchRules(ctx context.Context, sub string) ([]domain.Rule, error) {
	var resp rulesResponse
	if err := pc.getJSON(ctx, sub, fmt.Sprintf("/r/%s/about/rules.json", sub), &resp); err != nil {
		return nil, err
	}
	rules := make([]domain.Rule, 0, len(resp.Rules))
	for _, r := range resp.Rules {
		rules = append(rules, domain.Rule{Title: r.ShortName, Description: r.Description})
	}
	return rules, nil
}

// FetchTopPosts pages through the past year's top posts until limit is
// reached or the listing runs out.
func (pc *PublicClient) FetchTopPosts(ctx context.Context, sub string, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	after := ""
	for len(posts) < limit {
		pageSize := limit - len(posts)
		if pageSize > 100 {
			pageSize = 100
		}
		path := fmt.Sprintf("/r/%s/top.json?t=year&limit=%d", sub, pageSize)
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}

		var listing listingResponse
		if err := pc.getJSON(ctx, sub, path, &listing); err != nil {
			return nil, err
		}
		if len(listing.Data.Children) == 0 {
			break
		}
		for _, child := range listing.Data.Children {
			d := child.Data
			posts = append(posts, domain.Post{
				ID:           d.ID,
				Title:        d.Title,
				Subreddit:    d.Subreddit,
				Author:       d.Author,
				URL:          d.URL,
				Score:        d.Score,
				CommentCount: d.NumComments,
				CreatedUTC:   d.CreatedUTC,
				SelfText:     d.SelfText,
				IsSelf:       d.IsSelf,
			})
		}
		after = listing.Data.After
		if after == "" {
			break
		}
	}
	return posts, nil
}

func (pc *PublicClient) getJSON(ctx context.Context, sub, path string, out any) error {
	if err := pc.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", pc.userAgent)

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return &domain.NotFoundError{Subreddit: sub}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitError{Subreddit: sub}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("reddit public access status: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
