package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"github.com/subpirate/analyzer/internal/domain"
)

// APIClient uses authenticated Reddit API access. The rules listing has no
// client-library coverage, so it rides on a public client with the same
// user agent.
type APIClient struct {
	client  *reddit.Client
	rules   *PublicClient
	limiter *rate.Limiter
}

func NewAPIClient(id, secret, user, pass, userAgent string) (*APIClient, error) {
	creds := reddit.Credentials{ID: id, Secret: secret, Username: user, Password: pass}

	client, err := reddit.NewClient(creds, reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}

	rules, err := NewPublicClient(userAgent)
	if err != nil {
		return nil, err
	}

	// API Rate Limit: ~60 reqs/min (safe buffer)
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)

	return &APIClient{client: client, rules: rules, limiter: limiter}, nil
}

func (ac *APIClient) FetchSubredditInfo(ctx context.Context, sub string) (*domain.SubredditInfo, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sr, _, err := ac.client.Subreddit.Get(ctx, sub)
	if err != nil {
		return nil, ac.mapError(sub, err)
	}

	rules, err := ac.rules.fetchRules(ctx, sub)
	if err != nil {
		return nil, err
	}

	active := 0
	if sr.ActiveUserCount != nil {
		active = *sr.ActiveUserCount
	}
	return &domain.SubredditInfo{
		Name:        sr.Name,
		Title:       sr.Title,
		Description: sr.Description,
		Subscribers: sr.Subscribers,
		ActiveUsers: active,
		NSFW:        sr.NSFW,
		Rules:       rules,
	}, nil
}

func (ac *APIClient) FetchTopPosts(ctx context.Context, sub string, limit int) ([]domain.Post, error) {
	var result []domain.Post
	after := ""
	for len(result) < limit {
		if err := ac.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		pageSize := limit - len(result)
		if pageSize > 100 {
			pageSize = 100
		}
		posts, resp, err := ac.client.Subreddit.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: pageSize, After: after},
			Time:        "year",
		})
		if err != nil {
			return nil, ac.mapError(sub, err)
		}
		if len(posts) == 0 {
			break
		}
		for _, p := range posts {
			result = append(result, domain.Post{
				ID:           p.ID,
				Title:        p.Title,
				Subreddit:    p.SubredditNamePrefixed,
				Author:       p.Author,
				URL:          p.URL,
				Score:        p.Score,
				CommentCount: p.NumberOfComments,
				CreatedUTC:   float64(p.Created.Time.Unix()),
				SelfText:     p.Body,
				IsSelf:       p.IsSelfPost,
			})
		}
		after = resp.After
		if after == "" {
			break
		}
	}
	return result, nil
}

// mapError translates client-library errors into the domain taxonomy.
func (ac *APIClient) mapError(sub string, err error) error {
	var errResp *reddit.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return &domain.NotFoundError{Subreddit: sub}
		case http.StatusTooManyRequests:
			return &domain.RateLimitError{Subreddit: sub}
		}
	}
	return fmt.Errorf("authenticated api error: %w", err)
}
