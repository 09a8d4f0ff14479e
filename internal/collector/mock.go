package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/subpirate/analyzer/internal/domain"
)

// MockClient implements domain.Collector but returns fake data
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (mc *MockClient) FetchSubredditInfo(ctx context.Context, sub string) (*domain.SubredditInfo, error) {
	// Simulate network latency (nice for testing concurrency)
	time.Sleep(200 * time.Millisecond)

	return &domain.SubredditInfo{
		Name:        sub,
		Title:       fmt.Sprintf("r/%s simulated community", sub),
		Description: "Simulated subreddit for local development",
		Subscribers: 5000 + rand.Intn(50000),
		ActiveUsers: 100 + rand.Intn(900),
		Rules: []domain.Rule{
			{Title: "Be civil", Description: "Treat everyone with respect."},
			{Title: "No spam", Description: "Spam and low-effort reposts will be removed."},
		},
	}, nil
}

func (mc *MockClient) FetchTopPosts(ctx context.Context, sub string, limit int) ([]domain.Post, error) {
	time.Sleep(200 * time.Millisecond)

	var posts []domain.Post
	now := time.Now()
	for i := 0; i < limit && i < 100; i++ {
		posts = append(posts, domain.Post{
			ID:           fmt.Sprintf("mock_%s_%d", sub, i),
			Title:        fmt.Sprintf("How to get started with %s, part %d", sub, i),
			Subreddit:    "r/" + sub,
			Author:       "simulated_user",
			URL:          "http://localhost/mock-url",
			Score:        rand.Intn(500),
			CommentCount: rand.Intn(50),
			CreatedUTC:   float64(now.Add(-time.Duration(rand.Intn(720)) * time.Hour).Unix()),
			IsSelf:       i%2 == 0,
		})
	}
	return posts, nil
}
