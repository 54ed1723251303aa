package tools

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"token_analyst/sentiment"
)

// SocialFeed reads posts mentioning a topic from an HTTP JSON endpoint. The
// endpoint answers either a bare array or {"posts": [...]}, each element
// carrying account_id and content.
type SocialFeed struct {
	endpoint string
	client   *http.Client
}

func NewSocialFeed(endpoint string, client *http.Client) *SocialFeed {
	return &SocialFeed{endpoint: endpoint, client: defaultClient(client, 10*time.Second)}
}

func (s *SocialFeed) FetchSentiment(ctx context.Context, topic string) ([]sentiment.Post, error) {
	if s.endpoint == "" {
		return nil, errors.New("social feed: endpoint not configured")
	}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", topic)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	body, err := fetch(s.client, req, "social feed")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("social feed: malformed response")
	}

	list := gjson.GetBytes(body, "posts")
	if !list.Exists() {
		list = gjson.ParseBytes(body)
	}
	var posts []sentiment.Post
	for _, item := range list.Array() {
		posts = append(posts, sentiment.Post{
			AccountID: item.Get("account_id").String(),
			Content:   item.Get("content").String(),
		})
	}
	return posts, nil
}
