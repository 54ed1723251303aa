package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const whaleQuery = `query Whales($token: String!, $minTransfer: BigDecimal!) {
  token(id: $token) { totalSupply }
  holders: accountBalances(first: 100, orderBy: amount, orderDirection: desc, where: { token: $token }) {
    account { id }
    amount
  }
  transfers(first: 20, orderBy: timestamp, orderDirection: desc, where: { token: $token, amount_gte: $minTransfer }) {
    from
    to
    amount
    timestamp
    transaction
  }
}`

// Subgraph queries a token-holder subgraph over GraphQL for whale data.
type Subgraph struct {
	endpoint    string
	minTransfer string
	client      *http.Client
}

// NewSubgraph targets endpoint; transfers smaller than minTransfer tokens are
// not reported as large.
func NewSubgraph(endpoint string, minTransfer float64, client *http.Client) *Subgraph {
	if minTransfer <= 0 {
		minTransfer = 100000
	}
	return &Subgraph{
		endpoint:    endpoint,
		minTransfer: fmt.Sprintf("%.0f", minTransfer),
		client:      defaultClient(client, 15*time.Second),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (s *Subgraph) FetchWhaleActivity(ctx context.Context, contract string) (WhaleActivity, error) {
	if s.endpoint == "" {
		return WhaleActivity{}, errors.New("subgraph: endpoint not configured")
	}
	token := strings.ToLower(strings.TrimSpace(contract))
	payload, err := json.Marshal(graphQLRequest{
		Query:     whaleQuery,
		Variables: map[string]any{"token": token, "minTransfer": s.minTransfer},
	})
	if err != nil {
		return WhaleActivity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return WhaleActivity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := fetch(s.client, req, "subgraph")
	if err != nil {
		return WhaleActivity{}, err
	}
	return parseWhaleActivity(body, token)
}

func parseWhaleActivity(body []byte, token string) (WhaleActivity, error) {
	if !gjson.ValidBytes(body) {
		return WhaleActivity{}, errors.New("subgraph: malformed response")
	}
	root := gjson.ParseBytes(body)
	if errs := root.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return WhaleActivity{}, fmt.Errorf("subgraph: %s", errs.Get("0.message").String())
	}
	data := root.Get("data")
	if !data.Get("token").Exists() || data.Get("token").Type == gjson.Null {
		return WhaleActivity{}, fmt.Errorf("subgraph: %w for %s", ErrUnavailable, token)
	}

	activity := WhaleActivity{
		Contract:    token,
		TotalSupply: data.Get("token.totalSupply").Float(),
	}
	for _, h := range data.Get("holders").Array() {
		activity.Holders = append(activity.Holders, Holder{
			Address: h.Get("account.id").String(),
			Balance: h.Get("amount").Float(),
		})
	}
	for _, t := range data.Get("transfers").Array() {
		activity.LargeTransfers = append(activity.LargeTransfers, Transfer{
			From:      t.Get("from").String(),
			To:        t.Get("to").String(),
			Amount:    t.Get("amount").Float(),
			TxHash:    t.Get("transaction").String(),
			Timestamp: time.Unix(t.Get("timestamp").Int(), 0).UTC(),
		})
	}
	return activity, nil
}
