package pancakeswap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// PageSize is the subgraph's maximum page size.
const PageSize = 1000

const metaQuery = `query getSubgraphMeta {
  _meta {
    hasIndexingErrors
    block {
      hash
      timestamp
      number
    }
  }
}`

const accountSwapsQuery = `query getAccountSwaps(
  $account: Bytes!
  $tokenIn: Bytes!
  $tokenOut: Bytes!
  $since: BigInt!
  $until: BigInt!
  $skip: Int
) {
  swaps(
    where: {
      account_: { id: $account }
      tokenIn_: { id: $tokenIn }
      tokenOut_: { id: $tokenOut }
      timestamp_gte: $since
      timestamp_lt: $until
    }
    first: 1000
    skip: $skip
    orderBy: nonce
    orderDirection: asc
  ) {
    id
    hash
    nonce
    timestamp
    amountIn
    amountOut
    tokenIn {
      id
      decimals
    }
    tokenOut {
      id
      decimals
    }
  }
}`

// flexInt decodes a JSON number or a numeric string; the subgraph sends
// BigInt fields as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*f = flexInt(v)
	return nil
}

type subgraphMeta struct {
	HasIndexingErrors bool `json:"hasIndexingErrors"`
	Block             struct {
		Hash      string  `json:"hash"`
		Number    flexInt `json:"number"`
		Timestamp flexInt `json:"timestamp"`
	} `json:"block"`
}

type subgraphToken struct {
	ID       string  `json:"id"`
	Decimals flexInt `json:"decimals"`
}

type subgraphSwap struct {
	ID        string        `json:"id"`
	Hash      string        `json:"hash"`
	Nonce     string        `json:"nonce"`
	Timestamp flexInt       `json:"timestamp"`
	AmountIn  string        `json:"amountIn"`
	AmountOut string        `json:"amountOut"`
	TokenIn   subgraphToken `json:"tokenIn"`
	TokenOut  subgraphToken `json:"tokenOut"`
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// subgraphClient is a minimal GraphQL-over-HTTP client.
type subgraphClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func (s *subgraphClient) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	err := s.limiter.Wait(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	err = json.Unmarshal(body, &gqlResp)
	if err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		messages := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			messages = append(messages, e.Message)
		}
		return fmt.Errorf("graph client error: %s", strings.Join(messages, "; "))
	}

	err = json.Unmarshal(gqlResp.Data, out)
	if err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

func (s *subgraphClient) meta(ctx context.Context) (subgraphMeta, error) {
	var data struct {
		Meta subgraphMeta `json:"_meta"`
	}
	err := s.query(ctx, metaQuery, nil, &data)
	return data.Meta, err
}

func (s *subgraphClient) swaps(ctx context.Context, account, tokenIn, tokenOut string, since, until int64, skip int) ([]subgraphSwap, error) {
	var data struct {
		Swaps []subgraphSwap `json:"swaps"`
	}
	err := s.query(ctx, accountSwapsQuery, map[string]interface{}{
		"account":  account,
		"tokenIn":  tokenIn,
		"tokenOut": tokenOut,
		"since":    strconv.FormatInt(since, 10),
		"until":    strconv.FormatInt(until, 10),
		"skip":     skip,
	}, &data)
	return data.Swaps, err
}
