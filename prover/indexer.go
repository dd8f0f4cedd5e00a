package prover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/kysee/amaci-core/addnewkey"
	"github.com/kysee/amaci-core/field"
	"github.com/rs/zerolog/log"
)

// ErrIndexerUnavailable is surfaced once the retry budget in GraphQLIndexer.call
// is exhausted: a transport-layer failure is retried and only escalated
// to a fatal error after retries are spent.
var ErrIndexerUnavailable = errors.New("prover: indexer unavailable")

// Indexer resolves deactivate logs and sign-up events the operator and
// voter client need but cannot derive from their own in-memory state.
type Indexer interface {
	FetchAllDeactivateLogs(ctx context.Context, contractAddress string) ([]addnewkey.Leaf, error)
	GetSignUpEventByPubKey(ctx context.Context, contractAddress string, pk *field.Point) (*uint64, error)
}

// GraphQLIndexer implements Indexer over a GraphQL endpoint. It retries
// transient transport failures with a fixed backoff before surfacing
// ErrIndexerUnavailable; GraphQL-level errors are not retried.
type GraphQLIndexer struct {
	Endpoint   string
	Client     *http.Client
	MaxRetries int
	RetryDelay time.Duration
}

// NewGraphQLIndexer constructs an Indexer against endpoint with sane
// retry defaults.
func NewGraphQLIndexer(endpoint string) *GraphQLIndexer {
	return &GraphQLIndexer{
		Endpoint:   endpoint,
		Client:     &http.Client{Timeout: 15 * time.Second},
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// call posts a GraphQL query, retrying transport errors up to MaxRetries
// times before returning ErrIndexerUnavailable.
func (g *GraphQLIndexer) call(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("prover: marshal graphql request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Int("attempt", attempt).Msg("retrying indexer request")
			select {
			case <-time.After(g.RetryDelay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrIndexerUnavailable, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("prover: build graphql request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		var gr graphqlResponse
		decErr := json.NewDecoder(resp.Body).Decode(&gr)
		resp.Body.Close()
		if decErr != nil {
			lastErr = decErr
			continue
		}
		if len(gr.Errors) > 0 {
			return fmt.Errorf("prover: graphql error: %s", gr.Errors[0].Message)
		}
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return fmt.Errorf("prover: unmarshal graphql data: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrIndexerUnavailable, lastErr)
}

type deactivateLogRow struct {
	C1X string `json:"c1x"`
	C1Y string `json:"c1y"`
	C2X string `json:"c2x"`
	C2Y string `json:"c2y"`
	H   string `json:"h"`
}

// FetchAllDeactivateLogs retrieves every deactivate-tree entry the
// contract has emitted, in append order.
func (g *GraphQLIndexer) FetchAllDeactivateLogs(ctx context.Context, contractAddress string) ([]addnewkey.Leaf, error) {
	const query = `query($contract: String!) {
		deactivateLogs(contract: $contract) { c1x c1y c2x c2y h }
	}`
	var result struct {
		DeactivateLogs []deactivateLogRow `json:"deactivateLogs"`
	}
	if err := g.call(ctx, query, map[string]any{"contract": contractAddress}, &result); err != nil {
		return nil, err
	}

	leaves := make([]addnewkey.Leaf, len(result.DeactivateLogs))
	for i, row := range result.DeactivateLogs {
		c1x, err := parseDecimal(row.C1X)
		if err != nil {
			return nil, err
		}
		c1y, err := parseDecimal(row.C1Y)
		if err != nil {
			return nil, err
		}
		c2x, err := parseDecimal(row.C2X)
		if err != nil {
			return nil, err
		}
		c2y, err := parseDecimal(row.C2Y)
		if err != nil {
			return nil, err
		}
		h, err := parseDecimal(row.H)
		if err != nil {
			return nil, err
		}
		leaves[i] = addnewkey.Leaf{
			C1:            &field.Point{X: c1x, Y: c1y},
			C2:            &field.Point{X: c2x, Y: c2y},
			SharedKeyHash: h,
		}
	}
	return leaves, nil
}

// GetSignUpEventByPubKey resolves the state index a voter signed up at,
// or nil if no sign-up event matches pk.
func (g *GraphQLIndexer) GetSignUpEventByPubKey(ctx context.Context, contractAddress string, pk *field.Point) (*uint64, error) {
	const query = `query($contract: String!, $pkx: String!, $pky: String!) {
		signUpEvent(contract: $contract, pubKeyX: $pkx, pubKeyY: $pky) { stateIndex }
	}`
	var result struct {
		SignUpEvent *struct {
			StateIndex uint64 `json:"stateIndex"`
		} `json:"signUpEvent"`
	}
	vars := map[string]any{
		"contract": contractAddress,
		"pkx":      pk.X.String(),
		"pky":      pk.Y.String(),
	}
	if err := g.call(ctx, query, vars, &result); err != nil {
		return nil, err
	}
	if result.SignUpEvent == nil {
		return nil, nil
	}
	idx := result.SignUpEvent.StateIndex
	return &idx, nil
}

func parseDecimal(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("prover: invalid decimal field element %q", s)
	}
	return n, nil
}
