package httpx_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/catalogrpc"
	"github.com/jcmexdev/product-catalog/internal/pkg/config"
	"github.com/jcmexdev/product-catalog/internal/pkg/docstore"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
	"github.com/jcmexdev/product-catalog/internal/pkg/resilience"
	"github.com/jcmexdev/product-catalog/internal/pkg/runner"
	"github.com/jcmexdev/product-catalog/internal/product-composite/core/service"
	adapters "github.com/jcmexdev/product-catalog/internal/product-composite/infra/adapters/service"
	"github.com/jcmexdev/product-catalog/internal/product-composite/infra/httpx"
	productapp "github.com/jcmexdev/product-catalog/internal/product-service/app"
	productstore "github.com/jcmexdev/product-catalog/internal/product-service/adapters/store"
	recommendationapp "github.com/jcmexdev/product-catalog/internal/recommendation-service/app"
	recommendationstore "github.com/jcmexdev/product-catalog/internal/recommendation-service/adapters/store"
	reviewapp "github.com/jcmexdev/product-catalog/internal/review-service/app"
	reviewstore "github.com/jcmexdev/product-catalog/internal/review-service/adapters/store"
)

const group = "e2e"

type catalogStack struct {
	broker *messaging.Broker
	server *httptest.Server
}

// startDownstream runs one downstream service on an in-process listener and
// returns a client connection to it.
func startDownstream(t *testing.T, ctx context.Context, d runner.Downstream) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	d.Listener = lis
	d.Config = config.Config{Service: config.ServiceConfig{ConsumerGroup: group}}
	go func() { _ = d.Run(ctx) }()

	cc, err := catalogrpc.Dial("passthrough:///"+d.Name, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func newCatalogStack(t *testing.T) *catalogStack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := messaging.NewBroker()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	products := productstore.NewRepository(docstore.NewMemoryStore())
	productConn := startDownstream(t, ctx, runner.Downstream{
		Name:   "product-service",
		Domain: catalog.DomainProduct,
		Logger: logger,
		Register: func(s *grpc.Server) {
			catalogrpc.RegisterProductServer(s, productapp.NewProductServer(products, "product/test", logger))
		},
		Applier:    productapp.NewApplier(products),
		Subscriber: broker,
	})

	recommendations := recommendationstore.NewRepository(docstore.NewMemoryStore())
	recommendationConn := startDownstream(t, ctx, runner.Downstream{
		Name:   "recommendation-service",
		Domain: catalog.DomainRecommendation,
		Logger: logger,
		Register: func(s *grpc.Server) {
			catalogrpc.RegisterRecommendationServer(s, recommendationapp.NewRecommendationServer(recommendations, "recommendation/test", logger))
		},
		Applier:    recommendationapp.NewApplier(recommendations),
		Subscriber: broker,
	})

	reviews := reviewstore.NewRepository(docstore.NewMemoryStore())
	reviewConn := startDownstream(t, ctx, runner.Downstream{
		Name:   "review-service",
		Domain: catalog.DomainReview,
		Logger: logger,
		Register: func(s *grpc.Server) {
			catalogrpc.RegisterReviewServer(s, reviewapp.NewReviewServer(reviews, "review/test", logger))
		},
		Applier:    reviewapp.NewApplier(reviews),
		Subscriber: broker,
	})

	registry := resilience.NewRegistry()
	for _, d := range catalog.Domains {
		registry.Register(string(d), resilience.Config{Timeout: 2 * time.Second}, resilience.WithLogger(logger))
	}
	policies, err := service.PoliciesFrom(registry)
	require.NoError(t, err)

	aggregator := service.NewAggregator(
		adapters.NewGRPCProductService(productConn),
		adapters.NewGRPCRecommendationService(recommendationConn),
		adapters.NewGRPCReviewService(reviewConn),
		policies, "composite/test", logger,
	)
	handler := httpx.NewHandler(aggregator, service.NewWriter(broker, logger), registry, logger)
	srv := httptest.NewServer(httpx.NewRouter(handler))
	t.Cleanup(srv.Close)

	return &catalogStack{broker: broker, server: srv}
}

func (s *catalogStack) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *catalogStack) waitForConsumers(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, d := range catalog.Domains {
			if s.broker.Lag(d.Topic(), group) != 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCompositeLifecycle(t *testing.T) {
	stack := newCatalogStack(t)

	resp := stack.do(t, http.MethodPost, "/composite", `{
		"productKey": "P1", "name": "widget", "weight": 10,
		"recommendations": [
			{"recommendationId": 1, "author": "a", "rate": 5, "content": "good"},
			{"recommendationId": 2, "author": "b", "rate": 3, "content": "ok"}
		],
		"reviews": [{"reviewId": 1, "author": "c", "subject": "s", "content": "fine"}]
	}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	stack.waitForConsumers(t)

	resp = stack.do(t, http.MethodGet, "/composite/P1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got httpx.ProductAggregateDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "P1", got.ProductKey)
	assert.Equal(t, "widget", got.Name)
	assert.Equal(t, 10, got.Weight)
	require.Len(t, got.Recommendations, 2)
	assert.Equal(t, 1, got.Recommendations[0].RecommendationID)
	assert.Equal(t, 2, got.Recommendations[1].RecommendationID)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, "fine", got.Reviews[0].Content)
	assert.False(t, got.Provenance.Degraded)
	assert.Equal(t, "composite/test", got.ServiceAddresses.Composite)
	assert.Equal(t, "product/test", got.ServiceAddresses.Product)
	assert.Equal(t, "recommendation/test", got.ServiceAddresses.Recommendation)
	assert.Equal(t, "review/test", got.ServiceAddresses.Review)

	resp = stack.do(t, http.MethodDelete, "/composite/P1", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	stack.waitForConsumers(t)

	resp = stack.do(t, http.MethodGet, "/composite/P1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompositeCreateWithoutChildren(t *testing.T) {
	stack := newCatalogStack(t)

	resp := stack.do(t, http.MethodPost, "/composite", `{"productKey": "P2", "name": "bolt", "weight": 1}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	stack.waitForConsumers(t)

	assert.Len(t, stack.broker.Events("products"), 1)
	assert.Empty(t, stack.broker.Events("recommendations"))
	assert.Empty(t, stack.broker.Events("reviews"))

	resp = stack.do(t, http.MethodGet, "/composite/P2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got httpx.ProductAggregateDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotNil(t, got.Recommendations)
	assert.Empty(t, got.Recommendations)
	assert.Empty(t, got.Reviews)
	assert.False(t, got.Provenance.Degraded)
}

func TestCompositeDeleteOfUnknownProductIsAccepted(t *testing.T) {
	stack := newCatalogStack(t)

	resp := stack.do(t, http.MethodDelete, "/composite/P404", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	stack.waitForConsumers(t)
}

func TestCompositeFaultInjection(t *testing.T) {
	stack := newCatalogStack(t)

	resp := stack.do(t, http.MethodPost, "/composite", `{"productKey": "P3", "name": "nut", "weight": 2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	stack.waitForConsumers(t)

	resp = stack.do(t, http.MethodGet, "/composite/P3?faultPercent=100", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = stack.do(t, http.MethodGet, "/composite/resilience", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snaps httpx.ResilienceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snaps))
	assert.Len(t, snaps.Policies, 3)
}
