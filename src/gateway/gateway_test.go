package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopGateway struct {
	Gateway
	submitted []SubmitRequest
}

func (g *nopGateway) SubmitOrder(ctx context.Context, req SubmitRequest) (string, error) {
	g.submitted = append(g.submitted, req)
	return "ord-1", nil
}

type pushGateway struct {
	nopGateway
}

func (g *pushGateway) SubscribeOrderChanges(ctx context.Context) (<-chan PushEvent, func(), error) {
	ch := make(chan PushEvent)
	return ch, func() {}, nil
}

func TestCheckCapabilities(t *testing.T) {
	_, err := CheckCapabilities(nil)
	require.ErrorIs(t, err, ErrNilGateway)

	caps, err := CheckCapabilities(&nopGateway{})
	require.NoError(t, err)
	assert.Nil(t, caps.Push)

	l := NewRateLimiter(testConfig(time.Millisecond))
	defer l.Stop()

	caps, err = CheckCapabilities(NewLimited(&pushGateway{}, l))
	require.NoError(t, err)
	assert.NotNil(t, caps.Push)
}

func TestLimitedForwardsCalls(t *testing.T) {
	l := NewRateLimiter(testConfig(time.Millisecond))
	defer l.Stop()

	inner := &nopGateway{}
	g := NewLimited(inner, l)

	id, err := g.SubmitOrder(context.Background(), SubmitRequest{Symbol: "AAPL.US", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", id)
	require.Len(t, inner.submitted, 1)
	assert.Equal(t, "AAPL.US", inner.submitted[0].Symbol)
}
