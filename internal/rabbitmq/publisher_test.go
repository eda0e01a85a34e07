package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	type event struct {
		UserID string `json:"user_id"`
		Source string `json:"source"`
	}

	t.Run("publishes persistent json", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("Publish", Exchange, RoutingExpired, false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
			var got event
			if err := json.Unmarshal(p.Body, &got); err != nil {
				return false
			}
			return p.ContentType == "application/json" &&
				p.DeliveryMode == amqp.Persistent &&
				got == event{UserID: "kp_1", Source: "sweep"}
		})).Return(nil).Once()

		err := NewPublisher(ch).Publish(context.Background(), RoutingExpired, event{UserID: "kp_1", Source: "sweep"})
		require.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("channel error is wrapped", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).
			Return(errors.New("channel closed")).Once()

		err := NewPublisher(ch).Publish(context.Background(), RoutingChanged, event{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.Publish: channel closed")
	})

	t.Run("unmarshalable message", func(t *testing.T) {
		ch := new(MockChannel)
		err := NewPublisher(ch).Publish(context.Background(), RoutingChanged, make(chan int))
		require.Error(t, err)
		ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ch := new(MockChannel)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewPublisher(ch).Publish(ctx, RoutingExpired, event{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetPlanQueues(t *testing.T) {
	queues := GetPlanQueues()
	require.Len(t, queues, 2)
	keys := []string{queues[0].RoutingKey, queues[1].RoutingKey}
	assert.ElementsMatch(t, []string{RoutingExpired, RoutingChanged}, keys)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), RoutingExpired, nil))
}
