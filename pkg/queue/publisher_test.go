package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/payvide/payworker/pkg/errs"
)

// MockDriver is a mock implementation of the Driver interface
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Pop(ctx context.Context, queueName string) (*Job, error) {
	args := m.Called(ctx, queueName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *MockDriver) Push(ctx context.Context, queueName string, body []byte, priority Priority, delay time.Duration) error {
	args := m.Called(ctx, queueName, body, priority, delay)
	return args.Error(0)
}

func (m *MockDriver) Ack(ctx context.Context, job *Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func TestPublisher_Dispatch(t *testing.T) {
	mockDriver := new(MockDriver)
	publisher := NewPublisher(mockDriver)

	payload := map[string]any{
		"orderId": "ORD-55",
		"amount":  "12.00",
		"tags":    []string{"retail", "web"},
	}

	mockDriver.On("Push", mock.Anything, "payments", mock.Anything, PriorityHigh, 5*time.Second).
		Return(nil).
		Run(func(args mock.Arguments) {
			body := args.Get(2).([]byte)

			var env Envelope
			err := json.Unmarshal(body, &env)
			assert.NoError(t, err)

			assert.NotEmpty(t, env.ID)
			assert.Equal(t, "payments", env.Queue)
			assert.Equal(t, "payment:create", env.Operation)
			assert.Equal(t, PriorityHigh, env.Priority)
			assert.Equal(t, "ORD-55", env.Payload["orderId"])
			assert.Equal(t, 5, env.MaxAttempts)
			assert.Equal(t, 100, env.BackoffBaseMs)
		})

	env, err := publisher.Dispatch(context.Background(), "payments", "payment:create", payload,
		WithPriority(PriorityHigh),
		WithDelay(5*time.Second),
		WithMaxAttempts(5),
		WithBackoffBase(100*time.Millisecond),
	)
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)

	mockDriver.AssertExpectations(t)
}

func TestPublisher_Defaults(t *testing.T) {
	mockDriver := new(MockDriver)
	publisher := NewPublisher(mockDriver)

	mockDriver.On("Push", mock.Anything, "payments", mock.Anything, PriorityMedium, time.Duration(0)).Return(nil)

	env, err := publisher.Dispatch(context.Background(), "payments", "payment:sweep", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, env.Priority)
	assert.Equal(t, 3, env.MaxAttempts)
	assert.Equal(t, 2000, env.BackoffBaseMs)

	mockDriver.AssertExpectations(t)
}

func TestPublisher_RejectsNonPrimitivePayload(t *testing.T) {
	mockDriver := new(MockDriver)
	publisher := NewPublisher(mockDriver)

	_, err := publisher.Dispatch(context.Background(), "payments", "payment:create", map[string]any{
		"customer": map[string]any{"email": "x@y.z"},
	})
	require.Error(t, err)
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)

	mockDriver.AssertNotCalled(t, "Push")
}

func TestValidatePayload(t *testing.T) {
	ok := map[string]any{
		"str":    "x",
		"int":    3,
		"float":  1.5,
		"bool":   true,
		"nil":    nil,
		"list":   []string{"a", "b"},
		"anyArr": []any{"a", 1, 2.5},
	}
	assert.NoError(t, ValidatePayload(ok))

	for name, bad := range map[string]any{
		"map":       map[string]string{"k": "v"},
		"struct":    struct{ X int }{1},
		"chan":      make(chan int),
		"func":      func() {},
		"nestedArr": []any{[]any{"deep"}},
	} {
		err := ValidatePayload(map[string]any{name: bad})
		var ve *errs.ValidationError
		assert.ErrorAs(t, err, &ve, "value kind %s", name)
	}
}

func TestEnvelope_BackoffDelay(t *testing.T) {
	env := &Envelope{BackoffBaseMs: 100}

	env.Attempts = 1
	assert.Equal(t, 100*time.Millisecond, env.BackoffDelay())
	env.Attempts = 2
	assert.Equal(t, 200*time.Millisecond, env.BackoffDelay())
	env.Attempts = 3
	assert.Equal(t, 400*time.Millisecond, env.BackoffDelay())

	// Zero base falls back to the default rather than busy-looping.
	zero := &Envelope{Attempts: 1}
	assert.Equal(t, 2*time.Second, zero.BackoffDelay())
}
