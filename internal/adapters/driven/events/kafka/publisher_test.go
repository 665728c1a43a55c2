package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func testRecords() []domain.Opportunity {
	posted := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Opportunity{
		{ID: "abc123", Title: "Generator maintenance", CountryCode: "KEN", CountryName: "Kenya", PostedDate: posted, Active: true, Source: "current"},
		{ID: "h-9f2e", Title: "Office supplies", CountryCode: "GHA", CountryName: "Ghana", PostedDate: posted, Source: "FY2024"},
	}
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	writer := &mockWriter{}
	pub := NewPublisherWithWriter(writer)
	pub.now = func() time.Time { return time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC) }

	var sent []kafka.Message
	writer.On("WriteMessages", ctx, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil)

	require.NoError(t, pub.Publish(ctx, "run-1", testRecords()))

	require.Len(t, sent, 2)
	assert.Equal(t, "abc123", string(sent[0].Key))
	assert.Equal(t, "h-9f2e", string(sent[1].Key))
	assert.Equal(t, pub.now(), sent[0].Time)

	var ev Event
	require.NoError(t, json.Unmarshal(sent[0].Value, &ev))
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "KEN", ev.CountryCode)
	assert.Equal(t, "2024-03-01", ev.PostedDate)
	assert.True(t, ev.Active)
	writer.AssertExpectations(t)
}

func TestPublisher_PublishEmpty(t *testing.T) {
	writer := &mockWriter{}
	pub := NewPublisherWithWriter(writer)

	require.NoError(t, pub.Publish(context.Background(), "run-1", nil))
	writer.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}

func TestPublisher_PublishError(t *testing.T) {
	ctx := context.Background()
	writer := &mockWriter{}
	writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("broker unavailable"))

	err := NewPublisherWithWriter(writer).Publish(ctx, "run-1", testRecords())

	assert.EqualError(t, err, "broker unavailable")
}

func TestPublisher_Close(t *testing.T) {
	writer := &mockWriter{}
	writer.On("Close").Return(nil)

	require.NoError(t, NewPublisherWithWriter(writer).Close())
	writer.AssertExpectations(t)
}
