package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewEnvelope(t *testing.T) {
	payload := Payload{
		Name:     "team a",
		Username: "admin",
		UUID:     "3b8e6f4a-0b07-4b42-b5a7-ee2f0f7aaced",
	}
	envelope := NewEnvelope(EventGroupCreated, "54321", "1234567", payload)

	assert.Equal(t, "console", envelope.Bundle)
	assert.Equal(t, "rbac", envelope.Application)
	assert.Equal(t, EventGroupCreated, envelope.EventType)
	assert.Equal(t, "54321", envelope.AccountID)
	assert.Equal(t, "1234567", envelope.OrgID)
	assert.False(t, envelope.Timestamp.IsZero())
	require.Len(t, envelope.Events, 1)
	assert.Equal(t, payload, envelope.Events[0].Payload)
	assert.NotNil(t, envelope.Events[0].Metadata)
}

func TestHTTPNotifierDelivers(t *testing.T) {
	var received Envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(server.URL, discardLogger())
	envelope := NewEnvelope(EventGroupDeleted, "54321", "1234567", Payload{Name: "team a"})
	err := notifier.Notify(context.Background(), envelope)
	require.NoError(t, err)
	assert.Equal(t, EventGroupDeleted, received.EventType)
	assert.Equal(t, "team a", received.Events[0].Payload.Name)
}

func TestHTTPNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(server.URL, discardLogger())
	err := notifier.Notify(context.Background(), NewEnvelope(EventGroupUpdated, "", "", Payload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification service returned status 502")
}

func TestHTTPNotifierConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	notifier := NewHTTPNotifier(server.URL, discardLogger())
	err := notifier.Notify(context.Background(), NewEnvelope(EventGroupUpdated, "", "", Payload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deliver notification")
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier(discardLogger())
	err := notifier.Notify(context.Background(), NewEnvelope(EventGroupCreated, "54321", "1234567", Payload{}))
	assert.NoError(t, err)
}

func TestRecorder(t *testing.T) {
	recorder := &Recorder{}
	require.NoError(t, recorder.Notify(context.Background(), NewEnvelope(EventGroupCreated, "", "", Payload{})))
	require.NoError(t, recorder.Notify(context.Background(), NewEnvelope(EventGroupDeleted, "", "", Payload{})))

	assert.Equal(t, []EventType{EventGroupCreated, EventGroupDeleted}, recorder.EventTypes())
	require.Len(t, recorder.Envelopes, 2)
}
