package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(KindDatasetInserted, 1, 2)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, KindDatasetInserted, e.Kind)
	assert.Equal(t, []int64{1, 2}, e.DatasetIDs)
	assert.False(t, e.Timestamp.IsZero())
}

func TestWebhook_DeliversEvents(t *testing.T) {
	var got atomic.Int64
	var lastKind atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		lastKind.Store(string(e.Kind))
		got.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WebhookOptions{RatePerSec: 1000, Burst: 1000})
	w.Publish(NewEvent(KindDatasetInserted, 1))
	w.Publish(NewEvent(KindDatasetDeleted, 2))
	w.Close()

	assert.Equal(t, int64(2), got.Load())
	assert.Equal(t, string(KindDatasetDeleted), lastKind.Load())
}

func TestWebhook_PublishNeverBlocksWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WebhookOptions{QueueSize: 1, RatePerSec: 1000, Burst: 1000})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			w.Publish(NewEvent(KindDatasetInserted, int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	close(blocked)
	w.Close()
}

func TestWebhook_SwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WebhookOptions{RatePerSec: 1000, Burst: 1000})
	w.Publish(NewEvent(KindDatasetInserted, 1))
	w.Close()
}
