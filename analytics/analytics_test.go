package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePub struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	block    chan struct{}
	err      error
}

func (f *fakePub) Publish(subject string, data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func TestNATSTracker_PublishesPerEventSubject(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePub{}
	tr := NewNATSTracker(pub, Config{}, nil)
	tr.Track(EventFormSuccess, map[string]string{"form": "waitlist"})
	tr.Close()

	require.Equal(t, []string{"buildboard.analytics.form_success"}, pub.subjects)
	var m message
	require.NoError(t, json.Unmarshal(pub.payloads[0], &m))
	assert.Equal(t, EventFormSuccess, m.Event)
	assert.Equal(t, "waitlist", m.Params["form"])
	assert.NotZero(t, m.TS)
}

func TestNATSTracker_DropsOnOverflow(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePub{block: make(chan struct{})}
	tr := NewNATSTracker(pub, Config{Buffer: 1, Subject: "bb."}, nil)
	for i := 0; i < 10; i++ {
		tr.Track(EventNavClick, nil) // must not block even though the publisher is stuck
	}
	assert.Positive(t, tr.Dropped())
	close(pub.block)
	tr.Close()

	for _, s := range pub.subjects {
		assert.Equal(t, "bb.nav_click", s)
	}
}

func TestNATSTracker_TrackAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := NewNATSTracker(&fakePub{}, Config{}, nil)
	tr.Close()
	assert.NotPanics(t, func() { tr.Track(EventFormSubmit, nil) })
	assert.Equal(t, int64(1), tr.Dropped())
	tr.Close()
}

func TestNATSTracker_PublishErrorCounted(t *testing.T) {
	pub := &fakePub{err: errors.New("nats: connection closed")}
	tr := NewNATSTracker(pub, Config{}, nil)
	tr.Track(EventFormError, nil)
	tr.Close()
	assert.Equal(t, int64(1), tr.Dropped())
}

type panicky struct{}

func (panicky) Track(string, map[string]string) { panic("boom") }

func TestSafe_RecoversPanics(t *testing.T) {
	assert.NotPanics(t, func() { Safe(panicky{}).Track(EventNavClick, nil) })
	assert.NotPanics(t, func() { Safe(nil).Track(EventNavClick, nil) })
}

func TestOpen_UnconfiguredFallsBackToLog(t *testing.T) {
	tr, closeFn := Open(context.Background(), Config{}, nil)
	defer closeFn()
	_, ok := tr.(LogTracker)
	assert.True(t, ok)
	assert.NotPanics(t, func() { tr.Track(EventNavClick, map[string]string{"section": "signup"}) })
}

func TestOpen_UnreachableNATSFallsBackToLog(t *testing.T) {
	tr, closeFn := Open(context.Background(), Config{NATSURL: "nats://127.0.0.1:1"}, nil)
	defer closeFn()
	_, ok := tr.(LogTracker)
	assert.True(t, ok)
}

func TestNATSTracker_TrackRacingClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePub{}
	tr := NewNATSTracker(pub, Config{Buffer: 4096}, nil)

	const senders, perSender = 8, 200
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for range perSender {
				tr.Track(EventNavClick, map[string]string{"section": "hero"})
			}
		}()
	}
	close(start)
	tr.Close()
	wg.Wait()

	pub.mu.Lock()
	delivered := int64(len(pub.subjects))
	pub.mu.Unlock()
	assert.Equal(t, int64(senders*perSender), delivered+tr.Dropped())
}
