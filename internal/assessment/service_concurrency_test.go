package assessment_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/questions"
	"github.com/jonathan/voice-coach/internal/state"
	"github.com/jonathan/voice-coach/internal/types"
)

// slowHistory holds each append long enough for concurrent requests to overlap.
type slowHistory struct {
	delay  time.Duration
	writes atomic.Int32
}

func (h *slowHistory) AppendSession(_ context.Context, username, email string, record *types.SessionRecord) (*types.UserHistory, error) {
	time.Sleep(h.delay)
	h.writes.Add(1)
	return &types.UserHistory{Username: username, Email: email, Sessions: []types.SessionRecord{*record}}, nil
}

func TestService_ConcurrentTerminateStoresOneRecord(t *testing.T) {
	bank, err := questions.Default()
	require.NoError(t, err)

	store := state.NewMemory(state.Config{})
	t.Cleanup(func() { _ = store.Close() })
	history := &slowHistory{delay: 20 * time.Millisecond}
	svc := assessment.NewService(
		state.NewDrafts(store, time.Minute),
		history,
		questions.NewPicker(bank, rand.NewSource(1)),
		assessment.NewAggregator(nil, nil),
		nil,
	)

	owner := &types.Practice{UserID: uuid.New(), Email: "proctored@example.com", Username: "Proctored"}
	draft, err := svc.Start(context.Background(), owner, types.SessionCommunication)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	var stored, rejected atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Terminate(context.Background(), owner, draft.ID, "left full screen")
			switch {
			case err == nil:
				stored.Add(1)
			case errors.Is(err, assessment.ErrAlreadyTaken), errors.Is(err, assessment.ErrNotFound):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), stored.Load())
	assert.Equal(t, int32(callers-1), rejected.Load())
	assert.Equal(t, int32(1), history.writes.Load())
}
