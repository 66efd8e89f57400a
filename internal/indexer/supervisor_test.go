package indexer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
)

type fakePairingStore struct {
	events  []model.ContractEvent
	schemas []model.AttestationSchema
	calls   int
}

func (s *fakePairingStore) ContractEvents(context.Context, uint64) ([]model.ContractEvent, error) {
	return s.events, nil
}

func (s *fakePairingStore) SupportedSchemas(context.Context, uint64) ([]model.AttestationSchema, error) {
	s.calls++
	return s.schemas, nil
}

func TestLoadPairingsAttachesSchemas(t *testing.T) {
	store := &fakePairingStore{
		events: []model.ContractEvent{
			{ContractID: uuid.New(), EventName: events.EventClaimStored},
			{ContractID: uuid.New(), EventName: events.EventAttested},
		},
		schemas: []model.AttestationSchema{{UID: "0x01"}},
	}
	pairings, err := LoadPairings(context.Background(), store, 10)
	require.NoError(t, err)
	require.Len(t, pairings, 2)
	assert.Empty(t, pairings[0].Schemas)
	assert.Len(t, pairings[1].Schemas, 1)
	assert.Equal(t, 1, store.calls)
}

func TestSupervisorStartStop(t *testing.T) {
	src := &fakeSource{head: 1000}
	var runs atomic.Int32
	sup := NewSupervisor(func(p Pairing) *Runner {
		return newTestRunner(t, p.EventName, src, newFakeCursors(), &fakeRecords{}, fakeReader{})
	}, nil, Task{Name: "reconcile", Run: func(ctx context.Context) error {
		runs.Add(1)
		<-ctx.Done()
		return nil
	}})

	pairings := []Pairing{
		{ContractEvent: model.ContractEvent{ChainID: 10, ContractAddress: minter, EventName: events.EventClaimStored}},
		{ContractEvent: model.ContractEvent{ChainID: 10, ContractAddress: minter, EventName: events.EventTransferSingle}},
	}
	h, err := sup.Start(context.Background(), pairings)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runs.Load() == 1 && src.callCount() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())
}

func TestSupervisorTaskErrorStopsAll(t *testing.T) {
	src := &fakeSource{head: 1000}
	sup := NewSupervisor(func(p Pairing) *Runner {
		return newTestRunner(t, p.EventName, src, newFakeCursors(), &fakeRecords{}, fakeReader{})
	}, nil, Task{Name: "metadata", Run: func(context.Context) error {
		return errors.New("bad config")
	}})

	h, err := sup.Start(context.Background(), []Pairing{
		{ContractEvent: model.ContractEvent{ChainID: 10, ContractAddress: minter, EventName: events.EventClaimStored}},
	})
	require.NoError(t, err)
	assert.EqualError(t, h.Wait(), "metadata: bad config")
}

func TestSupervisorRejectsDuplicatesAndEmpty(t *testing.T) {
	sup := NewSupervisor(func(Pairing) *Runner { return nil }, nil)
	_, err := sup.Start(context.Background(), nil)
	assert.Error(t, err)

	p := Pairing{ContractEvent: model.ContractEvent{ChainID: 10, ContractAddress: minter, EventName: events.EventClaimStored}}
	_, err = sup.Start(context.Background(), []Pairing{p, p})
	assert.Error(t, err)
}

func TestTrackerAdvanceNeverRewinds(t *testing.T) {
	cursors := newFakeCursors()
	tracker := NewTracker(cursors, &fakeSource{head: 300})
	contractID, eventID := uuid.New(), uuid.New()

	require.NoError(t, tracker.Advance(context.Background(), contractID, eventID, 250))
	require.NoError(t, tracker.Advance(context.Background(), contractID, eventID, 200))

	w, ok, err := tracker.NextWindow(context.Background(), contractID, eventID, 100, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, BlockRange{From: 250, To: 300}, w)
}
