package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
)

// Task is a background loop run next to the pairing runners, such as the
// allow-list reconciler.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// PairingStore lists the pairings seeded for a chain.
type PairingStore interface {
	ContractEvents(ctx context.Context, chainID uint64) ([]model.ContractEvent, error)
	SupportedSchemas(ctx context.Context, chainID uint64) ([]model.AttestationSchema, error)
}

// LoadPairings returns the pairings of a chain. Attested pairings get the
// chain's supported schemas.
func LoadPairings(ctx context.Context, store PairingStore, chainID uint64) ([]Pairing, error) {
	contractEvents, err := store.ContractEvents(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("load pairings: %w", err)
	}
	var schemas []model.AttestationSchema
	for _, ce := range contractEvents {
		if ce.EventName == events.EventAttested {
			if schemas, err = store.SupportedSchemas(ctx, chainID); err != nil {
				return nil, fmt.Errorf("load schemas: %w", err)
			}
			break
		}
	}

	out := make([]Pairing, 0, len(contractEvents))
	for _, ce := range contractEvents {
		p := Pairing{ContractEvent: ce}
		if ce.EventName == events.EventAttested {
			p.Schemas = schemas
		}
		out = append(out, p)
	}
	return out, nil
}

// Supervisor starts one Runner per pairing plus the background tasks.
type Supervisor struct {
	newRunner func(Pairing) *Runner
	tasks     []Task
	logger    *zap.Logger
}

// NewSupervisor builds a Supervisor. newRunner is called once per pairing.
func NewSupervisor(newRunner func(Pairing) *Runner, logger *zap.Logger, tasks ...Task) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{newRunner: newRunner, tasks: tasks, logger: logger}
}

// Handle controls a started Supervisor.
type Handle struct {
	cancel context.CancelFunc
	group  *errgroup.Group
	once   sync.Once
	err    error
}

// Start launches every loop and returns immediately. The loops stop when
// ctx is done, a loop returns an error, or Stop is called.
func (s *Supervisor) Start(ctx context.Context, pairings []Pairing) (*Handle, error) {
	if len(pairings) == 0 && len(s.tasks) == 0 {
		return nil, fmt.Errorf("nothing to run: no pairings or tasks")
	}
	seen := make(map[string]struct{}, len(pairings))
	for _, p := range pairings {
		key := fmt.Sprintf("%d:%s:%s", p.ChainID, strings.ToLower(p.ContractAddress.Hex()), p.EventName)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate pairing %s", key)
		}
		seen[key] = struct{}{}
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)

	for _, p := range pairings {
		runner := s.newRunner(p)
		g.Go(func() error {
			return runner.Run(gCtx)
		})
	}
	for _, task := range s.tasks {
		task := task
		g.Go(func() error {
			if err := task.Run(gCtx); err != nil {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}

	s.logger.Info("supervisor started", zap.Int("pairings", len(pairings)), zap.Int("tasks", len(s.tasks)))
	return &Handle{cancel: cancel, group: g}, nil
}

// Wait blocks until every loop has returned.
func (h *Handle) Wait() error {
	h.once.Do(func() {
		err := h.group.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		h.err = err
		h.cancel()
	})
	return h.err
}

// Stop cancels every loop and waits for them to return.
func (h *Handle) Stop() error {
	h.cancel()
	return h.Wait()
}
