package eventsourcing

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

type queuedCommand struct {
	Ctx        context.Context
	Command    Command
	ResponseCh chan<- commandResult
}

type commandResult struct {
	Result AppendResult
	Err    error
}

// CommandBus routes commands to their handlers. Commands are partitioned by
// aggregate id over a fixed number of shards and every shard is drained by a
// single worker, so commands for one aggregate never run concurrently while
// different aggregates proceed in parallel.
type CommandBus struct {
	handlers   map[string]func(ctx context.Context, command Command) (AppendResult, error)
	queues     []chan queuedCommand
	stopCh     chan struct{}
	stopped    bool
	inflight   sync.WaitGroup
	workers    sync.WaitGroup
	mu         sync.RWMutex
	shardCount int
}

func NewCommandBus(bufferSize int, shardCount int) *CommandBus {
	if shardCount <= 0 {
		shardCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	bus := &CommandBus{
		queues:     make([]chan queuedCommand, shardCount),
		handlers:   make(map[string]func(ctx context.Context, command Command) (AppendResult, error)),
		stopCh:     make(chan struct{}),
		shardCount: shardCount,
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand, bufferSize)
		bus.workers.Add(1)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch enqueues cmd on its shard and waits for the handler result or
// for ctx to end, whichever comes first.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (AppendResult, error) {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return AppendResult{}, ErrBusStopped
	}
	b.inflight.Add(1)
	b.mu.RUnlock()
	defer b.inflight.Done()

	responseCh := make(chan commandResult, 1)
	shard := b.selectShard(cmd.AggregateID())

	select {
	case b.queues[shard] <- queuedCommand{Ctx: ctx, Command: cmd, ResponseCh: responseCh}:
		select {
		case result := <-responseCh:
			return result.Result, result.Err
		case <-ctx.Done():
			return AppendResult{}, ctx.Err()
		}
	case <-ctx.Done():
		return AppendResult{}, ctx.Err()
	case <-b.stopCh:
		return AppendResult{}, ErrBusStopped
	}
}

func (b *CommandBus) worker(queue chan queuedCommand) {
	defer b.workers.Done()

	for cmd := range queue {
		// the caller gave up while the command was queued
		if err := cmd.Ctx.Err(); err != nil {
			cmd.ResponseCh <- commandResult{Err: err}
			continue
		}

		cmdName := TypeName(cmd.Command)

		b.mu.RLock()
		h, exists := b.handlers[cmdName]
		b.mu.RUnlock()

		if !exists {
			cmd.ResponseCh <- commandResult{
				Err: fmt.Errorf("no handler for command %s: %w", cmdName, ErrHandlerNotFound),
			}
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					cmd.ResponseCh <- commandResult{
						Err: fmt.Errorf("panic in handler for %s: %v", cmdName, r),
					}
				}
			}()

			res, err := h(cmd.Ctx, cmd.Command)
			cmd.ResponseCh <- commandResult{Result: res, Err: err}
		}()
	}
}

func (b *CommandBus) selectShard(aggregateID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(aggregateID))
	return int(hash.Sum32() % uint32(b.shardCount))
}

// Register binds handler to the command type C. Registering a second handler
// for the same type panics.
func Register[C Command](b *CommandBus, handler CommandHandler[C]) {
	var zero C
	cmdName := TypeName(zero)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[cmdName]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateHandler, cmdName))
	}

	b.handlers[cmdName] = func(ctx context.Context, cmd Command) (AppendResult, error) {
		c, ok := cmd.(C)
		if !ok {
			return AppendResult{}, fmt.Errorf("expected command type %s but got %T", cmdName, cmd)
		}
		return handler(ctx, c)
	}
}

// Stop rejects new commands, waits for dispatched ones and stops the workers.
func (b *CommandBus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	b.mu.Unlock()

	b.inflight.Wait()
	for _, q := range b.queues {
		close(q)
	}
	b.workers.Wait()
}
