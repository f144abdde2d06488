package amqp

import (
	"context"
	"fmt"
	"sync"

	"github.com/JailtonJunior94/fabric/observability"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// connectionManager owns the single process-wide AMQP connection and
// performs its own reconnection with exponential backoff. Library-level
// automatic recovery is never enabled (amqp091-go does not provide it by
// default, unlike some other drivers) — mixing broker auto-recovery with
// this manager's own queue re-declaration would race and duplicate
// consumers, per spec.md §4.3.
type connectionManager struct {
	cfg      Config
	strategy ConnectionStrategy
	o11y     observability.Observability

	mu             sync.RWMutex
	conn           *amqp.Connection
	connected      bool
	reconnecting   bool
	closed         bool
	watcherCancel  context.CancelFunc
	closeChan      chan struct{}
	closeOnce      sync.Once
}

func newConnectionManager(cfg Config, strategy ConnectionStrategy, o11y observability.Observability) *connectionManager {
	return &connectionManager{
		cfg:       cfg,
		strategy:  strategy,
		o11y:      o11y,
		closeChan: make(chan struct{}),
	}
}

func (cm *connectionManager) connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return ErrTransportClosed
	}
	if cm.connected {
		return nil
	}

	cm.o11y.Logger().Info(ctx, "connecting to amqp broker", observability.String("strategy", cm.strategy.Name()))

	conn, err := cm.strategy.Dial(cm.cfg)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}

	cm.conn = conn
	cm.connected = true

	watcherCtx, cancel := context.WithCancel(ctx)
	cm.watcherCancel = cancel
	go cm.watch(watcherCtx)

	cm.o11y.Logger().Info(ctx, "connected to amqp broker")
	return nil
}

func (cm *connectionManager) watch(ctx context.Context) {
	cm.mu.RLock()
	conn := cm.conn
	cm.mu.RUnlock()
	if conn == nil {
		return
	}

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case err := <-closeCh:
		if err != nil {
			cm.o11y.Logger().Warn(ctx, "amqp connection closed unexpectedly", observability.Error(err))
			cm.triggerReconnect(ctx)
		}
	case <-cm.closeChan:
	case <-ctx.Done():
	}
}

func (cm *connectionManager) triggerReconnect(ctx context.Context) {
	cm.mu.Lock()
	if cm.closed || cm.reconnecting {
		cm.mu.Unlock()
		return
	}
	cm.connected = false
	cm.reconnecting = true
	cm.mu.Unlock()

	go cm.reconnect(ctx)
}

func (cm *connectionManager) reconnect(ctx context.Context) {
	defer func() {
		cm.mu.Lock()
		cm.reconnecting = false
		cm.mu.Unlock()
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cm.cfg.ReconnectInitialInterval
	bo.MaxInterval = cm.cfg.ReconnectMaxInterval
	bo.MaxElapsedTime = cm.cfg.ReconnectTimeout

	op := func() error {
		select {
		case <-cm.closeChan:
			return backoff.Permanent(ErrTransportClosed)
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		default:
		}

		cm.o11y.Logger().Info(ctx, "attempting amqp reconnect")
		conn, err := cm.strategy.Dial(cm.cfg)
		if err != nil {
			cm.o11y.Logger().Warn(ctx, "amqp reconnect attempt failed", observability.Error(err))
			return err
		}

		cm.mu.Lock()
		cm.conn = conn
		cm.connected = true
		if cm.watcherCancel != nil {
			cm.watcherCancel()
		}
		watcherCtx, cancel := context.WithCancel(ctx)
		cm.watcherCancel = cancel
		cm.mu.Unlock()

		go cm.watch(watcherCtx)
		cm.o11y.Logger().Info(ctx, "amqp reconnected")
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		cm.o11y.Logger().Error(ctx, "amqp reconnect exhausted", observability.Error(err))
	}
}

func (cm *connectionManager) channel() (*amqp.Channel, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return nil, ErrTransportClosed
	}
	if !cm.connected {
		return nil, ErrNoConnection
	}
	if cm.reconnecting {
		return nil, ErrReconnecting
	}

	ch, err := cm.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	return ch, nil
}

func (cm *connectionManager) healthy() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connected && !cm.closed && !cm.reconnecting && cm.conn != nil && !cm.conn.IsClosed()
}

func (cm *connectionManager) close(ctx context.Context) error {
	var closeErr error

	cm.closeOnce.Do(func() {
		cm.mu.Lock()
		if cm.watcherCancel != nil {
			cm.watcherCancel()
		}
		cm.closed = true
		close(cm.closeChan)

		if cm.conn != nil {
			if err := cm.conn.Close(); err != nil {
				closeErr = err
			}
		}
		cm.connected = false
		cm.mu.Unlock()

		cm.o11y.Logger().Info(ctx, "amqp connection closed")
	})

	return closeErr
}
