package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/exp/rand"

	"github.com/pagestore/pagestore/internal/locator"
	"github.com/pagestore/pagestore/internal/log_service"
)

const (
	EtcdDialTimeout = 5 * time.Second
	LeaseTTL        = 5 // seconds
	PrefixServers   = "/pagestore/servers/"
)

// ServerNode is the registry record a file server announces under
// PrefixServers.
type ServerNode struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// EtcdLocator resolves the single file server from an etcd registry. The
// first successful resolution is cached for the process lifetime.
type EtcdLocator struct {
	endpoints []string
	ls        log_service.LogService

	mu     sync.Mutex
	cached string
}

func NewEtcdLocator(endpoints []string, ls log_service.LogService) *EtcdLocator {
	return &EtcdLocator{endpoints: endpoints, ls: ls}
}

func (l *EtcdLocator) Resolve(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != "" {
		return l.cached, nil
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   l.endpoints,
		DialTimeout: EtcdDialTimeout,
	})
	if err != nil {
		l.ls.Error(log_service.LogEvent{
			Message:  "Failed to connect to registry",
			Metadata: map[string]any{"endpoints": l.endpoints, "error": err.Error()},
		})
		return "", locator.ErrRegistryUnavailable
	}
	defer cli.Close()

	resp, err := cli.Get(ctx, PrefixServers, clientv3.WithPrefix())
	if err != nil {
		l.ls.Error(log_service.LogEvent{
			Message:  "Registry lookup failed",
			Metadata: map[string]any{"prefix": PrefixServers, "error": err.Error()},
		})
		return "", locator.ErrRegistryUnavailable
	}

	for _, kv := range resp.Kvs {
		var node ServerNode
		if err := json.Unmarshal(kv.Value, &node); err != nil || node.Address == "" {
			continue
		}
		if len(resp.Kvs) > 1 {
			l.ls.Warn(log_service.LogEvent{
				Message:  "Multiple file servers registered, using first",
				Metadata: map[string]any{"count": len(resp.Kvs)},
			})
		}
		l.ls.Info(log_service.LogEvent{
			Message:  "Resolved file server",
			Metadata: map[string]any{"id": node.ID, "address": node.Address},
		})
		l.cached = node.Address
		return l.cached, nil
	}

	return "", locator.ErrServerNotFound
}

var _ locator.Locator = (*EtcdLocator)(nil)

// Announcer registers a file server in the etcd registry under a lease and
// keeps the lease alive until stopped.
type Announcer struct {
	endpoints []string
	node      ServerNode
	ls        log_service.LogService

	client  *clientv3.Client
	leaseID clientv3.LeaseID
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewAnnouncer(endpoints []string, node ServerNode, ls log_service.LogService) *Announcer {
	return &Announcer{
		endpoints: endpoints,
		node:      node,
		ls:        ls,
		stopCh:    make(chan struct{}),
	}
}

func (a *Announcer) Start(ctx context.Context) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   a.endpoints,
		DialTimeout: EtcdDialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to registry: %w", err)
	}
	a.client = cli

	if err := a.register(ctx); err != nil {
		cli.Close()
		return err
	}

	a.wg.Add(1)
	go a.keepAliveLoop()
	return nil
}

func (a *Announcer) register(ctx context.Context) error {
	resp, err := a.client.Grant(ctx, LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	a.leaseID = resp.ID

	val, _ := json.Marshal(a.node)
	key := PrefixServers + a.node.ID
	if _, err := a.client.Put(ctx, key, string(val), clientv3.WithLease(a.leaseID)); err != nil {
		return fmt.Errorf("failed to put server key: %w", err)
	}

	a.ls.Info(log_service.LogEvent{
		Message:  "File server registered",
		Metadata: map[string]any{"id": a.node.ID, "address": a.node.Address, "leaseID": a.leaseID},
	})
	return nil
}

func (a *Announcer) keepAliveLoop() {
	defer a.wg.Done()

	for {
		ch, err := a.client.KeepAlive(context.Background(), a.leaseID)
		if err == nil {
		consume:
			for {
				select {
				case <-a.stopCh:
					return
				case ka, ok := <-ch:
					if !ok {
						a.ls.Warn(log_service.LogEvent{Message: "Registry keepalive channel closed"})
						break consume
					}
					_ = ka
				}
			}
		}

		// Lease lost. Wait a jittered interval so restarting servers do not
		// stampede the registry, then re-register.
		delay := time.Second + time.Duration(rand.Intn(1000))*time.Millisecond
		select {
		case <-a.stopCh:
			return
		case <-time.After(delay):
		}

		if err := a.register(context.Background()); err != nil {
			a.ls.Error(log_service.LogEvent{
				Message:  "Failed to re-register in registry",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
	}
}

func (a *Announcer) Stop(ctx context.Context) error {
	close(a.stopCh)

	if a.leaseID != 0 {
		if _, err := a.client.Revoke(ctx, a.leaseID); err != nil {
			a.ls.Warn(log_service.LogEvent{
				Message:  "Failed to revoke lease during shutdown",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
	}

	a.wg.Wait()
	return a.client.Close()
}
