package zk

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	discovery "simflow/internal/discovery/iface"
	"simflow/internal/logger"

	"github.com/go-zookeeper/zk"
)

// ErrNodeNotFound is returned by Lookup for a missing path.
var ErrNodeNotFound = errors.New("node not found")

type zkRegistry struct {
	conn   *zk.Conn
	logger logger.Logger
}

// NewZKRegistry connects to the ZooKeeper ensemble.
func NewZKRegistry(servers []string, sessionTimeout time.Duration, log logger.Logger) (discovery.Registry, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	log.Info("connected to zookeeper", logger.Any("servers", servers))

	return &zkRegistry{
		conn:   conn,
		logger: log.With(logger.String("component", "zk_registry")),
	}, nil
}

// Publish writes data into an ephemeral node so it vanishes with the session.
func (r *zkRegistry) Publish(p string, data []byte) error {
	if err := r.ensureParentPath(path.Dir(p)); err != nil {
		return err
	}

	_, err := r.conn.Create(p, data, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = r.conn.Set(p, data, -1)
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", p, err)
	}

	r.logger.Info("published zk node", logger.String("path", p))
	return nil
}

func (r *zkRegistry) Lookup(p string) ([]byte, error) {
	data, _, err := r.conn.Get(p)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, p)
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return data, nil
}

func (r *zkRegistry) Watch(ctx context.Context, p string, handler func([]byte)) error {
	// fail fast on a broken connection before going async
	if _, _, err := r.conn.Exists(p); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p, err)
	}

	r.logger.Info("watching zk node", logger.String("path", p))

	go func() {
		for {
			exists, _, events, err := r.conn.ExistsW(p)
			if err != nil {
				r.logger.Error("failed to watch node", logger.String("path", p), logger.Error(err))
				return
			}

			if exists {
				data, _, err := r.conn.Get(p)
				if err == nil {
					handler(data)
				} else if !errors.Is(err, zk.ErrNoNode) {
					r.logger.Error("failed to get watched node", logger.String("path", p), logger.Error(err))
				}
			} else {
				handler(nil)
			}

			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					r.logger.Info("watch channel closed", logger.String("path", p))
					return
				}
				r.logger.Debug("received zk event",
					logger.String("path", event.Path),
					logger.String("type", event.Type.String()),
				)
			}
		}
	}()

	return nil
}

func (r *zkRegistry) Close() error {
	r.logger.Info("closing zookeeper connection")
	r.conn.Close()
	return nil
}

func (r *zkRegistry) ensureParentPath(p string) error {
	if p == "/" || p == "." || p == "" {
		return nil
	}

	exists, _, err := r.conn.Exists(p)
	if err != nil {
		return fmt.Errorf("failed to check parent path: %w", err)
	}
	if exists {
		return nil
	}

	if err := r.ensureParentPath(path.Dir(p)); err != nil {
		return err
	}

	_, err = r.conn.Create(p, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create parent path: %w", err)
	}
	return nil
}

type watchedResolver struct {
	current  atomic.Value
	fallback string
}

// NewWatchedResolver follows the URL published under p, using fallback while
// the node is absent.
func NewWatchedResolver(ctx context.Context, registry discovery.Registry, p, fallback string, log logger.Logger) (discovery.EndpointResolver, error) {
	res := &watchedResolver{fallback: fallback}
	res.current.Store(fallback)

	err := registry.Watch(ctx, p, func(data []byte) {
		url := strings.TrimSpace(string(data))
		if url == "" {
			url = fallback
		}
		if old := res.current.Swap(url); old != url {
			log.Info("engine endpoint changed", logger.String("base_url", url))
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *watchedResolver) BaseURL() string {
	return r.current.Load().(string)
}
