package walletcore

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/bitfsorg/libwallet-go/config"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/storage"
	"github.com/bitfsorg/libwallet-go/wallet"
)

// Open builds a Manager from cfg: logger, persister, sync client and a store
// restored from the persisted wallet, or a new empty one. Options are
// applied after the ones derived from cfg.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Manager, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	net, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	syncClient, err := newSyncClient(cfg, net, logger)
	if err != nil {
		return nil, err
	}

	persister, err := storage.Open(cfg.Persistence, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	storeOpts := wallet.StoreOptions{Network: net, UniqueLabels: cfg.UniqueLabels}
	if host, err := os.Hostname(); err == nil {
		storeOpts.DeviceName = host
	}

	var store *wallet.Store
	state, err := persister.Load(ctx)
	switch {
	case err == nil:
		store, err = wallet.NewStoreFromState(state, storeOpts)
		if err != nil {
			_ = persister.Close()
			return nil, err
		}
	case errors.Is(err, storage.ErrNotFound):
		store = wallet.NewStore(storeOpts)
	default:
		_ = persister.Close()
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithPaging(cfg.SyncPageSize, cfg.SyncOffset),
		WithSyncTimeout(cfg.SyncTimeout),
	}
	m := New(store, syncClient, persister, append(base, opts...)...)
	m.log.WithFields(log.Fields{
		"network":     net.Name,
		"persistence": cfg.Persistence,
		"sync":        cfg.SyncBackend,
		"guid":        store.GUID(),
	}).Info("wallet opened")
	return m, nil
}

func newSyncClient(cfg config.Config, net *wallet.NetworkConfig, logger log.FieldLogger) (network.SyncClient, error) {
	switch cfg.SyncBackend {
	case "node":
		env := map[string]string{
			network.EnvRPCURL:  os.Getenv(network.EnvRPCURL),
			network.EnvRPCUser: os.Getenv(network.EnvRPCUser),
			network.EnvRPCPass: os.Getenv(network.EnvRPCPass),
		}
		rpcCfg, err := network.ResolveConfig(&network.RPCConfig{
			URL:     cfg.SyncURL,
			Timeout: cfg.SyncTimeout,
		}, env, cfg.Network)
		if err != nil {
			return nil, err
		}
		return network.NewNodeSyncClient(network.NewRPCClient(*rpcCfg), net, logger), nil
	default:
		if cfg.SyncURL == "" {
			return nil, fmt.Errorf("%w: http sync needs %s", config.ErrInvalidSync, config.KeySyncURL)
		}
		return network.NewHTTPSyncClient(network.HTTPSyncConfig{
			BaseURL:   cfg.SyncURL,
			Timeout:   cfg.SyncTimeout,
			RateLimit: cfg.SyncRateLimit,
			Logger:    logger,
		})
	}
}
