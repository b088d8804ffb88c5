package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"certledger/internal/ledger"
	"certledger/internal/ledger/cache"
	ledgermetrics "certledger/internal/ledger/metrics"
	"certledger/internal/platform/config"
	"certledger/internal/platform/tracer"
)

// buildLedger returns the cached ledger client. Missing or invalid endpoint
// or contract settings yield the degraded client; a missing signer keeps
// reads working and fails anchoring only.
func buildLedger(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, infra *infrastructure, log *slog.Logger) ledger.Client {
	m := ledgermetrics.New(reg)

	inner := dialLedger(ctx, cfg, m, log)

	opts := []cache.Option{cache.WithMetrics(m), cache.WithLogger(log)}
	if infra.redis != nil {
		opts = append(opts, cache.WithShared(cache.NewRedisStore(infra.redis.Client, cfg.CacheTTL)))
	}
	return cache.New(inner, cfg.CacheSize, cfg.CacheTTL, opts...)
}

func dialLedger(ctx context.Context, cfg *config.Config, m *ledgermetrics.Metrics, log *slog.Logger) ledger.Client {
	contract, err := ledger.ParseContractAddress(cfg.ContractAddress)
	if err != nil {
		log.Warn("ledger contract unavailable, running degraded", "error", err)
		return ledger.NewUnavailable(err)
	}
	backend, err := ledger.Dial(ctx, cfg.Endpoint)
	if err != nil {
		log.Warn("ledger endpoint unavailable, running degraded", "error", err)
		return ledger.NewUnavailable(err)
	}

	opts := []ledger.Option{
		ledger.WithReceiptTimeout(cfg.ReceiptTimeout),
		ledger.WithGasHeadroom(cfg.GasHeadroomPct),
		ledger.WithLogger(log),
		ledger.WithTracer(tracer.NewOTel("certledger/ledger")),
		ledger.WithMetrics(m),
	}
	if key, err := ledger.ParseSignerKey(cfg.SignerKey); err != nil {
		log.Warn("ledger signer unavailable, anchoring disabled", "error", err)
	} else {
		opts = append(opts, ledger.WithSigner(key))
	}

	client, err := ledger.NewEthClient(backend, contract, opts...)
	if err != nil {
		backend.Close()
		log.Warn("ledger client unavailable, running degraded", "error", err)
		return ledger.NewUnavailable(err)
	}
	if addr, ok := client.SignerAddress(); ok {
		log.Info("ledger client ready", "contract", contract.Hex(), "signer", addr.Hex())
	}
	return client
}
