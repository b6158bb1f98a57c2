package marketplace

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// SyncWorker consulta periódicamente los pedidos de cada marketplace conectado.
// El cursor es last_sync del marketplace: solo avanza hasta el último evento procesado sin error
// y siempre queda antes del primero que falló.
type SyncWorker struct {
	marketplaces repository.MarketplaceRepository
	client       ports.MarketplaceClient
	reconciler   *Reconciler
	interval     time.Duration
	log          zerolog.Logger
}

// NewSyncWorker construye el worker.
func NewSyncWorker(marketplaces repository.MarketplaceRepository, client ports.MarketplaceClient, reconciler *Reconciler, interval time.Duration, log zerolog.Logger) *SyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SyncWorker{
		marketplaces: marketplaces,
		client:       client,
		reconciler:   reconciler,
		interval:     interval,
		log:          log.With().Str("component", "marketplace_sync").Logger(),
	}
}

// Run sincroniza al arrancar y luego cada intervalo hasta que se cancele ctx.
func (w *SyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.SyncOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error().Err(err).Msg("sincronización con errores")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce hace una pasada sobre todos los marketplaces conectados. Un marketplace que falla
// no detiene a los demás; se devuelve el primer error.
func (w *SyncWorker) SyncOnce(ctx context.Context) error {
	list, err := w.marketplaces.ListConnected(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, mp := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.syncMarketplace(ctx, mp); err != nil {
			w.log.Error().Err(err).Str("marketplace_id", mp.ID).Msg("no se pudo sincronizar el marketplace")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (w *SyncWorker) syncMarketplace(ctx context.Context, mp *entity.Marketplace) error {
	var since time.Time
	if mp.LastSync != nil {
		since = *mp.LastSync
	}
	// La consulta externa ocurre antes de cualquier operación del ledger.
	events, err := w.client.FetchOrdersSince(ctx, mp, since)
	if err != nil {
		return err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].UpdatedAt.Before(events[j].UpdatedAt) })

	cursor := since
	var ingestErr error
	counts := make(map[Outcome]int)
	for _, ev := range events {
		res, err := w.reconciler.IngestOrder(ctx, mp.ID, ev)
		if err != nil {
			ingestErr = err
			// Otros eventos con la misma marca ya pudieron mover el cursor: queda justo antes
			// del fallido para que la próxima consulta lo vuelva a traer.
			if limit := ev.UpdatedAt.Add(-time.Nanosecond); cursor.After(limit) {
				cursor = limit
			}
			break
		}
		counts[res.Outcome]++
		if ev.UpdatedAt.After(cursor) {
			cursor = ev.UpdatedAt
		}
	}
	if cursor.After(since) {
		if err := w.marketplaces.UpdateLastSync(ctx, mp.ID, cursor); err != nil {
			return err
		}
	}
	w.log.Info().Str("marketplace_id", mp.ID).Int("events", len(events)).
		Int("created", counts[OutcomeCreated]).Int("updated", counts[OutcomeUpdated]).
		Int("stale", counts[OutcomeStale]).Int("rejected", counts[OutcomeRejected]).
		Time("cursor", cursor).Msg("marketplace sincronizado")
	return ingestErr
}
