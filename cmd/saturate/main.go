// Command saturate reproduz a rampa de carga que leva a API à saturação:
// VUs consultam o relatório e o inventário (a classe quente) e, opcionalmente,
// pedem empréstimos, e no fim imprime a fatia de respostas servidas do cache.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"equipment-loans/internal/log"
)

type counters struct {
	requests  atomic.Int64
	failures  atomic.Int64
	fromCache atomic.Int64
	fromDB    atomic.Int64
	queued    atomic.Int64
	committed atomic.Int64
	rejected  atomic.Int64
}

func main() {
	var (
		baseURL    = pflag.String("base-url", envOr("BASE_URL", "http://localhost:8080"), "API base URL")
		stagesFlag = pflag.String("stages", "30s:10,1m:50,1m:200,30s:200", "ramp stages as duration:vus,...")
		think      = pflag.Duration("think", 500*time.Millisecond, "pause between iterations of a VU")
		maxRPS     = pflag.Float64("max-rps", 0, "global request rate cap (0 = unlimited)")
		loanEvery  = pflag.Int("loan-every", 0, "submit a loan every N iterations per VU (0 = never)")
		equipment  = pflag.Int64("equipment-id", 1, "equipment id used for loan submissions")
		logFormat  = pflag.String("log-format", "text", "json or text")
	)
	pflag.Parse()

	logger, closeLog := log.NewLogger(log.Config{Level: log.LevelInfo, Format: log.Format(*logFormat)})
	defer closeLog()

	stages, err := parseStages(*stagesFlag)
	if err != nil {
		logger.Error("invalid stages", log.Error(err))
		closeLog()
		os.Exit(2)
	}

	limit := rate.Inf
	if *maxRPS > 0 {
		limit = rate.Limit(*maxRPS)
	}
	r := &runner{
		baseURL:   *baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(limit, 1),
		stages:    stages,
		think:     *think,
		loanEvery: *loanEvery,
		equipment: *equipment,
		logger:    logger,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	r.run(ctx)
	r.report(time.Since(start))
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type runner struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	stages    []stage
	think     time.Duration
	loanEvery int
	equipment int64
	logger    log.FieldLogger

	start time.Time
	c     counters
}

// run sobe um goroutine por VU possível; cada VU só trabalha enquanto o
// estágio corrente exige pelo menos vu+1 VUs.
func (r *runner) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, totalDuration(r.stages))
	defer cancel()
	r.start = time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for vu := 0; vu < maxTarget(r.stages); vu++ {
		vu := vu
		g.Go(func() error {
			r.vu(gctx, vu)
			return nil
		})
	}
	g.Go(func() error {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				r.logger.Info("progress",
					log.Int("vus", targetAt(r.stages, time.Since(r.start))),
					log.Int64("requests", r.c.requests.Load()),
					log.Int64("from_cache", r.c.fromCache.Load()),
					log.Int64("queued", r.c.queued.Load()),
				)
			}
		}
	})
	_ = g.Wait()
}

func (r *runner) vu(ctx context.Context, id int) {
	email := fmt.Sprintf("vu%d-%s@load.test", id, uuid.NewString()[:8])
	for iter := 1; ctx.Err() == nil; iter++ {
		if targetAt(r.stages, time.Since(r.start)) <= id {
			if !sleepCtx(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}

		r.get(ctx, "/api/system-report")
		r.getInventory(ctx)
		if r.loanEvery > 0 && iter%r.loanEvery == 0 {
			r.submitLoan(ctx, email)
		}

		if !sleepCtx(ctx, r.think) {
			return
		}
	}
}

func (r *runner) do(ctx context.Context, req *http.Request) (*http.Response, bool) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, false
	}
	r.c.requests.Add(1)
	resp, err := r.client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() == nil {
			r.c.failures.Add(1)
		}
		return nil, false
	}
	if resp.StatusCode >= 500 {
		r.c.failures.Add(1)
	}
	return resp, true
}

func (r *runner) get(ctx context.Context, path string) {
	req, err := http.NewRequest(http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return
	}
	if resp, ok := r.do(ctx, req); ok {
		drain(resp)
	}
}

func (r *runner) getInventory(ctx context.Context) {
	req, err := http.NewRequest(http.MethodGet, r.baseURL+"/api/loans/available", nil)
	if err != nil {
		return
	}
	resp, ok := r.do(ctx, req)
	if !ok {
		return
	}
	defer drain(resp)
	switch resp.Header.Get("X-Data-Source") {
	case "cache":
		r.c.fromCache.Add(1)
	case "database":
		r.c.fromDB.Add(1)
	}
}

func (r *runner) submitLoan(ctx context.Context, email string) {
	body, _ := json.Marshal(map[string]interface{}{"email": email, "equipment_id": r.equipment, "quantity": 1})
	req, err := http.NewRequest(http.MethodPost, r.baseURL+"/api/loans", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requester-Email", email)
	resp, ok := r.do(ctx, req)
	if !ok {
		return
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusAccepted:
		r.c.queued.Add(1)
	case resp.StatusCode == http.StatusOK:
		r.c.committed.Add(1)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		r.c.rejected.Add(1)
	}
}

func (r *runner) report(elapsed time.Duration) {
	reads := r.c.fromCache.Load() + r.c.fromDB.Load()
	share := 0.0
	if reads > 0 {
		share = float64(r.c.fromCache.Load()) / float64(reads) * 100
	}
	r.logger.Info("load finished",
		log.Duration("elapsed", elapsed.Round(time.Millisecond)),
		log.Int64("requests", r.c.requests.Load()),
		log.Int64("failures", r.c.failures.Load()),
		log.Int64("inventory_from_cache", r.c.fromCache.Load()),
		log.Int64("inventory_from_database", r.c.fromDB.Load()),
		log.Any("cache_share_pct", share),
		log.Int64("loans_queued", r.c.queued.Load()),
		log.Int64("loans_committed", r.c.committed.Load()),
		log.Int64("loans_rejected", r.c.rejected.Load()),
	)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
