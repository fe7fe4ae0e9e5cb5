// Package dispatch fans one prompt out to every configured database, one
// backend call per database, and collects the per-database outcomes.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/querydesk/querydesk-cli/internal/client"
	"github.com/querydesk/querydesk-cli/internal/model"
	"github.com/querydesk/querydesk-cli/internal/store"
)

const unknownError = "Unknown error"

// Runner executes a prompt against the databases in a request.
type Runner interface {
	RunAgent(ctx context.Context, req *client.AgentRequest) ([]client.AgentResult, error)
}

type Dispatcher struct {
	Runner Runner
	Store  *store.Store

	// Concurrency above 1 runs that many calls at once. Results keep input order either way.
	Concurrency int
	CallTimeout time.Duration
	Logger      logrus.FieldLogger
}

func New(r Runner, s *store.Store, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{Runner: r, Store: s, Concurrency: 1, Logger: log}
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

// Run calls the backend once per database with that database alone and the
// shared prompt. The result has one entry per database, in the order given.
// A blank prompt or an empty list makes no calls.
func (d *Dispatcher) Run(ctx context.Context, prompt string, dbs []model.DatabaseConfig) []model.DBResult {
	if strings.TrimSpace(prompt) == "" || len(dbs) == 0 {
		return []model.DBResult{}
	}

	results := make([]model.DBResult, len(dbs))

	if d.Concurrency <= 1 {
		for i, db := range dbs {
			results[i] = d.runOne(ctx, prompt, db)
		}
		return results
	}

	// runOne never returns an error, so the group only bounds parallelism.
	g := new(errgroup.Group)
	g.SetLimit(d.Concurrency)
	for i, db := range dbs {
		g.Go(func() error {
			results[i] = d.runOne(ctx, prompt, db)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) runOne(ctx context.Context, prompt string, db model.DatabaseConfig) model.DBResult {
	if d.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.CallTimeout)
		defer cancel()
	}

	log := d.logger().WithFields(logrus.Fields{
		"db_id":  db.ID,
		"engine": db.Engine(),
		"host":   db.Host,
	})

	start := time.Now()
	resp, err := d.Runner.RunAgent(ctx, &client.AgentRequest{
		Databases: []model.DatabaseConfig{db},
		Prompt:    prompt,
	})
	log = log.WithField("duration", time.Since(start))

	out := model.DBResult{DB: db}
	if err != nil {
		out.Error = NormalizeError(err)
		log.WithError(err).Warn("Database call failed")
		return out
	}
	if len(resp) == 0 {
		log.Debug("Backend returned no result")
		return out
	}

	first := resp[0]
	out.Query = first.Query
	out.Result = first.Rows
	if first.Error != nil && strings.TrimSpace(*first.Error) != "" {
		out.Error = *first.Error
		log.WithField("backend_error", out.Error).Warn("Backend reported an error")
		return out
	}
	log.WithField("rows", first.Rows.RowCount()).Debug("Database call finished")
	return out
}

// Dispatch runs the store's current prompt against its databases and stores
// the outcome. It does nothing when either is empty. Busy is set for the
// duration of the run and cleared however it ends.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	prompt := d.Store.Prompt()
	dbs := d.Store.Databases()
	if strings.TrimSpace(prompt) == "" || len(dbs) == 0 {
		return nil
	}

	d.Store.SetBusy(true)
	defer d.Store.SetBusy(false)

	d.Store.ClearResults()
	results := d.Run(ctx, prompt, dbs)
	return d.Store.SetResults(results)
}

// NormalizeError turns a call failure into the message shown for that
// database: the backend's own message when it sent one, otherwise the
// error text, otherwise "Unknown error".
func NormalizeError(err error) string {
	if err == nil {
		return unknownError
	}
	var apiErr *client.ApiError
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.BackendMessage()); msg != "" {
			return msg
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownError
}
