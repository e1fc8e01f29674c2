package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/songzhibin97/xrplfeed/internal/models"
)

// ErrSuperseded is returned to a caller whose request was replaced by a newer one.
var ErrSuperseded = errors.New("search superseded by a newer request")

// ctx is checked once per this many scanned tokens.
const checkEvery = 1024

// Request 搜索请求
type Request struct {
	Tokens     []models.Token
	SearchTerm string
	// Limit 0 means no limit.
	Limit int
}

// Filter keeps tokens whose currency or issuer contains the term
// case-insensitively, sorts by 24h volume descending and applies Limit.
// An empty term keeps everything. The input slice is never modified.
func Filter(req Request) []models.Token {
	out, _ := filter(context.Background(), req)
	return out
}

func filter(ctx context.Context, req Request) ([]models.Token, error) {
	term := strings.ToLower(strings.TrimSpace(req.SearchTerm))

	out := make([]models.Token, 0, len(req.Tokens))
	for i, tok := range req.Tokens {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if term == "" ||
			strings.Contains(strings.ToLower(tok.Currency), term) ||
			strings.Contains(strings.ToLower(tok.Issuer), term) {
			out = append(out, tok)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume24h > out[j].Volume24h
	})

	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// Worker runs searches off the caller's goroutine. Each new request cancels
// the one in flight, and a result that lost the race is never returned.
type Worker struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc

	run func(ctx context.Context, req Request) ([]models.Token, error)
}

func NewWorker() *Worker {
	return &Worker{run: filter}
}

type result struct {
	tokens []models.Token
	err    error
}

func (w *Worker) Search(ctx context.Context, req Request) ([]models.Token, error) {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	if w.cancel != nil {
		w.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	done := make(chan result, 1)
	go func() {
		tokens, err := w.run(ctx, req)
		done <- result{tokens: tokens, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}

	if w.superseded(seq) {
		return nil, ErrSuperseded
	}
	return res.tokens, res.err
}

func (w *Worker) superseded(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return seq != w.seq
}

// Stop cancels the request in flight, if any.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
