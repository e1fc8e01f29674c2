package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/models"
	"github.com/songzhibin97/xrplfeed/internal/netstats"
	"github.com/songzhibin97/xrplfeed/internal/prefs"
	"github.com/songzhibin97/xrplfeed/internal/realtime"
	"github.com/songzhibin97/xrplfeed/internal/search"
)

var ErrClosed = errors.New("feed controller stopped")

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// Stream is the realtime side of the feed; *realtime.Channel satisfies it.
type Stream interface {
	Subscribe(handler realtime.EventHandler)
	Connect(ctx context.Context)
	Disconnect()
}

type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]models.Token, error)
	Stop()
}

type FavoriteSet interface {
	IsFavorite(id string) bool
	Toggle(ctx context.Context, id string) (bool, error)
}

type Options struct {
	PollInterval    time.Duration
	Debounce        time.Duration
	DisplayPageSize int
	MaxSearchable   int
}

func DefaultOptions() Options {
	return Options{
		PollInterval:    10 * time.Second,
		Debounce:        300 * time.Millisecond,
		DisplayPageSize: 50,
		MaxSearchable:   30000,
	}
}

// State is what consumers render.
type State struct {
	Tokens           []models.Token `json:"tokens"`
	SearchTerm       string         `json:"searchTerm"`
	Loading          bool           `json:"loading"`
	Refreshing       bool           `json:"refreshing"`
	Error            string         `json:"error,omitempty"`
	TotalTokens      int            `json:"totalTokens"`
	SearchableTokens int            `json:"searchableTokens"`
	LastUpdated      time.Time      `json:"lastUpdated"`
}

type fetchMode string

const (
	fetchInitial fetchMode = "initial"
	fetchPoll    fetchMode = "poll"
	fetchRefresh fetchMode = "refresh"
)

// Controller owns the token collection. REST snapshots replace membership
// wholesale; realtime patches only touch fields of tokens already present.
type Controller struct {
	fetcher   data.TokenFetcher
	stream    Stream
	searcher  Searcher
	favorites FavoriteSet
	stats     *netstats.Tracker
	logger    Logger
	opts      Options
	now       func() time.Time

	mu           sync.Mutex
	tokens       []models.Token
	displayed    []models.Token
	searchTerm   string
	loading      bool
	refreshing   bool
	errMsg       string
	lastUpdated  time.Time
	started      bool
	closed       bool
	ctx          context.Context
	cancel       context.CancelFunc
	debounce     *time.Timer
	gen          uint64
	pending      search.Request
	searchCancel context.CancelFunc
	searchKick   chan struct{}

	listenersMu sync.RWMutex
	listeners   []func()

	wg sync.WaitGroup
}

func NewController(fetcher data.TokenFetcher, stream Stream, searcher Searcher, favorites FavoriteSet, logger Logger, opts Options) *Controller {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.DisplayPageSize <= 0 {
		opts.DisplayPageSize = def.DisplayPageSize
	}
	if opts.MaxSearchable <= 0 {
		opts.MaxSearchable = def.MaxSearchable
	}
	if searcher == nil {
		searcher = search.NewWorker()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher:    fetcher,
		stream:     stream,
		searcher:   searcher,
		favorites:  favorites,
		stats:      netstats.NewTracker(nil),
		logger:     logger,
		opts:       opts,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		searchKick: make(chan struct{}, 1),
	}
}

// OnChange registers fn to run after every state change.
func (c *Controller) OnChange(fn func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) notify() {
	c.listenersMu.RLock()
	listeners := append([]func(){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Start performs the initial fetch, then starts polling and the realtime
// subscription. Calling it again is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	prevCancel := c.cancel
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()
	prevCancel()

	go c.searchLoop(runCtx)

	if err := c.fetch(runCtx, fetchInitial); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Error("initial token fetch failed", "error", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go c.pollLoop(runCtx)

	if c.stream != nil {
		c.stream.Subscribe(c.HandleEvent)
		c.stream.Connect(runCtx)
	}
}

// Stop cancels polling, debounce, search and the realtime channel, and
// waits for background work to finish. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	if c.debounce != nil {
		c.debounce.Stop()
	}
	if c.searchCancel != nil {
		c.searchCancel()
	}
	c.mu.Unlock()

	cancel()
	if c.stream != nil {
		c.stream.Disconnect()
	}
	c.searcher.Stop()
	c.wg.Wait()
}

// Refresh refetches the snapshot, flagging Refreshing instead of Loading.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.fetch(ctx, fetchRefresh)
}

func (c *Controller) pollLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.fetch(ctx, fetchPoll); err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Error("token poll failed", "error", err)
			}
		}
	}
}

func (c *Controller) fetch(ctx context.Context, mode fetchMode) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.setBusyLocked(mode, true)
	c.mu.Unlock()
	c.notify()

	tokens, err := c.fetcher.FetchAllTokens(ctx, "")

	c.mu.Lock()
	// 停止后到达的结果直接丢弃
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.setBusyLocked(mode, false)
	if err != nil {
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.errMsg = ""
	c.tokens = markDirections(c.tokens, tokens)
	c.lastUpdated = c.now()
	c.mu.Unlock()

	c.logger.Info("token snapshot replaced", "mode", string(mode), "count", len(tokens))
	c.recompute()
	c.notify()
	return nil
}

func (c *Controller) setBusyLocked(mode fetchMode, busy bool) {
	switch mode {
	case fetchInitial:
		c.loading = busy
	case fetchRefresh:
		c.refreshing = busy
	}
}

// HandleEvent folds a realtime event into network stats and patches the
// matching tokens. Patches for unknown tokens are ignored.
func (c *Controller) HandleEvent(e realtime.Event) {
	c.stats.Observe(e)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next, changed := applyPatches(c.tokens, e.Patches)
	if changed {
		c.tokens = next
	}
	c.mu.Unlock()

	if changed {
		c.recompute()
	}
	c.notify()
}

// SetSearchTerm records term now and runs the search after the debounce delay.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.searchTerm = term
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.opts.Debounce, c.recompute)
	c.mu.Unlock()
	c.notify()
}

// recompute queues a search over the current collection. Only the newest
// queued request is run; an older one still in flight is cancelled.
func (c *Controller) recompute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	tokens := c.tokens
	if len(tokens) > c.opts.MaxSearchable {
		tokens = tokens[:c.opts.MaxSearchable]
	}
	req := search.Request{Tokens: tokens, SearchTerm: c.searchTerm}
	if strings.TrimSpace(c.searchTerm) == "" {
		req.Limit = c.opts.DisplayPageSize
	}

	c.gen++
	c.pending = req
	if c.searchCancel != nil {
		c.searchCancel()
	}

	select {
	case c.searchKick <- struct{}{}:
	default:
	}
}

func (c *Controller) searchLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.searchKick:
		}

		c.mu.Lock()
		req := c.pending
		gen := c.gen
		searchCtx, cancel := context.WithCancel(ctx)
		c.searchCancel = cancel
		c.mu.Unlock()

		result, err := c.searcher.Search(searchCtx, req)
		cancel()
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, search.ErrSuperseded) {
				c.logger.Error("search failed", "error", err)
			}
			continue
		}

		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			continue
		}
		c.displayed = result
		c.mu.Unlock()
		c.notify()
	}
}

// State returns the current projection with favorites first.
func (c *Controller) State() State {
	c.mu.Lock()
	s := State{
		Tokens:           c.displayed,
		SearchTerm:       c.searchTerm,
		Loading:          c.loading,
		Refreshing:       c.refreshing,
		Error:            c.errMsg,
		TotalTokens:      len(c.tokens),
		SearchableTokens: c.opts.MaxSearchable,
		LastUpdated:      c.lastUpdated,
	}
	c.mu.Unlock()

	if c.favorites != nil {
		s.Tokens = prefs.SortFavoritesFirst(s.Tokens, c.favorites.IsFavorite)
	} else {
		s.Tokens = append([]models.Token{}, s.Tokens...)
	}
	return s
}

// ToggleFavorite flips id in the favorites set and republishes state.
func (c *Controller) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if c.favorites == nil {
		return false, errors.New("favorites not configured")
	}
	now, err := c.favorites.Toggle(ctx, id)
	if err != nil {
		return now, err
	}
	c.notify()
	return now, nil
}

func (c *Controller) Network() netstats.Snapshot {
	return c.stats.Snapshot()
}
