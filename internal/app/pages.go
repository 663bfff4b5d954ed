package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxportal/internal/bridge"
	"github.com/MrWong99/voxportal/internal/coordinator"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/loop"
	"github.com/MrWong99/voxportal/internal/observe"
)

// handshakeTimeout bounds the wait for a page's hello message.
const handshakeTimeout = 10 * time.Second

// ErrPageLimit is returned by [PageManager.Serve] when the page limit is
// reached.
var ErrPageLimit = errors.New("app: page limit reached")

// PageInfo holds metadata about a connected page.
type PageInfo struct {
	ID          string
	StartedAt   time.Time
	UserAgent   string
	Location    string
	Recognition bool
}

// page is one served page and the loop its coordinator runs on.
type page struct {
	info  PageInfo
	loop  *loop.Loop
	coord *coordinator.Coordinator
}

// PageManager runs one voice coordinator per connected page.
// All exported methods are safe for concurrent use.
type PageManager struct {
	mu      sync.Mutex
	pages   map[string]*page
	grammar *grammar.Grammar

	settings func() coordinator.Config
	maxPages int
	metrics  *observe.Metrics
	log      *slog.Logger
}

// PageManagerConfig holds the dependencies of a [PageManager].
type PageManagerConfig struct {
	// Settings returns the coordinator config for a new page. It is called
	// once per page so reloaded settings apply to pages opened afterwards.
	Settings func() coordinator.Config

	// Grammar is the initial command grammar. Default: [grammar.Default].
	Grammar *grammar.Grammar

	// MaxPages limits concurrent pages. Zero means no limit.
	MaxPages int

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// NewPageManager creates a PageManager.
func NewPageManager(cfg PageManagerConfig) *PageManager {
	pm := &PageManager{
		pages:    make(map[string]*page),
		grammar:  cfg.Grammar,
		settings: cfg.Settings,
		maxPages: cfg.MaxPages,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
	if pm.grammar == nil {
		pm.grammar = grammar.Default()
	}
	if pm.settings == nil {
		pm.settings = coordinator.DefaultConfig
	}
	if pm.log == nil {
		pm.log = slog.Default()
	}
	return pm
}

// Serve runs the voice cycle for one accepted page connection until the page
// unloads, the connection drops or ctx is cancelled.
func (pm *PageManager) Serve(ctx context.Context, conn *websocket.Conn) error {
	br := bridge.NewPage(conn, bridge.WithLogger(pm.log))
	log := pm.log.With("page", br.ID())

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	hello, err := br.Handshake(hctx)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected hello")
		return err
	}

	lp := loop.New(0)
	opts := []coordinator.Option{
		coordinator.WithLogger(log),
		coordinator.WithGrammar(pm.currentGrammar()),
	}
	if pm.metrics != nil {
		opts = append(opts, coordinator.WithMetrics(pm.metrics))
	}
	coord := coordinator.New(pm.settings(), coordinator.Deps{
		Recognizer: br,
		Synth:      br,
		Audio:      br,
		Documents:  br,
		Filters:    br,
		Navigator:  br,
		Notifier:   br,
		Observer:   br,
	}, lp, opts...)

	p := &page{
		info: PageInfo{
			ID:          br.ID(),
			StartedAt:   time.Now().UTC(),
			UserAgent:   hello.UserAgent,
			Location:    hello.Location,
			Recognition: hello.Recognition,
		},
		loop:  lp,
		coord: coord,
	}
	if err := pm.add(p); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "page limit reached")
		return err
	}
	defer pm.remove(p)

	log.Info("page connected",
		"user_agent", hello.UserAgent,
		"location", hello.Location,
		"recognition", hello.Recognition,
		"synthesis", hello.Synthesis,
	)

	ctx, cancelPage := context.WithCancel(ctx)
	defer cancelPage()

	// Posted before Run so it is the first closure the loop executes.
	if err := lp.Post(func() {
		if !hello.Recognition {
			coord.Unsupported(ctx)
			return
		}
		if err := coord.Start(ctx); err != nil {
			log.Warn("voice commands unavailable", "err", err)
		}
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lp.Run(gctx) })
	g.Go(func() error {
		defer cancelPage()
		return br.Run(gctx, coord, lp.Post)
	})
	err = g.Wait()

	// The loop has stopped, so the coordinator can be closed from here.
	coord.Close()
	br.Close()
	log.Info("page disconnected", "duration", time.Since(p.info.StartedAt).Round(time.Second))

	if errors.Is(err, context.Canceled) || errors.Is(err, loop.ErrClosed) {
		return nil
	}
	return err
}

func (pm *PageManager) add(p *page) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.maxPages > 0 && len(pm.pages) >= pm.maxPages {
		return fmt.Errorf("%w (%d)", ErrPageLimit, pm.maxPages)
	}
	pm.pages[p.info.ID] = p
	if pm.metrics != nil {
		pm.metrics.ActivePages.Add(context.Background(), 1)
	}
	return nil
}

func (pm *PageManager) remove(p *page) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, ok := pm.pages[p.info.ID]; !ok {
		return
	}
	delete(pm.pages, p.info.ID)
	if pm.metrics != nil {
		pm.metrics.ActivePages.Add(context.Background(), -1)
	}
}

func (pm *PageManager) currentGrammar() *grammar.Grammar {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.grammar
}

// SetGrammar installs g for new pages and hands it to every live page's
// coordinator on that page's loop.
func (pm *PageManager) SetGrammar(g *grammar.Grammar) {
	pm.mu.Lock()
	pm.grammar = g
	live := make([]*page, 0, len(pm.pages))
	for _, p := range pm.pages {
		live = append(live, p)
	}
	pm.mu.Unlock()

	for _, p := range live {
		coord := p.coord
		if err := p.loop.Post(func() { coord.SetGrammar(g) }); err != nil {
			pm.log.Debug("grammar not delivered to closed page", "page", p.info.ID)
		}
	}
}

// Count returns the number of connected pages.
func (pm *PageManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.pages)
}

// List returns the connected pages ordered by connection time.
func (pm *PageManager) List() []PageInfo {
	pm.mu.Lock()
	out := make([]PageInfo, 0, len(pm.pages))
	for _, p := range pm.pages {
		out = append(out, p.info)
	}
	pm.mu.Unlock()

	slices.SortFunc(out, func(a, b PageInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Ready reports an error while the page limit is reached.
func (pm *PageManager) Ready(context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.maxPages > 0 && len(pm.pages) >= pm.maxPages {
		return fmt.Errorf("%d of %d pages connected", len(pm.pages), pm.maxPages)
	}
	return nil
}
