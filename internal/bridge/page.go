// Package bridge connects one browser page to the voice engine over a
// websocket.
//
// A [Page] implements every collaborator interface the engine needs
// (recognition service, speech synthesiser, audio transport, document and
// filter listings, navigator, notifier and phase observer) by exchanging JSON
// [Message] envelopes with a small script on the page. Outbound messages go
// through a bounded queue drained by a single writer goroutine, so callers on
// the page's event loop never block on the network. A page that cannot keep
// up with its queue is disconnected.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxportal/internal/coordinator"
	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/recognition"
	"github.com/MrWong99/voxportal/internal/speech"
)

// ErrClosed is returned by every outbound call once the page is closed.
var ErrClosed = errors.New("bridge: page closed")

const (
	defaultQueueSize    = 128
	defaultWriteTimeout = 5 * time.Second
)

// Compile-time interface assertions.
var (
	_ recognition.Service         = (*Page)(nil)
	_ speech.Synthesizer          = (*Page)(nil)
	_ dispatch.AudioTransport     = (*Page)(nil)
	_ dispatch.DocumentEnumerator = (*Page)(nil)
	_ dispatch.FilterCatalog      = (*Page)(nil)
	_ dispatch.Navigator          = (*Page)(nil)
	_ coordinator.Notifier        = (*Page)(nil)
	_ coordinator.Observer        = (*Page)(nil)
	_ Events                      = (*coordinator.Coordinator)(nil)
)

// Events receives the page events that drive the voice cycle. Every call is
// made through the post function given to [Page.Run], so it runs on the
// page's event loop.
type Events interface {
	HandleRecognition(ev recognition.Event) bool
	HandleSpeech(ev speech.Event) bool
	DocumentLoading(id string)
	ToggleManual()
}

// Option is a functional option for [NewPage].
type Option func(*Page)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Page) { p.log = l }
}

// WithQueueSize sets the outbound queue capacity. Default: 128.
func WithQueueSize(n int) Option {
	return func(p *Page) {
		if n > 0 {
			p.out = make(chan Message, n)
		}
	}
}

// WithWriteTimeout bounds each websocket write. Default: 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Page) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// Page is one connected browser page.
type Page struct {
	id           string
	conn         *websocket.Conn
	out          chan Message
	log          *slog.Logger
	writeTimeout time.Duration

	mu      sync.Mutex
	audio   dispatch.AudioState
	docs    dispatch.DocumentList
	filters map[grammar.Dimension][]dispatch.FilterOption

	done      chan struct{}
	closeOnce sync.Once
}

// NewPage wraps an accepted websocket connection and assigns the page a
// random id.
func NewPage(conn *websocket.Conn, opts ...Option) *Page {
	p := &Page{
		id:           uuid.NewString(),
		conn:         conn,
		out:          make(chan Message, defaultQueueSize),
		log:          slog.Default(),
		writeTimeout: defaultWriteTimeout,
		audio:        dispatch.AudioState{Paused: true, Rate: 1, Volume: 1},
		filters:      map[grammar.Dimension][]dispatch.FilterOption{},
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("page", p.id)
	return p
}

// ID returns the page id.
func (p *Page) ID() string { return p.id }

// Handshake reads the page's hello message.
func (p *Page) Handshake(ctx context.Context) (Hello, error) {
	var m Message
	if err := wsjson.Read(ctx, p.conn, &m); err != nil {
		return Hello{}, fmt.Errorf("bridge: read hello: %w", err)
	}
	if m.Type != TypeHello || m.Hello == nil {
		return Hello{}, fmt.Errorf("bridge: first message is %q, want %q", m.Type, TypeHello)
	}
	return *m.Hello, nil
}

// Run pumps messages until the page unloads, the connection drops, the page
// is closed or ctx is cancelled. Inbound events are handed to events through
// post. A page unload or a normal close returns nil.
func (p *Page) Run(ctx context.Context, events Events, post func(func()) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.writeLoop(ctx) })
	g.Go(func() error {
		defer p.Close()
		return p.readLoop(ctx, events, post)
	})
	err := g.Wait()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Close stops the writer. Further outbound calls return [ErrClosed]. It is
// idempotent.
func (p *Page) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Done is closed by [Page.Close].
func (p *Page) Done() <-chan struct{} { return p.done }

func (p *Page) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return ErrClosed
		case m := <-p.out:
			wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
			err := wsjson.Write(wctx, p.conn, m)
			cancel()
			if err != nil {
				return fmt.Errorf("bridge: write %s: %w", m.Type, err)
			}
		}
	}
}

func (p *Page) readLoop(ctx context.Context, events Events, post func(func()) error) error {
	for {
		var m Message
		if err := wsjson.Read(ctx, p.conn, &m); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			select {
			case <-p.done:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("bridge: read: %w", err)
		}
		if m.Type == TypePageUnload {
			p.log.Debug("bridge: page unloaded")
			return nil
		}
		if err := p.handle(m, events, post); err != nil {
			return err
		}
	}
}

// handle applies one inbound message. State snapshots are stored directly,
// in arrival order; events for the voice cycle are posted to the loop.
func (p *Page) handle(m Message, events Events, post func(func()) error) error {
	switch m.Type {
	case TypeRecognitionEvent:
		if m.Recognition == nil {
			break
		}
		ev := *m.Recognition
		if ev.Kind == recognition.EventResult && ev.Transcript.Generation == 0 {
			// Stamped on arrival: a listing that changes while the
			// transcript waits in the loop makes its ordinals stale.
			p.mu.Lock()
			ev.Transcript.Generation = p.docs.Generation
			p.mu.Unlock()
		}
		return post(func() { events.HandleRecognition(ev) })

	case TypeSpeechEvent:
		if m.Speech == nil {
			break
		}
		ev := *m.Speech
		return post(func() { events.HandleSpeech(ev) })

	case TypeDocumentLoading:
		id := ""
		if m.Document != nil {
			id = m.Document.ID
		}
		return post(func() { events.DocumentLoading(id) })

	case TypeHotkeyToggle:
		return post(events.ToggleManual)

	case TypeAudioState:
		if m.Audio == nil {
			break
		}
		p.mu.Lock()
		p.audio = *m.Audio
		p.mu.Unlock()
		return nil

	case TypeDocumentsChanged:
		if m.Documents == nil {
			break
		}
		p.mu.Lock()
		p.docs = *m.Documents
		p.mu.Unlock()
		return nil

	case TypeFiltersChanged:
		p.mu.Lock()
		p.filters = m.Filters
		p.mu.Unlock()
		return nil

	case TypeHello:
		return nil

	default:
		p.log.Debug("bridge: unknown message type", "type", m.Type)
		return nil
	}
	p.log.Debug("bridge: message without payload", "type", m.Type)
	return nil
}

// send queues m for the writer. A full queue disconnects the page.
func (p *Page) send(m Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- m:
		return nil
	case <-p.done:
		return ErrClosed
	default:
		p.log.Warn("bridge: outbound queue full, disconnecting page", "type", m.Type)
		p.Close()
		return fmt.Errorf("bridge: send %s: queue full: %w", m.Type, ErrClosed)
	}
}

// --- recognition.Service ---

// Start implements [recognition.Service].
func (p *Page) Start(req recognition.Request) error {
	return p.send(Message{Type: TypeRecognitionStart, Request: &req})
}

// Stop implements [recognition.Service].
func (p *Page) Stop(runID uint64) error {
	return p.send(Message{Type: TypeRecognitionStop, RunID: runID})
}

// --- speech.Synthesizer ---

// Speak implements [speech.Synthesizer].
func (p *Page) Speak(u speech.Utterance) error {
	return p.send(Message{Type: TypeSpeechSpeak, Utterance: &u})
}

// Cancel implements [speech.Synthesizer].
func (p *Page) Cancel() error {
	return p.send(Message{Type: TypeSpeechCancel})
}

// --- dispatch.AudioTransport ---

// updateAudio applies fn to the local audio snapshot so that State reflects
// a change before the page confirms it.
func (p *Page) updateAudio(fn func(*dispatch.AudioState)) {
	p.mu.Lock()
	fn(&p.audio)
	p.mu.Unlock()
}

// Play implements [dispatch.AudioTransport].
func (p *Page) Play() error {
	p.updateAudio(func(a *dispatch.AudioState) { a.Paused = false })
	return p.send(Message{Type: TypeAudioPlay})
}

// Pause implements [dispatch.AudioTransport].
func (p *Page) Pause() error {
	p.updateAudio(func(a *dispatch.AudioState) { a.Paused = true })
	return p.send(Message{Type: TypeAudioPause})
}

// Seek implements [dispatch.AudioTransport].
func (p *Page) Seek(seconds float64) error {
	p.updateAudio(func(a *dispatch.AudioState) { a.CurrentTime = seconds })
	return p.send(Message{Type: TypeAudioSeek, Value: value(seconds)})
}

// SetRate implements [dispatch.AudioTransport].
func (p *Page) SetRate(rate float64) error {
	p.updateAudio(func(a *dispatch.AudioState) { a.Rate = rate })
	return p.send(Message{Type: TypeAudioRate, Value: value(rate)})
}

// SetVolume implements [dispatch.AudioTransport].
func (p *Page) SetVolume(volume float64) error {
	p.updateAudio(func(a *dispatch.AudioState) { a.Volume = volume })
	return p.send(Message{Type: TypeAudioVolume, Value: value(volume)})
}

// Mute implements [dispatch.AudioTransport].
func (p *Page) Mute() error {
	p.updateAudio(func(a *dispatch.AudioState) { a.Muted = true })
	return p.send(Message{Type: TypeAudioMute})
}

// Unmute implements [dispatch.AudioTransport].
func (p *Page) Unmute() error {
	p.updateAudio(func(a *dispatch.AudioState) { a.Muted = false })
	return p.send(Message{Type: TypeAudioUnmute})
}

// State implements [dispatch.AudioTransport].
func (p *Page) State() dispatch.AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio
}

// --- dispatch.DocumentEnumerator and dispatch.FilterCatalog ---

// VisibleDocuments implements [dispatch.DocumentEnumerator].
func (p *Page) VisibleDocuments() dispatch.DocumentList {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dispatch.DocumentList{
		Generation: p.docs.Generation,
		Documents:  slices.Clone(p.docs.Documents),
	}
}

// FilterOptions implements [dispatch.FilterCatalog].
func (p *Page) FilterOptions(d grammar.Dimension) []dispatch.FilterOption {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.filters[d])
}

// --- dispatch.Navigator ---

// OpenDocument implements [dispatch.Navigator].
func (p *Page) OpenDocument(d dispatch.Document) error {
	return p.send(Message{Type: TypeNavOpen, Document: &d})
}

// PlayDocument implements [dispatch.Navigator].
func (p *Page) PlayDocument(d dispatch.Document) error {
	return p.send(Message{Type: TypeNavPlay, Document: &d})
}

// ApplyFilter implements [dispatch.Navigator].
func (p *Page) ApplyFilter(d grammar.Dimension, o dispatch.FilterOption) error {
	return p.send(Message{Type: TypeNavFilter, Dimension: d, Option: &o})
}

// ResetFilters implements [dispatch.Navigator].
func (p *Page) ResetFilters() error { return p.send(Message{Type: TypeNavResetFilters}) }

// NextPage implements [dispatch.Navigator].
func (p *Page) NextPage() error { return p.send(Message{Type: TypeNavNextPage}) }

// PreviousPage implements [dispatch.Navigator].
func (p *Page) PreviousPage() error { return p.send(Message{Type: TypeNavPreviousPage}) }

// Download implements [dispatch.Navigator].
func (p *Page) Download() error { return p.send(Message{Type: TypeNavDownload}) }

// --- coordinator.Notifier and coordinator.Observer ---

// Notice implements [coordinator.Notifier].
func (p *Page) Notice(_ context.Context, text string) {
	if err := p.send(Message{Type: TypeNotice, Text: text}); err != nil {
		p.log.Debug("bridge: notice not sent", "err", err)
	}
}

// PhaseChanged implements [coordinator.Observer]. It pushes the voice state
// for the page's indicator.
func (p *Page) PhaseChanged(from, to coordinator.Phase) {
	if err := p.send(Message{Type: TypeVoiceState, Phase: to.String(), Previous: from.String()}); err != nil {
		p.log.Debug("bridge: voice state not sent", "err", err)
	}
}
