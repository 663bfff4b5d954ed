package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voxportal/internal/bridge"
	"github.com/MrWong99/voxportal/internal/coordinator"
	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/recognition"
	"github.com/MrWong99/voxportal/internal/speech"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// recorder is an Events implementation that forwards every call to a channel.
type recorder struct {
	recognition chan recognition.Event
	speech      chan speech.Event
	loading     chan string
	toggles     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		recognition: make(chan recognition.Event, 8),
		speech:      make(chan speech.Event, 8),
		loading:     make(chan string, 8),
		toggles:     make(chan struct{}, 8),
	}
}

func (r *recorder) HandleRecognition(ev recognition.Event) bool { r.recognition <- ev; return true }
func (r *recorder) HandleSpeech(ev speech.Event) bool           { r.speech <- ev; return true }
func (r *recorder) DocumentLoading(id string)                   { r.loading <- id }
func (r *recorder) ToggleManual()                               { r.toggles <- struct{}{} }

func inline(fn func()) error { fn(); return nil }

type harness struct {
	client *websocket.Conn
	page   *bridge.Page
	hello  bridge.Hello
	runErr chan error
	events *recorder
}

// startPage serves one page, dials it and completes the handshake.
func startPage(t *testing.T) *harness {
	t.Helper()
	h := &harness{runErr: make(chan error, 1), events: newRecorder()}
	pages := make(chan *bridge.Page, 1)
	hellos := make(chan bridge.Hello, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		p := bridge.NewPage(conn)
		hello, err := p.Handshake(r.Context())
		if err != nil {
			h.runErr <- err
			return
		}
		hellos <- hello
		pages <- p
		h.runErr <- p.Run(r.Context(), h.events, inline)
	}))
	t.Cleanup(srv.Close)

	ctx := testContext(t)
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.CloseNow() })
	h.client = c

	send(t, c, bridge.Message{Type: bridge.TypeHello, Hello: &bridge.Hello{
		Recognition: true,
		Synthesis:   true,
		Language:    "id-ID",
	}})
	select {
	case h.hello = <-hellos:
		h.page = <-pages
	case err := <-h.runErr:
		t.Fatalf("handshake: %v", err)
	case <-ctx.Done():
		t.Fatal("handshake timed out")
	}
	return h
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func send(t *testing.T, c *websocket.Conn, m bridge.Message) {
	t.Helper()
	if err := wsjson.Write(testContext(t), c, m); err != nil {
		t.Fatalf("write %s: %v", m.Type, err)
	}
}

// readRaw reads one frame and returns its bytes and decoded message.
func readRaw(t *testing.T, c *websocket.Conn) ([]byte, bridge.Message) {
	t.Helper()
	_, data, err := c.Read(testContext(t))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m bridge.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return data, m
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

// barrier sends a speech event and waits until it is routed, so every
// earlier message has been applied.
func (h *harness) barrier(t *testing.T) {
	t.Helper()
	send(t, h.client, bridge.Message{Type: bridge.TypeSpeechEvent, Speech: &speech.Event{UtteranceID: 999, Kind: speech.EventEnd}})
	if ev := receive(t, h.events.speech); ev.UtteranceID != 999 {
		t.Fatalf("barrier got utterance %d", ev.UtteranceID)
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestHandshake_ReadsHello(t *testing.T) {
	t.Parallel()
	h := startPage(t)
	if !h.hello.Recognition || !h.hello.Synthesis || h.hello.Language != "id-ID" {
		t.Errorf("hello = %+v", h.hello)
	}
	if h.page.ID() == "" {
		t.Error("page has no id")
	}
}

func TestHandshake_RejectsOtherFirstMessage(t *testing.T) {
	t.Parallel()
	errs := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		_, err = bridge.NewPage(conn).Handshake(r.Context())
		errs <- err
	}))
	t.Cleanup(srv.Close)

	ctx := testContext(t)
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.CloseNow()
	send(t, c, bridge.Message{Type: bridge.TypeHotkeyToggle})

	if err := receive(t, errs); err == nil {
		t.Fatal("Handshake accepted a non-hello first message")
	}
}

func TestRun_RoutesEvents(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	send(t, h.client, bridge.Message{Type: bridge.TypeRecognitionEvent, Recognition: &recognition.Event{
		RunID:      4,
		Kind:       recognition.EventResult,
		Transcript: recognition.Transcript{Text: "halo portal", IsFinal: true},
	}})
	ev := receive(t, h.events.recognition)
	if ev.RunID != 4 || ev.Kind != recognition.EventResult || ev.Transcript.Text != "halo portal" || !ev.Transcript.IsFinal {
		t.Errorf("recognition event = %+v", ev)
	}

	send(t, h.client, bridge.Message{Type: bridge.TypeSpeechEvent, Speech: &speech.Event{UtteranceID: 7, Kind: speech.EventStart}})
	if sev := receive(t, h.events.speech); sev.UtteranceID != 7 || sev.Kind != speech.EventStart {
		t.Errorf("speech event = %+v", sev)
	}

	send(t, h.client, bridge.Message{Type: bridge.TypeDocumentLoading, Document: &dispatch.Document{ID: "doc-9"}})
	if id := receive(t, h.events.loading); id != "doc-9" {
		t.Errorf("document loading id = %q, want doc-9", id)
	}

	send(t, h.client, bridge.Message{Type: bridge.TypeHotkeyToggle})
	receive(t, h.events.toggles)
}

func TestRun_UnloadEndsRun(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	send(t, h.client, bridge.Message{Type: bridge.TypePageUnload})
	if err := receive(t, h.runErr); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if err := h.page.Play(); !errors.Is(err, bridge.ErrClosed) {
		t.Errorf("Play after unload = %v, want ErrClosed", err)
	}
}

func TestRun_NormalCloseEndsRun(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	if err := h.client.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Logf("close: %v", err)
	}
	if err := receive(t, h.runErr); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
}

func TestPage_SendsRecognitionStart(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	if err := h.page.Start(recognition.Request{RunID: 3, Mode: recognition.ModeWake, Language: "id-ID", Continuous: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	data, m := readRaw(t, h.client)
	if m.Type != bridge.TypeRecognitionStart || m.Request == nil {
		t.Fatalf("message = %s", data)
	}
	if m.Request.RunID != 3 || m.Request.Mode != recognition.ModeWake || !m.Request.Continuous {
		t.Errorf("request = %+v", *m.Request)
	}
	if !strings.Contains(string(data), `"mode":"wake"`) {
		t.Errorf("mode not encoded by name: %s", data)
	}

	if err := h.page.Stop(3); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, m := readRaw(t, h.client); m.Type != bridge.TypeRecognitionStop || m.RunID != 3 {
		t.Errorf("stop message = %+v", m)
	}
}

func TestPage_OutboundMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		call  func(p *bridge.Page) error
		check func(t *testing.T, m bridge.Message)
	}{
		{
			name: "speak",
			call: func(p *bridge.Page) error {
				return p.Speak(speech.Utterance{ID: 2, Text: "Ya?", Locale: "id-ID", Rate: 1, Volume: 1})
			},
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeSpeechSpeak || m.Utterance == nil || m.Utterance.ID != 2 || m.Utterance.Text != "Ya?" {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "cancel",
			call: func(p *bridge.Page) error { return p.Cancel() },
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeSpeechCancel {
					t.Errorf("type = %q", m.Type)
				}
			},
		},
		{
			name: "seek",
			call: func(p *bridge.Page) error { return p.Seek(150) },
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeAudioSeek || m.Value == nil || *m.Value != 150 {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "seek to start",
			call: func(p *bridge.Page) error { return p.Seek(0) },
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeAudioSeek || m.Value == nil || *m.Value != 0 {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "filter",
			call: func(p *bridge.Page) error {
				return p.ApplyFilter(grammar.DimensionYear, dispatch.FilterOption{Value: "2023", Label: "2023"})
			},
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeNavFilter || m.Dimension != grammar.DimensionYear || m.Option == nil || m.Option.Value != "2023" {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "open document",
			call: func(p *bridge.Page) error { return p.OpenDocument(dispatch.Document{ID: "b", Title: "Dokumen b"}) },
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeNavOpen || m.Document == nil || m.Document.ID != "b" {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "download",
			call: func(p *bridge.Page) error { return p.Download() },
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeNavDownload {
					t.Errorf("type = %q", m.Type)
				}
			},
		},
		{
			name: "phase changed",
			call: func(p *bridge.Page) error {
				p.PhaseChanged(coordinator.PhaseWakeListening, coordinator.PhaseCommandListening)
				return nil
			},
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeVoiceState || m.Phase != "command_listening" || m.Previous != "wake_listening" {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name: "notice",
			call: func(p *bridge.Page) error {
				p.Notice(context.Background(), coordinator.PhrasePermissionDenied)
				return nil
			},
			check: func(t *testing.T, m bridge.Message) {
				if m.Type != bridge.TypeNotice || m.Text != coordinator.PhrasePermissionDenied {
					t.Errorf("message = %+v", m)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := startPage(t)
			if err := tt.call(h.page); err != nil {
				t.Fatalf("call: %v", err)
			}
			_, m := readRaw(t, h.client)
			tt.check(t, m)
		})
	}
}

func TestPage_AudioStateFromPage(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	if st := h.page.State(); !st.Paused || st.Rate != 1 || st.Volume != 1 || st.HasSource {
		t.Errorf("initial state = %+v", st)
	}

	send(t, h.client, bridge.Message{Type: bridge.TypeAudioState, Audio: &dispatch.AudioState{
		HasSource:   true,
		CurrentTime: 42,
		Duration:    180,
		Rate:        1.5,
		Volume:      0.8,
	}})
	h.barrier(t)

	st := h.page.State()
	if !st.HasSource || st.CurrentTime != 42 || st.Duration != 180 || st.Paused || st.Rate != 1.5 || st.Volume != 0.8 {
		t.Errorf("state = %+v", st)
	}
	if !st.Playing() {
		t.Error("Playing() = false, want true")
	}
}

func TestPage_AudioCommandsUpdateStateImmediately(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	if err := h.page.SetRate(1.25); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if got := h.page.State().Rate; got != 1.25 {
		t.Errorf("Rate = %v, want 1.25", got)
	}
	if err := h.page.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if h.page.State().Paused {
		t.Error("Paused after Play")
	}
	if err := h.page.Mute(); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	if !h.page.State().Muted {
		t.Error("not Muted after Mute")
	}

	want := []string{bridge.TypeAudioRate, bridge.TypeAudioPlay, bridge.TypeAudioMute}
	for _, typ := range want {
		if _, m := readRaw(t, h.client); m.Type != typ {
			t.Errorf("message type = %q, want %q", m.Type, typ)
		}
	}
}

func TestPage_DocumentsAndFilters(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	send(t, h.client, bridge.Message{Type: bridge.TypeDocumentsChanged, Documents: &dispatch.DocumentList{
		Generation: 5,
		Documents: []dispatch.Document{
			{ID: "a", Title: "Statistik Kesejahteraan Rakyat"},
			{ID: "b", Title: "Indikator Pasar Tenaga Kerja"},
		},
	}})
	send(t, h.client, bridge.Message{Type: bridge.TypeFiltersChanged, Filters: map[grammar.Dimension][]dispatch.FilterOption{
		grammar.DimensionYear: {{Value: "2023", Label: "2023"}, {Value: "2024", Label: "2024"}},
	}})
	h.barrier(t)

	list := h.page.VisibleDocuments()
	if list.Generation != 5 || len(list.Documents) != 2 || list.Documents[1].ID != "b" {
		t.Fatalf("documents = %+v", list)
	}
	list.Documents[0].Title = "changed"
	if got := h.page.VisibleDocuments().Documents[0].Title; got != "Statistik Kesejahteraan Rakyat" {
		t.Errorf("VisibleDocuments shares its slice: title = %q", got)
	}

	if opts := h.page.FilterOptions(grammar.DimensionYear); len(opts) != 2 || opts[1].Value != "2024" {
		t.Errorf("year options = %+v", opts)
	}
	if opts := h.page.FilterOptions(grammar.DimensionIndicator); len(opts) != 0 {
		t.Errorf("category options = %+v, want none", opts)
	}
}

func TestPage_TranscriptKeepsListingGenerationOfArrival(t *testing.T) {
	t.Parallel()
	h := startPage(t)

	listing := func(gen uint64, ids ...string) bridge.Message {
		docs := make([]dispatch.Document, len(ids))
		for i, id := range ids {
			docs[i] = dispatch.Document{ID: id, Title: "Dokumen " + id}
		}
		return bridge.Message{Type: bridge.TypeDocumentsChanged, Documents: &dispatch.DocumentList{Generation: gen, Documents: docs}}
	}
	result := func(text string, gen uint64) bridge.Message {
		return bridge.Message{Type: bridge.TypeRecognitionEvent, Recognition: &recognition.Event{
			RunID:      1,
			Kind:       recognition.EventResult,
			Transcript: recognition.Transcript{Text: text, IsFinal: true, Generation: gen},
		}}
	}

	// The recorder queues events without handling them, like a busy loop:
	// the re-scan lands before the transcript is processed.
	send(t, h.client, listing(1, "a", "b", "c"))
	send(t, h.client, result("putar dokumen nomor dua", 0))
	send(t, h.client, listing(2, "x", "y", "z"))
	send(t, h.client, result("putar dokumen nomor satu", 9))
	h.barrier(t)

	if gen := h.page.VisibleDocuments().Generation; gen != 2 {
		t.Fatalf("listing generation = %d, want 2", gen)
	}
	if ev := receive(t, h.events.recognition); ev.Transcript.Generation != 1 {
		t.Errorf("transcript stamped with generation %d, want 1", ev.Transcript.Generation)
	}
	if ev := receive(t, h.events.recognition); ev.Transcript.Generation != 9 {
		t.Errorf("page-supplied generation replaced: got %d, want 9", ev.Transcript.Generation)
	}
}

func TestPage_FullQueueClosesPage(t *testing.T) {
	t.Parallel()
	p := bridge.NewPage(nil, bridge.WithQueueSize(1))

	if err := p.Play(); err != nil {
		t.Fatalf("first send: %v", err)
	}
	err := p.Pause()
	if !errors.Is(err, bridge.ErrClosed) {
		t.Fatalf("second send = %v, want ErrClosed", err)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("page not closed after queue overflow")
	}
	if err := p.Start(recognition.Request{RunID: 1}); !errors.Is(err, bridge.ErrClosed) {
		t.Errorf("Start after close = %v, want ErrClosed", err)
	}
}

func TestPage_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	p := bridge.NewPage(nil)
	p.Close()
	p.Close()
	if err := p.Speak(speech.Utterance{ID: 1, Text: "x"}); !errors.Is(err, bridge.ErrClosed) {
		t.Errorf("Speak after Close = %v, want ErrClosed", err)
	}
}

func TestNewPage_UniqueIDs(t *testing.T) {
	t.Parallel()
	a, b := bridge.NewPage(nil), bridge.NewPage(nil)
	if a.ID() == b.ID() {
		t.Errorf("two pages share id %q", a.ID())
	}
}
