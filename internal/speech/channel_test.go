package speech_test

import (
	"errors"
	"testing"
	"time"

	loopmock "github.com/MrWong99/voxportal/internal/loop/mock"
	"github.com/MrWong99/voxportal/internal/speech"
	"github.com/MrWong99/voxportal/internal/speech/mock"
)

func newChannel(opts ...speech.Option) (*speech.Channel, *mock.Synthesizer, *loopmock.Scheduler) {
	synth := &mock.Synthesizer{}
	sched := &loopmock.Scheduler{}
	cfg := speech.Config{WatchdogBase: time.Second, WatchdogPerChar: 10 * time.Millisecond}
	return speech.NewChannel(cfg, synth, sched, opts...), synth, sched
}

func TestChannel_SpeakCompletesOnEnd(t *testing.T) {
	t.Parallel()

	c, synth, _ := newChannel()
	done := 0
	id := c.Speak("halo", func() { done++ })

	if !c.IsSpeaking() {
		t.Fatal("IsSpeaking() = false right after Speak")
	}
	u := synth.Last()
	if u.ID != id || u.Text != "halo" || u.Locale != "id-ID" || u.Rate != 1 || u.Volume != 1 {
		t.Errorf("utterance = %+v", u)
	}

	c.Deliver(speech.Event{UtteranceID: id, Kind: speech.EventStart})
	if done != 0 {
		t.Fatal("continuation ran on start event")
	}
	c.Deliver(speech.Event{UtteranceID: id, Kind: speech.EventEnd})
	if done != 1 || c.IsSpeaking() {
		t.Errorf("done = %d speaking = %v, want 1 false", done, c.IsSpeaking())
	}

	// A duplicate end is stale.
	if c.Deliver(speech.Event{UtteranceID: id, Kind: speech.EventEnd}) {
		t.Error("duplicate end event was applied")
	}
	if done != 1 {
		t.Errorf("continuation ran %d times, want 1", done)
	}
}

func TestChannel_ErrorIsCompletion(t *testing.T) {
	t.Parallel()

	c, _, _ := newChannel()
	done := false
	id := c.Speak("halo", func() { done = true })
	c.Deliver(speech.Event{UtteranceID: id, Kind: speech.EventError, Error: "interrupted"})
	if !done || c.IsSpeaking() {
		t.Error("synthesis error did not complete the utterance")
	}
}

func TestChannel_SpeakFailureCompletesAsync(t *testing.T) {
	t.Parallel()

	c, synth, sched := newChannel()
	synth.SpeakErr = errors.New("no voices")
	done := false
	c.Speak("halo", func() { done = true })
	if done {
		t.Fatal("continuation ran before Speak returned")
	}
	sched.Advance(0)
	if !done || c.IsSpeaking() {
		t.Error("failed Speak was not completed on the next turn")
	}
}

func TestChannel_InterruptDropsContinuation(t *testing.T) {
	t.Parallel()

	var outcomes []speech.Outcome
	c, synth, _ := newChannel(speech.WithFinishHook(func(o speech.Outcome, _ time.Duration) {
		outcomes = append(outcomes, o)
	}))

	first, second := 0, 0
	id1 := c.Speak("satu", func() { first++ })
	id2 := c.Speak("dua", func() { second++ })

	if synth.Cancels != 1 {
		t.Errorf("cancels = %d, want 1", synth.Cancels)
	}
	if c.Deliver(speech.Event{UtteranceID: id1, Kind: speech.EventEnd}) {
		t.Error("end of superseded utterance was applied")
	}
	c.Deliver(speech.Event{UtteranceID: id2, Kind: speech.EventEnd})

	if first != 0 || second != 1 {
		t.Errorf("continuations first=%d second=%d, want 0 1", first, second)
	}
	if len(outcomes) != 2 || outcomes[0] != speech.OutcomeSuperseded || outcomes[1] != speech.OutcomeEnded {
		t.Errorf("outcomes = %v, want [superseded ended]", outcomes)
	}
}

func TestChannel_SpeakWithoutInterruptingAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		playing     bool
		wantPauses  int
		wantResumes int
	}{
		{name: "playing", playing: true, wantPauses: 1, wantResumes: 1},
		{name: "paused", playing: false, wantPauses: 0, wantResumes: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _, _ := newChannel()
			pb := &mock.Playback{Playing: tt.playing}
			done := false
			id := c.SpeakWithoutInterruptingAudio("dokumen dua", pb, func() { done = true })
			if pb.Pauses != tt.wantPauses {
				t.Errorf("pauses = %d, want %d", pb.Pauses, tt.wantPauses)
			}
			c.Deliver(speech.Event{UtteranceID: id, Kind: speech.EventEnd})
			if pb.Resumes != tt.wantResumes || !done {
				t.Errorf("resumes = %d done = %v, want %d true", pb.Resumes, done, tt.wantResumes)
			}
		})
	}
}

func TestChannel_ResumeDutyMovesToReplacement(t *testing.T) {
	t.Parallel()

	c, _, _ := newChannel()
	pb := &mock.Playback{Playing: true}
	c.SpeakWithoutInterruptingAudio("panduan", pb, nil)
	id := c.Speak("jeda", nil)
	if pb.Resumes != 0 {
		t.Fatal("audio resumed while the replacement is still speaking")
	}
	c.Deliver(speech.Event{UtteranceID: id, Kind: speech.EventEnd})
	if pb.Resumes != 1 {
		t.Errorf("resumes = %d, want 1", pb.Resumes)
	}
}

func TestChannel_Watchdog(t *testing.T) {
	t.Parallel()

	c, synth, sched := newChannel()
	done := false
	c.Speak("halo", func() { done = true }) // 1s + 4*10ms

	sched.Advance(1039 * time.Millisecond)
	if done {
		t.Fatal("watchdog fired early")
	}
	sched.Advance(time.Millisecond)
	if !done || c.IsSpeaking() {
		t.Error("watchdog did not complete the utterance")
	}
	if synth.Cancels != 1 {
		t.Errorf("cancels = %d, want 1 after watchdog", synth.Cancels)
	}
}

func TestChannel_Cancel(t *testing.T) {
	t.Parallel()

	c, synth, sched := newChannel()
	pb := &mock.Playback{Playing: true}
	done := false
	c.SpeakWithoutInterruptingAudio("halo", pb, func() { done = true })
	c.Cancel()

	if c.IsSpeaking() || done {
		t.Errorf("speaking = %v done = %v, want false false", c.IsSpeaking(), done)
	}
	if synth.Cancels != 1 || pb.Resumes != 1 {
		t.Errorf("cancels = %d resumes = %d, want 1 1", synth.Cancels, pb.Resumes)
	}
	sched.Advance(time.Minute)
	if done {
		t.Error("watchdog ran the continuation after Cancel")
	}
	c.Cancel() // idempotent
}
