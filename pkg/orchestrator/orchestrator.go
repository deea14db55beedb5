// Package orchestrator runs the wake-to-reply interaction loop.
//
// A single event loop owns the state machine and the microphone frame
// stream. Frames are routed by state: while listening they feed the
// wake-word detector, while recording they feed the active capture, and
// in every other state they are dropped. Slow stage work (transcription,
// the bus round-trip, synthesis and playback) runs in short-lived
// goroutines under per-stage deadlines; results come back over a channel
// tagged with the session ID, so a late result from an abandoned session
// is dropped instead of corrupting the current one.
//
// Every state that is not listening carries a deadline. Whatever a stage
// does, the loop always returns to listening.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/foyerhq/foyer/pkg/audioio"
	"github.com/foyerhq/foyer/pkg/bus"
	"github.com/foyerhq/foyer/pkg/recorder"
	"github.com/foyerhq/foyer/pkg/stt"
	"github.com/foyerhq/foyer/pkg/tts"
	"github.com/foyerhq/foyer/pkg/wakeword"
)

const statusPublishTimeout = 2 * time.Second

// Bus is the message-bus surface the orchestrator needs.
type Bus interface {
	SendAndAwait(ctx context.Context, req bus.VoiceRequest) (bus.VoiceReply, error)
	PublishStatus(ctx context.Context, status bus.Status) error
	Connected() bool
}

// Speaker plays synthesized audio.
type Speaker interface {
	Play(ctx context.Context, result *tts.AudioResult) error
	PlayStream(ctx context.Context, stream tts.AudioStream) error
}

// Config holds the orchestrator's stage deadlines and playback options.
type Config struct {
	// STTDeadline bounds the transcription call.
	STTDeadline time.Duration `yaml:"stt_deadline" json:"stt_deadline"`

	// ReplyDeadline bounds the bus request/reply round trip.
	ReplyDeadline time.Duration `yaml:"reply_deadline" json:"reply_deadline"`

	// SpeakDeadline bounds synthesis plus playback, including the
	// one fallback attempt.
	SpeakDeadline time.Duration `yaml:"speak_deadline" json:"speak_deadline"`

	// TTSEnabled turns spoken replies on. When false, replies are
	// logged and the loop re-arms immediately.
	TTSEnabled bool `yaml:"tts_enabled" json:"tts_enabled"`

	// StreamPlayback starts playback as synthesis chunks arrive
	// instead of waiting for the full clip.
	StreamPlayback bool `yaml:"stream_playback" json:"stream_playback"`

	// DetectorRetryMin is the initial backoff before restarting a
	// degraded wake-word detector.
	DetectorRetryMin time.Duration `yaml:"detector_retry_min" json:"detector_retry_min"`

	// DetectorRetryMax caps the detector restart backoff.
	DetectorRetryMax time.Duration `yaml:"detector_retry_max" json:"detector_retry_max"`
}

// DefaultConfig returns the stock deadlines.
func DefaultConfig() Config {
	return Config{
		STTDeadline:      10 * time.Second,
		ReplyDeadline:    5 * time.Second,
		SpeakDeadline:    30 * time.Second,
		TTSEnabled:       true,
		StreamPlayback:   true,
		DetectorRetryMin: 2 * time.Second,
		DetectorRetryMax: 60 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.STTDeadline <= 0 {
		return fmt.Errorf("stt_deadline must be positive, got %v", c.STTDeadline)
	}
	if c.ReplyDeadline <= 0 {
		return fmt.Errorf("reply_deadline must be positive, got %v", c.ReplyDeadline)
	}
	if c.SpeakDeadline <= 0 {
		return fmt.Errorf("speak_deadline must be positive, got %v", c.SpeakDeadline)
	}
	if c.DetectorRetryMin <= 0 || c.DetectorRetryMax < c.DetectorRetryMin {
		return fmt.Errorf("detector retry window invalid: min %v max %v",
			c.DetectorRetryMin, c.DetectorRetryMax)
	}
	return nil
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Source   audioio.Source
	Detector *wakeword.Detector
	Recorder *recorder.Recorder
	STT      stt.Client
	Bus      Bus

	// Synth and Speaker are required only when TTS is enabled.
	// Fallback is optional; when set it gets one attempt after Synth fails.
	Synth    tts.Provider
	Fallback tts.Provider
	Speaker  Speaker
}

type stageKind int

const (
	stageTranscribe stageKind = iota
	stageDispatch
	stageSpeak
)

// stageResult carries the outcome of a background stage back into the loop.
type stageResult struct {
	kind      stageKind
	sessionID string
	text      string
	reply     bus.VoiceReply
	err       error
}

// Orchestrator drives the interaction state machine.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	source   audioio.Source
	detector *wakeword.Detector
	recorder *recorder.Recorder
	stt      stt.Client
	bus      Bus
	synth    tts.Provider
	fallback tts.Provider
	speaker  Speaker

	// Loop-owned; touched only from Run's goroutine.
	state   State
	session *Session
	capture *recorder.Capture
	wakeCh  <-chan wakeword.Event
	stageCh chan stageResult
	pubCh   chan bus.Status
	retryCh <-chan time.Time
	backoff time.Duration

	// Readable from other goroutines via Health.
	started    time.Time
	stateWord  atomic.Int32
	wakeActive atomic.Bool
	sttOK      atomic.Uint64
	sttFailed  atomic.Uint64
}

// New creates an Orchestrator. It does not start the loop; call Run.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Detector == nil || deps.Recorder == nil {
		return nil, errors.New("orchestrator: source, detector and recorder are required")
	}
	if deps.STT == nil {
		return nil, errors.New("orchestrator: stt client is required")
	}
	if deps.Bus == nil {
		return nil, errors.New("orchestrator: bus is required")
	}
	if cfg.TTSEnabled && (deps.Synth == nil || deps.Speaker == nil) {
		return nil, errors.New("orchestrator: tts enabled but synth or speaker missing")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		source:   deps.Source,
		detector: deps.Detector,
		recorder: deps.Recorder,
		stt:      deps.STT,
		bus:      deps.Bus,
		synth:    deps.Synth,
		fallback: deps.Fallback,
		speaker:  deps.Speaker,
		state:    StateIdle,
		stageCh:  make(chan stageResult, 8),
		pubCh:    make(chan bus.Status, 16),
		backoff:  cfg.DetectorRetryMin,
	}, nil
}

// Run executes the interaction loop until ctx is cancelled.
// It returns nil on cancellation and an error only if the audio source dies.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.started = time.Now()
	go o.publishLoop(ctx)

	if err := o.source.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator: audio source: %w", err)
	}
	defer o.source.Stop()

	if err := o.detector.Start(); err != nil {
		return fmt.Errorf("orchestrator: wake detector: %w", err)
	}
	defer o.detector.Stop()
	o.wakeCh = o.detector.Events()
	o.wakeActive.Store(true)

	o.setState(StateListening, "")

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil

		case frame, ok := <-o.source.Frames():
			if !ok {
				o.shutdown()
				return errors.New("orchestrator: audio source closed")
			}
			o.handleFrame(ctx, frame)

		case ev, ok := <-o.wakeCh:
			if !ok {
				o.wakeCh = nil
				continue
			}
			o.handleWake(ev)

		case res := <-o.stageCh:
			o.handleStageResult(ctx, res)

		case <-o.retryCh:
			o.retryCh = nil
			o.restartDetector()
		}
	}
}

// handleFrame routes one microphone frame. Exactly one consumer sees it.
func (o *Orchestrator) handleFrame(ctx context.Context, frame audioio.Frame) {
	switch o.state {
	case StateListening:
		if o.wakeCh == nil {
			// Detector is down and waiting out its restart backoff.
			return
		}
		if err := o.detector.Feed(frame); errors.Is(err, wakeword.ErrDegraded) {
			o.degradeDetector()
		}

	case StateRecording:
		o.capture.Feed(frame)
		if o.capture.Finished() {
			u := <-o.capture.Done()
			o.capture = nil
			o.handleUtterance(ctx, u)
		}

	default:
		// Playback and in-flight stages do not consume microphone audio.
	}
}

// handleWake opens a session. Wake events outside StateListening are
// ignored so at most one session is ever in flight.
func (o *Orchestrator) handleWake(ev wakeword.Event) {
	if o.state != StateListening {
		o.logger.Debug("wake event ignored, session in flight", "state", o.state)
		return
	}

	o.backoff = o.cfg.DetectorRetryMin
	o.session = newSession(ev.Timestamp)
	o.capture = o.recorder.BeginCapture()

	o.logger.Info("session started",
		"session_id", o.session.ID,
		"score", ev.Score,
	)
	o.setState(StateRecording, "")
}

// handleUtterance decides what to do with a finished capture.
func (o *Orchestrator) handleUtterance(ctx context.Context, u recorder.Utterance) {
	if u.Empty() {
		o.logger.Info("empty utterance, no request sent", "session_id", o.session.ID)
		o.finishSession()
		return
	}

	o.logger.Info("utterance captured",
		"session_id", o.session.ID,
		"duration_ms", u.Duration.Milliseconds(),
		"end_reason", u.EndReason,
	)
	o.setState(StateTranscribing, "")

	go func(id string, u recorder.Utterance) {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.STTDeadline)
		defer cancel()

		text, err := o.stt.Transcribe(tctx, u)
		o.stageCh <- stageResult{kind: stageTranscribe, sessionID: id, text: text, err: err}
	}(o.session.ID, u)
}

// handleStageResult folds a background stage outcome back into the loop.
// Results for any session other than the current one are dropped.
func (o *Orchestrator) handleStageResult(ctx context.Context, res stageResult) {
	if o.session == nil || res.sessionID != o.session.ID {
		o.logger.Debug("stale stage result dropped", "session_id", res.sessionID)
		return
	}

	switch res.kind {
	case stageTranscribe:
		o.handleTranscript(ctx, res)
	case stageDispatch:
		o.handleReply(ctx, res)
	case stageSpeak:
		o.handleSpoken(res)
	}
}

func (o *Orchestrator) handleTranscript(ctx context.Context, res stageResult) {
	if res.err != nil {
		o.sttFailed.Add(1)
		o.fail(fmt.Errorf("transcription: %w", res.err))
		return
	}
	o.sttOK.Add(1)

	text := strings.TrimSpace(res.text)
	if text == "" {
		o.logger.Info("transcript empty, no request sent", "session_id", o.session.ID)
		o.finishSession()
		return
	}

	o.session.Transcript = text
	o.logger.Info("transcript ready", "session_id", o.session.ID, "chars", len(text))
	o.setState(StateAwaitingReply, "")

	go func(id, text string) {
		rctx, cancel := context.WithTimeout(ctx, o.cfg.ReplyDeadline)
		defer cancel()

		reply, err := o.bus.SendAndAwait(rctx, bus.VoiceRequest{
			Transcription: text,
			Timestamp:     time.Now().UTC(),
			SessionID:     id,
		})
		o.stageCh <- stageResult{kind: stageDispatch, sessionID: id, reply: reply, err: err}
	}(o.session.ID, text)
}

func (o *Orchestrator) handleReply(ctx context.Context, res stageResult) {
	if res.err != nil {
		if errors.Is(res.err, bus.ErrTimeout) {
			o.fail(fmt.Errorf("no reply within %v", o.cfg.ReplyDeadline))
		} else {
			o.fail(fmt.Errorf("dispatch: %w", res.err))
		}
		return
	}

	o.session.Reply = res.reply.Response
	if strings.TrimSpace(res.reply.Response) == "" || !o.cfg.TTSEnabled {
		o.logger.Info("reply received",
			"session_id", o.session.ID,
			"spoken", false,
		)
		o.finishSession()
		return
	}

	o.setState(StateSpeaking, "")
	go o.speak(ctx, o.session.ID, res.reply.Response)
}

func (o *Orchestrator) handleSpoken(res stageResult) {
	if res.err != nil {
		// Degrade gracefully: the reply was received and logged, the
		// spoken rendition is best-effort.
		o.logger.Warn("speech output failed",
			"session_id", o.session.ID,
			"error", res.err,
		)
	} else {
		o.logger.Info("session complete",
			"session_id", o.session.ID,
			"elapsed_ms", time.Since(o.session.CreatedAt).Milliseconds(),
		)
	}
	o.finishSession()
}

// speak synthesizes and plays the reply, trying the fallback provider
// once if the primary fails. Runs outside the loop goroutine.
func (o *Orchestrator) speak(ctx context.Context, id, text string) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.SpeakDeadline)
	defer cancel()

	err := o.trySpeak(sctx, o.synth, text)
	if err != nil && o.fallback != nil && sctx.Err() == nil {
		o.logger.Warn("primary synthesis failed, trying fallback",
			"provider", o.synth.Name(),
			"fallback", o.fallback.Name(),
			"error", err,
		)
		err = o.trySpeak(sctx, o.fallback, text)
	}

	o.stageCh <- stageResult{kind: stageSpeak, sessionID: id, err: err}
}

func (o *Orchestrator) trySpeak(ctx context.Context, p tts.Provider, text string) error {
	if o.cfg.StreamPlayback {
		stream, err := p.Stream(ctx, text)
		if err != nil {
			return err
		}
		return o.speaker.PlayStream(ctx, stream)
	}

	result, err := p.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return o.speaker.Play(ctx, result)
}

// fail records a session failure, surfaces it on the status topic, and
// re-arms listening. StateError is transient; it never persists.
func (o *Orchestrator) fail(err error) {
	o.logger.Error("session failed",
		"session_id", o.session.ID,
		"error", err,
	)
	o.setState(StateError, err.Error())
	o.finishSession()
}

// finishSession discards the session and re-arms the wake word.
func (o *Orchestrator) finishSession() {
	o.session = nil
	o.setState(StateListening, "")
}

// degradeDetector stops the detector and schedules a restart with
// exponential backoff. Listening continues but no wake events can fire.
func (o *Orchestrator) degradeDetector() {
	o.detector.Stop()
	o.wakeCh = nil
	o.wakeActive.Store(false)

	o.logger.Warn("wake detector degraded, restarting", "backoff", o.backoff)
	o.publishStatus(o.state, "wake-word detector degraded")

	o.retryCh = time.After(o.backoff)
	o.backoff = min(o.backoff*2, o.cfg.DetectorRetryMax)
}

func (o *Orchestrator) restartDetector() {
	if err := o.detector.Start(); err != nil {
		o.logger.Error("wake detector restart failed", "error", err)
		o.retryCh = time.After(o.backoff)
		o.backoff = min(o.backoff*2, o.cfg.DetectorRetryMax)
		return
	}

	o.wakeCh = o.detector.Events()
	o.wakeActive.Store(true)
	o.logger.Info("wake detector restarted")
	o.publishStatus(o.state, "")
}

func (o *Orchestrator) shutdown() {
	if o.capture != nil {
		o.capture.Abort()
		o.capture = nil
	}
	o.session = nil
	o.setState(StateIdle, "")
}

// setState transitions and publishes the new state on the status topic.
func (o *Orchestrator) setState(s State, errMsg string) {
	if o.state != s {
		o.logger.Debug("state transition", "from", o.state, "to", s)
	}
	o.state = s
	o.stateWord.Store(int32(s))
	o.publishStatus(s, errMsg)
}

// publishStatus hands the status to the publisher goroutine. The hand-off
// never blocks, so a slow broker cannot stall the frame loop, and a single
// publisher keeps transitions in order on the wire.
func (o *Orchestrator) publishStatus(s State, errMsg string) {
	status := bus.Status{
		State:          s.String(),
		WakeWordActive: o.wakeActive.Load(),
		Error:          errMsg,
	}
	select {
	case o.pubCh <- status:
	default:
		o.logger.Warn("status publish queue full, dropping", "state", status.State)
	}
}

func (o *Orchestrator) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case status := <-o.pubCh:
			pctx, cancel := context.WithTimeout(context.Background(), statusPublishTimeout)
			if err := o.bus.PublishStatus(pctx, status); err != nil {
				o.logger.Debug("status publish failed", "error", err)
			}
			cancel()
		}
	}
}

// Health is the liveness snapshot served over HTTP.
type Health struct {
	Status               string `json:"status"`
	State                string `json:"state"`
	WakeWordActive       bool   `json:"wake_word_active"`
	BusConnected         bool   `json:"bus_connected"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
	TranscriptionsOK     uint64 `json:"transcriptions_ok"`
	TranscriptionsFailed uint64 `json:"transcriptions_failed"`
}

// Health reports the orchestrator's current condition.
// Safe to call from any goroutine.
func (o *Orchestrator) Health() Health {
	wake := o.wakeActive.Load()
	connected := o.bus.Connected()

	status := "ok"
	if !wake || !connected {
		status = "degraded"
	}

	var uptime int64
	if !o.started.IsZero() {
		uptime = int64(time.Since(o.started).Seconds())
	}

	return Health{
		Status:               status,
		State:                State(o.stateWord.Load()).String(),
		WakeWordActive:       wake,
		BusConnected:         connected,
		UptimeSeconds:        uptime,
		TranscriptionsOK:     o.sttOK.Load(),
		TranscriptionsFailed: o.sttFailed.Load(),
	}
}
