package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyiyo/tutor-voice/internal/config"
	"github.com/steveyiyo/tutor-voice/internal/core/audio"
	"github.com/steveyiyo/tutor-voice/internal/core/gemini"
	"github.com/steveyiyo/tutor-voice/internal/core/openai"
	"github.com/steveyiyo/tutor-voice/internal/core/session"
	"github.com/steveyiyo/tutor-voice/internal/core/turn"
	"github.com/steveyiyo/tutor-voice/internal/logging"
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Start a voice tutoring session",
	RunE:  runTalk,
}

func runTalk(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := logging.NewTo(os.Stderr, cfg)

	provider, _ := cmd.Flags().GetString("provider")
	question, _ := cmd.Flags().GetString("question")
	answer, _ := cmd.Flags().GetString("answer")
	wrong, _ := cmd.Flags().GetString("wrong")
	meter, _ := cmd.Flags().GetBool("meter")
	if relayURL, _ := cmd.Flags().GetString("relay"); relayURL != "" {
		cfg.RelayURL = relayURL
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := openai.NewRelayClient(cfg.RelayURL)
	if answer == "" {
		a, err := relay.Answer(ctx, question)
		if err != nil {
			return fmt.Errorf("no --answer given and the relay could not solve it: %w", err)
		}
		answer = a
		log.Info("answer from relay", slog.String("answer", answer))
	}

	device := audio.NewDevice(audio.FFplay{Path: cfg.FFplayPath})
	if err := device.Open(); err != nil {
		return err
	}
	defer device.Close()

	tr, err := newTransport(provider, cfg, relay, device, log)
	if err != nil {
		return err
	}

	out := newTranscript(cmd.OutOrStdout())
	failed := make(chan error, 1)
	sessCfg := session.Config{
		Question:          question,
		CorrectAnswer:     answer,
		WrongAttempt:      wrong,
		OnUserTranscript:  func(s string) { out.Write(session.RoleUser, s) },
		OnAgentTranscript: func(s string) { out.Write(session.RoleAgent, s) },
		OnError: func(err error) {
			if session.IsKind(err, session.KindProvider) {
				log.Warn("provider error", slog.String("error", err.Error()))
				return
			}
			select {
			case failed <- err:
			default:
			}
		},
		OnStateChange: func(s session.State) {
			log.Debug("session state", slog.String("state", s.String()))
		},
	}

	if err := tr.Connect(ctx, sessCfg); err != nil {
		return err
	}
	defer tr.Disconnect()
	fmt.Fprintln(cmd.ErrOrStderr(), "connected; speak to your tutor, Ctrl-C to stop")

	if meter {
		go runMeter(ctx, tr, cmd.ErrOrStderr(), time.Second)
	}

	select {
	case <-ctx.Done():
		out.Flush()
		return nil
	case err := <-failed:
		out.Flush()
		return err
	}
}

func newTransport(provider string, cfg config.Config, relay *openai.RelayClient, device *audio.Device, log *slog.Logger) (session.Transport, error) {
	policy := turn.Policy{EchoWindow: cfg.EchoWindow, WatchdogTimeout: cfg.WatchdogTimeout}
	capture := audio.CaptureConfig{
		FFmpegPath:  cfg.FFmpegPath,
		InputFormat: cfg.CaptureInputFormat,
		InputDevice: cfg.CaptureInputDevice,
		SampleRate:  cfg.CaptureSampleRate,
		FrameSize:   cfg.CaptureFrameSize,
		Logger:      log,
	}
	switch provider {
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		return gemini.NewLiveClient(gemini.Options{
			APIKey:        cfg.GeminiKey,
			Model:         cfg.GeminiModel,
			Voice:         cfg.GeminiVoice,
			URL:           cfg.GeminiLiveURL,
			Device:        device,
			CaptureConfig: capture,
			Policy:        policy,
			Logger:        log,
		}), nil
	case "openai":
		return openai.NewRealtimeSession(openai.Options{
			Credentials:   relay,
			RealtimeURL:   cfg.OpenAIRealtimeURL,
			Voice:         cfg.OpenAIVoice,
			ICEServers:    cfg.ICEServers,
			Device:        device,
			CaptureConfig: capture,
			Policy:        policy,
			Logger:        log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want gemini or openai)", provider)
	}
}

// taps is the part of a Transport the meter reads.
type taps interface {
	InputTap() *audio.Analyser
	OutputTap() *audio.Analyser
}

func runMeter(ctx context.Context, t taps, w io.Writer, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			fmt.Fprintln(w, meterLine(t.InputTap().Levels(), t.OutputTap().Levels()))
		}
	}
}

func meterLine(in, out audio.Levels) string {
	line := "mic " + in.Bar(20) + "  tutor " + out.Bar(20)
	if out.Bytes > 0 {
		line += fmt.Sprintf(" (%d B)", out.Bytes)
	}
	return line
}
