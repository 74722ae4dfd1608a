package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	RelayURL string

	OpenAIKey          string
	OpenAIModel        string
	OpenAIVoice        string
	OpenAIRealtimeURL  string
	OpenAISessionsURL  string
	GeminiKey          string
	GeminiModel        string
	GeminiVoice        string
	GeminiLiveURL      string
	SolverProvider     string
	SolverModel        string
	ICEServers         []string
	WatchdogTimeout    time.Duration
	EchoWindow         time.Duration
	CaptureSampleRate  int
	CaptureFrameSize   int
	CaptureInputFormat string
	CaptureInputDevice string
	FFmpegPath         string
	FFplayPath         string

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

func Load() Config {
	return Config{
		Port:     getenv("PORT", "8080"),
		RelayURL: getenv("RELAY_URL", "http://localhost:8080"),

		OpenAIKey:          getenv("OPENAI_API_KEY", ""),
		OpenAIModel:        getenv("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		OpenAIVoice:        getenv("OPENAI_VOICE", "verse"),
		OpenAIRealtimeURL:  getenv("OPENAI_REALTIME_URL", "https://api.openai.com/v1/realtime"),
		OpenAISessionsURL:  getenv("OPENAI_SESSIONS_URL", "https://api.openai.com/v1/realtime/sessions"),
		GeminiKey:          getenv("GEMINI_API_KEY", ""),
		GeminiModel:        getenv("GEMINI_LIVE_MODEL", "models/gemini-2.0-flash-live-001"),
		GeminiVoice:        getenv("GEMINI_VOICE", "Puck"),
		GeminiLiveURL:      getenv("GEMINI_LIVE_URL", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"),
		SolverProvider:     getenv("SOLVER_PROVIDER", "gemini"),
		SolverModel:        getenv("SOLVER_MODEL", ""),
		ICEServers:         getlist("ICE_SERVERS", []string{"stun:stun.l.google.com:19302"}),
		WatchdogTimeout:    getduration("WATCHDOG_TIMEOUT", 12*time.Second),
		EchoWindow:         getduration("ECHO_WINDOW", time.Second),
		CaptureSampleRate:  getint("CAPTURE_SAMPLE_RATE", 48000),
		CaptureFrameSize:   getint("CAPTURE_FRAME_SIZE", 2048),
		CaptureInputFormat: getenv("CAPTURE_INPUT_FORMAT", ""),
		CaptureInputDevice: getenv("CAPTURE_INPUT_DEVICE", ""),
		FFmpegPath:         getenv("FFMPEG_PATH", "ffmpeg"),
		FFplayPath:         getenv("FFPLAY_PATH", "ffplay"),

		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
		LogFile:       getenv("LOG_FILE", ""),
		LogMaxSizeMB:  getint("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getint("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getint("LOG_MAX_AGE_DAYS", 14),
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func getduration(k string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func getlist(k string, d []string) []string {
	raw := os.Getenv(k)
	if raw == "" {
		return d
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return d
	}
	return out
}
