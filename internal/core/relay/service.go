package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/steveyiyo/tutor-voice/internal/core/openai"
	"github.com/steveyiyo/tutor-voice/internal/repo/memory"
	"github.com/steveyiyo/tutor-voice/pkg/types"
)

// ErrNotConfigured is returned when no server-side secret is available.
var ErrNotConfigured = errors.New("relay not configured")

// Minter mints short-lived realtime credentials.
type Minter interface {
	Configured() bool
	Mint(ctx context.Context) (openai.Minted, error)
}

// Solver answers a question for sessions started without a known answer.
type Solver interface {
	Name() string
	Solve(ctx context.Context, question string) (string, error)
}

type Service struct {
	Repo       *memory.CredentialRepo
	Minter     Minter
	ICEServers []string
	now        func() time.Time
}

func NewService(repo *memory.CredentialRepo, minter Minter, iceServers []string) *Service {
	return &Service{Repo: repo, Minter: minter, ICEServers: iceServers, now: time.Now}
}

// Issue mints a credential and records it in the ledger.
func (s *Service) Issue(ctx context.Context) (types.SessionResp, error) {
	if s.Minter == nil || !s.Minter.Configured() {
		return types.SessionResp{}, ErrNotConfigured
	}
	m, err := s.Minter.Mint(ctx)
	if err != nil {
		return types.SessionResp{}, err
	}
	id := "sess_" + uuid.NewString()
	s.Repo.Save(&memory.Credential{
		ID:        id,
		Model:     m.Model,
		IssuedAt:  s.now(),
		ExpiresAt: m.ExpiresAt,
	})
	resp := types.SessionResp{
		SessionID:    id,
		ClientSecret: m.ClientSecret,
		Model:        m.Model,
		ExpiresAt:    m.ExpiresAt.Unix(),
	}
	if len(s.ICEServers) > 0 {
		resp.ICEServers = []types.ICEServer{{URLs: s.ICEServers}}
	}
	return resp, nil
}

// Active is the number of issued credentials that have not expired.
func (s *Service) Active() int {
	return s.Repo.ActiveCount()
}
