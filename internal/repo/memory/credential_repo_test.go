package memory

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestActiveCountPrunesExpired(t *testing.T) {
	is := is.New(t)
	now := time.Unix(1_700_000_000, 0)
	r := NewCredentialRepo()
	r.now = func() time.Time { return now }

	r.Save(&Credential{ID: "a", ExpiresAt: now.Add(time.Minute)})
	r.Save(&Credential{ID: "b", ExpiresAt: now.Add(-time.Second)})
	r.Save(&Credential{ID: "c", ExpiresAt: now})

	is.Equal(r.ActiveCount(), 1)

	now = now.Add(2 * time.Minute)
	is.Equal(r.ActiveCount(), 0)
	r.Save(&Credential{ID: "d", ExpiresAt: now.Add(time.Minute)})
	is.Equal(r.ActiveCount(), 1)
}
