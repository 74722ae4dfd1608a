package memory

import (
	"sync"
	"time"
)

// Credential is one realtime client secret the relay has issued. The secret
// itself is not kept.
type Credential struct {
	ID        string
	Model     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type CredentialRepo struct {
	m   sync.Map
	now func() time.Time
}

func NewCredentialRepo() *CredentialRepo {
	return &CredentialRepo{now: time.Now}
}

func (r *CredentialRepo) Save(c *Credential) {
	r.m.Store(c.ID, c)
}

// ActiveCount prunes expired entries and returns how many remain.
func (r *CredentialRepo) ActiveCount() int {
	now := r.now()
	n := 0
	r.m.Range(func(k, v any) bool {
		if c := v.(*Credential); !c.ExpiresAt.After(now) {
			r.m.Delete(k)
			return true
		}
		n++
		return true
	})
	return n
}
