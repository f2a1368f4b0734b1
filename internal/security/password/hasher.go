package password

import (
	"github.com/alexedwards/argon2id"
)

type Hasher struct {
	policy Params
}

func NewHasher(p Params) *Hasher { return &Hasher{policy: p} }

// Hash returns a PHC string like `$argon2id$v=19$m=65536,t=3,p=1$...`
func (h *Hasher) Hash(plain string) (string, error) {
	return argon2id.CreateHash(plain, &argon2id.Params{
		Memory:      h.policy.Memory,
		Iterations:  h.policy.Iterations,
		Parallelism: h.policy.Parallelism,
		SaltLength:  h.policy.SaltLength,
		KeyLength:   h.policy.KeyLength,
	})
}

// Verify checks password vs PHC hash and also indicates if a rehash is recommended.
func (h *Hasher) Verify(plain, phc string) (ok bool, needsRehash bool, err error) {
	ok, err = argon2id.ComparePasswordAndHash(plain, phc)
	if err != nil || !ok {
		return ok, false, err
	}
	return ok, h.NeedsRehash(phc), nil
}

func (h *Hasher) NeedsRehash(phc string) bool {
	stored, _, _, err := argon2id.DecodeHash(phc)
	if err != nil {
		return true
	}
	return stored.Memory < h.policy.Memory ||
		stored.Iterations < h.policy.Iterations ||
		stored.Parallelism < h.policy.Parallelism ||
		stored.SaltLength < h.policy.SaltLength ||
		stored.KeyLength < h.policy.KeyLength
}
