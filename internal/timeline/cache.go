package timeline

import (
	"sync"

	"timelinecal/internal/datemath"
	"timelinecal/internal/profile"
)

// Cache memoizes the last built Profile. Get returns the same pointer while
// the inputs are unchanged, so consumers can compare profiles by identity.
type Cache struct {
	mu   sync.Mutex
	dp   profile.DateProfile
	env  datemath.Env
	p    Params
	last *Profile
}

// Get returns the profile for dp, env and p, building it only when one of
// them differs from the previous call.
func (c *Cache) Get(dp profile.DateProfile, env datemath.Env, p Params) (*Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && c.dp.Equal(dp) && c.env == env && c.p == p {
		return c.last, nil
	}
	tp, err := Build(dp, env, p)
	if err != nil {
		return nil, err
	}
	c.dp, c.env, c.p, c.last = dp, env, p, tp
	return tp, nil
}

// Reset drops the memoized profile.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}
