package world

import "github.com/vogiaan1904/pelotond/internal/models"

type cachedProfile struct {
	profile models.PartialProfile
	gen     uint64
}

// profileCache memoizes partial profiles of online humans. An entry is tied
// to the registry generation it was loaded for and is dropped whole when
// that registration ends.
type profileCache struct {
	byID map[models.ParticipantID]cachedProfile
}

func newProfileCache() *profileCache {
	return &profileCache{byID: make(map[models.ParticipantID]cachedProfile)}
}

func (c *profileCache) get(id models.ParticipantID, gen uint64) (models.PartialProfile, bool) {
	e, ok := c.byID[id]
	if !ok || e.gen != gen {
		return models.PartialProfile{}, false
	}
	return e.profile, true
}

// store refuses entries for generation 0, i.e. participants that were not
// online when the load started.
func (c *profileCache) store(id models.ParticipantID, gen uint64, p models.PartialProfile) bool {
	if gen == 0 {
		return false
	}
	c.byID[id] = cachedProfile{profile: p, gen: gen}
	return true
}

func (c *profileCache) invalidate(id models.ParticipantID) {
	delete(c.byID, id)
}
