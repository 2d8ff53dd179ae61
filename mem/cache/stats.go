package cache

import "github.com/Shihao-Song/Pin-Tools/stats"

// Statistics counts what happens in a cache level.
type Statistics struct {
	Accesses      uint64
	ReadAccesses  uint64
	WriteAccesses uint64
	Hits          uint64
	Misses        uint64
	Loads         uint64
	Evictions     uint64
	WriteBacks    uint64
	Invalidations uint64
}

// HitRatio returns the fraction of accesses that hit, between 0 and 1.
func (s Statistics) HitRatio() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses)
}

// RegisterStats reports the counters of the level to the registry.
func (c *Comp) RegisterStats(r *stats.Registry) {
	s := c.stats

	r.Register(c.name, "Number of accesses", float64(s.Accesses))
	r.Register(c.name, "Number of read accesses", float64(s.ReadAccesses))
	r.Register(c.name, "Number of write accesses", float64(s.WriteAccesses))
	r.Register(c.name, "Number of hits", float64(s.Hits))
	r.Register(c.name, "Number of misses", float64(s.Misses))
	r.RegisterWithUnit(c.name, "Hit ratio", s.HitRatio()*100, "%")
	r.Register(c.name, "Number of loads", float64(s.Loads))
	r.Register(c.name, "Number of evictions", float64(s.Evictions))
	r.Register(c.name, "Number of write-backs received", float64(s.WriteBacks))
	r.Register(c.name, "Number of invalidations", float64(s.Invalidations))
}
