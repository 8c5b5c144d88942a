package track

import "sync"

// activeSet holds the records of scripts believed to be running, in
// registration order.
type activeSet struct {
	mu      sync.Mutex
	records []*record
}

func (s *activeSet) add(r *record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.records, r.owner) >= 0 {
		return ErrDuplicateOwner
	}
	s.records = append(s.records, r)
	return nil
}

func (s *activeSet) find(owner OwnerID) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.records, owner); i >= 0 {
		return s.records[i]
	}
	return nil
}

func (s *activeSet) remove(owner OwnerID) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.records, owner)
	if i < 0 {
		return nil
	}
	r := s.records[i]
	s.records = deleteAt(s.records, i)
	return r
}

// forJob calls fn for every record of job while holding the registry lock.
func (s *activeSet) forJob(job JobID, fn func(*record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.job == job {
			fn(r)
		}
	}
}

// takeAll empties the registry and returns what it held.
func (s *activeSet) takeAll() []*record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.records
	s.records = nil
	return out
}

func (s *activeSet) list() []*record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*record(nil), s.records...)
}

// quiesceSet holds records claimed by a flush until their supervisors retire
// them. drained is broadcast on every retirement. Retired owners leave a
// tombstone until the owning worker deregisters, so that its late calls are
// not mistaken for bookkeeping misses.
type quiesceSet struct {
	mu      sync.Mutex
	drained *sync.Cond
	records []*record
	retired map[OwnerID]struct{}
}

func newQuiesceSet() *quiesceSet {
	s := &quiesceSet{retired: make(map[OwnerID]struct{})}
	s.drained = sync.NewCond(&s.mu)
	return s
}

// find returns owner's claimed record, or retired == true if a supervisor
// already retired it.
func (s *quiesceSet) find(owner OwnerID) (r *record, retired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.records, owner); i >= 0 {
		return s.records[i], false
	}
	_, retired = s.retired[owner]
	return nil, retired
}

// release is find for a deregistering worker. A claimed record is marked
// released; a retired one has its tombstone consumed.
func (s *quiesceSet) release(owner OwnerID) (r *record, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.records, owner); i >= 0 {
		r = s.records[i]
		if r.released {
			return nil, false
		}
		r.released = true
		return r, true
	}
	if _, ok := s.retired[owner]; ok {
		delete(s.retired, owner)
		return nil, true
	}
	return nil, false
}

// reserve fails if owner is still claimed by a flush and drops any stale
// tombstone for it.
func (s *quiesceSet) reserve(owner OwnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.records, owner) >= 0 {
		return ErrDuplicateOwner
	}
	delete(s.retired, owner)
	return nil
}

func (s *quiesceSet) retire(r *record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.records {
		if cur == r {
			s.records = deleteAt(s.records, i)
			if !r.released {
				s.retired[r.owner] = struct{}{}
			}
			break
		}
	}
	s.drained.Broadcast()
}

// clear drops everything and wakes flush waiters.
func (s *quiesceSet) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = nil
	s.retired = make(map[OwnerID]struct{})
	s.drained.Broadcast()
	return n
}

func (s *quiesceSet) list() []*record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*record(nil), s.records...)
}

func indexOf(records []*record, owner OwnerID) int {
	for i, r := range records {
		if r.owner == owner {
			return i
		}
	}
	return -1
}

func deleteAt(records []*record, i int) []*record {
	copy(records[i:], records[i+1:])
	records[len(records)-1] = nil
	return records[:len(records)-1]
}
