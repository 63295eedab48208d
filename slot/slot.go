package slot

import (
	"errors"

	"github.com/detailyang/fastrand-go"

	"viaduct/lib/ftypes"
)

/*
	Registry issues the small integer handles that correlate outstanding
	asynchronous requests with their completion events. Validity is a coarse
	window check, not per-slot bookkeeping: a slot is valid iff it falls in
	[begin, end), and InvalidateAll retires every outstanding slot at once by
	collapsing the window. The window is seeded at a pseudo-random point in the
	lower quarter of the id range so that slot ids from a previous worker
	incarnation are unlikely to validate against the current window.
*/

// MaxSlotID bounds the id range; once the window's end drifts past it, slot
// creation fails until the window is reseeded.
const MaxSlotID ftypes.SlotID = 1_000_000_000

var ErrNoSlotsAvailable = errors.New("slot: no slots available")

type Registry struct {
	begin ftypes.SlotID
	end   ftypes.SlotID
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.reseed()
	return r
}

// Create returns the next slot id, growing the window by one.
func (r *Registry) Create() (ftypes.SlotID, error) {
	if r.end > MaxSlotID {
		return 0, ErrNoSlotsAvailable
	}
	s := r.end
	r.end++
	return s, nil
}

func (r *Registry) IsValid(s ftypes.SlotID) bool {
	return r.begin <= s && s < r.end
}

// InvalidateAll collapses the window, retiring every outstanding slot. Once
// the window start has drifted past half the id range it is reseeded near the
// bottom to bound long-run growth.
func (r *Registry) InvalidateAll() {
	r.begin = r.end
	if r.begin > MaxSlotID/2 {
		r.reseed()
	}
}

// Window reports [begin, end) for diagnostics.
func (r *Registry) Window() (ftypes.SlotID, ftypes.SlotID) {
	return r.begin, r.end
}

func (r *Registry) reseed() {
	r.begin = ftypes.SlotID(fastrand.FastRand()%uint32(MaxSlotID/4)) + 1
	r.end = r.begin
}
