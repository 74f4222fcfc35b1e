package catalog

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// State describes where an ingestion attempt currently stands.
type State int32

const (
	// StateLoading: checking whether the cached catalog is current.
	StateLoading State = iota
	// StateUpdating: downloading and normalizing a fresh catalog.
	StateUpdating
	// StateReady: a catalog is published and queries may run.
	StateReady
	// StateError: no catalog could be obtained at all.
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateUpdating:
		return "UPDATING"
	case StateReady:
		return "READY"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Options configure a Loader.
type Options struct {
	Store  *Store
	Remote *Remote

	// PostProcess, when set, runs over a freshly fetched sheet before
	// it is published, consuming the tail of the progress range. Used
	// to re-anchor persisted favourites against the new catalog.
	PostProcess func(d *DataSheet, report func(float64))
}

// Loader owns the catalog ingestion lifecycle. Only one ingestion runs
// at a time; concurrent EnsureData calls coalesce onto the same
// attempt. The published DataSheet is immutable, a refresh swaps the
// whole pointer.
type Loader struct {
	store       *Store
	remote      *Remote
	postProcess func(d *DataSheet, report func(float64))

	mu       sync.Mutex
	state    atomic.Int32
	progress atomic.Uint64
	data     atomic.Pointer[DataSheet]
}

// NewLoader creates a Loader in the LOADING state.
func NewLoader(opts Options) *Loader {
	return &Loader{store: opts.Store, remote: opts.Remote, postProcess: opts.PostProcess}
}

// State returns the current ingestion state.
func (l *Loader) State() State {
	return State(l.state.Load())
}

// Progress returns the ingestion progress from 0.0 to 1.0.
func (l *Loader) Progress() float64 {
	return math.Float64frombits(l.progress.Load())
}

// Data returns the published catalog, or nil before the first
// successful ingestion.
func (l *Loader) Data() *DataSheet {
	return l.data.Load()
}

func (l *Loader) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loader) setProgress(f float64) {
	l.progress.Store(math.Float64bits(f))
}

// EnsureData returns the published catalog, ingesting one first when
// needed. A cached catalog whose checksum still matches the remote
// marker is reused without a full download; when the remote cannot be
// reached at all, a cached catalog of any age is served rather than
// failing.
func (l *Loader) EnsureData(ctx context.Context) (*DataSheet, error) {
	if d := l.Data(); d != nil && l.State() == StateReady {
		return d, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another caller may have finished ingestion while we waited
	if d := l.Data(); d != nil && l.State() == StateReady {
		return d, nil
	}

	l.setState(StateLoading)
	l.setProgress(0)

	// Probe the remote checksum against the persisted marker
	persisted := l.store.ReadChecksum()
	changed, remoteSum, err := l.remote.Check(ctx, persisted)
	if err != nil {
		log.Printf("catalog: checksum probe failed: %v", err)
		return l.serveCached("checksum probe failed and no cached catalog exists")
	}

	if !changed {
		if d, cacheErr := l.store.ReadDataSheet(); cacheErr == nil {
			l.publish(d)
			return d, nil
		}
		// Checksum matched but the snapshot is gone, fall through to
		// a full fetch.
	}

	l.setState(StateUpdating)
	raw, err := l.remote.Fetch(ctx, func(f float64) { l.setProgress(f * 0.75) })
	if err != nil {
		log.Printf("catalog: fetch failed: %v", err)
		return l.serveCached("download failed and no cached catalog exists")
	}

	fresh := &DataSheet{}
	if err := json.Unmarshal(raw, fresh); err != nil {
		log.Printf("catalog: malformed snapshot: %v", err)
		return l.serveCached("snapshot is malformed and no cached catalog exists")
	}
	if len(fresh.RouteList) == 0 || len(fresh.StopList) == 0 {
		log.Print("catalog: snapshot is empty")
		return l.serveCached("snapshot is empty and no cached catalog exists")
	}

	Normalize(fresh, l.store.ReadMtrBusAliases())
	l.setProgress(0.85)

	if l.postProcess != nil {
		l.postProcess(fresh, func(f float64) { l.setProgress(0.85 + f*0.15) })
	}

	// Persist only after the whole fetch and normalization succeeded,
	// so a failed refresh never clobbers the previous cache.
	if err := l.store.WriteDataSheet(fresh); err != nil {
		log.Printf("catalog: persisting snapshot failed: %v", err)
	} else if err := l.store.WriteChecksum(remoteSum); err != nil {
		log.Printf("catalog: persisting checksum failed: %v", err)
	}

	l.publish(fresh)
	return fresh, nil
}

// serveCached falls back to the persisted snapshot, however stale.
func (l *Loader) serveCached(reason string) (*DataSheet, error) {
	if d, err := l.store.ReadDataSheet(); err == nil {
		l.publish(d)
		return d, nil
	}
	l.setState(StateError)
	return nil, util.CatalogUnavailableError{Reason: reason}
}

func (l *Loader) publish(d *DataSheet) {
	l.data.Store(d)
	l.setProgress(1)
	l.setState(StateReady)
}
