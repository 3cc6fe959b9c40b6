package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sharetube/liveroom/internal/access"
	"github.com/sharetube/liveroom/internal/broadcaster"
	"github.com/sharetube/liveroom/internal/clock"
	"github.com/sharetube/liveroom/internal/playlist"
	"github.com/sharetube/liveroom/internal/scheduler"
	"github.com/sharetube/liveroom/internal/session"
	"github.com/sharetube/liveroom/internal/tone"
	"github.com/sharetube/liveroom/internal/transport"
)

var (
	ErrNotHost       = errors.New("only the host can change the session")
	ErrAlreadyClosed = errors.New("session already closed")
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

type Status string

const (
	StatusConnecting     Status = "connecting"
	StatusConnected      Status = "connected"
	StatusWaitingForHost Status = "waiting-for-host"
	StatusDisconnected   Status = "disconnected"
	StatusError          Status = "error"
	StatusInvalid        Status = "invalid"
)

type Role string

const (
	RoleHost     Role = "host"
	RoleFollower Role = "follower"
)

type Config struct {
	SessionID     string
	ParticipantID string

	Access    access.Checker
	Playlists playlist.Resolver
	Catalog   playlist.Catalog
	Transport transport.Transport

	// Optional.
	Clock             clock.Clock
	NewClicker        scheduler.ClickerFactory
	Logger            *slog.Logger
	ThrottleWindow    time.Duration
	HeartbeatInterval time.Duration
}

func (c *Config) validate() error {
	switch {
	case c.SessionID == "":
		return errors.New("session id is required")
	case c.ParticipantID == "":
		return errors.New("participant id is required")
	case c.Access == nil:
		return errors.New("access checker is required")
	case c.Playlists == nil:
		return errors.New("playlist resolver is required")
	case c.Catalog == nil:
		return errors.New("item catalog is required")
	case c.Transport == nil:
		return errors.New("transport is required")
	}

	return nil
}

type Playlist struct {
	DisplayName string
	Items       []playlist.Item
}

// View is what a rendering layer needs to draw the session.
type View struct {
	Status         Status
	Role           Role
	Playlist       Playlist
	State          session.State
	HasState       bool
	Item           *playlist.Item
	ScrollPosition int
	Tab            string
}

// Controller binds one participant to a live session: it decides the role,
// resolves the playlist, owns the connection and drives the local
// schedulers from the latest state.
type Controller struct {
	cfg    Config
	role   Role
	clock  clock.Clock
	logger *slog.Logger

	store  *session.Store
	scroll *scheduler.Scroll
	metro  *scheduler.Metronome

	conn      transport.Connection
	bc        *broadcaster.Broadcaster
	watchStop context.CancelFunc
	watchWG   sync.WaitGroup
	closeOnce sync.Once

	// applyMu serializes scheduler reconciliation with teardown.
	applyMu     sync.Mutex
	closed      bool
	appliedItem string

	mu        sync.RWMutex
	status    Status
	playlist  Playlist
	items     map[string]playlist.Item
	scrollPos int
	tab       string
	observers []func(View)
}

func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid lifecycle config: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = broadcaster.DefaultWindow
	}
	if cfg.NewClicker == nil {
		cfg.NewClicker = func() (scheduler.Clicker, error) {
			return tone.NewClicker(io.Discard), nil
		}
	}

	c := &Controller{
		cfg:    cfg,
		role:   RoleFollower,
		clock:  cfg.Clock,
		logger: cfg.Logger.With("session_id", cfg.SessionID, "participant_id", cfg.ParticipantID),
		status: StatusConnecting,
		items:  make(map[string]playlist.Item),
	}

	// Decided once, no mid-session promotion.
	if cfg.Access.Can(access.ManagePlaylists) {
		c.role = RoleHost
		c.store = session.NewHostStore(cfg.SessionID, cfg.ParticipantID,
			session.WithClock(cfg.Clock),
			session.WithTempo(c),
			session.WithSink(c),
		)
	} else {
		c.store = session.NewMirror()
	}

	c.scroll = scheduler.NewScroll(cfg.Clock,
		scheduler.OnMove(c.onScrollMove),
		scheduler.OnFinished(c.onScrollFinished),
	)
	c.metro = scheduler.NewMetronome(cfg.Clock, cfg.NewClicker,
		scheduler.WithMetronomeLogger(c.logger),
	)

	return c, nil
}

func (c *Controller) Role() Role {
	return c.role
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Subscribe registers an observer called after every change. Observers may
// be called from timer and network goroutines.
func (c *Controller) Subscribe(fn func(View)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Controller) View() View {
	v, _ := c.view()
	return v
}

// Start resolves the playlist and opens the channel. On failure the status
// is left at invalid or error and the error is returned; nothing is retried.
func (c *Controller) Start(ctx context.Context) error {
	if c.isClosed() {
		return ErrAlreadyClosed
	}
	c.setStatus(StatusConnecting)

	if err := c.loadPlaylist(ctx); err != nil {
		if errors.Is(err, playlist.ErrUnresolvableSession) {
			c.setStatus(StatusInvalid)
		} else {
			c.setStatus(StatusError)
		}
		return err
	}

	conn, err := c.cfg.Transport.Connect(ctx, c.cfg.SessionID)
	if err != nil {
		c.setStatus(StatusError)
		c.logger.Warn("failed to connect", "error", err)
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	conn.OnStatus(c.onTransportStatus)

	if c.role == RoleHost {
		bc := broadcaster.New(conn, c.applyLocal,
			broadcaster.WithClock(c.clock),
			broadcaster.WithWindow(c.cfg.ThrottleWindow),
			broadcaster.WithHeartbeat(c.cfg.HeartbeatInterval),
			broadcaster.WithLogger(c.logger),
		)
		c.mu.Lock()
		c.bc = bc
		c.mu.Unlock()
		c.setStatus(StatusConnected)
		c.bootstrap()
	} else {
		conn.OnMessage(transport.EventStateUpdate, c.onRemoteState)
		if c.store.HasSnapshot() {
			c.setStatus(StatusConnected)
		} else {
			c.setStatus(StatusWaitingForHost)
		}
	}

	if w, ok := c.cfg.Playlists.(playlist.Watcher); ok {
		c.watch(w)
	}

	c.logger.Info("joined session", "role", c.role)
	return nil
}

// Close stops every timer, the playlist watcher and the connection.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.watchStop != nil {
			c.watchStop()
			c.watchWG.Wait()
		}

		c.applyMu.Lock()
		c.closed = true
		c.scroll.Stop()
		c.metro.Stop()
		c.applyMu.Unlock()

		c.mu.RLock()
		bc := c.bc
		c.mu.RUnlock()
		if bc != nil {
			bc.Close()
		}
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.setStatus(StatusDisconnected)
	})

	return err
}

func (c *Controller) SelectItem(itemID string) error {
	if c.role != RoleHost {
		return ErrNotHost
	}
	_, err := c.store.SetActiveItem(itemID)
	return err
}

// Step selects the item n positions away from the active one in playlist
// order, stopping at either end.
func (c *Controller) Step(n int) error {
	if c.role != RoleHost {
		return ErrNotHost
	}

	c.mu.RLock()
	items := c.playlist.Items
	c.mu.RUnlock()
	if len(items) == 0 {
		return ErrEmptyPlaylist
	}

	idx := 0
	if active, ok := c.store.Snapshot().ActiveItem(); ok {
		for i, it := range items {
			if it.ID == active {
				idx = i + n
				break
			}
		}
	}
	idx = max(0, min(idx, len(items)-1))

	return c.SelectItem(items[idx].ID)
}

func (c *Controller) Transpose(offset int) error {
	if c.role != RoleHost {
		return ErrNotHost
	}
	_, err := c.store.SetTranspose(offset)
	return err
}

func (c *Controller) ShiftTranspose(delta int) error {
	if c.role != RoleHost {
		return ErrNotHost
	}
	_, err := c.store.ShiftTranspose(delta)
	return err
}

func (c *Controller) SetScroll(isScrolling bool, speed int) error {
	if c.role != RoleHost {
		return ErrNotHost
	}
	_, err := c.store.SetScroll(isScrolling, speed)
	return err
}

func (c *Controller) SetMetronome(isPlaying bool, bpm int) error {
	if c.role != RoleHost {
		return ErrNotHost
	}
	_, err := c.store.SetMetronome(isPlaying, bpm)
	return err
}

// SetTab switches the local view tab. Scrolling snaps back to the top; a
// host that was scrolling also stops the shared scroll.
func (c *Controller) SetTab(tab string) {
	c.mu.Lock()
	changed := c.tab != tab
	c.tab = tab
	c.mu.Unlock()
	if !changed {
		return
	}

	c.scroll.Reset()
	if c.role == RoleHost {
		if st := c.store.Snapshot(); st.ScrollState.IsScrolling {
			if _, err := c.store.SetScroll(false, st.ScrollState.Speed); err != nil {
				c.logger.Warn("failed to stop scroll on tab change", "error", err)
			}
		}
	}
	c.notify()
}

// SetMaxScroll reports the largest scroll offset the view can reach.
func (c *Controller) SetMaxScroll(max int) {
	c.scroll.SetMaxOffset(max)
}

// NominalBPM looks up an item's tempo in the resolved catalog entries.
func (c *Controller) NominalBPM(itemID string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[itemID]
	if !ok || item.NominalBPM == nil {
		return 0, false
	}

	return *item.NominalBPM, true
}

// Schedule receives every host snapshot. Before the channel is open the
// snapshot only reaches the local schedulers.
func (c *Controller) Schedule(st session.State) {
	c.mu.RLock()
	bc := c.bc
	c.mu.RUnlock()

	if bc != nil {
		bc.Schedule(st)
		return
	}
	c.applyLocal(st)
}

func (c *Controller) bootstrap() {
	if _, ok := c.store.Snapshot().ActiveItem(); ok {
		return
	}

	c.mu.RLock()
	var first string
	if len(c.playlist.Items) > 0 {
		first = c.playlist.Items[0].ID
	}
	c.mu.RUnlock()

	if first == "" {
		return
	}
	if _, err := c.store.SetActiveItem(first); err != nil {
		c.logger.Warn("failed to select first item", "error", err)
	}
}

func (c *Controller) loadPlaylist(ctx context.Context) error {
	resolved, err := c.cfg.Playlists.Resolve(ctx, c.cfg.SessionID)
	if err != nil {
		return fmt.Errorf("failed to resolve playlist: %w", err)
	}

	items := make([]playlist.Item, 0, len(resolved.ItemIDs))
	byID := make(map[string]playlist.Item, len(resolved.ItemIDs))
	for _, id := range resolved.ItemIDs {
		item, ok, err := c.cfg.Catalog.Lookup(ctx, id)
		if err != nil {
			c.logger.Warn("failed to lookup item", "item_id", id, "error", err)
		}
		if !ok {
			item = playlist.Item{ID: id}
		}
		items = append(items, item)
		byID[id] = item
	}

	c.mu.Lock()
	c.playlist = Playlist{DisplayName: resolved.DisplayName, Items: items}
	c.items = byID
	c.mu.Unlock()

	return nil
}

func (c *Controller) watch(w playlist.Watcher) {
	ctx, cancel := context.WithCancel(context.Background())
	c.watchStop = cancel

	c.watchWG.Add(1)
	go func() {
		defer c.watchWG.Done()

		err := w.Watch(ctx, c.cfg.SessionID, func() {
			if c.Status() == StatusInvalid {
				return
			}
			if err := c.loadPlaylist(ctx); err != nil {
				if errors.Is(err, playlist.ErrUnresolvableSession) {
					c.invalidate(err)
					return
				}
				c.logger.Warn("failed to refresh playlist", "error", err)
				return
			}
			c.logger.Debug("playlist refreshed")
			if c.role == RoleHost {
				c.bootstrap()
			}
			c.notify()
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("playlist watch stopped", "error", err)
		}
	}()
}

// invalidate drops the playlist of a session whose source disappeared.
func (c *Controller) invalidate(err error) {
	c.logger.Warn("session no longer resolves", "error", err)

	c.mu.Lock()
	c.playlist = Playlist{}
	c.items = make(map[string]playlist.Item)
	c.mu.Unlock()

	c.setStatus(StatusInvalid)
}

func (c *Controller) onRemoteState(payload json.RawMessage) {
	var st session.State
	if err := json.Unmarshal(payload, &st); err != nil {
		c.logger.Debug("dropping malformed snapshot", "error", err)
		return
	}

	c.store.ApplyRemote(st)

	c.mu.Lock()
	if c.status == StatusWaitingForHost {
		c.status = StatusConnected
	}
	c.mu.Unlock()

	c.applyLocal(st)
}

// applyLocal reconciles the schedulers with a snapshot and notifies
// observers.
func (c *Controller) applyLocal(st session.State) {
	c.applyMu.Lock()
	if c.closed {
		c.applyMu.Unlock()
		return
	}

	item, _ := st.ActiveItem()
	if item != c.appliedItem {
		c.appliedItem = item
		c.scroll.Reset()
	}
	c.scroll.Sync(st.ScrollState)
	c.metro.Sync(st.MetronomeState)
	c.applyMu.Unlock()

	c.notify()
}

func (c *Controller) onScrollMove(pos int) {
	c.mu.Lock()
	c.scrollPos = pos
	c.mu.Unlock()

	c.notify()
}

// onScrollFinished flips the shared intent off when the host reaches the
// end. Followers stop locally and wait for the host's snapshot.
func (c *Controller) onScrollFinished() {
	if c.role != RoleHost || c.isClosed() {
		return
	}

	st := c.store.Snapshot()
	if !st.ScrollState.IsScrolling {
		return
	}
	if _, err := c.store.SetScroll(false, st.ScrollState.Speed); err != nil {
		c.logger.Warn("failed to stop scroll at end", "error", err)
	}
}

func (c *Controller) onTransportStatus(s transport.Status) {
	switch s {
	case transport.StatusClosed:
		c.setStatus(StatusDisconnected)
	case transport.StatusError:
		c.setStatus(StatusError)
	}
}

func (c *Controller) isClosed() bool {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	return c.closed
}

// setStatus records s. Invalid is terminal except for teardown.
func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s || (c.status == StatusInvalid && s != StatusDisconnected) {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	c.logger.Debug("session status changed", "status", s)
	c.notify()
}

func (c *Controller) notify() {
	view, observers := c.view()
	for _, fn := range observers {
		fn(view)
	}
}

// view reads the store before taking c.mu; the store calls back into
// NominalBPM while holding its own lock.
func (c *Controller) view() (View, []func(View)) {
	st := c.store.Snapshot()
	has := c.store.HasSnapshot()

	c.mu.RLock()
	defer c.mu.RUnlock()

	v := View{
		Status:         c.status,
		Role:           c.role,
		Playlist:       c.playlist,
		HasState:       has,
		State:          st,
		ScrollPosition: c.scrollPos,
		Tab:            c.tab,
	}
	if id, ok := st.ActiveItem(); ok {
		item, found := c.items[id]
		if !found {
			item = playlist.Item{ID: id}
		}
		v.Item = &item
	}

	return v, slices.Clone(c.observers)
}
