package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/identity"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/relink"
	"github.com/starford/raido/internal/relocation"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
)

// Cycle trigger labels recorded in the journal.
const (
	TriggerLoad   = "load"
	TriggerPoll   = "poll"
	TriggerSave   = "save"
	TriggerManual = "manual"
)

// Deps are the collaborators a Session needs. Journal and Broker may be
// nil; persistence and event streaming are then skipped.
type Deps struct {
	Store   storage.Provider
	Graph   graph.Graph
	Log     *slog.Logger
	Journal journal.Journal
	Broker  *sse.Broker
	// RequiredTags are unioned into every written sidecar's frontmatter.
	RequiredTags []string
	// Notify receives pending relocation candidates.
	Notify relocation.NotifyFunc
}

// Session drives synchronization for one open file. All entry points
// serialize on an internal mutex: resolvers and the writer never run
// concurrently with each other.
type Session struct {
	mu    sync.Mutex
	store storage.Provider
	g     graph.Graph
	log   *slog.Logger
	jrnl  journal.Journal
	brk   *sse.Broker
	reg   *identity.Registry
	loc   *relocation.Watcher
	tags  []string

	state *State
	// watchlist is the set of paths whose mtimes the poller diffs,
	// refreshed after every cycle from the main sidecar's library list.
	watchlist []string

	assets    *relink.AssetResolver
	libraries *relink.LibraryResolver
	resources *relink.ResourceResolver
}

// NewSession wires a session over its dependencies.
func NewSession(d Deps) *Session {
	reg := identity.New(d.Graph)
	notify := d.Notify
	if d.Broker != nil {
		brk, prev := d.Broker, notify
		notify = func(c relocation.Candidate) {
			brk.PublishRelocation(c)
			if prev != nil {
				prev(c)
			}
		}
	}
	return &Session{
		store:     d.Store,
		g:         d.Graph,
		log:       d.Log,
		jrnl:      d.Journal,
		brk:       d.Broker,
		reg:       reg,
		loc:       relocation.NewWatcher(d.Store, d.Log, notify),
		tags:      d.RequiredTags,
		state:     NewState(),
		assets:    relink.NewAssetResolver(d.Graph, d.Store, d.Log),
		libraries: relink.NewLibraryResolver(d.Graph, reg, d.Store, d.Log),
		resources: relink.NewResourceResolver(d.Graph, d.Store, d.Log),
	}
}

// State exposes the session state for the watcher goroutine.
func (s *Session) State() *State {
	return s.state
}

// OnLoad is the hook for a file having been opened: any redirect left by a
// previous session is evaluated first, then an initial relink cycle runs
// and the redirect is rewritten for the new session.
func (s *Session) OnLoad(filePath string) (*CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.state.FilePath(); prev != "" && prev != filePath {
		if err := s.loc.DeleteRedirect(prev); err != nil {
			s.log.Warn("engine: stale redirect cleanup failed",
				slog.String("file", prev), slog.Any("error", err))
		}
	}
	s.state.SetFilePath(filePath)

	if err := s.loc.Check(filePath); err != nil {
		return nil, err
	}
	res, err := s.runCycle(TriggerLoad)
	if err != nil {
		return nil, err
	}
	// A divergent redirect found at load is a live prompt; rewriting it
	// would erase the detected move before the user responds.
	if st, _ := s.loc.Status(filePath); st == relocation.Clean {
		if err := s.loc.WriteRedirect(filePath); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// OnSavePre is the hook before the host persists the file: a relink cycle
// runs so the state being saved is the repaired one.
func (s *Session) OnSavePre() (*CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCycle(TriggerSave)
}

// OnSavePost is the hook after a successful save: the sidecar and redirect
// documents are rewritten from the live graph.
func (s *Session) OnSavePost() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeSidecar(); err != nil {
		return err
	}
	// An unresolved divergence keeps its redirect document as-is.
	if st, _ := s.loc.Status(s.state.FilePath()); st != relocation.Clean {
		return nil
	}
	return s.loc.WriteRedirect(s.state.FilePath())
}

// OnQuit is the session teardown hook: the redirect document is removed so
// a stale self-pointer never survives the session.
func (s *Session) OnQuit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := s.state.FilePath()
	if fp == "" {
		return nil
	}
	return s.loc.DeleteRedirect(fp)
}

// Tick is one poll step: evaluate the redirect document, then run a relink
// cycle if any watched file changed since the last one.
func (s *Session) Tick() (*CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := s.state.FilePath()
	if fp == "" {
		return nil, nil
	}
	if err := s.loc.Check(fp); err != nil {
		return nil, err
	}
	if !s.changed() {
		return nil, nil
	}
	return s.runCycle(TriggerPoll)
}

// SyncNow runs an immediate relink cycle regardless of change detection.
func (s *Session) SyncNow() (*CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCycle(TriggerManual)
}

// WriteSidecar regenerates the sidecar document from the live graph.
func (s *Session) WriteSidecar() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSidecar()
}

// Relocation returns the relocation state and candidate path for the open
// file.
func (s *Session) Relocation() (relocation.State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc.Status(s.state.FilePath())
}

// ConfirmRelocation accepts the pending relocation: the sidecar follows
// the file to its new path and the session re-homes there.
func (s *Session) ConfirmRelocation() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldPath := s.state.FilePath()
	newPath, err := s.loc.Confirm(oldPath, func(target string) error {
		return s.adoptPath(oldPath, target)
	})
	if err != nil {
		return "", err
	}
	s.state.SetFilePath(newPath)
	if err := s.loc.WriteRedirect(newPath); err != nil {
		return "", err
	}
	return newPath, nil
}

// IgnoreRelocation declines the pending relocation for this session.
func (s *Session) IgnoreRelocation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc.Ignore(s.state.FilePath())
}

// adoptPath moves the sidecar document to follow the relocated file.
func (s *Session) adoptPath(oldPath, newPath string) error {
	oldSide := sidecar.SidecarPath(oldPath)
	newSide := sidecar.SidecarPath(newPath)
	if !s.store.Exists(oldSide) {
		return nil
	}
	if err := s.store.Move(oldSide, newSide); err != nil {
		return fmt.Errorf("engine: move sidecar: %w", err)
	}
	return nil
}

// changed reports whether any watched file moved past its cached mtime or
// was flagged by the file-system watcher.
func (s *Session) changed() bool {
	dirty := s.state.TakeDirty()
	if len(dirty) > 0 {
		return true
	}
	for _, p := range s.pollPaths() {
		info, err := s.store.Stat(p)
		if err != nil {
			continue
		}
		cached, ok := s.state.MTime(p)
		if !ok || info.ModTime.After(cached) {
			return true
		}
	}
	return false
}

// pollPaths is the watched set: the main sidecar plus every linked
// library's file and sidecar from the last cycle.
func (s *Session) pollPaths() []string {
	out := []string{sidecar.SidecarPath(s.state.FilePath())}
	out = append(out, s.watchlist...)
	return out
}

// resyncMTimes re-caches modification times after a cycle or a write so
// the engine's own output never looks like external change.
func (s *Session) resyncMTimes() {
	for _, p := range s.pollPaths() {
		if info, err := s.store.Stat(p); err == nil {
			s.state.SetMTime(p, info.ModTime)
		}
	}
}

// refreshWatchlist rebuilds the watched library set from the parsed main
// sidecar.
func (s *Session) refreshWatchlist(main *sidecar.Document) {
	var list []string
	for _, lib := range main.Libraries {
		list = append(list, lib.Path, sidecar.SidecarPath(lib.Path))
	}
	s.watchlist = list
}

// writeSidecar renders and writes the sidecar for the open file. The
// previous document is read first so user content and frontmatter
// formatting survive.
func (s *Session) writeSidecar() error {
	if s.store == nil {
		return apperr.ErrVaultRootUnconfigured
	}
	fp := s.state.FilePath()
	if fp == "" {
		return fmt.Errorf("engine: no file loaded")
	}
	sidePath := sidecar.SidecarPath(fp)
	existing, _ := s.store.Read(sidePath)
	prev := sidecar.Parse(existing)

	data := s.buildSidecarData(fp, prev)
	rendered := sidecar.Render(existing, data)
	if err := s.store.Write(sidePath, rendered); err != nil {
		return fmt.Errorf("engine: write sidecar: %w", err)
	}
	s.refreshWatchlist(sidecar.Parse(rendered))
	s.resyncMTimes()
	s.log.Info("engine: sidecar written", slog.String("path", sidePath))
	return nil
}

// buildSidecarData snapshots the live graph into writer input. Linked
// records adopt identity from each library's own sidecar; unresolved
// blocks are omitted until their owner publishes a UUID.
func (s *Session) buildSidecarData(fp string, prev *sidecar.Document) sidecar.Data {
	data := sidecar.Data{
		FilePath:     fp,
		Libraries:    make(map[string]models.LibraryRecord),
		Resources:    make(map[models.ResourceCategory][]models.ResourceRecord),
		RequiredTags: s.tags,
	}
	data.File = models.FileRecord{
		UUID:   s.reg.FileUUID(prev),
		Assets: s.reg.CollectLocalAssets(prev),
	}
	for _, l := range s.g.Libraries() {
		libPath := sidecar.StripSidecarSuffix(s.g.LibraryPath(l))
		var owner *sidecar.Document
		if raw, err := s.store.Read(sidecar.SidecarPath(libPath)); err == nil {
			owner = sidecar.Parse(raw)
		}
		data.Libraries[libPath] = models.LibraryRecord{
			UUID:   s.reg.LibraryUUID(l, owner),
			Assets: s.reg.CollectLinkedAssets(l, owner),
		}
	}
	for _, cat := range models.ResourceCategories {
		for _, h := range s.g.ListResources(cat) {
			name, ok := s.g.ResourceName(h)
			if !ok {
				continue
			}
			data.Resources[cat] = append(data.Resources[cat], models.ResourceRecord{
				Name: name,
				Path: s.g.ResourcePath(h),
			})
		}
	}
	return data
}
