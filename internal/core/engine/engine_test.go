package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perkybeet/wam/internal/config"
	"github.com/Perkybeet/wam/internal/core/deployers"
	"github.com/Perkybeet/wam/internal/core/domain"
	"github.com/Perkybeet/wam/internal/core/engine"
	"github.com/Perkybeet/wam/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes for the capability adapters. Each one records enough state to assert
// the engine's side effects, and each failure mode is switchable so tests can
// force any pipeline stage to fail.
// ---------------------------------------------------------------------------

type fakeWeb struct {
	dir        string
	sites      map[string]string // domain -> config path
	enabled    map[string]bool
	reloads    int
	failCreate bool
	failReload bool
	failDelete bool
}

func newFakeWeb(dir string) *fakeWeb {
	return &fakeWeb{dir: dir, sites: map[string]string{}, enabled: map[string]bool{}}
}

func (w *fakeWeb) Kind() domain.WebServer { return domain.WebServerNginx }

func (w *fakeWeb) CreateSite(ctx context.Context, cfg domain.SiteConfig) (string, error) {
	if w.failCreate {
		return "", errors.New("nginx: rendering failed")
	}
	path := filepath.Join(w.dir, cfg.Domain+".conf")
	if err := os.WriteFile(path, []byte("server {}"), 0o644); err != nil {
		return "", err
	}
	w.sites[cfg.Domain] = path
	return path, nil
}

func (w *fakeWeb) EnableSite(ctx context.Context, d string) error {
	w.enabled[d] = true
	return nil
}

func (w *fakeWeb) DisableSite(ctx context.Context, d string) error {
	delete(w.enabled, d)
	return nil
}

func (w *fakeWeb) DeleteSite(ctx context.Context, d string) error {
	if w.failDelete {
		return errors.New("nginx: permission denied")
	}
	if path, ok := w.sites[d]; ok {
		os.Remove(path)
	}
	delete(w.sites, d)
	delete(w.enabled, d)
	return nil
}

func (w *fakeWeb) Reload(ctx context.Context) error {
	if w.failReload {
		return errors.New("nginx: reload failed")
	}
	w.reloads++
	return nil
}

type fakeCerts struct {
	dir        string
	issued     map[string]bool
	failIssue  bool
	failRevoke bool
}

func newFakeCerts(dir string) *fakeCerts {
	return &fakeCerts{dir: dir, issued: map[string]bool{}}
}

func (c *fakeCerts) Issue(ctx context.Context, d, email string) (*domain.CertificateInfo, error) {
	if c.failIssue {
		return nil, errors.New("acme: challenge failed")
	}
	certDir := filepath.Join(c.dir, d)
	if err := os.MkdirAll(certDir, 0o755); err != nil {
		return nil, err
	}
	certPath := filepath.Join(certDir, "fullchain.pem")
	keyPath := filepath.Join(certDir, "privkey.pem")
	os.WriteFile(certPath, []byte("cert"), 0o644)
	os.WriteFile(keyPath, []byte("key"), 0o600)
	c.issued[d] = true
	return &domain.CertificateInfo{
		Domain:    d,
		Provider:  "letsencrypt",
		CertPath:  certPath,
		KeyPath:   keyPath,
		ExpiresAt: time.Now().Add(90 * 24 * time.Hour),
	}, nil
}

func (c *fakeCerts) Revoke(ctx context.Context, d string) error {
	if c.failRevoke {
		return errors.New("acme: revoke failed")
	}
	delete(c.issued, d)
	return os.RemoveAll(filepath.Join(c.dir, d))
}

func (c *fakeCerts) Renew(ctx context.Context, d string) error { return nil }

type fakeServices struct {
	units       map[string]domain.ServiceUnit
	running     map[string]bool
	restarts    int
	failCreate  bool
	failStart   bool
	failRestart bool
}

func newFakeServices() *fakeServices {
	return &fakeServices{units: map[string]domain.ServiceUnit{}, running: map[string]bool{}}
}

func (s *fakeServices) Create(ctx context.Context, unit domain.ServiceUnit) error {
	if s.failCreate {
		return errors.New("systemd: unit rejected")
	}
	s.units[unit.Name] = unit
	return nil
}

func (s *fakeServices) Start(ctx context.Context, name string) error {
	if s.failStart {
		return errors.New("systemd: start failed")
	}
	s.running[name] = true
	return nil
}

func (s *fakeServices) Stop(ctx context.Context, name string) error {
	delete(s.running, name)
	return nil
}

func (s *fakeServices) Restart(ctx context.Context, name string) error {
	s.restarts++
	if s.failRestart {
		return errors.New("systemd: restart failed")
	}
	s.running[name] = true
	return nil
}

func (s *fakeServices) Status(ctx context.Context, name string) (domain.ServiceStatus, error) {
	_, exists := s.units[name]
	return domain.ServiceStatus{Exists: exists, Enabled: exists, Running: s.running[name]}, nil
}

func (s *fakeServices) Delete(ctx context.Context, name string) error {
	delete(s.units, name)
	delete(s.running, name)
	return nil
}

func (s *fakeServices) Logs(ctx context.Context, name string, lines int) (string, error) {
	return "unit log output\n", nil
}

type fakeFetcher struct {
	calls int
	files map[string]string
	fail  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, src domain.Source, dest string) error {
	if f.fail {
		return errors.New("git: clone failed")
	}
	f.calls++
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for name, content := range f.files {
		if err := os.WriteFile(filepath.Join(dest, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(dest, "VERSION"), []byte(fmt.Sprintf("release-%d", f.calls)), 0o644)
}

// fakeProber pops pre-programmed results; an empty queue means success.
type fakeProber struct {
	queue []error
	calls int
}

func (p *fakeProber) Probe(ctx context.Context, port int, path string, timeout time.Duration) error {
	p.calls++
	if len(p.queue) == 0 {
		return nil
	}
	err := p.queue[0]
	p.queue = p.queue[1:]
	return err
}

// racingLocker forwards to a real LockManager but runs race once, just
// before the lock for the named operation is taken, simulating a competing
// invocation that wins the window between lookup and acquire.
type racingLocker struct {
	inner   engine.Locker
	trigger string
	once    sync.Once
	race    func()
}

func (l *racingLocker) Acquire(d, op string) (*store.DomainLock, error) {
	if op == l.trigger {
		l.once.Do(l.race)
	}
	return l.inner.Acquire(d, op)
}

type fakeRunner struct {
	commands []string
	failOn   string
}

func (r *fakeRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	cmd := args[len(args)-1]
	r.commands = append(r.commands, cmd)
	if r.failOn != "" && cmd == r.failOn {
		return "", errors.New("command failed: " + cmd)
	}
	return "", nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	eng      *engine.Engine
	cfg      *config.Config
	records  *store.FileStore
	locks    *store.LockManager
	web      *fakeWeb
	certs    *fakeCerts
	services *fakeServices
	fetcher  *fakeFetcher
	prober   *fakeProber
	runner   *fakeRunner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		AppsDir:            filepath.Join(root, "apps"),
		StateDir:           filepath.Join(root, "state"),
		LockDir:            filepath.Join(root, "locks"),
		TLSDir:             filepath.Join(root, "tls"),
		ServiceUser:        "www-data",
		HealthCheckTimeout: 100 * time.Millisecond,
		HealthCheckRetries: 1,
	}
	records, err := store.NewFileStore(cfg.StateDir)
	require.NoError(t, err)
	locks, err := store.NewLockManager(cfg.LockDir)
	require.NoError(t, err)

	h := &harness{
		cfg:      cfg,
		records:  records,
		locks:    locks,
		web:      newFakeWeb(t.TempDir()),
		certs:    newFakeCerts(cfg.TLSDir),
		services: newFakeServices(),
		fetcher:  &fakeFetcher{},
		prober:   &fakeProber{},
		runner:   &fakeRunner{},
	}
	h.eng = engine.New(
		cfg, records, locks, deployers.NewDefaultRegistry(),
		h.web, h.certs, h.services, h.fetcher, h.prober, h.runner,
		testLogger(),
	)
	return h
}

func staticCreateReq(d string) domain.CreateRequest {
	return domain.CreateRequest{
		Domain:  d,
		Source:  "user/repo",
		AppType: domain.AppTypeStatic,
		Port:    8080,
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_Success(t *testing.T) {
	h := newHarness(t)

	app, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	assert.Equal(t, domain.StateActive, app.State)
	assert.Equal(t, domain.AppTypeStatic, app.AppType)
	require.NotNil(t, app.Site)
	require.NotNil(t, app.Service)
	assert.Nil(t, app.Certificate, "no certificate without --ssl")
	assert.True(t, app.Site.Enabled)
	assert.True(t, app.Service.Running)

	// Host side effects.
	assert.Contains(t, h.web.sites, "app.example.com")
	assert.True(t, h.web.enabled["app.example.com"])
	assert.True(t, h.services.running[engine.UnitName("app.example.com")])
	assert.Equal(t, 1, h.prober.calls)

	// Persisted record agrees.
	got, err := h.records.Get("app.example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, got.State)
}

func TestCreate_WithSSL(t *testing.T) {
	h := newHarness(t)
	req := staticCreateReq("secure.example.com")
	req.SSL = true
	req.Email = "ops@example.com"

	app, err := h.eng.Create(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, app.Certificate)
	assert.Equal(t, "letsencrypt", app.Certificate.Provider)
	assert.True(t, h.certs.issued["secure.example.com"])
	assert.GreaterOrEqual(t, h.web.reloads, 2, "site is re-rendered and reloaded after issuance")
}

func TestCreate_DetectsTypeWhenNotGiven(t *testing.T) {
	h := newHarness(t)
	h.fetcher.files = map[string]string{"index.html": "<html></html>"}

	app, err := h.eng.Create(context.Background(), domain.CreateRequest{
		Domain: "auto.example.com",
		Source: "user/site",
		Port:   8081,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AppTypeStatic, app.AppType)
}

func TestCreate_ProjectConfigSeedsDefaults(t *testing.T) {
	h := newHarness(t)
	h.fetcher.files = map[string]string{
		"index.html": "<html></html>",
		"wam.yml":    "port: 9001\nstart_command: ./serve\nhealth_check: /healthz\nenv:\n  APP_MODE: production\n",
	}

	app, err := h.eng.Create(context.Background(), domain.CreateRequest{
		Domain: "cfg.example.com",
		Source: "user/site",
	})
	require.NoError(t, err)
	assert.Equal(t, 9001, app.Port)
	assert.Equal(t, "./serve", app.StartCommand)
	assert.Equal(t, "/healthz", app.HealthCheckPath)
	assert.Equal(t, "production", app.EnvVars["APP_MODE"])
}

func TestCreate_DuplicateDomainConflicts(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	_, err = h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreate_PortConflict(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("a.example.com"))
	require.NoError(t, err)

	_, err = h.eng.Create(context.Background(), staticCreateReq("b.example.com"))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	// The losing create must leave nothing behind.
	_, err = h.records.Get("b.example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreate_LockHeldConflictsWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	lock, err := h.locks.Acquire("app.example.com", "create")
	require.NoError(t, err)
	defer lock.Release()

	_, err = h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	assert.Zero(t, h.fetcher.calls, "no fetch before the lock is held")
	assert.Empty(t, h.web.sites)
	assert.Empty(t, h.services.units)
	_, err = h.records.Get("app.example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreate_ValidationErrorTouchesNothing(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), domain.CreateRequest{Domain: "not_valid", Source: "user/repo"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.fetcher.calls)
}

// Forcing each stage to fail must leave exactly one of two observable
// outcomes: no trace at all, or a Failed record listing what is left.
func TestCreate_StageFailuresRollBackCleanly(t *testing.T) {
	cases := map[string]func(h *harness){
		"fetch":       func(h *harness) { h.fetcher.fail = true },
		"webserver":   func(h *harness) { h.web.failCreate = true },
		"certificate": func(h *harness) { h.certs.failIssue = true },
		"service":     func(h *harness) { h.services.failCreate = true },
		"start":       func(h *harness) { h.services.failStart = true },
		"health":      func(h *harness) { h.prober.queue = []error{errors.New("no answer")} },
	}

	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			breakIt(h)

			req := staticCreateReq("app.example.com")
			req.SSL = true
			req.Email = "ops@example.com"

			_, err := h.eng.Create(context.Background(), req)
			var depErr *domain.DeploymentError
			require.ErrorAs(t, err, &depErr)

			// Outcome (a): nothing remains.
			_, err = h.records.Get("app.example.com")
			assert.ErrorIs(t, err, store.ErrNotFound, "record must be erased after clean rollback")
			assert.Empty(t, h.web.sites, "no site left on host")
			assert.Empty(t, h.services.units, "no unit left on host")
			assert.Empty(t, h.certs.issued, "no orphaned certificate")
			assert.NoDirExists(t, filepath.Join(h.cfg.AppsDir, "app.example.com"))
		})
	}
}

func TestCreate_RollbackFailureLeavesFailedRecord(t *testing.T) {
	h := newHarness(t)
	h.services.failStart = true // stage failure
	h.web.failDelete = true     // compensation failure

	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	var rbErr *domain.RollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.NotEmpty(t, rbErr.Leftovers)
	assert.Contains(t, rbErr.Error(), "start failed", "original root cause is preserved")

	got, err := h.records.Get("app.example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.NotEmpty(t, got.FailedResources)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDelete_RemovesEverythingAndPurgesRecord(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	require.NoError(t, h.eng.Delete(context.Background(), "app.example.com"))

	_, err = h.records.Get("app.example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, h.web.sites)
	assert.Empty(t, h.services.units)
	assert.NoDirExists(t, filepath.Join(h.cfg.AppsDir, "app.example.com"))
}

func TestDelete_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	require.NoError(t, h.eng.Delete(context.Background(), "app.example.com"))

	sitesBefore := len(h.web.sites)
	reloadsBefore := h.web.reloads
	require.NoError(t, h.eng.Delete(context.Background(), "app.example.com"),
		"second delete succeeds with zero side effects")
	assert.Equal(t, sitesBefore, len(h.web.sites))
	assert.Equal(t, reloadsBefore, h.web.reloads)
}

func TestDelete_PartialFailureKeepsFailedRecordAndIsRerunnable(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	h.web.failDelete = true
	err = h.eng.Delete(context.Background(), "app.example.com")
	var rbErr *domain.RollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.Contains(t, rbErr.Leftovers, "site config for app.example.com")

	got, err := h.records.Get("app.example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)

	// Fix the host problem and re-run: delete must now complete.
	h.web.failDelete = false
	require.NoError(t, h.eng.Delete(context.Background(), "app.example.com"))
	_, err = h.records.Get("app.example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func readVersion(t *testing.T, h *harness, d string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.cfg.AppsDir, d, "current", "VERSION"))
	require.NoError(t, err)
	return string(data)
}

func TestUpdate_Success(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)
	require.Equal(t, "release-1", readVersion(t, h, "app.example.com"))

	app, err := h.eng.Update(context.Background(), domain.UpdateRequest{Domain: "app.example.com"})
	require.NoError(t, err)

	assert.Equal(t, domain.StateActive, app.State)
	assert.Empty(t, app.PreviousReleasePath, "snapshot discarded after success")
	assert.Equal(t, "release-2", readVersion(t, h, "app.example.com"))
	assert.NoDirExists(t, filepath.Join(h.cfg.AppsDir, "app.example.com", "previous"))
}

func TestUpdate_HealthFailureRestoresPreviousRelease(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	// New release fails its health check; the restored one passes.
	h.prober.queue = []error{errors.New("503 from new release"), nil}

	app, err := h.eng.Update(context.Background(), domain.UpdateRequest{Domain: "app.example.com"})
	var depErr *domain.DeploymentError
	require.ErrorAs(t, err, &depErr, "rolled-back update still surfaces the failure")

	require.NotNil(t, app)
	assert.Equal(t, domain.StateActive, app.State, "record returns to Active")
	assert.Equal(t, "release-1", readVersion(t, h, "app.example.com"), "previous build serves again")

	got, err := h.records.Get("app.example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, got.State)
}

func TestUpdate_RestoreFailureMarksFailed(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	// Both the new release and the restored one fail their health checks.
	h.prober.queue = []error{errors.New("new release down"), errors.New("old release down too")}

	_, err = h.eng.Update(context.Background(), domain.UpdateRequest{Domain: "app.example.com"})
	var rbErr *domain.RollbackError
	require.ErrorAs(t, err, &rbErr)

	got, err := h.records.Get("app.example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
}

func TestUpdate_RequiresActiveRecord(t *testing.T) {
	h := newHarness(t)

	_, err := h.eng.Update(context.Background(), domain.UpdateRequest{Domain: "ghost.example.com"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestUpdate_StartCommandChangeRecreatesUnit(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	app, err := h.eng.Update(context.Background(), domain.UpdateRequest{
		Domain:       "app.example.com",
		StartCommand: "./new-server --port {port}",
	})
	require.NoError(t, err)
	assert.Equal(t, "./new-server --port {port}", app.StartCommand)

	unit := h.services.units[engine.UnitName("app.example.com")]
	assert.Equal(t, "./new-server --port 8080", unit.Command)
}

func TestUpdate_RollbackRestoresStartCommandAndUnit(t *testing.T) {
	h := newHarness(t)
	app, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)
	originalStart := app.StartCommand

	// The release built with the new start command fails its health check;
	// the restored one passes.
	h.prober.queue = []error{errors.New("503 from new release"), nil}

	app, err = h.eng.Update(context.Background(), domain.UpdateRequest{
		Domain:       "app.example.com",
		StartCommand: "./new-server --port {port}",
	})
	var depErr *domain.DeploymentError
	require.ErrorAs(t, err, &depErr)

	require.NotNil(t, app)
	assert.Equal(t, domain.StateActive, app.State)
	assert.Equal(t, originalStart, app.StartCommand, "rolled-back update keeps the old start command")
	assert.Equal(t, "release-1", readVersion(t, h, "app.example.com"))

	// The unit serves the previous build with the previous command, and the
	// persisted record describes exactly that.
	unit := h.services.units[engine.UnitName("app.example.com")]
	assert.Equal(t, "python3 -m http.server 8080", unit.Command)
	got, err := h.records.Get("app.example.com")
	require.NoError(t, err)
	assert.Equal(t, originalStart, got.StartCommand)
}

func TestUpdate_DomainDeletedWhileWaitingForLockIsNotResurrected(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	// A competing invocation completes a full delete just before this update
	// takes the domain lock.
	locker := &racingLocker{
		inner:   h.locks,
		trigger: "update",
		race: func() {
			require.NoError(t, h.eng.Delete(context.Background(), "app.example.com"))
		},
	}
	racing := engine.New(
		h.cfg, h.records, locker, deployers.NewDefaultRegistry(),
		h.web, h.certs, h.services, h.fetcher, h.prober, h.runner,
		testLogger(),
	)

	_, err = racing.Update(context.Background(), domain.UpdateRequest{Domain: "app.example.com"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	// The purged record must not come back.
	_, err = h.records.Get("app.example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, h.web.sites)
	assert.Empty(t, h.services.units)
}

func TestDelete_FinishedByConcurrentInvocationIsSuccess(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	locker := &racingLocker{
		inner:   h.locks,
		trigger: "delete",
		race: func() {
			require.NoError(t, h.eng.Delete(context.Background(), "app.example.com"))
		},
	}
	racing := engine.New(
		h.cfg, h.records, locker, deployers.NewDefaultRegistry(),
		h.web, h.certs, h.services, h.fetcher, h.prober, h.runner,
		testLogger(),
	)

	reloadsBefore := h.web.reloads
	require.NoError(t, racing.Delete(context.Background(), "app.example.com"))

	_, err = h.records.Get("app.example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, reloadsBefore+1, h.web.reloads, "only the winning delete touches the webserver")
}

// ---------------------------------------------------------------------------
// Status / Restart / Logs
// ---------------------------------------------------------------------------

func TestStatus_CleanRecordReconciles(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	report, err := h.eng.Status(context.Background(), "app.example.com")
	require.NoError(t, err)
	assert.Empty(t, report.Mismatches)
	assert.True(t, report.Service.Running)
}

func TestStatus_DetectsCorruption(t *testing.T) {
	h := newHarness(t)
	app, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	// Someone removed the site config behind the tool's back.
	require.NoError(t, os.Remove(app.Site.ConfigPath))

	report, err := h.eng.Status(context.Background(), "app.example.com")
	var corrupt *domain.CorruptStateError
	require.ErrorAs(t, err, &corrupt)
	assert.NotEmpty(t, report.Mismatches)
}

func TestStatus_UnknownDomain(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Status(context.Background(), "ghost.example.com")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRestart(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	require.NoError(t, h.eng.Restart(context.Background(), "app.example.com"))
	assert.Equal(t, 1, h.services.restarts)
}

func TestLogs(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Create(context.Background(), staticCreateReq("app.example.com"))
	require.NoError(t, err)

	out, err := h.eng.Logs(context.Background(), "app.example.com", 50)
	require.NoError(t, err)
	assert.Contains(t, out, "unit log output")
}
