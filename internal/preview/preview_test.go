package preview_test

import (
	"context"
	"errors"
	"testing"

	"convertupload/internal/config"
	"convertupload/internal/logging"
	"convertupload/internal/preview"
)

type fakeProc struct {
	id         int
	terminated bool
	journal    *[]string
	done       chan struct{}
}

func (p *fakeProc) Terminate() error {
	p.terminated = true
	*p.journal = append(*p.journal, "terminate")
	p.exit()
	return nil
}

func (p *fakeProc) Done() <-chan struct{} { return p.done }

func (p *fakeProc) exit() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

type fakeStarter struct {
	journal []string
	procs   []*fakeProc
	sources []string
	err     error
}

func (s *fakeStarter) start(_ context.Context, _ string, args []string) (preview.Process, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.journal = append(s.journal, "start")
	s.sources = append(s.sources, args[len(args)-1])
	proc := &fakeProc{id: len(s.procs), journal: &s.journal, done: make(chan struct{})}
	s.procs = append(s.procs, proc)
	return proc, nil
}

func previewConfig(enabled bool) *config.Config {
	cfg := config.Default()
	cfg.Preview.Enabled = enabled
	return &cfg
}

func newTestManager(cfg *config.Config, starter *fakeStarter, monitors preview.Monitors) *preview.Manager {
	return preview.NewManager(cfg, logging.NewNop(),
		preview.WithStartFunc(starter.start),
		preview.WithMonitors(monitors),
	)
}

func TestShowStartsOnePlayerPerDisplay(t *testing.T) {
	starter := &fakeStarter{}
	monitors := preview.StaticMonitors(
		preview.Display{Index: 1, X: 1920},
		preview.Display{Index: 2, X: 3840},
	)
	manager := newTestManager(previewConfig(true), starter, monitors)

	if err := manager.Show(context.Background(), "/media/raw.mp4"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(starter.procs) != 2 {
		t.Fatalf("players = %d, want one per display", len(starter.procs))
	}
	if !manager.Playing() {
		t.Fatal("manager should report playing")
	}
}

func TestShowSwapsGenerationsAtomically(t *testing.T) {
	starter := &fakeStarter{}
	manager := newTestManager(previewConfig(true), starter, preview.DefaultMonitors())

	if err := manager.Show(context.Background(), "/media/raw.mp4"); err != nil {
		t.Fatalf("first show: %v", err)
	}
	if err := manager.Show(context.Background(), "/media/enhanced.mp4"); err != nil {
		t.Fatalf("second show: %v", err)
	}

	want := []string{"start", "terminate", "start"}
	if len(starter.journal) != len(want) {
		t.Fatalf("journal = %v, want %v", starter.journal, want)
	}
	for i, event := range want {
		if starter.journal[i] != event {
			t.Fatalf("journal = %v, want old generation terminated before new start", starter.journal)
		}
	}
	if !starter.procs[0].terminated || starter.procs[1].terminated {
		t.Fatalf("exactly the first generation should be dead: %+v", starter.procs)
	}
	if starter.sources[1] != "/media/enhanced.mp4" {
		t.Fatalf("second generation plays %q", starter.sources[1])
	}
}

func TestRestartReplaysCurrentSource(t *testing.T) {
	starter := &fakeStarter{}
	manager := newTestManager(previewConfig(true), starter, preview.DefaultMonitors())

	if err := manager.Restart(context.Background()); err != nil {
		t.Fatalf("restart with nothing showing: %v", err)
	}
	if len(starter.procs) != 0 {
		t.Fatal("restart before show must not start players")
	}

	if err := manager.Show(context.Background(), "/media/raw.mp4"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := manager.Restart(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := starter.sources; len(got) != 2 || got[1] != "/media/raw.mp4" {
		t.Fatalf("restart sources = %v", got)
	}
}

func TestStopTerminatesEveryPlayer(t *testing.T) {
	starter := &fakeStarter{}
	monitors := preview.StaticMonitors(preview.Display{Index: 1}, preview.Display{Index: 2})
	manager := newTestManager(previewConfig(true), starter, monitors)

	if err := manager.Show(context.Background(), "/media/raw.mp4"); err != nil {
		t.Fatalf("show: %v", err)
	}
	manager.Stop()
	for _, proc := range starter.procs {
		if !proc.terminated {
			t.Fatalf("player %d survived stop", proc.id)
		}
	}
	if manager.Playing() {
		t.Fatal("manager still reports playing after stop")
	}
}

func TestPlayingReportsFalseAfterPlayersExit(t *testing.T) {
	starter := &fakeStarter{}
	monitors := preview.StaticMonitors(preview.Display{Index: 1}, preview.Display{Index: 2})
	manager := newTestManager(previewConfig(true), starter, monitors)

	if err := manager.Show(context.Background(), "/media/raw.mp4"); err != nil {
		t.Fatalf("show: %v", err)
	}

	starter.procs[0].exit()
	if !manager.Playing() {
		t.Fatal("one surviving player should still count as playing")
	}

	starter.procs[1].exit()
	if manager.Playing() {
		t.Fatal("manager reports playing after every player exited")
	}

	if err := manager.Restart(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := len(starter.procs); got != 4 {
		t.Fatalf("players after restart = %d, want a fresh pair", got)
	}
	if !manager.Playing() {
		t.Fatal("restart should bring playback back")
	}
}

func TestDisabledPreviewIsNoOp(t *testing.T) {
	starter := &fakeStarter{err: errors.New("must not be called")}
	manager := newTestManager(previewConfig(false), starter, preview.DefaultMonitors())
	if err := manager.Show(context.Background(), "/media/raw.mp4"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if manager.Playing() {
		t.Fatal("disabled preview must not play")
	}
}
