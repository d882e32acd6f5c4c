package file

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/config"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/processor"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/registry"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
	filestore "github.com/Lalitha-balijepalli/FileFlexor/internal/storage/file"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

var testCleanup = config.Cleanup{
	IntakeDelay:   time.Second,
	DownloadDelay: 5 * time.Second,
	UploadTTL:     time.Hour,
	ResultTTL:     2 * time.Hour,
	SweepInterval: time.Second,
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	svc     *Service
	intake  *filestore.Storage
	results *filestore.Storage
	store   *registry.MemoryStore
	reg     *registry.Registry
	pub     *recordingPublisher
	now     time.Time
}

func newTestEnv(t *testing.T, maxSize int64) *testEnv {
	t.Helper()

	root := t.TempDir()
	intake, err := filestore.NewStorage(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	results, err := filestore.NewStorage(filepath.Join(root, "processed"))
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		intake:  intake,
		results: results,
		store:   registry.NewMemoryStore(),
		pub:     &recordingPublisher{},
		now:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	env.reg = registry.New(env.store, func() time.Time { return env.now })
	env.reg.Track(storage.AreaIntake, intake, testCleanup.UploadTTL)
	env.reg.Track(storage.AreaResults, results, testCleanup.ResultTTL)

	env.svc = NewService(
		intake, results,
		processor.New(intake, results),
		env.reg,
		env.pub,
		config.Upload{MaxSize: maxSize, FormField: "file"},
		testCleanup,
	)

	return env
}

func (e *testEnv) deadline(t *testing.T, area, name string) time.Duration {
	t.Helper()

	at, ok := e.store.Get(area, name)
	if !ok {
		t.Fatalf("%s/%s is not scheduled", area, name)
	}

	return at.Sub(e.now)
}

func pngFixture(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

var uploadName = regexp.MustCompile(`^file-\d+-\d{1,9}\.png$`)

func TestUploadStoresAndSchedules(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	data := pngFixture(t)

	up, err := env.svc.Upload(context.Background(), UploadInput{
		Filename:    "Photo.PNG",
		ContentType: "image/png",
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if !uploadName.MatchString(up.ID) {
		t.Fatalf("unexpected generated name %q", up.ID)
	}
	if up.OriginalName != "Photo.PNG" || up.Type != "image/png" || up.DetectedType != "image/png" {
		t.Fatalf("unexpected metadata %+v", up)
	}
	if up.Size != int64(len(data)) {
		t.Fatalf("size %d, want %d", up.Size, len(data))
	}

	stored, err := os.ReadFile(filepath.Join(env.intake.Dir(), up.ID))
	if err != nil || !bytes.Equal(stored, data) {
		t.Fatalf("stored content mismatch (err=%v)", err)
	}

	if d := env.deadline(t, storage.AreaIntake, up.ID); d != testCleanup.UploadTTL {
		t.Fatalf("upload scheduled after %s, want %s", d, testCleanup.UploadTTL)
	}
	if got := env.pub.types(); len(got) != 1 || got[0] != model.EventUploaded {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestUploadNamesAreUnique(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		up, err := env.svc.Upload(context.Background(), UploadInput{
			Filename:    "a.pdf",
			ContentType: "application/pdf",
			Size:        -1,
			Body:        bytes.NewReader([]byte("%PDF-1.4\n")),
		})
		if err != nil {
			t.Fatal(err)
		}
		if seen[up.ID] {
			t.Fatalf("duplicate name %q", up.ID)
		}
		seen[up.ID] = true
	}
}

func TestUploadDerivesExtensionFromType(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	up, err := env.svc.Upload(context.Background(), UploadInput{
		Filename:    "scan",
		ContentType: "image/png",
		Size:        -1,
		Body:        bytes.NewReader(pngFixture(t)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(up.ID) != ".png" {
		t.Fatalf("expected .png extension, got %q", up.ID)
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		in      UploadInput
		wantErr error
	}{
		{
			name:    "text file",
			in:      UploadInput{Filename: "notes.txt", ContentType: "text/plain", Size: 5, Body: bytes.NewReader([]byte("hello"))},
			wantErr: model.ErrInvalidFileType,
		},
		{
			name:    "gif",
			in:      UploadInput{Filename: "a.gif", ContentType: "image/gif", Size: 5, Body: bytes.NewReader([]byte("GIF89"))},
			wantErr: model.ErrInvalidFileType,
		},
		{
			name:    "declared too large",
			in:      UploadInput{Filename: "big.pdf", ContentType: "application/pdf", Size: 65, Body: bytes.NewReader(make([]byte, 65))},
			wantErr: model.ErrPayloadTooLarge,
		},
		{
			name:    "body too large",
			in:      UploadInput{Filename: "big.pdf", ContentType: "application/pdf", Size: -1, Body: bytes.NewReader(make([]byte, 100))},
			wantErr: model.ErrPayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 64)

			if _, err := env.svc.Upload(context.Background(), tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			files, err := env.intake.List(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(files) != 0 {
				t.Fatalf("nothing should be stored, found %+v", files)
			}
			if env.store.Len() != 0 {
				t.Fatal("nothing should be scheduled")
			}
		})
	}
}

func TestUploadExactlyAtLimit(t *testing.T) {
	env := newTestEnv(t, 64)

	up, err := env.svc.Upload(context.Background(), UploadInput{
		Filename:    "edge.pdf",
		ContentType: "application/pdf",
		Size:        64,
		Body:        bytes.NewReader(make([]byte, 64)),
	})
	if err != nil {
		t.Fatalf("upload at the limit must succeed: %v", err)
	}
	if up.Size != 64 {
		t.Fatalf("unexpected size %d", up.Size)
	}
}

func TestProcessSchedulesCleanup(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	up, err := env.svc.Upload(ctx, UploadInput{Filename: "p.png", ContentType: "image/png", Size: -1, Body: bytes.NewReader(pngFixture(t))})
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.Process(ctx, model.ProcessingRequest{FileID: up.ID, Operation: model.OpConvert, TargetFormat: "webp"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if d := env.deadline(t, storage.AreaIntake, up.ID); d != testCleanup.IntakeDelay {
		t.Fatalf("intake rescheduled after %s, want %s", d, testCleanup.IntakeDelay)
	}
	if d := env.deadline(t, storage.AreaResults, res.Filename); d != testCleanup.ResultTTL {
		t.Fatalf("result scheduled after %s, want %s", d, testCleanup.ResultTTL)
	}

	// The input is still there until the sweep runs, so a second request works.
	if _, err := env.svc.Process(ctx, model.ProcessingRequest{FileID: up.ID, Operation: model.OpCompress}); err != nil {
		t.Fatalf("second process before sweep: %v", err)
	}

	env.now = env.now.Add(testCleanup.IntakeDelay)
	if _, err := env.reg.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Process(ctx, model.ProcessingRequest{FileID: up.ID, Operation: model.OpCompress}); !errors.Is(err, model.ErrFileNotFound) {
		t.Fatalf("expected input to be gone after sweep, got %v", err)
	}
}

func TestProcessFailureSchedulesNothing(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	_, err := env.svc.Process(context.Background(), model.ProcessingRequest{FileID: "missing.png", Operation: model.OpCompress})
	if !errors.Is(err, model.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if env.store.Len() != 0 {
		t.Fatal("failed requests must not schedule anything")
	}
}

func TestOpenAndMarkDownloaded(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	if _, err := env.results.Save(ctx, "r_converted.webp", bytes.NewReader([]byte("webp"))); err != nil {
		t.Fatal(err)
	}

	rc, info, err := env.svc.Open(ctx, "r_converted.webp")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()
	if info.Size != 4 {
		t.Fatalf("unexpected size %d", info.Size)
	}

	if err := env.reg.Schedule(ctx, storage.AreaResults, "r_converted.webp", testCleanup.ResultTTL); err != nil {
		t.Fatal(err)
	}

	env.svc.MarkDownloaded(ctx, "r_converted.webp", info.Size)
	if d := env.deadline(t, storage.AreaResults, "r_converted.webp"); d != testCleanup.DownloadDelay {
		t.Fatalf("download scheduled after %s, want %s", d, testCleanup.DownloadDelay)
	}

	// A repeated download does not extend the result's life.
	env.now = env.now.Add(3 * time.Second)
	env.svc.MarkDownloaded(ctx, "r_converted.webp", info.Size)
	if d := env.deadline(t, storage.AreaResults, "r_converted.webp"); d != testCleanup.DownloadDelay-3*time.Second {
		t.Fatalf("repeated download moved the deadline to +%s", d)
	}

	if _, _, err := env.svc.Open(ctx, "absent.pdf"); !errors.Is(err, model.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if _, _, err := env.svc.Open(ctx, "../uploads/x.png"); !errors.Is(err, storage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestPublishFailureDoesNotFailRequests(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.pub.err = errors.New("broker down")

	if _, err := env.svc.Upload(context.Background(), UploadInput{
		Filename:    "doc.pdf",
		ContentType: "application/pdf",
		Size:        -1,
		Body:        bytes.NewReader([]byte("%PDF-1.4\n")),
	}); err != nil {
		t.Fatalf("upload must succeed when publishing fails: %v", err)
	}
}

func TestNilPublisherDisablesEvents(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.svc.publisher = nil

	env.svc.NotifyExpired(context.Background(), registry.Entry{Area: storage.AreaResults, Name: "x"})
}

func TestMediaTypeAndExtension(t *testing.T) {
	if got := mediaType(" Image/PNG; charset=binary"); got != "image/png" {
		t.Fatalf("unexpected media type %q", got)
	}

	for name, want := range map[string]string{
		"a.PDF":      ".pdf",
		"b.tar.gz":   ".gz",
		"noext":      "",
		"trailing.":  "",
		"weird.p ng": "",
	} {
		if got := extension(name); got != want {
			t.Fatalf("extension(%q) = %q, want %q", name, got, want)
		}
	}
}
