package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/imaging"
	"go-fieldfix/internal/observer"
	"go-fieldfix/internal/prompt"
	"go-fieldfix/internal/storage"
	"go-fieldfix/pkg/models"
)

type fakeGateway struct {
	calls   int
	prompt  string
	payload imaging.EncodedPayload
	result  models.AnalysisResult
}

func (g *fakeGateway) Infer(ctx context.Context, prompt string, payload imaging.EncodedPayload) models.AnalysisResult {
	g.calls++
	g.prompt = prompt
	g.payload = payload
	return g.result
}

type fakeRepository struct {
	image *storage.FetchedImage
	err   error
	calls int
}

func (r *fakeRepository) FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error) {
	r.calls++
	return r.image, r.err
}

func (r *fakeRepository) ValidateImageURL(imageURL string) error {
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e fakeExtractor) ExtractText([]byte) (string, error) {
	return e.text, e.err
}

type recordingObserver struct {
	events []observer.EventType
}

func (o *recordingObserver) OnEvent(ctx context.Context, event observer.AnalysisEvent) {
	o.events = append(o.events, event.EventType)
}

func (o *recordingObserver) GetObserverName() string { return "recording" }

func redPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestService(gw *fakeGateway, deps Dependencies) (AnalysisService, *recordingObserver) {
	rec := &recordingObserver{}
	publisher := observer.NewEventPublisher(nil)
	publisher.Subscribe(rec)

	deps.Normalizer = imaging.NewNormalizer(imaging.DefaultOptions())
	deps.Builder = prompt.NewBuilder()
	deps.Gateway = gw
	deps.Events = publisher
	return NewAnalysisService(deps), rec
}

func TestAnalyze_RipenessTomato(t *testing.T) {
	gw := &fakeGateway{result: models.Success("Ripe")}
	svc, rec := newTestService(gw, Dependencies{})

	result := svc.Analyze(context.Background(), UploadRequest{
		Image:    imaging.UploadedImage{Data: redPNG(t, 10, 10), DeclaredType: "image/png"},
		Category: "Ripeness",
		Subject:  "Tomato",
	})

	if result != models.Success("Ripe") {
		t.Fatalf("Expected Success(\"Ripe\"), got %+v", result)
	}
	if gw.calls != 1 {
		t.Fatalf("Expected one gateway call, got %d", gw.calls)
	}
	if gw.payload.MIMEType != "image/jpeg" {
		t.Errorf("Expected image/jpeg payload, got %s", gw.payload.MIMEType)
	}
	if gw.payload.Width != 10 || gw.payload.Height != 10 {
		t.Errorf("Expected 10x10 payload, got %dx%d", gw.payload.Width, gw.payload.Height)
	}
	if !strings.Contains(gw.prompt, "ripeness level") || !strings.Contains(gw.prompt, "Tomato") {
		t.Errorf("Prompt missing ripeness level or subject:\n%s", gw.prompt)
	}

	want := []observer.EventType{observer.AnalysisStarted, observer.ImageNormalized, observer.AnalysisCompleted}
	if !equalEvents(rec.events, want) {
		t.Errorf("Expected events %v, got %v", want, rec.events)
	}
}

func TestAnalyze_UndecodableImageNeverReachesGateway(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty upload", nil},
		{"random bytes", []byte("definitely not an image")},
		{"truncated png", redPNG(t, 10, 10)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{result: models.Success("unused")}
			svc, rec := newTestService(gw, Dependencies{})

			result := svc.Analyze(context.Background(), UploadRequest{
				Image:    imaging.UploadedImage{Data: tt.data, DeclaredType: "image/png"},
				Category: "pest",
			})

			if result.IsSuccess() {
				t.Fatal("Expected failure")
			}
			if result.FailureKind != apperrors.ErrorTypeDecode {
				t.Errorf("Expected decode failure, got %s", result.FailureKind)
			}
			if gw.calls != 0 {
				t.Errorf("Gateway must not be invoked, got %d calls", gw.calls)
			}
			want := []observer.EventType{observer.AnalysisStarted, observer.ImageRejected, observer.AnalysisFailed}
			if !equalEvents(rec.events, want) {
				t.Errorf("Expected events %v, got %v", want, rec.events)
			}
		})
	}
}

func TestAnalyze_UnknownCategory(t *testing.T) {
	gw := &fakeGateway{result: models.Success("unused")}
	svc, _ := newTestService(gw, Dependencies{})

	result := svc.Analyze(context.Background(), UploadRequest{
		Image:    imaging.UploadedImage{Data: redPNG(t, 4, 4)},
		Category: "soil",
	})

	if result.FailureKind != apperrors.ErrorTypeValidation {
		t.Errorf("Expected validation failure, got %+v", result)
	}
	if gw.calls != 0 {
		t.Error("Gateway must not be invoked for an unknown category")
	}
}

func TestAnalyze_GatewayFailurePassesThrough(t *testing.T) {
	gw := &fakeGateway{result: models.Failure(apperrors.ErrorTypeService, "quota exceeded")}
	svc, rec := newTestService(gw, Dependencies{})

	result := svc.Analyze(context.Background(), UploadRequest{
		Image:    imaging.UploadedImage{Data: redPNG(t, 4, 4)},
		Category: "weed",
	})

	if result.FailureKind != apperrors.ErrorTypeService || result.Message != "quota exceeded" {
		t.Errorf("Unexpected result %+v", result)
	}
	if rec.events[len(rec.events)-1] != observer.AnalysisFailed {
		t.Errorf("Expected last event analysis_failed, got %v", rec.events)
	}
}

func TestAnalyze_TextHint(t *testing.T) {
	tests := []struct {
		name      string
		extractor fakeExtractor
		context   string
		want      string
		notWant   string
	}{
		{
			name:      "hint appended to context",
			extractor: fakeExtractor{text: "  ROUNDUP   PRO  "},
			context:   "sprayed last week",
			want:      "sprayed last week\n\nText visible in the image (OCR): ROUNDUP PRO",
		},
		{
			name:      "hint alone",
			extractor: fakeExtractor{text: "Brandywine"},
			want:      "Text visible in the image (OCR): Brandywine",
		},
		{
			name:      "extractor error ignored",
			extractor: fakeExtractor{err: errors.New("tesseract missing")},
			context:   "north field",
			want:      "north field",
			notWant:   "OCR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{result: models.Success("ok")}
			svc, _ := newTestService(gw, Dependencies{Extractor: tt.extractor})

			result := svc.Analyze(context.Background(), UploadRequest{
				Image:    imaging.UploadedImage{Data: redPNG(t, 4, 4)},
				Category: "disease",
				Context:  tt.context,
			})
			if !result.IsSuccess() {
				t.Fatalf("Expected success, got %+v", result)
			}
			if !strings.Contains(gw.prompt, tt.want) {
				t.Errorf("Expected prompt to contain %q:\n%s", tt.want, gw.prompt)
			}
			if tt.notWant != "" && strings.Contains(gw.prompt, tt.notWant) {
				t.Errorf("Prompt must not contain %q", tt.notWant)
			}
		})
	}
}

func TestAnalyzeURL(t *testing.T) {
	t.Run("fetched image is analyzed", func(t *testing.T) {
		gw := &fakeGateway{result: models.Success("Aphids")}
		repo := &fakeRepository{image: &storage.FetchedImage{Data: redPNG(t, 8, 8), ContentType: "image/png"}}
		svc, rec := newTestService(gw, Dependencies{Images: repo})

		result := svc.AnalyzeURL(context.Background(), URLRequest{URL: "https://example.com/leaf.png", Category: "pest"})

		if result != models.Success("Aphids") {
			t.Fatalf("Unexpected result %+v", result)
		}
		want := []observer.EventType{observer.AnalysisStarted, observer.ImageFetched, observer.ImageNormalized, observer.AnalysisCompleted}
		if !equalEvents(rec.events, want) {
			t.Errorf("Expected events %v, got %v", want, rec.events)
		}
	})

	t.Run("fetch failure keeps its kind", func(t *testing.T) {
		gw := &fakeGateway{result: models.Success("unused")}
		repo := &fakeRepository{err: apperrors.NewNotFoundError("image not found", nil)}
		svc, rec := newTestService(gw, Dependencies{Images: repo})

		result := svc.AnalyzeURL(context.Background(), URLRequest{URL: "https://example.com/missing.png", Category: "pest"})

		if result.FailureKind != apperrors.ErrorTypeNotFound {
			t.Errorf("Expected not_found failure, got %+v", result)
		}
		if gw.calls != 0 {
			t.Error("Gateway must not be invoked when the fetch fails")
		}
		want := []observer.EventType{observer.AnalysisStarted, observer.ImageFetchFailed, observer.AnalysisFailed}
		if !equalEvents(rec.events, want) {
			t.Errorf("Expected events %v, got %v", want, rec.events)
		}
	})

	t.Run("invalid category skips the fetch", func(t *testing.T) {
		repo := &fakeRepository{}
		svc, _ := newTestService(&fakeGateway{}, Dependencies{Images: repo})

		result := svc.AnalyzeURL(context.Background(), URLRequest{URL: "https://example.com/a.png", Category: "mineral"})

		if result.FailureKind != apperrors.ErrorTypeValidation || repo.calls != 0 {
			t.Errorf("Expected validation failure without fetch, got %+v (%d fetches)", result, repo.calls)
		}
	})

	t.Run("no repository configured", func(t *testing.T) {
		svc, _ := newTestService(&fakeGateway{}, Dependencies{})

		result := svc.AnalyzeURL(context.Background(), URLRequest{URL: "https://example.com/a.png", Category: "pest"})

		if result.FailureKind != apperrors.ErrorTypeConfig {
			t.Errorf("Expected config failure, got %+v", result)
		}
	})
}

func TestNewAnalysisRequest(t *testing.T) {
	payload := imaging.EncodedPayload{Data: []byte{0xff, 0xd8}, MIMEType: imaging.PayloadMIMEType}

	req, err := NewAnalysisRequest(prompt.Weed, "", "roadside", payload)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Category != prompt.Weed || req.Context != "roadside" {
		t.Errorf("Unexpected request %+v", req)
	}

	if _, err := NewAnalysisRequest(prompt.Category("fungus"), "", "", payload); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for unknown category, got %v", err)
	}
	if _, err := NewAnalysisRequest(prompt.Pest, "", "", imaging.EncodedPayload{}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for empty payload, got %v", err)
	}
}

func equalEvents(got, want []observer.EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
