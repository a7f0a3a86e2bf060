// Package ocrtest provides an in-memory Cloud Vision client for tests.
package ocrtest

import (
	"context"
	"strings"
	"sync"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
)

// FakeClient answers BatchAnnotateImages from canned data. Errors are returned
// in order, one per call, before any text is returned.
type FakeClient struct {
	// Text is returned as the full text annotation. Empty means no annotation.
	Text string

	// Confidence is set on the single returned page.
	Confidence float32

	// Languages are attached to the returned page.
	Languages []string

	// ImageError, when set, is returned as the per-image error status.
	ImageError string

	// Errs are returned from successive calls before succeeding.
	Errs []error

	mu       sync.Mutex
	requests []*visionpb.BatchAnnotateImagesRequest
	closed   bool
}

// NewFakeClient returns a client that recognises text.
func NewFakeClient(text string) *FakeClient {
	return &FakeClient{Text: text, Confidence: 0.97, Languages: []string{"en"}}
}

func (f *FakeClient) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.requests = append(f.requests, req)
	if len(f.Errs) > 0 {
		err := f.Errs[0]
		f.Errs = f.Errs[1:]
		return nil, err
	}

	resp := &visionpb.AnnotateImageResponse{}
	if f.ImageError != "" {
		resp.Error = &rpcstatus.Status{Code: int32(codes.InvalidArgument), Message: f.ImageError}
		return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{resp}}, nil
	}

	if f.Text != "" {
		page := &visionpb.Page{Confidence: f.Confidence}
		if len(f.Languages) > 0 {
			page.Property = &visionpb.TextAnnotation_TextProperty{}
			for _, lang := range f.Languages {
				page.Property.DetectedLanguages = append(page.Property.DetectedLanguages,
					&visionpb.TextAnnotation_DetectedLanguage{LanguageCode: lang, Confidence: 1})
			}
		}
		resp.FullTextAnnotation = &visionpb.TextAnnotation{
			Text:  f.Text,
			Pages: []*visionpb.Page{page},
		}
		resp.TextAnnotations = []*visionpb.EntityAnnotation{{
			Description: strings.TrimSpace(f.Text),
			Locale:      firstOr(f.Languages, ""),
		}}
	}

	return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{resp}}, nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Requests returns the requests received so far.
func (f *FakeClient) Requests() []*visionpb.BatchAnnotateImagesRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*visionpb.BatchAnnotateImagesRequest(nil), f.requests...)
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func firstOr(values []string, def string) string {
	if len(values) > 0 {
		return values[0]
	}
	return def
}
