package metadata

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/wishlane/wishlane-backend/pkg/config"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// PageMetadata is what the gift form autofills from a pasted URL. All
// fields are best effort; a fetch or parse failure yields empty
// metadata rather than an error so the form stays usable.
type PageMetadata struct {
	Title *string          `json:"title"`
	Image *string          `json:"image"`
	Price *decimal.Decimal `json:"price"`
}

// Service scrapes product pages for gift card autofill.
type Service interface {
	Parse(ctx context.Context, rawURL string) (*PageMetadata, error)
}

type service struct {
	client       *http.Client
	logg         *logger.Logger
	maxBodyBytes int64
}

// ServiceParams collects the metadata service dependencies. Client may
// be nil to use a default client with the configured timeout.
type ServiceParams struct {
	Client *http.Client
	Logger *logger.Logger
	Config config.MetadataConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "metadata logger required")
	}
	if params.Config.FetchTimeout <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "metadata fetch timeout must be positive")
	}
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: params.Config.FetchTimeout}
	}
	maxBody := params.Config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	return &service{
		client:       client,
		logg:         params.Logger,
		maxBodyBytes: maxBody,
	}, nil
}

func (s *service) Parse(ctx context.Context, rawURL string) (*PageMetadata, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return &PageMetadata{}, nil
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid url")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "metadata fetch failed")
		return &PageMetadata{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logg.Warn(s.logg.WithField(ctx, "status", resp.StatusCode), "metadata fetch returned non-success status")
		return &PageMetadata{}, nil
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "metadata parse failed")
		return &PageMetadata{}, nil
	}

	// Redirects may have moved us; relative images resolve against the
	// final URL, not the requested one.
	var base *url.URL
	if resp.Request != nil {
		base = resp.Request.URL
	}

	found := extract(doc, base)
	out := &PageMetadata{Price: found.price}
	if found.title != "" {
		out.Title = &found.title
	}
	if found.image != "" {
		out.Image = &found.image
	}
	return out, nil
}
