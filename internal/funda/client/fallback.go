package client

import (
	"context"
	"errors"
	"sync/atomic"

	"valora_backend/platform/apperr"
	"valora_backend/platform/logger"
)

// Fallback tries the direct strategy first and switches to the browser
// when the site blocks plain HTTP. Once a call gets blocked, subsequent
// challenge-protected calls go straight to the browser until the process
// restarts; the block rarely lifts within one run.
type Fallback struct {
	direct  *Direct
	browser *Browser
	log     *logger.Logger

	blocked atomic.Bool
}

// NewFallback composes the two strategies. A nil browser disables the
// fallback and surfaces blocks to the caller.
func NewFallback(direct *Direct, browser *Browser, log *logger.Logger) *Fallback {
	return &Fallback{direct: direct, browser: browser, log: log}
}

// SearchListings queries a search page, falling back to the browser on a
// bot challenge.
func (f *Fallback) SearchListings(ctx context.Context, region, offeringType string, page int, price PriceRange) (*SearchResult, error) {
	if f.useBrowser() {
		return f.browser.SearchListings(ctx, region, offeringType, page, price)
	}

	result, err := f.direct.SearchListings(ctx, region, offeringType, page, price)
	if f.shouldFallBack(err) {
		f.markBlocked("search")
		return f.browser.SearchListings(ctx, region, offeringType, page, price)
	}
	return result, err
}

// FetchListingDetails fetches rich detail data, falling back to the
// browser on a bot challenge.
func (f *Fallback) FetchListingDetails(ctx context.Context, detailURL string) (*RichListingData, error) {
	if f.useBrowser() {
		return f.browser.FetchListingDetails(ctx, detailURL)
	}

	data, err := f.direct.FetchListingDetails(ctx, detailURL)
	if f.shouldFallBack(err) {
		f.markBlocked("detail")
		return f.browser.FetchListingDetails(ctx, detailURL)
	}
	return data, err
}

// FetchListingSummary always goes direct; the summary API is not
// challenge-protected.
func (f *Fallback) FetchListingSummary(ctx context.Context, globalID int64) (*ListingSummary, error) {
	return f.direct.FetchListingSummary(ctx, globalID)
}

// FetchContactDetails always goes direct.
func (f *Fallback) FetchContactDetails(ctx context.Context, globalID int64) (*ContactDetails, error) {
	return f.direct.FetchContactDetails(ctx, globalID)
}

// FetchFiberAvailability always goes direct.
func (f *Fallback) FetchFiberAvailability(ctx context.Context, postalCode string) (*FiberAvailability, error) {
	return f.direct.FetchFiberAvailability(ctx, postalCode)
}

func (f *Fallback) useBrowser() bool {
	return f.blocked.Load() && f.browser != nil
}

func (f *Fallback) shouldFallBack(err error) bool {
	if err == nil || f.browser == nil {
		return false
	}
	var appErr *apperr.Error
	return errors.As(err, &appErr) && appErr.Kind == apperr.KindBlocked
}

func (f *Fallback) markBlocked(operation string) {
	if !f.blocked.Swap(true) {
		f.log.Info("direct strategy blocked, switching to browser", "operation", operation)
	}
}

var _ Client = (*Fallback)(nil)
