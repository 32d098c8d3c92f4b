// Package crawl drives acquisition of a paginated remote document. The
// Controller walks pages in order, one request at a time, and stops at the
// first page the remote service cannot serve.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/raster"
)

// DefaultCooldown is the pause between consecutive page requests.
const DefaultCooldown = time.Second

// ErrNotContiguous is returned when a run would not continue directly after
// the highest stored page.
var ErrNotContiguous = errors.New("run would leave a gap in the page store")

// Reason names why acquisition terminated.
type Reason string

const (
	EndPageReached     Reason = "end_page_reached"
	MetadataAbsent     Reason = "metadata_absent"
	ImageLocatorAbsent Reason = "image_locator_absent"
	AuthFailure        Reason = "auth_failure"
	NetworkFailure     Reason = "network_failure"
	ImageInvalid       Reason = "image_invalid"
	StoreFailure       Reason = "store_failure"
	Canceled           Reason = "canceled"
)

// Completed reports whether the reason is a normal end of the document.
func (r Reason) Completed() bool {
	return r == EndPageReached || r == MetadataAbsent
}

// Result summarises one acquisition run. First and Last are zero when no
// page was acquired.
type Result struct {
	Acquired int
	First    int
	Last     int
	Next     int // the page that would have been requested next
	Reason   Reason
	Err      error
}

// Store is the subset of the page store the controller needs.
type Store interface {
	core.PageWriter
	Last() (int, bool, error)
}

// Controller runs the acquisition state machine.
type Controller struct {
	Source   core.PageSource
	Store    Store
	Cooldown time.Duration
	Logger   *slog.Logger

	// LocatorField is the metadata key holding the image URL.
	LocatorField string

	// Resume starts one past the highest stored page instead of the
	// document's start page. Without it a run into a non-empty store must
	// start exactly there.
	Resume bool

	// OnPage is called after each page is stored.
	OnPage func(page core.Page)

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Acquire fetches pages starting at doc.First() (or the resume point) until
// a terminal condition is reached. It always returns a Result; Result.Err is
// set for every reason that is not Completed.
func (c *Controller) Acquire(ctx context.Context, doc core.Document) Result {
	log := c.logger().With("document", doc.ID)

	start := doc.First()
	last, stored, err := c.Store.Last()
	if err != nil {
		return Result{Next: start, Reason: StoreFailure, Err: core.NewError(core.CodeStore, "reading stored pages", start, err)}
	}
	if stored {
		switch {
		case c.Resume:
			if start != last+1 {
				log.Info("resuming acquisition", "from_page", last+1, "start_page", start)
			}
			start = last + 1
		case start != last+1:
			err := fmt.Errorf("%w: pages up to %d are stored, run starts at %d", ErrNotContiguous, last, start)
			return Result{Next: start, Reason: StoreFailure, Err: core.NewError(core.CodeStore, "checking stored pages", start, err)}
		}
	}

	res := Result{Next: start}
	for n := start; ; n++ {
		res.Next = n

		if doc.EndPage > 0 && n > doc.EndPage {
			res.Reason = EndPageReached
			break
		}
		if n > start {
			if err := c.pause(ctx); err != nil {
				res.Reason, res.Err = Canceled, err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			res.Reason, res.Err = Canceled, err
			break
		}

		reason, err := c.step(ctx, log, doc, n)
		if reason != "" {
			res.Reason, res.Err = reason, err
			break
		}
		res.Acquired++
		if res.First == 0 {
			res.First = n
		}
		res.Last = n
	}

	attrs := []any{"reason", res.Reason, "acquired", res.Acquired, "next_page", res.Next}
	if res.Reason.Completed() {
		log.Info("acquisition finished", attrs...)
	} else {
		log.Warn("acquisition stopped", append(attrs, "error", res.Err)...)
	}
	return res
}

// step performs one Requesting(n) transition. An empty reason means page n
// was acquired.
func (c *Controller) step(ctx context.Context, log *slog.Logger, doc core.Document, n int) (Reason, error) {
	log.Debug("requesting page metadata", "page", n)
	md, err := c.Source.FetchPageMetadata(ctx, doc, n)
	if err != nil {
		if ctx.Err() != nil {
			return Canceled, ctx.Err()
		}
		switch core.CodeOf(err) {
		case core.CodeAuth:
			return AuthFailure, err
		case core.CodeNotFound:
			log.Debug("no metadata for page", "page", n)
			return MetadataAbsent, nil
		default:
			return NetworkFailure, err
		}
	}

	locator, ok := md.ImageLocator(c.LocatorField)
	if !ok {
		return ImageLocatorAbsent, fmt.Errorf("page %d metadata has no image locator", n)
	}

	data, err := c.Source.FetchImageBytes(ctx, locator)
	if err != nil {
		if ctx.Err() != nil {
			return Canceled, ctx.Err()
		}
		if core.CodeOf(err) == core.CodeAuth {
			return AuthFailure, err
		}
		return NetworkFailure, err
	}

	img, info, err := raster.Normalize(data)
	if err != nil {
		return ImageInvalid, core.NewError(core.CodeImageDecode, "validating image", n, err)
	}

	page := core.Page{
		Index:  n,
		Image:  img,
		Width:  info.Width,
		Height: info.Height,
		DPI:    info.DPI,
		Format: info.Format,
	}
	if err := c.Store.Write(page); err != nil {
		return StoreFailure, core.NewError(core.CodeStore, "storing page", n, err)
	}
	log.Info("page acquired", "page", n, "width", info.Width, "height", info.Height, "dpi", info.DPI)
	if c.OnPage != nil {
		c.OnPage(page)
	}
	return "", nil
}

func (c *Controller) pause(ctx context.Context) error {
	d := c.Cooldown
	if d <= 0 {
		d = DefaultCooldown
	}
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// IsAuthFailure reports whether err came from rejected credentials.
func IsAuthFailure(err error) bool {
	var e *core.Error
	return errors.As(err, &e) && e.Code == core.CodeAuth
}
