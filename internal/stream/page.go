// Package stream ingests the paginated snapshot diff stream into local
// storage. A page is addressed by the snapshot pair plus a continuation
// cookie extracted from stream content; the Opener retries pages that are
// not yet published, and the Drainer copies every page into a numbered
// raw file until the stream's EOF sentinel is seen.
package stream

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StartCookie is the continuation cookie addressing the first page of a
// diff stream.
const StartCookie = "0"

// PageRef identifies one retrievable page of the diff stream.
type PageRef struct {
	Root   string // stream root directory
	SnapA  string // source snapshot identifier
	SnapB  string // target snapshot identifier
	Cookie string // continuation cookie
}

// Path returns the platform addressing string for the page:
// <root>/<snapA>^<snapB>^<cookie>.
func (r PageRef) Path() string {
	return filepath.Join(r.Root, r.SnapA+"^"+r.SnapB+"^"+r.Cookie)
}

// Opener opens diff stream pages, retrying while a page is not yet
// published. Any open failure other than not-exist is immediately fatal.
type Opener struct {
	MaxRetries uint64        // retries after the initial attempt
	Interval   time.Duration // pause between attempts
	Logger     *slog.Logger

	// OpenFile opens the addressed page. Defaults to os.Open; tests
	// inject their own.
	OpenFile func(path string) (io.ReadCloser, error)
}

// NewOpener creates an Opener with the given retry bounds.
func NewOpener(maxRetries int, interval time.Duration, logger *slog.Logger) *Opener {
	return &Opener{
		MaxRetries: uint64(maxRetries),
		Interval:   interval,
		Logger:     logger,
	}
}

func (o *Opener) openFile(path string) (io.ReadCloser, error) {
	if o.OpenFile != nil {
		return o.OpenFile(path)
	}
	return os.Open(path)
}

// Open opens the page for ref, retrying a bounded number of times while
// the page does not exist yet.
func (o *Opener) Open(ref PageRef) (io.ReadCloser, error) {
	path := ref.Path()
	o.Logger.Info("Opening snapdiff stream", "page", path)

	var rc io.ReadCloser
	attempt := 0
	operation := func() error {
		f, err := o.openFile(path)
		if err != nil {
			o.Logger.Error("Snapshot diff not opened, retrying",
				"page", path, "attempt", attempt, "error", err)
			attempt++
			if !errors.Is(err, fs.ErrNotExist) {
				return backoff.Permanent(err)
			}
			return err
		}
		rc = f
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(o.Interval), o.MaxRetries)
	if err := backoff.Retry(operation, policy); err != nil {
		o.Logger.Error("Could not open snapshot diff", "page", path, "error", err)
		return nil, fmt.Errorf("open snapshot diff page %s: %w", path, err)
	}
	return rc, nil
}
