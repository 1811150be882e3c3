package stream

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"snapdiff/internal/record"
)

// Drainer copies every page of a diff stream into numbered files under
// RawDir, following continuation cookies until the EOF sentinel.
type Drainer struct {
	Root   string
	SnapA  string
	SnapB  string
	RawDir string

	Opener     *Opener
	BufferSize int
	MaxRetries int // bound on mid-stream re-read retries, shared across the whole drain
	Logger     *slog.Logger
}

// Drain reads the whole stream, page by page, and returns the number of
// raw page files written.
//
// The continuation cookie for the next page is derived positionally: in
// each line the third token is the sentinel position and the second token
// is the cookie candidate. A line whose third token is neither EOB nor
// EOF updates the running cookie; the cookie in effect when a sentinel is
// reached addresses the next page. This token-counting contract mirrors
// the upstream line format and must not be replaced with named-field
// parsing.
func (d *Drainer) Drain() (int, error) {
	eof := false
	pageNum := 0
	cookie := StartCookie
	rereads := 0
	buf := make([]byte, d.BufferSize)

	for !eof {
		ref := PageRef{Root: d.Root, SnapA: d.SnapA, SnapB: d.SnapB, Cookie: cookie}

		page, err := d.Opener.Open(ref)
		if err != nil {
			return 0, err
		}

		localPath := filepath.Join(d.RawDir, strconv.Itoa(pageNum))
		local, err := os.OpenFile(localPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			page.Close()
			d.Logger.Error("Could not open file", "path", localPath, "error", err)
			return 0, fmt.Errorf("open raw page file %s: %w", localPath, err)
		}

		d.Logger.Info("Saving raw chunk in file", "path", localPath)
		d.Logger.Info("Reading snapdiff", "page", ref.Path())

		readErr := copyPage(local, page, buf)
		page.Close()

		if readErr != nil {
			// The upstream producer can report a transient failure
			// mid-stream. Reopen the same page and copy it again,
			// up to the shared retry bound.
			local.Close()
			if rereads == d.MaxRetries {
				d.Logger.Error("Read snapdiff failed: exceeded maximum retries")
				return 0, fmt.Errorf("read snapshot diff page %s: %w", ref.Path(), readErr)
			}
			d.Logger.Error("Reading snapdiff stream failed, reopening and retrying",
				"page", ref.Path(), "attempt", rereads, "error", readErr)
			rereads++
			continue
		}

		if _, err := local.Seek(0, io.SeekStart); err != nil {
			local.Close()
			return 0, fmt.Errorf("rewind raw page file %s: %w", localPath, err)
		}

		scanner := bufio.NewScanner(local)
		scanner.Buffer(make([]byte, d.BufferSize), record.MaxLineBytes)
		sentinel := false
		for scanner.Scan() {
			tokens := record.Tokens(scanner.Text())
			var second, third string
			if len(tokens) >= 2 {
				second = tokens[1]
			}
			if len(tokens) >= 3 {
				third = tokens[2]
			}

			switch third {
			case record.SentinelEOB:
				pageNum++
				sentinel = true
			case record.SentinelEOF:
				pageNum++
				sentinel = true
				eof = true
			default:
				cookie = second
			}
			if sentinel {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			local.Close()
			d.Logger.Error("Error reading file", "path", localPath, "error", err)
			return 0, fmt.Errorf("scan raw page file %s: %w", localPath, err)
		}
		local.Close()
	}

	return pageNum, nil
}

// copyPage copies the page stream to the local file in fixed-size blocks.
// Returns a non-nil error for any failure other than clean end-of-stream.
func copyPage(dst *os.File, src io.Reader, buf []byte) error {
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write local copy: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
