package inputlist

import (
	"bufio"
	"errors"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrInvalidPage if a line is neither an absolute http(s) url nor a path
	ErrInvalidPage = errors.New("not a valid page url or path")
	// ErrTooManyPages if we exceeded our total page count
	ErrTooManyPages = errors.New("too many pages in input list")
)

// ParseError contains the line number, line and parse error
type ParseError struct {
	LineNumber int
	Line       string
	Err        error
}

// ParsePages parses a seed page list, one entry per line. Entries are
// absolute http(s) urls or server-relative paths; blank lines and #
// comments are skipped. Returns a de-duplicated list in input order and
// any errors with line numbers; returns nil if the page count exceeds
// maxPages.
func ParsePages(in io.Reader, maxPages int) ([]string, []*ParseError) {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanLines)

	pages := make([]string, 0)
	seen := make(map[string]struct{})
	errs := make([]*ParseError, 0)
	idx := 0

	for scanner.Scan() {
		idx++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !validPage(line) {
			errs = append(errs, &ParseError{LineNumber: idx, Line: line, Err: ErrInvalidPage})
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		if len(pages) >= maxPages {
			errs = append(errs, &ParseError{LineNumber: idx, Line: line, Err: ErrTooManyPages})
			return nil, errs
		}

		seen[line] = struct{}{}
		pages = append(pages, line)
	}
	return pages, errs
}

func validPage(line string) bool {
	if strings.HasPrefix(line, "/") {
		return !strings.ContainsAny(line, " \t")
	}

	p, err := url.Parse(line)
	if err != nil {
		return false
	}
	return (p.Scheme == "http" || p.Scheme == "https") && p.Hostname() != ""
}
