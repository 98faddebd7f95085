package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/expwatch/internal/app"
)

// parseNames splits the comma separated names parameter. Blank entries
// are dropped and repeats collapsed.
func parseNames(q url.Values) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range q["names"] {
		for _, n := range strings.Split(v, ",") {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// parseTime reads an optional RFC3339 parameter.
func parseTime(q url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339: %w", key, ErrBadRequest)
	}
	return t.UTC(), nil
}

// parseInt reads an optional positive integer parameter; 0 when absent.
func parseInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", key, ErrBadRequest)
	}
	return n, nil
}

// parseRange reads from and to, rejecting an inverted range.
func parseRange(q url.Values) (from, to time.Time, err error) {
	if from, err = parseTime(q, "from"); err != nil {
		return
	}
	if to, err = parseTime(q, "to"); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		err = fmt.Errorf("from is after to: %w", ErrBadRequest)
	}
	return
}

// parseWindow reads from, to and window (a Go duration such as 6h).
func parseWindow(q url.Values) (service.Window, error) {
	from, to, err := parseRange(q)
	if err != nil {
		return service.Window{}, err
	}
	w := service.Window{From: from, To: to}
	if v := strings.TrimSpace(q.Get("window")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return service.Window{}, fmt.Errorf("window must be a positive duration: %w", ErrBadRequest)
		}
		w.Span = d
	}
	return w, nil
}
