package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/navigator"
)

// Lines is a navigator.PositionSource reading one position per line, as
// "lat,lng" or a JSON object. Blank lines and lines starting with # are
// skipped. It can be watched once.
type Lines struct {
	r      io.Reader
	logger zerolog.Logger

	mu      sync.Mutex
	watched bool
}

// NewLines creates a Lines source over r.
func NewLines(r io.Reader, logger zerolog.Logger) *Lines {
	return &Lines{r: r, logger: logger}
}

// Watch delivers positions until r is exhausted, stop is called or ctx ends.
// Reaching the end of input is not an error.
func (l *Lines) Watch(ctx context.Context, _ navigator.WatchOptions, onFix func(navigator.Fix), onError func(error)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watched {
		return nil, fmt.Errorf("line feed already consumed")
	}
	l.watched = true

	ctx, cancel := context.WithCancel(ctx)
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					if err := <-readErr; err != nil {
						onError(fmt.Errorf("read positions: %w", err))
						return
					}
					l.logger.Debug().Msg("position input exhausted")
					return
				}
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				fix, err := decodeFix([]byte(line))
				if err != nil {
					l.logger.Warn().Err(err).Str("line", line).Msg("skipping malformed position")
					continue
				}
				onFix(fix)
			}
		}
	}()

	return cancel, nil
}
