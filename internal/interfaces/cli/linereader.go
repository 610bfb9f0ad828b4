package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// lineReader wraps stdin in a background-scanning goroutine so a backend can
// select between a new line and ctx cancellation, without readline's line
// editing (used by backends that only need plain prompt/enter input).
type lineReader struct {
	lines chan string
}

func newLineReader() *lineReader {
	lr := &lineReader{lines: make(chan string)}
	go lr.scan()
	return lr
}

func (lr *lineReader) scan() {
	fmt.Print("\n❯ ")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lr.lines <- scanner.Text()
		fmt.Print("\n❯ ")
	}
	close(lr.lines)
}

// readLine blocks for the next line of input, returning ok=false once stdin
// is closed or ctx is cancelled.
func (lr *lineReader) readLine(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-lr.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}
