package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/qi-prompt/qi-prompt/internal/application"
	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// RichBackend streams partial text as plain text (glamour can't incrementally
// re-flow an unclosed markdown block without flicker) and re-renders the
// completed response through glamour once the FinalResult lands, so code
// fences, tables and lists come out styled.
type RichBackend struct {
	Info BannerInfo
}

var _ Backend = (*RichBackend)(nil)

// Run implements Backend.
func (b *RichBackend) Run(ctx context.Context, d *Driver) error {
	w := termWidth()
	fmt.Println(RenderBanner(b.Info, w))
	renderer := NewRenderer(w)

	outCh, err := d.Messages(ctx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go b.renderLoop(outCh, renderer, done)

	reader := newLineReader()
	for {
		line, ok := reader.readLine(ctx)
		if !ok {
			d.Shutdown()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := d.Submit(line); err != nil {
			fmt.Printf("%s✗ %s%s\n", redBold, err, reset)
			continue
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *RichBackend) renderLoop(ch <-chan *entity.Message, renderer *Renderer, done chan<- struct{}) {
	var partial strings.Builder
	for msg := range ch {
		switch msg.Kind() {
		case valueobject.KindPartialResult:
			if p, ok := msg.Payload().(application.ProgressPayload); ok {
				partial.WriteString(p.Text)
				fmt.Print(p.Text)
			}
		case valueobject.KindProgress:
			// workflow node progress; rich backend shows only the final markdown.
		case valueobject.KindFinalResult:
			fmt.Println()
			if p, ok := msg.Payload().(application.ResultPayload); ok {
				text := p.Text
				if text == "" {
					text = partial.String()
				}
				if text != "" {
					fmt.Println(renderer.RenderMarkdown(text))
				}
			}
			partial.Reset()
			select {
			case done <- struct{}{}:
			default:
			}
		case valueobject.KindError:
			if p, ok := msg.Payload().(application.ResultPayload); ok && p.Err != nil {
				fmt.Printf("%s✗ %s%s\n", redBold, p.Err, reset)
			}
			partial.Reset()
			select {
			case done <- struct{}{}:
			default:
			}
		case valueobject.KindStatusResponse:
			if p, ok := msg.Payload().(application.ResultPayload); ok {
				fmt.Println(p.Text)
			}
		}
	}
}
