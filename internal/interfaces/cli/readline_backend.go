package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/qi-prompt/qi-prompt/internal/application"
	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// ReadlineBackend is the plain line-editing frontend, adapted from the
// teacher's RunREPL: chzyer/readline for history and line editing, ANSI
// escapes for styling, a braille spinner while a request is in flight.
type ReadlineBackend struct {
	Info BannerInfo
}

var _ Backend = (*ReadlineBackend)(nil)

// Run implements Backend.
func (b *ReadlineBackend) Run(ctx context.Context, d *Driver) error {
	w := termWidth()
	fmt.Println(RenderBanner(b.Info, w))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\001\033[1;36m\002❯\001\033[0m\002 ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	outCh, err := d.Messages(ctx)
	if err != nil {
		return err
	}

	spinner := newSpinner()
	pending := make(chan string, 1)
	go b.renderLoop(outCh, spinner, pending)

	var lastCtrlC time.Time

	for {
		input, rerr := rl.Readline()
		if rerr != nil {
			if rerr == readline.ErrInterrupt {
				if time.Since(lastCtrlC) < 2*time.Second {
					fmt.Printf("%s再见%s\n", dimText, reset)
					d.Shutdown()
					return nil
				}
				lastCtrlC = time.Now()
				_ = d.Cancel("")
				fmt.Printf("\n%s按 Ctrl+C 两次以退出%s\n", yellow, reset)
				continue
			}
			if rerr == io.EOF {
				fmt.Printf("\n%s再见%s\n", dimText, reset)
				d.Shutdown()
				return nil
			}
			d.Shutdown()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		id, err := d.Submit(input)
		if err != nil {
			fmt.Printf("%s✗ %s%s\n", redBold, err, reset)
			continue
		}
		spinner.Update("thinking...")

		select {
		case <-pending:
		case <-ctx.Done():
			return ctx.Err()
		}
		_ = id
	}
}

// renderLoop consumes the outbound queue and renders each message, signaling
// pending once a FinalResult or Error closes out the in-flight request.
func (b *ReadlineBackend) renderLoop(ch <-chan *entity.Message, spinner *asyncSpinner, pending chan<- string) {
	for msg := range ch {
		switch msg.Kind() {
		case valueobject.KindPartialResult:
			spinner.Stop()
			if p, ok := msg.Payload().(application.ProgressPayload); ok {
				fmt.Print(p.Text)
			}
		case valueobject.KindProgress:
			if p, ok := msg.Payload().(application.ProgressPayload); ok {
				spinner.Update(p.Text)
			}
		case valueobject.KindFinalResult:
			spinner.Stop()
			if p, ok := msg.Payload().(application.ResultPayload); ok && p.Text != "" {
				fmt.Println(p.Text)
			}
			fmt.Println()
			select {
			case pending <- msg.ID():
			default:
			}
		case valueobject.KindError:
			spinner.Stop()
			if p, ok := msg.Payload().(application.ResultPayload); ok && p.Err != nil {
				fmt.Printf("%s✗ %s%s\n", redBold, p.Err, reset)
			}
			select {
			case pending <- msg.ID():
			default:
			}
		case valueobject.KindStatusResponse:
			if p, ok := msg.Payload().(application.ResultPayload); ok {
				fmt.Println(p.Text)
			}
		}
	}
}
