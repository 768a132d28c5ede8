package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/boat-builder/chatbridge/llm"
)

// Console reads one message per line from in and writes each reply to out,
// as the given user.
type Console struct {
	handler *Handler
	user    llm.User
	in      io.Reader
	out     io.Writer
	prompt  string
}

func NewConsole(handler *Handler, user llm.User, in io.Reader, out io.Writer) *Console {
	return &Console{handler: handler, user: user, in: in, out: out, prompt: "> "}
}

// Run serves lines until in is exhausted or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	seq := 0
	for {
		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		seq++
		reply, ok := c.handler.Handle(ctx, Message{
			ID:   "console-" + strconv.Itoa(seq),
			User: c.user,
			Text: text,
			Sent: time.Now(),
		})
		if ok {
			fmt.Fprintln(c.out, reply)
		}
	}
}
