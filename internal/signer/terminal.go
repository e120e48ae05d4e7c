package signer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/txbuilder"
)

// Terminal prints the request and reads the resulting txid from a line of
// input. An empty line or end of input declines.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a Terminal signer.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Open prints req and waits for the answer in the background.
func (t *Terminal) Open(_ context.Context, req txbuilder.TransactionRequest, cb executor.Callbacks) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(t.out, "%s\n\nSign the transaction above in your wallet, then paste its transaction id (empty to decline): ", data); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}

	go func() {
		line, err := t.in.ReadString('\n')
		txID := strings.TrimSpace(line)
		if txID == "" || (err != nil && err != io.EOF) {
			cb.OnCancel()
			return
		}
		cb.OnFinish(txID)
	}()
	return nil
}
