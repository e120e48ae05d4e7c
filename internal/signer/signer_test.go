package signer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/txbuilder"
)

type fakePublisher struct {
	mu      sync.Mutex
	clients int
	sent    []SignRequest
}

func (f *fakePublisher) Publish(msgType string, data any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgType == notify.TypeSignRequest && f.clients > 0 {
		f.sent = append(f.sent, data.(SignRequest))
	}
	return f.clients
}

func (f *fakePublisher) last() SignRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func request() txbuilder.TransactionRequest {
	return txbuilder.New(txbuilder.Contracts{
		Fundraising: txbuilder.ContractID{Address: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM", Name: "fundraising"},
	}).Withdraw("testnet", "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
}

type verdicts struct {
	finished chan string
	canceled chan struct{}
}

func newVerdicts() (*verdicts, executor.Callbacks) {
	v := &verdicts{finished: make(chan string, 2), canceled: make(chan struct{}, 2)}
	return v, executor.Callbacks{
		OnFinish: func(txID string) { v.finished <- txID },
		OnCancel: func() { v.canceled <- struct{}{} },
	}
}

func TestBridge_Finish(t *testing.T) {
	pub := &fakePublisher{clients: 1}
	b := NewBridge(pub, time.Minute, nil)
	v, cb := newVerdicts()

	require.NoError(t, b.Open(context.Background(), request(), cb))
	sr := pub.last()
	assert.NotEmpty(t, sr.ID)
	assert.Equal(t, "withdraw", sr.Request.FunctionName)
	assert.Len(t, b.Pending(), 1)

	require.NoError(t, b.Finish(sr.ID, "0xbeef"))
	assert.Equal(t, "0xbeef", <-v.finished)
	assert.Empty(t, b.Pending())

	assert.ErrorIs(t, b.Finish(sr.ID, "0xbeef"), ErrUnknownRequest)
	assert.ErrorIs(t, b.Cancel(sr.ID), ErrUnknownRequest)
}

func TestBridge_Cancel(t *testing.T) {
	pub := &fakePublisher{clients: 2}
	b := NewBridge(pub, time.Minute, nil)
	v, cb := newVerdicts()

	require.NoError(t, b.Open(context.Background(), request(), cb))
	require.NoError(t, b.Cancel(pub.last().ID))

	select {
	case <-v.canceled:
	case <-time.After(time.Second):
		t.Fatal("cancel not delivered")
	}
}

func TestBridge_NoClients(t *testing.T) {
	b := NewBridge(&fakePublisher{}, time.Minute, nil)
	_, cb := newVerdicts()

	err := b.Open(context.Background(), request(), cb)
	assert.ErrorIs(t, err, domain.ErrSigningFailed)
	assert.Empty(t, b.Pending())
}

func TestBridge_Expiry(t *testing.T) {
	pub := &fakePublisher{clients: 1}
	b := NewBridge(pub, 20*time.Millisecond, nil)
	v, cb := newVerdicts()

	require.NoError(t, b.Open(context.Background(), request(), cb))

	select {
	case <-v.canceled:
	case <-time.After(time.Second):
		t.Fatal("expired request not declined")
	}
	assert.Empty(t, b.Pending())
}

func TestBridge_SurvivesContextCancel(t *testing.T) {
	pub := &fakePublisher{clients: 1}
	b := NewBridge(pub, time.Minute, nil)
	v, cb := newVerdicts()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Open(ctx, request(), cb))
	cancel()

	time.Sleep(20 * time.Millisecond)
	require.Len(t, b.Pending(), 1)
	require.NoError(t, b.Finish(pub.last().ID, "0x55"))
	assert.Equal(t, "0x55", <-v.finished)
}

func TestBridge_OpenWithDoneContext(t *testing.T) {
	pub := &fakePublisher{clients: 1}
	b := NewBridge(pub, time.Minute, nil)
	_, cb := newVerdicts()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Open(ctx, request(), cb)
	assert.ErrorIs(t, err, domain.ErrSigningFailed)
	assert.Empty(t, b.Pending())
	assert.Empty(t, pub.sent)
}

func TestBridge_CallerGoneStillReportsVerdict(t *testing.T) {
	pub := &fakePublisher{clients: 1}
	b := NewBridge(pub, time.Minute, nil)
	rec := &notify.Recorder{}
	exec := executor.NewWithStrategy(executor.NewInteractiveStrategy(b), rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan executor.Outcome, 1)
	go func() {
		done <- exec.Execute(ctx, request(), executor.Messages{Success: "Withdraw requested"})
	}()

	require.Eventually(t, func() bool { return len(b.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Finish(b.Pending()[0].ID, "0x66"))

	out := <-done
	assert.Equal(t, executor.Succeeded, out.State)
	assert.Equal(t, "0x66", out.TxID)
	got := rec.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "Withdraw requested", got[0].Title)
}

func TestBridge_WithExecutor(t *testing.T) {
	pub := &fakePublisher{clients: 1}
	b := NewBridge(pub, time.Minute, nil)
	rec := &notify.Recorder{}
	exec := executor.NewWithStrategy(executor.NewInteractiveStrategy(b), rec, nil)

	done := make(chan executor.Outcome, 1)
	go func() {
		done <- exec.Execute(context.Background(), request(), executor.Messages{Success: "Withdraw requested"})
	}()

	require.Eventually(t, func() bool { return len(b.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Finish(b.Pending()[0].ID, "0x77"))

	out := <-done
	assert.Equal(t, executor.Succeeded, out.State)
	assert.Equal(t, "0x77", out.TxID)
	assert.Len(t, rec.Notifications(), 1)
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		txID   string
		cancel bool
	}{
		{"txid", "0xabc\n", "0xabc", false},
		{"trailing spaces", "  0xdef  \n", "0xdef", false},
		{"empty line declines", "\n", "", true},
		{"eof declines", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminal(strings.NewReader(tt.input), &out)
			v, cb := newVerdicts()

			require.NoError(t, term.Open(context.Background(), request(), cb))
			assert.Contains(t, out.String(), `"functionName": "withdraw"`)
			assert.Contains(t, out.String(), `"postConditionMode": "deny"`)

			select {
			case txID := <-v.finished:
				assert.False(t, tt.cancel)
				assert.Equal(t, tt.txID, txID)
			case <-v.canceled:
				assert.True(t, tt.cancel)
			case <-time.After(time.Second):
				t.Fatal("no verdict")
			}
		})
	}
}
