package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chainwatch/depositengine/internal/deposit"
)

func TestLoggingNotifier_DoesNotPanic(t *testing.T) {
	n := NewLoggingNotifier(zaptest.NewLogger(t))
	d := deposit.NewDeposit("0xTX", "ETH", "0xAAA", "", deposit.AssetNative, decimal.NewFromInt(1), 18, 100)

	assert.NotPanics(t, func() {
		n.OnNewDeposit(d)
		n.OnDepositConfirmed(d)
	})
}

func TestChannelNotifier_ForwardsToChannels(t *testing.T) {
	inner := NewLoggingNotifier(zaptest.NewLogger(t))
	n := NewChannelNotifier(inner, 1)
	d := deposit.NewDeposit("0xTX", "ETH", "0xAAA", "", deposit.AssetNative, decimal.NewFromInt(1), 18, 100)

	n.OnNewDeposit(d)
	select {
	case got := <-n.NewDeps:
		require.Equal(t, d, got)
	default:
		t.Fatal("expected deposit on NewDeps channel")
	}

	n.OnDepositConfirmed(d)
	select {
	case got := <-n.Confirms:
		require.Equal(t, d, got)
	default:
		t.Fatal("expected deposit on Confirms channel")
	}
}

func TestChannelNotifier_NonBlockingWhenFull(t *testing.T) {
	inner := NewLoggingNotifier(zaptest.NewLogger(t))
	n := NewChannelNotifier(inner, 1)
	d := deposit.NewDeposit("0xTX", "ETH", "0xAAA", "", deposit.AssetNative, decimal.NewFromInt(1), 18, 100)

	done := make(chan struct{})
	go func() {
		n.OnNewDeposit(d) // fills the buffer
		n.OnNewDeposit(d) // must not block even though the channel is full
		close(done)
	}()

	select {
	case <-done:
	default:
	}
	<-done
}
