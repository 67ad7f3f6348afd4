package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel(" error "))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	masked := MaskField("sellerAddress", "0xseller")
	require.Equal(t, RedactedValue, masked.Value.String())

	passthrough := MaskField("listingId", "b2f6")
	require.Equal(t, "b2f6", passthrough.Value.String())

	empty := MaskField("sellerAddress", "")
	require.Equal(t, "", empty.Value.String())
}

func TestMaskValue(t *testing.T) {
	require.Equal(t, RedactedValue, MaskValue("secret"))
	require.Equal(t, "", MaskValue(""))
	require.Equal(t, "  ", MaskValue("  "))
}

func TestAllowlistCoversLedgerIdentifiers(t *testing.T) {
	for _, key := range []string{"escrowId", "orderId", "chain", "status", "error"} {
		require.True(t, IsAllowlisted(key), key)
	}
	for _, key := range []string{"signingKey", "buyerAddress", "wallet"} {
		require.False(t, IsAllowlisted(key), key)
	}
}
