package guardrail_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/guardrail"
)

func TestSanitizePlainText(t *testing.T) {
	ctx := context.Background()
	g, err := guardrail.New(ctx, "")
	gt.NoError(t, err)

	verdict, err := g.Sanitize(ctx, "The product is great, but the delivery was delayed.")
	gt.NoError(t, err)
	gt.False(t, verdict.Redacted)
	gt.Equal(t, verdict.Text, "The product is great, but the delivery was delayed.")
}

func TestSanitizeRedactsEmail(t *testing.T) {
	ctx := context.Background()
	g, err := guardrail.New(ctx, "")
	gt.NoError(t, err)

	verdict, err := g.Sanitize(ctx, "Contact me at jane.doe@example.com about the refund.")
	gt.NoError(t, err)
	gt.True(t, verdict.Redacted)
	gt.S(t, verdict.Text).Contains("[EMAIL]")
	gt.S(t, verdict.Text).NotContains("jane.doe@example.com")
}

func TestSanitizeRedactsCardNumber(t *testing.T) {
	ctx := context.Background()
	g, err := guardrail.New(ctx, "")
	gt.NoError(t, err)

	verdict, err := g.Sanitize(ctx, "I was charged twice on card 4111111111111111.")
	gt.NoError(t, err)
	gt.True(t, verdict.Redacted)
	gt.S(t, verdict.Text).Contains("[CARD]")
}

func TestNewWithMissingPolicyDir(t *testing.T) {
	ctx := context.Background()
	_, err := guardrail.New(ctx, t.TempDir())
	gt.Error(t, err)
}
