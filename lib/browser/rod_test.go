package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRodDriver_Classify(t *testing.T) {
	fetchErr := errors.New("navigate failed")

	testCases := []struct {
		desc     string
		ping     func(ctx context.Context) error
		wantLost bool
	}{
		{
			desc:     "browser answers",
			ping:     func(context.Context) error { return nil },
			wantLost: false,
		},
		{
			desc:     "browser gone",
			ping:     func(context.Context) error { return errors.New("websocket closed") },
			wantLost: true,
		},
		{
			desc: "browser hung",
			ping: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			wantLost: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			d := &rodDriver{ping: tc.ping, pingTimeout: 50 * time.Millisecond}

			start := time.Now()
			err := d.classify(fetchErr)

			assert.Less(t, time.Since(start), time.Second)
			assert.ErrorIs(t, err, fetchErr)
			assert.Equal(t, tc.wantLost, errors.Is(err, ErrSessionLost))
		})
	}
}
