package retry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ridge/alluvium/test"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	ctx := test.Context(t)
	policy := FixedPolicy{}

	count0 := 0
	err := Do(ctx, policy, func() error {
		count0++
		if count0 == 10 {
			return errors.New("ten")
		}
		return Transient(fmt.Errorf("%d", count0))
	})
	require.EqualError(t, err, "ten")

	count1 := 0
	ret1, err := Do1(ctx, policy, func() (int, error) {
		count1++
		if count1 == 5 {
			return 5, errors.New("five")
		}
		return count1, Transient(fmt.Errorf("%d", count1))
	})
	require.EqualError(t, err, "five")
	require.Equal(t, 5, ret1)
}

func TestDoMaxAttempts(t *testing.T) {
	ctx := test.Context(t)

	count := 0
	err := Do(ctx, FixedPolicy{MaxAttempts: 3}, func() error {
		count++
		return Transient(fmt.Errorf("attempt %d", count))
	})
	require.EqualError(t, err, "attempt 3")
	require.Equal(t, 3, count)
}

func TestDoPermanentStops(t *testing.T) {
	ctx := test.Context(t)

	count := 0
	err := Do(ctx, FixedPolicy{MaxAttempts: 10}, func() error {
		count++
		return errors.New("broken")
	})
	require.EqualError(t, err, "broken")
	require.Equal(t, 1, count)
}

func TestTransientNil(t *testing.T) {
	require.NoError(t, Transient(nil))
}
