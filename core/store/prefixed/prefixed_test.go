package prefixed

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/internal/testing/fake"
)

func TestBucket_Get_Set_Delete(t *testing.T) {
	parent := fake.NewBucket()
	b := NewBucket(parent, []byte("proxies"))

	require.NoError(t, b.Set([]byte("A"), []byte("1")))
	require.Equal(t, []byte("1"), b.Get([]byte("A")))
	require.Nil(t, parent.Get([]byte("A")))
	require.Equal(t, []byte("1"), parent.Get([]byte("\x00\x07proxiesA")))

	require.NoError(t, b.Delete([]byte("A")))
	require.Nil(t, b.Get([]byte("A")))
}

func TestBucket_Scan(t *testing.T) {
	parent := fake.NewBucket()

	first := NewBucket(parent, []byte("data"), []byte("a"))
	second := NewBucket(parent, []byte("data"), []byte("ab"))

	require.NoError(t, first.Set([]byte("2"), []byte{2}))
	require.NoError(t, first.Set([]byte("1"), []byte{1}))
	require.NoError(t, second.Set([]byte("3"), []byte{3}))

	var keys []string
	err := first.ForEach(func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, keys)

	keys = nil
	err = second.Scan(nil, func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, keys)

	err = first.Scan([]byte("2"), func(k, v []byte) error {
		require.Equal(t, []byte{2}, v)
		return nil
	})
	require.NoError(t, err)
}

func TestBucket_WriteFailures(t *testing.T) {
	parent := fake.NewBadBucket()
	b := NewBucket(parent, []byte("tasks"))

	err := b.Set([]byte("A"), []byte("1"))
	require.EqualError(t, err, fake.GetError().Error())
	require.Nil(t, b.Get([]byte("A")))

	err = b.Delete([]byte("A"))
	require.ErrorIs(t, err, fake.GetError())
}
