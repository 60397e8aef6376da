package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeResolve_RoundTrip(t *testing.T) {
	h := Encode(KindDataset, 42)
	id, err := Resolve(h, KindDataset)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestResolve_KindMismatch(t *testing.T) {
	h := Encode(KindSpan, 7)
	_, err := Resolve(h, KindDataset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected Dataset id")
}

func TestResolve_Malformed(t *testing.T) {
	for _, h := range []string{"", "not-base64!!", "bm9jb2xvbg=="} {
		_, err := Resolve(h, KindDataset)
		assert.Error(t, err, "handle %q", h)
	}
}

func TestResolve_NonNumericID(t *testing.T) {
	// base64("Dataset:abc")
	_, err := Resolve("RGF0YXNldDphYmM=", KindDataset)
	require.Error(t, err)
}

func TestResolveAll_PreservesOrder(t *testing.T) {
	hs := []string{
		Encode(KindDatasetExample, 3),
		Encode(KindDatasetExample, 1),
		Encode(KindDatasetExample, 2),
	}
	ids, err := ResolveAll(hs, KindDatasetExample)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestResolveAll_FailsFast(t *testing.T) {
	hs := []string{Encode(KindDatasetExample, 1), "garbage"}
	_, err := ResolveAll(hs, KindDatasetExample)
	require.Error(t, err)
}
