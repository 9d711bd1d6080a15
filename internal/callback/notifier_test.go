package callback

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer := NewSigner("test-secret")
	runID := uuid.New()
	body := []byte(`{"solver_run_id":"` + runID.String() + `"}`)

	signature, err := signer.Sign(runID, body)
	require.NoError(t, err)
	require.NotEmpty(t, signature)

	ok, err := signer.Verify(runID, body, signature)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignerVerifyRejectsTamperedBody(t *testing.T) {
	signer := NewSigner("test-secret")
	runID := uuid.New()

	signature, err := signer.Sign(runID, []byte("original"))
	require.NoError(t, err)

	ok, err := signer.Verify(runID, []byte("tampered"), signature)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignerDerivesDistinctKeysPerRun(t *testing.T) {
	signer := NewSigner("test-secret")
	body := []byte("payload")

	sigA, err := signer.Sign(uuid.New(), body)
	require.NoError(t, err)
	sigB, err := signer.Sign(uuid.New(), body)
	require.NoError(t, err)

	require.NotEqual(t, sigA, sigB)
}
