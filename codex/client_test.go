package codex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtoClientCloseReapsProcess(t *testing.T) {
	// yes ignores its arguments and streams until killed, standing in for
	// a backend that never honors the interrupt.
	src, err := NewClient().Run(context.Background(), RunRequest{CLIPath: "yes"})
	require.NoError(t, err)

	ps := src.(*protoSource)
	require.NoError(t, ps.Close())
	require.NotNil(t, ps.cmd.ProcessState, "subprocess must be reaped on close")

	for range ps.Events() {
	}
}
