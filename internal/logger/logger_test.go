package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	_, err := Init(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestInit_SetsGlobal(t *testing.T) {
	log, err := Init(Options{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, log)

	Global().With("component", "test").Debug("global logger is usable")
	Cleanup()
}

func TestNop_DiscardsWithoutPanicking(t *testing.T) {
	log := Nop().With("backup_id", "20250101_000000")
	log.Info("ignored", "documents", 3)
	log.Error("ignored")
}
