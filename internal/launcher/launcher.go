// Package launcher starts the external game process with a map file.
package launcher

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// GameLauncher invokes the game executable with a /file= argument. Only
// process start success is observed; the game's lifetime is its own.
type GameLauncher struct {
	exe    string
	logger *slog.Logger
}

func New(exe string, logger *slog.Logger) *GameLauncher {
	return &GameLauncher{exe: exe, logger: logger}
}

func (l *GameLauncher) Launch(path string) error {
	if path == "" {
		return fmt.Errorf("no map file to launch")
	}
	cmd := exec.Command(l.exe, "/file="+path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start game process: %w", err)
	}
	l.logger.Info("Launched map", "file", path, "pid", cmd.Process.Pid)
	return cmd.Process.Release()
}
