/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/rendercore/engine"
	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/spaghettifunk/rendercore/testbed"
)

func main() {
	tb, err := testbed.NewTestGame()
	if err != nil {
		core.LogFatal("%s", err)
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// ask the game loop to stop; it owns the window and the renderer
	go func() {
		<-sigCh
		e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
