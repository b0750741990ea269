// Package main serves the rig model as a viam module.
package main

import (
	"context"

	goutils "go.viam.com/utils"

	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"

	"mechctl/rig"
)

func main() {
	goutils.ContextualMain(mainWithArgs, logging.NewDebugLogger("mechctlModule"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	mechctlModule, err := module.NewModuleFromArgs(ctx, logger)
	if err != nil {
		return err
	}
	if err := mechctlModule.AddModelFromRegistry(ctx, generic.API, rig.Model); err != nil {
		return err
	}

	err = mechctlModule.Start(ctx)
	defer mechctlModule.Close(ctx)

	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
